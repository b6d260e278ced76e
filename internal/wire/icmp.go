package wire

// ICMPHeaderLen is the length of the fixed ICMP header (type, code,
// checksum, and the 4-byte rest-of-header used by echo request/reply).
const ICMPHeaderLen = 8

const (
	icmpOffType     = 0
	icmpOffCode     = 1
	icmpOffChecksum = 2
	icmpOffID       = 4
	icmpOffSeq      = 6
)

// ICMP echo types.
const (
	ICMPTypeEchoReply   uint8 = 0
	ICMPTypeEchoRequest uint8 = 8
)

// ICMPType returns the type field.
func ICMPType(b []byte) uint8 { return b[icmpOffType] }

// ICMPCode returns the code field.
func ICMPCode(b []byte) uint8 { return b[icmpOffCode] }

// ICMPChecksum returns the checksum field.
func ICMPChecksum(b []byte) uint16 { return beUint16(b[icmpOffChecksum : icmpOffChecksum+2]) }

// ICMPSetChecksum writes the checksum field.
func ICMPSetChecksum(b []byte, sum uint16) { bePutUint16(b[icmpOffChecksum:icmpOffChecksum+2], sum) }

// ICMPIdentifier returns the echo identifier field.
func ICMPIdentifier(b []byte) uint16 { return beUint16(b[icmpOffID : icmpOffID+2]) }

// ICMPSequence returns the echo sequence field.
func ICMPSequence(b []byte) uint16 { return beUint16(b[icmpOffSeq : icmpOffSeq+2]) }

// PutICMPEcho writes an echo request/reply header into buf[0:8].
func PutICMPEcho(buf []byte, typ uint8, id, seq uint16) {
	buf[icmpOffType] = typ
	buf[icmpOffCode] = 0
	ICMPSetChecksum(buf, 0)
	bePutUint16(buf[icmpOffID:icmpOffID+2], id)
	bePutUint16(buf[icmpOffSeq:icmpOffSeq+2], seq)
}
