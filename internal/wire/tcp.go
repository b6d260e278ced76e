package wire

// TCPHeaderLen is the length of a bare (no-options) TCP header.
const TCPHeaderLen = 20

const (
	tcpOffSrcPort  = 0
	tcpOffDstPort  = 2
	tcpOffSeq      = 4
	tcpOffAck      = 8
	tcpOffDataOff  = 12
	tcpOffFlags    = 13
	tcpOffWindow   = 14
	tcpOffChecksum = 16
	tcpOffUrgent   = 18
)

// TCP flag bits.
const (
	TCPFlagFIN = 1 << 0
	TCPFlagSYN = 1 << 1
	TCPFlagRST = 1 << 2
	TCPFlagPSH = 1 << 3
	TCPFlagACK = 1 << 4
	TCPFlagURG = 1 << 5
)

// TCPSrcPort returns the source port.
func TCPSrcPort(b []byte) uint16 { return beUint16(b[tcpOffSrcPort : tcpOffSrcPort+2]) }

// TCPDstPort returns the destination port.
func TCPDstPort(b []byte) uint16 { return beUint16(b[tcpOffDstPort : tcpOffDstPort+2]) }

// TCPSetSrcPort writes the source port.
func TCPSetSrcPort(b []byte, p uint16) { bePutUint16(b[tcpOffSrcPort:tcpOffSrcPort+2], p) }

// TCPSetDstPort writes the destination port.
func TCPSetDstPort(b []byte, p uint16) { bePutUint16(b[tcpOffDstPort:tcpOffDstPort+2], p) }

// TCPDataOffset returns the header length in bytes, decoded from the high
// nibble of the data-offset/reserved byte.
func TCPDataOffset(b []byte) int { return int(b[tcpOffDataOff]>>4) * 4 }

// TCPFlags returns the 6 control bits.
func TCPFlags(b []byte) uint8 { return b[tcpOffFlags] & 0x3f }

// TCPChecksum returns the checksum field.
func TCPChecksum(b []byte) uint16 { return beUint16(b[tcpOffChecksum : tcpOffChecksum+2]) }

// TCPSetChecksum writes the checksum field.
func TCPSetChecksum(b []byte, sum uint16) { bePutUint16(b[tcpOffChecksum:tcpOffChecksum+2], sum) }

// PutTCP writes a minimal (no options) TCP header into buf[0:20].
func PutTCP(buf []byte, srcPort, dstPort uint16, seq, ack uint32, flags uint8, window uint16) {
	bePutUint16(buf[tcpOffSrcPort:tcpOffSrcPort+2], srcPort)
	bePutUint16(buf[tcpOffDstPort:tcpOffDstPort+2], dstPort)
	bePutUint32(buf[tcpOffSeq:tcpOffSeq+4], seq)
	bePutUint32(buf[tcpOffAck:tcpOffAck+4], ack)
	buf[tcpOffDataOff] = 5 << 4
	buf[tcpOffFlags] = flags & 0x3f
	bePutUint16(buf[tcpOffWindow:tcpOffWindow+2], window)
	TCPSetChecksum(buf, 0)
	bePutUint16(buf[tcpOffUrgent:tcpOffUrgent+2], 0)
}

func bePutUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
