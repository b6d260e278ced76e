package wire

// IPv4HeaderLen is the length of a bare (no-options) IPv4 header.
const IPv4HeaderLen = 20

// IP protocol numbers used by the parser and forwarders.
const (
	ProtoICMP uint8 = 1
	ProtoTCP  uint8 = 6
	ProtoUDP  uint8 = 17
)

// IPv4 offsets within the header.
const (
	ipv4OffVersionIHL = 0
	ipv4OffTOS        = 1
	ipv4OffTotalLen   = 2
	ipv4OffID         = 4
	ipv4OffFlagsFrag  = 6
	ipv4OffTTL        = 8
	ipv4OffProto      = 9
	ipv4OffChecksum   = 10
	ipv4OffSrc        = 12
	ipv4OffDst        = 16
)

// IPv4IHL returns the header length in bytes encoded in the low nibble of
// the version/IHL byte.
func IPv4IHL(b []byte) int { return int(b[ipv4OffVersionIHL]&0x0f) * 4 }

// IPv4Version returns the IP version encoded in the high nibble.
func IPv4Version(b []byte) int { return int(b[ipv4OffVersionIHL] >> 4) }

// IPv4TotalLen returns the total packet length (header + payload) field.
func IPv4TotalLen(b []byte) uint16 { return beUint16(b[ipv4OffTotalLen : ipv4OffTotalLen+2]) }

// IPv4TTL returns the time-to-live field.
func IPv4TTL(b []byte) uint8 { return b[ipv4OffTTL] }

// IPv4SetTTL writes the time-to-live field.
func IPv4SetTTL(b []byte, ttl uint8) { b[ipv4OffTTL] = ttl }

// IPv4Protocol returns the protocol field.
func IPv4Protocol(b []byte) uint8 { return b[ipv4OffProto] }

// IPv4Checksum returns the header checksum field.
func IPv4Checksum(b []byte) uint16 { return beUint16(b[ipv4OffChecksum : ipv4OffChecksum+2]) }

// IPv4SetChecksum writes the header checksum field.
func IPv4SetChecksum(b []byte, sum uint16) { bePutUint16(b[ipv4OffChecksum:ipv4OffChecksum+2], sum) }

// IPv4Src returns the 4-byte source address.
func IPv4Src(b []byte) [4]byte { var a [4]byte; copy(a[:], b[ipv4OffSrc:ipv4OffSrc+4]); return a }

// IPv4Dst returns the 4-byte destination address.
func IPv4Dst(b []byte) [4]byte { var a [4]byte; copy(a[:], b[ipv4OffDst:ipv4OffDst+4]); return a }

// IPv4SetSrc writes the source address.
func IPv4SetSrc(b []byte, ip [4]byte) { copy(b[ipv4OffSrc:ipv4OffSrc+4], ip[:]) }

// IPv4SetDst writes the destination address.
func IPv4SetDst(b []byte, ip [4]byte) { copy(b[ipv4OffDst:ipv4OffDst+4], ip[:]) }

// PutIPv4 writes a minimal (no options) IPv4 header into buf[0:20].
func PutIPv4(buf []byte, totalLen uint16, ttl, proto uint8, src, dst [4]byte) {
	buf[ipv4OffVersionIHL] = 0x45
	buf[ipv4OffTOS] = 0
	bePutUint16(buf[ipv4OffTotalLen:ipv4OffTotalLen+2], totalLen)
	bePutUint16(buf[ipv4OffID:ipv4OffID+2], 0)
	bePutUint16(buf[ipv4OffFlagsFrag:ipv4OffFlagsFrag+2], 0)
	buf[ipv4OffTTL] = ttl
	buf[ipv4OffProto] = proto
	IPv4SetChecksum(buf, 0)
	IPv4SetSrc(buf, src)
	IPv4SetDst(buf, dst)
}

// IPv4MoreFragments reports whether the MF flag is set or the fragment
// offset is nonzero, i.e. this is not a (or not the only) first fragment.
func IPv4MoreFragments(b []byte) bool {
	flagsFrag := beUint16(b[ipv4OffFlagsFrag : ipv4OffFlagsFrag+2])
	const mfFlag = 0x2000
	const fragOffMask = 0x1fff
	return flagsFrag&mfFlag != 0 || flagsFrag&fragOffMask != 0
}
