package wire

// UDPHeaderLen is the fixed length of a UDP header.
const UDPHeaderLen = 8

const (
	udpOffSrcPort  = 0
	udpOffDstPort  = 2
	udpOffLength   = 4
	udpOffChecksum = 6
)

// UDPSrcPort returns the source port.
func UDPSrcPort(b []byte) uint16 { return beUint16(b[udpOffSrcPort : udpOffSrcPort+2]) }

// UDPDstPort returns the destination port.
func UDPDstPort(b []byte) uint16 { return beUint16(b[udpOffDstPort : udpOffDstPort+2]) }

// UDPSetSrcPort writes the source port.
func UDPSetSrcPort(b []byte, p uint16) { bePutUint16(b[udpOffSrcPort:udpOffSrcPort+2], p) }

// UDPSetDstPort writes the destination port.
func UDPSetDstPort(b []byte, p uint16) { bePutUint16(b[udpOffDstPort:udpOffDstPort+2], p) }

// UDPLength returns the length field (header + payload).
func UDPLength(b []byte) uint16 { return beUint16(b[udpOffLength : udpOffLength+2]) }

// UDPChecksum returns the checksum field. Zero means "not computed".
func UDPChecksum(b []byte) uint16 { return beUint16(b[udpOffChecksum : udpOffChecksum+2]) }

// UDPSetChecksum writes the checksum field.
func UDPSetChecksum(b []byte, sum uint16) { bePutUint16(b[udpOffChecksum:udpOffChecksum+2], sum) }

// PutUDP writes a UDP header into buf[0:8].
func PutUDP(buf []byte, srcPort, dstPort, length uint16) {
	bePutUint16(buf[udpOffSrcPort:udpOffSrcPort+2], srcPort)
	bePutUint16(buf[udpOffDstPort:udpOffDstPort+2], dstPort)
	bePutUint16(buf[udpOffLength:udpOffLength+2], length)
	UDPSetChecksum(buf, 0)
}
