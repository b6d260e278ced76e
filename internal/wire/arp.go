package wire

// ARPHeaderLen is the length of an Ethernet/IPv4 ARP packet.
const ARPHeaderLen = 28

const (
	arpOffHWType    = 0
	arpOffProtoType = 2
	arpOffHWLen     = 4
	arpOffProtoLen  = 5
	arpOffOpcode    = 6
	arpOffSenderMAC = 8
	arpOffSenderIP  = 14
	arpOffTargetMAC = 18
	arpOffTargetIP  = 24
)

// ARP opcodes.
const (
	ARPRequest uint16 = 1
	ARPReply   uint16 = 2
)

// ARPOpcode returns the opcode field.
func ARPOpcode(b []byte) uint16 { return beUint16(b[arpOffOpcode : arpOffOpcode+2]) }

// ARPSenderMAC returns the sender hardware address.
func ARPSenderMAC(b []byte) MAC { var m MAC; copy(m[:], b[arpOffSenderMAC:arpOffSenderMAC+6]); return m }

// ARPSenderIP returns the sender protocol address.
func ARPSenderIP(b []byte) [4]byte {
	var a [4]byte
	copy(a[:], b[arpOffSenderIP:arpOffSenderIP+4])
	return a
}

// ARPTargetMAC returns the target hardware address.
func ARPTargetMAC(b []byte) MAC { var m MAC; copy(m[:], b[arpOffTargetMAC:arpOffTargetMAC+6]); return m }

// ARPTargetIP returns the target protocol address.
func ARPTargetIP(b []byte) [4]byte {
	var a [4]byte
	copy(a[:], b[arpOffTargetIP:arpOffTargetIP+4])
	return a
}

// PutARP writes an Ethernet/IPv4 ARP packet into buf[0:28].
func PutARP(buf []byte, opcode uint16, senderMAC MAC, senderIP [4]byte, targetMAC MAC, targetIP [4]byte) {
	bePutUint16(buf[arpOffHWType:arpOffHWType+2], 1) // Ethernet
	bePutUint16(buf[arpOffProtoType:arpOffProtoType+2], EtherTypeIPv4)
	buf[arpOffHWLen] = 6
	buf[arpOffProtoLen] = 4
	bePutUint16(buf[arpOffOpcode:arpOffOpcode+2], opcode)
	copy(buf[arpOffSenderMAC:arpOffSenderMAC+6], senderMAC[:])
	copy(buf[arpOffSenderIP:arpOffSenderIP+4], senderIP[:])
	copy(buf[arpOffTargetMAC:arpOffTargetMAC+6], targetMAC[:])
	copy(buf[arpOffTargetIP:arpOffTargetIP+4], targetIP[:])
}
