package wire

// Parse performs a single forward pass over a raw Ethernet frame and
// produces a PacketMeta. It returns ok=false only when the frame is too
// short to contain a valid Ethernet header, or (for IPv4) declares an IHL
// below the 20-byte minimum or is too short for the IHL-declared header
// length. Non-IPv4 frames (ARP, IPv6, VLAN, ...) still
// produce a meta with only the L2 fields populated, so ARP handling can
// reuse this entry point.
func Parse(buf []byte) (PacketMeta, bool) {
	var m PacketMeta

	n := len(buf)
	if n < EtherHeaderLen {
		return m, false
	}

	copy(m.DstMAC[:], buf[0:6])
	copy(m.SrcMAC[:], buf[6:12])
	m.EtherType = beUint16(buf[12:14])
	m.L2Offset = 0
	m.L3Offset = EtherHeaderLen
	m.L4Offset = EtherHeaderLen
	m.PayloadOffset = EtherHeaderLen
	m.TotalLen = n

	if m.EtherType != EtherTypeIPv4 {
		return m, true
	}

	if n < EtherHeaderLen+IPv4HeaderLen {
		return m, false
	}

	l3 := buf[EtherHeaderLen:]
	ihl := IPv4IHL(l3)
	if ihl < IPv4HeaderLen || EtherHeaderLen+ihl > n {
		return m, false
	}

	m.IsIPv4 = true
	m.SrcIP = IPv4Src(l3)
	m.DstIP = IPv4Dst(l3)
	m.Protocol = IPv4Protocol(l3)
	m.TTL = IPv4TTL(l3)
	m.L4Offset = EtherHeaderLen + ihl
	m.PayloadOffset = m.L4Offset

	l4 := buf[m.L4Offset:]
	l4len := n - m.L4Offset

	switch m.Protocol {
	case ProtoTCP:
		if l4len >= TCPHeaderLen {
			dataOff := TCPDataOffset(l4)
			if dataOff < TCPHeaderLen {
				dataOff = TCPHeaderLen
			}
			m.SrcPort = TCPSrcPort(l4)
			m.DstPort = TCPDstPort(l4)
			if m.L4Offset+dataOff <= n {
				m.PayloadOffset = m.L4Offset + dataOff
			} else {
				m.PayloadOffset = n
			}
		}
	case ProtoUDP:
		if l4len >= UDPHeaderLen {
			m.SrcPort = UDPSrcPort(l4)
			m.DstPort = UDPDstPort(l4)
			m.PayloadOffset = m.L4Offset + UDPHeaderLen
			if m.PayloadOffset > n {
				m.PayloadOffset = n
			}
		}
	}

	return m, true
}
