// Package dissect implements L2-L4 header slicing.
package dissect

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/hfinger/internal/core"
)

const (
	ethernetHeaderLen = 14
	vlanHeaderLen     = 4
	ipv4HeaderMinLen  = 20
	ipv6HeaderLen     = 40
	tcpHeaderMinLen   = 20

	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86DD
	etherTypeVLAN = 0x8100
	etherTypeQinQ = 0x88A8

	protocolTCP = 6
)

// ethernetHeader is a decoded Ethernet II header. Len includes VLAN tags.
type ethernetHeader struct {
	EtherType uint16
	VLANs     []uint16
	Len       int
}

type ipHeader struct {
	Version  uint8
	Protocol uint8
	SrcIP    netip.Addr
	DstIP    netip.Addr
	TotalLen uint16
	Len      int
}

type tcpHeader struct {
	SrcPort uint16
	DstPort uint16
	Len     int
}

// decodeEthernet decodes an Ethernet header, following nested VLAN tags.
func decodeEthernet(data []byte) (ethernetHeader, []byte, error) {
	if len(data) < ethernetHeaderLen {
		return ethernetHeader{}, nil, core.ErrPacketTooShort
	}

	eth := ethernetHeader{}
	etherType := binary.BigEndian.Uint16(data[12:14])
	offset := ethernetHeaderLen

	for etherType == etherTypeVLAN || etherType == etherTypeQinQ {
		if len(data) < offset+vlanHeaderLen {
			return eth, nil, core.ErrPacketTooShort
		}
		tci := binary.BigEndian.Uint16(data[offset : offset+2])
		eth.VLANs = append(eth.VLANs, tci&0x0FFF)
		etherType = binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += vlanHeaderLen
	}

	eth.EtherType = etherType
	eth.Len = offset
	return eth, data[offset:], nil
}

// decodeIP decodes an IPv4 or IPv6 header.
func decodeIP(data []byte) (ipHeader, []byte, error) {
	if len(data) < 1 {
		return ipHeader{}, nil, core.ErrPacketTooShort
	}
	switch data[0] >> 4 {
	case 4:
		return decodeIPv4(data)
	case 6:
		return decodeIPv6(data)
	default:
		return ipHeader{}, nil, core.ErrUnsupportedProto
	}
}

// decodeIPv4 returns the payload bounded by the total length, so Ethernet
// padding never reaches the transport layer.
func decodeIPv4(data []byte) (ipHeader, []byte, error) {
	if len(data) < ipv4HeaderMinLen {
		return ipHeader{}, nil, core.ErrPacketTooShort
	}
	headerLen := int(data[0]&0x0F) * 4
	if headerLen < ipv4HeaderMinLen || len(data) < headerLen {
		return ipHeader{}, nil, core.ErrPacketTooShort
	}

	ip := ipHeader{
		Version:  4,
		TotalLen: binary.BigEndian.Uint16(data[2:4]),
		Protocol: data[9],
		SrcIP:    netip.AddrFrom4([4]byte(data[12:16])),
		DstIP:    netip.AddrFrom4([4]byte(data[16:20])),
		Len:      headerLen,
	}

	end := len(data)
	if total := int(ip.TotalLen); total >= headerLen && total < end {
		end = total
	}
	return ip, data[headerLen:end], nil
}

// decodeIPv6 decodes the fixed header. Extension headers are not walked, so a
// packet carrying them reports its first extension as Protocol.
func decodeIPv6(data []byte) (ipHeader, []byte, error) {
	if len(data) < ipv6HeaderLen {
		return ipHeader{}, nil, core.ErrPacketTooShort
	}

	payloadLen := binary.BigEndian.Uint16(data[4:6])
	ip := ipHeader{
		Version:  6,
		TotalLen: ipv6HeaderLen + payloadLen,
		Protocol: data[6],
		SrcIP:    netip.AddrFrom16([16]byte(data[8:24])),
		DstIP:    netip.AddrFrom16([16]byte(data[24:40])),
		Len:      ipv6HeaderLen,
	}

	end := len(data)
	if total := int(ip.TotalLen); total < end {
		end = total
	}
	return ip, data[ipv6HeaderLen:end], nil
}

// decodeTCP decodes a TCP header including options.
func decodeTCP(data []byte) (tcpHeader, []byte, error) {
	if len(data) < tcpHeaderMinLen {
		return tcpHeader{}, nil, core.ErrPacketTooShort
	}

	tcp := tcpHeader{
		SrcPort: binary.BigEndian.Uint16(data[0:2]),
		DstPort: binary.BigEndian.Uint16(data[2:4]),
	}
	headerLen := int(data[12]>>4) * 4
	if headerLen < tcpHeaderMinLen || len(data) < headerLen {
		return tcp, nil, core.ErrPacketTooShort
	}
	tcp.Len = headerLen
	return tcp, data[headerLen:], nil
}
