// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package wire encodes and decodes the simulator's packets to and from real
// IPv4/TCP/UDP bytes (spec section 6, "Wire protocol"), using gopacket the
// same way the teacher's PCAP replay path does. cmd/netsim's packet handler
// calls Encode on every relayed packet to account bytes by their real wire
// size rather than payload length alone; Decode is the inverse, exercised
// by this package's own round-trip tests and available to any future
// pcap-ingesting entry point.
package wire

import (
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/bgrimm/netsim/internal/packet"
)

// Encode serializes a Packet into an IPv4 datagram carrying a TCP or UDP
// segment, mirroring the header fields spec section 6 lists as honored.
func Encode(p *packet.Packet) ([]byte, error) {
	ipLayer := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		SrcIP:    net.IPv4(p.Src.IP[0], p.Src.IP[1], p.Src.IP[2], p.Src.IP[3]),
		DstIP:    net.IPv4(p.Dst.IP[0], p.Dst.IP[1], p.Dst.IP[2], p.Dst.IP[3]),
		Protocol: layerProtocol(p.Protocol),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	switch p.Protocol {
	case packet.ProtoTCP:
		tcpLayer := &layers.TCP{
			SrcPort: layers.TCPPort(p.Src.Port),
			DstPort: layers.TCPPort(p.Dst.Port),
			Seq:     p.Seq,
			Ack:     p.Ack,
			Window:  p.Window,
			SYN:     p.Flags.Has(packet.FlagSYN),
			ACK:     p.Flags.Has(packet.FlagACK),
			FIN:     p.Flags.Has(packet.FlagFIN),
			RST:     p.Flags.Has(packet.FlagRST),
			PSH:     p.Flags.Has(packet.FlagPSH),
			URG:     p.Flags.Has(packet.FlagURG),
		}
		if err := tcpLayer.SetNetworkLayerForChecksum(ipLayer); err != nil {
			return nil, err
		}
		if err := gopacket.SerializeLayers(buf, opts, ipLayer, tcpLayer, gopacket.Payload(p.Payload)); err != nil {
			return nil, err
		}
	case packet.ProtoUDP:
		udpLayer := &layers.UDP{
			SrcPort: layers.UDPPort(p.Src.Port),
			DstPort: layers.UDPPort(p.Dst.Port),
		}
		if err := udpLayer.SetNetworkLayerForChecksum(ipLayer); err != nil {
			return nil, err
		}
		if err := gopacket.SerializeLayers(buf, opts, ipLayer, udpLayer, gopacket.Payload(p.Payload)); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func layerProtocol(p packet.Protocol) layers.IPProtocol {
	if p == packet.ProtoUDP {
		return layers.IPProtocolUDP
	}
	return layers.IPProtocolTCP
}

// Decode parses raw IPv4 bytes (as produced by Encode) back into a Packet.
func Decode(data []byte) (*packet.Packet, error) {
	gp := gopacket.NewPacket(data, layers.LayerTypeIPv4, gopacket.NoCopy)

	ipLayer := gp.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return nil, errNotIPv4
	}
	ip := ipLayer.(*layers.IPv4)

	var src, dst packet.SocketAddrV4
	copy(src.IP[:], ip.SrcIP.To4())
	copy(dst.IP[:], ip.DstIP.To4())

	if tcpLayer := gp.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp := tcpLayer.(*layers.TCP)
		src.Port, dst.Port = uint16(tcp.SrcPort), uint16(tcp.DstPort)
		var flags packet.Flags
		if tcp.SYN {
			flags |= packet.FlagSYN
		}
		if tcp.ACK {
			flags |= packet.FlagACK
		}
		if tcp.FIN {
			flags |= packet.FlagFIN
		}
		if tcp.RST {
			flags |= packet.FlagRST
		}
		if tcp.PSH {
			flags |= packet.FlagPSH
		}
		if tcp.URG {
			flags |= packet.FlagURG
		}
		payload := tcp.LayerPayload()
		return packet.New(src, dst, packet.ProtoTCP, flags, tcp.Seq, tcp.Ack, tcp.Window, payload), nil
	}

	if udpLayer := gp.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp := udpLayer.(*layers.UDP)
		src.Port, dst.Port = uint16(udp.SrcPort), uint16(udp.DstPort)
		payload := udp.LayerPayload()
		return packet.New(src, dst, packet.ProtoUDP, 0, 0, 0, 0, payload), nil
	}

	return nil, errUnsupportedTransport
}

type wireError string

func (e wireError) Error() string { return string(e) }

const (
	errNotIPv4              = wireError("wire: not an IPv4 packet")
	errUnsupportedTransport = wireError("wire: unsupported transport layer")
)
