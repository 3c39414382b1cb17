package geneve

import (
	"fmt"
	"log/slog"
)

// Mode selects how the outer framing of a received datagram is obtained.
type Mode int

const (
	// ModeRawSocket means raw is the full outer IPv4 datagram, as read
	// from a SOCK_RAW socket with IP_HDRINCL set.
	ModeRawSocket Mode = iota
	// ModeUDPBind means raw is only the UDP payload (Geneve onward); the
	// kernel has already stripped the outer IPv4/UDP framing.
	ModeUDPBind
)

// InnerKind identifies which L4 protocol the inner IPv4 payload carries.
type InnerKind int

const (
	InnerNone InnerKind = iota
	InnerUDP
	InnerTCP
	InnerICMP
)

func (k InnerKind) String() string {
	switch k {
	case InnerUDP:
		return "udp"
	case InnerTCP:
		return "tcp"
	case InnerICMP:
		return "icmp"
	default:
		return "none"
	}
}

const (
	protoICMP = 1
	protoTCP  = 6
	protoUDP  = 17
)

// RawPacket is the decoded view of one received Geneve datagram: it owns
// the raw bytes and holds a decoded copy of each header. The outer IPv4
// header is kept as received; Response rewrites a local copy of it.
type RawPacket struct {
	raw  []byte
	mode Mode

	// outerHeaderLen is the byte offset at which the outer IPv4 header
	// ends (== OuterIPv4.HeaderLengthBytes()) in raw-socket mode; zero in
	// udp-bind mode, where no outer framing is present in raw.
	outerHeaderLen int

	HasOuter  bool
	OuterIPv4 IPv4Header
	OuterUDP  UDPHeader

	Geneve GeneveHeader

	InnerIPv4 IPv4Header

	InnerKind InnerKind
	InnerUDP  UDPHeader
	InnerTCP  TCPHeader
	InnerICMP ICMPHeader
}

// NewRawPacket parses raw into a RawPacket according to mode.
//
// In ModeRawSocket, raw is the full outer IPv4 datagram: outer IPv4 is
// parsed at offset 0, outer UDP immediately after, and its destination
// port is checked against genevePort. In ModeUDPBind, raw begins at the
// Geneve header; there is no outer framing to validate.
//
// parseGeneveOptions controls whether the Geneve options block is walked
// into individual TLVs (see DecodeGeneve).
func NewRawPacket(logger *slog.Logger, raw []byte, mode Mode, genevePort uint16, parseGeneveOptions bool) (*RawPacket, error) {
	p := &RawPacket{raw: raw, mode: mode}

	geneveOffset := 0

	if mode == ModeRawSocket {
		outerIPv4, err := DecodeIPv4(raw, 0)
		if err != nil {
			return nil, fmt.Errorf("outer ipv4: %w", err)
		}

		outerUDP, err := DecodeUDP(raw, outerIPv4.HeaderLengthBytes(), outerIPv4.PayloadLength())
		if err != nil {
			return nil, fmt.Errorf("outer udp: %w", err)
		}
		if outerUDP.DstPort != genevePort {
			return nil, fmt.Errorf("outer udp dst_port=%d want=%d: %w", outerUDP.DstPort, genevePort, ErrUnmatchedGenevePort)
		}

		p.HasOuter = true
		p.OuterIPv4 = outerIPv4
		p.OuterUDP = outerUDP
		p.outerHeaderLen = outerIPv4.HeaderLengthBytes()
		geneveOffset = p.outerHeaderLen + UDPHeaderSize
	}

	gh, err := DecodeGeneve(raw, geneveOffset, parseGeneveOptions)
	if err != nil {
		return nil, fmt.Errorf("geneve: %w", err)
	}
	p.Geneve = gh

	innerOffset := geneveOffset + gh.HeaderLengthBytes()
	innerIPv4, err := DecodeIPv4(raw, innerOffset)
	if err != nil {
		return nil, fmt.Errorf("inner ipv4: %w", err)
	}
	p.InnerIPv4 = innerIPv4

	l4Offset := innerOffset + innerIPv4.HeaderLengthBytes()
	ipPayloadLen := innerIPv4.PayloadLength()

	switch innerIPv4.Protocol {
	case protoUDP:
		udp, err := DecodeUDP(raw, l4Offset, ipPayloadLen)
		if err != nil {
			return nil, fmt.Errorf("inner udp: %w", err)
		}
		p.InnerKind = InnerUDP
		p.InnerUDP = udp
	case protoTCP:
		tcp, err := DecodeTCP(raw, l4Offset, ipPayloadLen)
		if err != nil {
			return nil, fmt.Errorf("inner tcp: %w", err)
		}
		p.InnerKind = InnerTCP
		p.InnerTCP = tcp
	case protoICMP:
		icmp, err := DecodeICMP(raw, l4Offset, ipPayloadLen)
		if err != nil {
			return nil, fmt.Errorf("inner icmp: %w", err)
		}
		p.InnerKind = InnerICMP
		p.InnerICMP = icmp
	default:
		p.InnerKind = InnerNone
		if logger != nil {
			logger.Warn("unknown inner protocol", slog.Int("protocol", int(innerIPv4.Protocol)))
		}
	}

	return p, nil
}

// FlowCookie extracts the vendor flow-cookie option from the Geneve
// header's parsed options, if any were parsed.
func (p *RawPacket) FlowCookie() (string, bool) {
	return FlowCookie(p.Geneve.Options)
}

// PayloadLength returns the inner L4 payload length used for flow byte
// accounting, or 0 when there is no recognized inner L4.
func (p *RawPacket) PayloadLength() int {
	switch p.InnerKind {
	case InnerUDP:
		return p.InnerUDP.PayloadLength
	case InnerTCP:
		return p.InnerTCP.PayloadLength
	case InnerICMP:
		return p.InnerICMP.PayloadLength
	default:
		return 0
	}
}

// Response composes the reply datagram per the response-composition
// rule: in raw-socket mode the outer IPv4 addresses are swapped, TTL is
// decremented by one (wrapping from 0 to 0xFF), the checksum is
// recomputed unless checksumOffload is set, and the rewritten outer
// header is concatenated with everything from the original datagram at
// and after the outer UDP header, byte-exact. In udp-bind mode raw is
// returned verbatim.
func (p *RawPacket) Response(checksumOffload bool) []byte {
	if p.mode == ModeUDPBind {
		return p.raw
	}

	outer := p.OuterIPv4
	outer.SrcAddr, outer.DstAddr = p.OuterIPv4.DstAddr, p.OuterIPv4.SrcAddr
	outer.TTL--

	var outerBytes []byte
	if checksumOffload {
		outerBytes = EncodeIPv4(outer, false)
	} else {
		outer = outer.RecomputeChecksum()
		outerBytes = EncodeIPv4(outer, false)
	}

	resp := make([]byte, 0, len(outerBytes)+len(p.raw)-p.outerHeaderLen)
	resp = append(resp, outerBytes...)
	resp = append(resp, p.raw[p.outerHeaderLen:]...)
	return resp
}
