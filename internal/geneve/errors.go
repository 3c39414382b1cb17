// Package geneve implements the packet-parsing core of the GWLB Geneve
// endpoint: header codecs for the outer IPv4/UDP/Geneve stack and the
// encapsulated inner IPv4/TCP/UDP/ICMP headers, plus the RawPacket
// assembler that glues them into a single parse-and-respond pipeline.
package geneve

import "errors"

// Sentinel errors for packet parsing and response composition. Every
// per-packet error here is local: the caller drops the datagram and
// continues, per the endpoint's drop-and-log error policy.
var (
	// ErrTruncatedHeader indicates the buffer ends before a header's
	// mandatory fields can be read.
	ErrTruncatedHeader = errors.New("geneve: truncated header")

	// ErrUnsupportedVersion indicates an IPv4 header with version != 4.
	ErrUnsupportedVersion = errors.New("geneve: unsupported IP version")

	// ErrUnmatchedGenevePort indicates the outer UDP destination port is
	// not the configured Geneve port.
	ErrUnmatchedGenevePort = errors.New("geneve: outer UDP destination port does not match geneve port")

	// ErrCriticalUnparsedGeneve indicates the Geneve C bit is set while
	// option parsing is disabled. RFC 8926 mandates the packet be dropped
	// in this case.
	ErrCriticalUnparsedGeneve = errors.New("geneve: critical option present but option parsing disabled")

	// ErrMissingFlowCookie indicates the vendor flow-cookie TLV
	// (class=0x0108, type=3) was not present among the Geneve options.
	ErrMissingFlowCookie = errors.New("geneve: flow cookie option not found")

	// ErrBufTooSmall names an encode buffer too small for the header.
	// No function in this package returns it: every encoder allocates
	// its own buffer.
	ErrBufTooSmall = errors.New("geneve: buffer too small")
)
