package geneve

import (
	"encoding/binary"
	"fmt"
)

// UDPHeaderSize is the fixed UDP header size in bytes.
const UDPHeaderSize = 8

// UDPHeader is a decoded UDP header view.
type UDPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16

	// PayloadLength is the enclosing IP payload length minus the 8-byte
	// UDP header.
	PayloadLength int
}

// DecodeUDP parses a UDP header from buf at offset. ipPayloadLength is the
// enclosing IPv4 header's payload length, used to derive PayloadLength.
func DecodeUDP(buf []byte, offset, ipPayloadLength int) (UDPHeader, error) {
	if len(buf) < offset+UDPHeaderSize {
		return UDPHeader{}, fmt.Errorf("decode udp at %d: %w", offset, ErrTruncatedHeader)
	}
	b := buf[offset : offset+UDPHeaderSize]

	return UDPHeader{
		SrcPort:       binary.BigEndian.Uint16(b[0:2]),
		DstPort:       binary.BigEndian.Uint16(b[2:4]),
		Length:        binary.BigEndian.Uint16(b[4:6]),
		Checksum:      binary.BigEndian.Uint16(b[6:8]),
		PayloadLength: ipPayloadLength - UDPHeaderSize,
	}, nil
}

// EncodeUDP re-encodes h into a fresh 8-byte buffer.
func EncodeUDP(h UDPHeader) []byte {
	buf := make([]byte, UDPHeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], h.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], h.DstPort)
	binary.BigEndian.PutUint16(buf[4:6], h.Length)
	binary.BigEndian.PutUint16(buf[6:8], h.Checksum)
	return buf
}
