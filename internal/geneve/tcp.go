package geneve

import (
	"encoding/binary"
	"fmt"
)

// TCPHeaderMinSize is the fixed TCP header size (no options).
const TCPHeaderMinSize = 20

// TCPHeader is a decoded TCP header view.
type TCPHeader struct {
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Ack     uint32

	DataOffset uint8 // header length in 4-byte words

	URG bool
	ACK bool
	PSH bool
	RST bool
	SYN bool
	FIN bool

	Window        uint16
	Checksum      uint16
	UrgentPointer uint16

	Options []byte

	// PayloadLength is the enclosing IP payload length minus the TCP
	// header length (DataOffset*4).
	PayloadLength int
}

// HeaderLengthBytes returns DataOffset*4.
func (h TCPHeader) HeaderLengthBytes() int {
	return int(h.DataOffset) * 4
}

// DecodeTCP parses a TCP header from buf at offset. ipPayloadLength is the
// enclosing IPv4 header's payload length, used to derive PayloadLength.
func DecodeTCP(buf []byte, offset, ipPayloadLength int) (TCPHeader, error) {
	if len(buf) < offset+TCPHeaderMinSize {
		return TCPHeader{}, fmt.Errorf("decode tcp at %d: %w", offset, ErrTruncatedHeader)
	}
	b := buf[offset:]

	var h TCPHeader
	h.SrcPort = binary.BigEndian.Uint16(b[0:2])
	h.DstPort = binary.BigEndian.Uint16(b[2:4])
	h.Seq = binary.BigEndian.Uint32(b[4:8])
	h.Ack = binary.BigEndian.Uint32(b[8:12])

	offsetFlags := binary.BigEndian.Uint16(b[12:14])
	h.DataOffset = uint8(offsetFlags >> 12)
	h.URG = offsetFlags&0x20 != 0
	h.ACK = offsetFlags&0x10 != 0
	h.PSH = offsetFlags&0x08 != 0
	h.RST = offsetFlags&0x04 != 0
	h.SYN = offsetFlags&0x02 != 0
	h.FIN = offsetFlags&0x01 != 0

	h.Window = binary.BigEndian.Uint16(b[14:16])
	h.Checksum = binary.BigEndian.Uint16(b[16:18])
	h.UrgentPointer = binary.BigEndian.Uint16(b[18:20])

	headerLen := h.HeaderLengthBytes()
	if headerLen > TCPHeaderMinSize {
		if len(buf) < offset+headerLen {
			return TCPHeader{}, fmt.Errorf("decode tcp options at %d: %w", offset, ErrTruncatedHeader)
		}
		h.Options = append([]byte(nil), buf[offset+TCPHeaderMinSize:offset+headerLen]...)
	}

	h.PayloadLength = ipPayloadLength - headerLen

	return h, nil
}

// EncodeTCP re-encodes h into a fresh buffer sized to its header length.
func EncodeTCP(h TCPHeader) []byte {
	headerLen := h.HeaderLengthBytes()
	buf := make([]byte, headerLen)

	binary.BigEndian.PutUint16(buf[0:2], h.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], h.DstPort)
	binary.BigEndian.PutUint32(buf[4:8], h.Seq)
	binary.BigEndian.PutUint32(buf[8:12], h.Ack)

	var offsetFlags uint16
	offsetFlags = uint16(h.DataOffset) << 12
	if h.URG {
		offsetFlags |= 0x20
	}
	if h.ACK {
		offsetFlags |= 0x10
	}
	if h.PSH {
		offsetFlags |= 0x08
	}
	if h.RST {
		offsetFlags |= 0x04
	}
	if h.SYN {
		offsetFlags |= 0x02
	}
	if h.FIN {
		offsetFlags |= 0x01
	}
	binary.BigEndian.PutUint16(buf[12:14], offsetFlags)

	binary.BigEndian.PutUint16(buf[14:16], h.Window)
	binary.BigEndian.PutUint16(buf[16:18], h.Checksum)
	binary.BigEndian.PutUint16(buf[18:20], h.UrgentPointer)

	if len(h.Options) > 0 {
		copy(buf[TCPHeaderMinSize:], h.Options)
	}

	return buf
}
