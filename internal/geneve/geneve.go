package geneve

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// GeneveHeaderMinSize is the fixed 8-byte Geneve header size, not
// counting variable-length options.
const GeneveHeaderMinSize = 8

// Port is the IANA-assigned Geneve UDP destination port (RFC 8926 §3.3).
const Port uint16 = 6081

// flowCookieOptionClass and flowCookieOptionType identify the vendor
// "flow cookie" TLV (RFC 8926 §3.5, Amazon OUI-derived option class).
const (
	flowCookieOptionClass uint16 = 0x0108
	flowCookieOptionType  uint8  = 3
)

// GeneveHeader is a decoded Geneve fixed header.
//
//	|Ver|  Opt Len  |O|C|    Rsvd.  |         Protocol Type         |
//	|        Virtual Network Identifier (VNI)       |    Reserved   |
type GeneveHeader struct {
	Version      uint8
	OptionsLen   uint8 // in 4-byte words
	ControlBit   bool  // O
	CriticalBit  bool  // C
	ProtocolType uint16
	VNI          uint32 // 24 bits

	// Options holds the parsed TLVs when parsing was requested and
	// succeeded. RawOptions holds the opaque options block instead, when
	// parsing was disabled and C=0.
	Options    []GeneveOption
	RawOptions []byte
}

// HeaderLengthBytes returns 8 + OptionsLen*4.
func (h GeneveHeader) HeaderLengthBytes() int {
	return GeneveHeaderMinSize + int(h.OptionsLen)*4
}

// DecodeGeneve parses a Geneve header (fixed header plus options) from buf
// at offset.
//
// When parseOptions is true (the default), the options block is walked
// into a slice of GeneveOption TLVs. When false, the raw options bytes
// are retained instead unless the C bit is set, in which case
// ErrCriticalUnparsedGeneve is returned: RFC 8926 requires packets with
// unparsed critical options to be dropped.
func DecodeGeneve(buf []byte, offset int, parseOptions bool) (GeneveHeader, error) {
	if len(buf) < offset+GeneveHeaderMinSize {
		return GeneveHeader{}, fmt.Errorf("decode geneve at %d: %w", offset, ErrTruncatedHeader)
	}
	b := buf[offset:]

	var h GeneveHeader
	h.Version = b[0] >> 6
	h.OptionsLen = b[0] & 0x3F
	h.ControlBit = b[1]&0x80 != 0
	h.CriticalBit = b[1]&0x40 != 0
	h.ProtocolType = binary.BigEndian.Uint16(b[2:4])
	h.VNI = binary.BigEndian.Uint32(b[4:8]) >> 8

	optLen := int(h.OptionsLen) * 4
	if optLen == 0 {
		return h, nil
	}

	optStart := offset + GeneveHeaderMinSize
	if len(buf) < optStart+optLen {
		return GeneveHeader{}, fmt.Errorf("decode geneve options at %d: %w", optStart, ErrTruncatedHeader)
	}
	optBuf := buf[optStart : optStart+optLen]

	if !parseOptions {
		if h.CriticalBit {
			return GeneveHeader{}, ErrCriticalUnparsedGeneve
		}
		h.RawOptions = append([]byte(nil), optBuf...)
		return h, nil
	}

	opts, err := decodeGeneveOptions(optBuf)
	if err != nil {
		return GeneveHeader{}, fmt.Errorf("decode geneve options at %d: %w", optStart, err)
	}
	h.Options = opts

	return h, nil
}

// EncodeGeneve re-encodes the 8-byte fixed header into a fresh buffer.
// Options (parsed or raw) are not appended; callers that need the full
// on-wire header concatenate EncodeGeneveOption results or RawOptions
// themselves.
func EncodeGeneve(h GeneveHeader) []byte {
	buf := make([]byte, GeneveHeaderMinSize)

	buf[0] = (h.Version << 6) | (h.OptionsLen & 0x3F)

	var flags uint8
	if h.ControlBit {
		flags |= 0x80
	}
	if h.CriticalBit {
		flags |= 0x40
	}
	buf[1] = flags

	binary.BigEndian.PutUint16(buf[2:4], h.ProtocolType)
	binary.BigEndian.PutUint32(buf[4:8], h.VNI<<8)

	return buf
}

// GeneveOption is a decoded Geneve TLV option.
//
//	|          Option Class        |      Type     |R|R|R| Length  |
//	|                      Variable Option Data                    |
type GeneveOption struct {
	Class    uint16
	Type     uint8 // low 7 bits of the type byte
	Critical bool  // top bit of the type byte (per-option critical flag)
	Length   uint8 // in 4-byte words
	Data     []byte
}

// TotalLength returns 4 + Length*4, the TLV's total on-wire size.
func (o GeneveOption) TotalLength() int {
	return 4 + int(o.Length)*4
}

// decodeGeneveOptions walks a Geneve options block into individual TLVs.
func decodeGeneveOptions(buf []byte) ([]GeneveOption, error) {
	var opts []GeneveOption

	for len(buf) > 0 {
		opt, consumed, err := decodeOneGeneveOption(buf)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
		buf = buf[consumed:]
	}

	return opts, nil
}

func decodeOneGeneveOption(buf []byte) (GeneveOption, int, error) {
	const optHeaderSize = 4
	if len(buf) < optHeaderSize {
		return GeneveOption{}, 0, ErrTruncatedHeader
	}

	var o GeneveOption
	o.Class = binary.BigEndian.Uint16(buf[0:2])
	typeByte := buf[2]
	o.Critical = typeByte&0x80 != 0
	o.Type = typeByte & 0x7F
	o.Length = buf[3] & 0x1F

	total := o.TotalLength()
	if len(buf) < total {
		return GeneveOption{}, 0, ErrTruncatedHeader
	}
	if total > optHeaderSize {
		o.Data = append([]byte(nil), buf[optHeaderSize:total]...)
	}

	return o, total, nil
}

// EncodeGeneveOption re-encodes o into a fresh buffer of o.TotalLength()
// bytes.
func EncodeGeneveOption(o GeneveOption) []byte {
	buf := make([]byte, o.TotalLength())

	binary.BigEndian.PutUint16(buf[0:2], o.Class)

	typeByte := o.Type & 0x7F
	if o.Critical {
		typeByte |= 0x80
	}
	buf[2] = typeByte
	buf[3] = o.Length & 0x1F

	copy(buf[4:], o.Data)

	return buf
}

// FlowCookie scans opts for the vendor flow-cookie option (class=0x0108,
// type=3) and returns its payload rendered as a lowercase hex string.
// Returns ok=false when the option is absent.
func FlowCookie(opts []GeneveOption) (string, bool) {
	for _, o := range opts {
		if o.Class == flowCookieOptionClass && o.Type == flowCookieOptionType {
			return hex.EncodeToString(o.Data), true
		}
	}
	return "", false
}
