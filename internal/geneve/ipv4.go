package geneve

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// IPv4HeaderMinSize is the fixed portion of an IPv4 header (no options).
const IPv4HeaderMinSize = 20

// IPv4Header is a decoded IPv4 header view.
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|Version|  IHL  |    DSCP   |ECN|          Total Length         |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|         Identification       |Flags|      Fragment Offset     |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|  Time to Live |    Protocol   |         Header Checksum        |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                       Source Address                          |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                    Destination Address                        |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
type IPv4Header struct {
	Version uint8
	IHL     uint8 // header length in 4-byte words
	DSCP    uint8
	ECN     uint8

	TotalLength uint16
	ID          uint16

	FlagReserved bool
	FlagDF       bool
	FlagMF       bool
	FragOffset   uint16 // low 13 bits

	TTL      uint8
	Protocol uint8
	Checksum uint16

	SrcAddr netip.Addr
	DstAddr netip.Addr

	Options []byte // raw trailing options, if IHL > 5
}

// HeaderLengthBytes returns IHL*4.
func (h IPv4Header) HeaderLengthBytes() int {
	return int(h.IHL) * 4
}

// PayloadLength returns TotalLength - HeaderLengthBytes().
func (h IPv4Header) PayloadLength() int {
	return int(h.TotalLength) - h.HeaderLengthBytes()
}

// DecodeIPv4 parses an IPv4 header from buf starting at offset.
//
// Only the version field is validated here (must be 4); downstream
// consumers (the assembler) decide what to do with an otherwise
// malformed header, per the "decoders validate only what is necessary"
// rule.
func DecodeIPv4(buf []byte, offset int) (IPv4Header, error) {
	if len(buf) < offset+IPv4HeaderMinSize {
		return IPv4Header{}, fmt.Errorf("decode ipv4 at %d: %w", offset, ErrTruncatedHeader)
	}
	b := buf[offset:]

	var h IPv4Header
	h.Version = b[0] >> 4
	if h.Version != 4 {
		return IPv4Header{}, fmt.Errorf("decode ipv4: version=%d: %w", h.Version, ErrUnsupportedVersion)
	}

	h.IHL = b[0] & 0x0F
	h.DSCP = b[1] >> 2
	h.ECN = b[1] & 0x03
	h.TotalLength = binary.BigEndian.Uint16(b[2:4])
	h.ID = binary.BigEndian.Uint16(b[4:6])

	flagsFrag := binary.BigEndian.Uint16(b[6:8])
	h.FlagReserved = flagsFrag&0x8000 != 0
	h.FlagDF = flagsFrag&0x4000 != 0
	h.FlagMF = flagsFrag&0x2000 != 0
	h.FragOffset = flagsFrag & 0x1FFF

	h.TTL = b[8]
	h.Protocol = b[9]
	h.Checksum = binary.BigEndian.Uint16(b[10:12])

	var src, dst [4]byte
	copy(src[:], b[12:16])
	copy(dst[:], b[16:20])
	h.SrcAddr = netip.AddrFrom4(src)
	h.DstAddr = netip.AddrFrom4(dst)

	if headerLen := h.HeaderLengthBytes(); headerLen > IPv4HeaderMinSize {
		if len(buf) < offset+headerLen {
			return IPv4Header{}, fmt.Errorf("decode ipv4 options at %d: %w", offset, ErrTruncatedHeader)
		}
		h.Options = append([]byte(nil), buf[offset+IPv4HeaderMinSize:offset+headerLen]...)
	}

	return h, nil
}

// EncodeIPv4 re-encodes h into a fresh buffer. When zeroChecksum is true
// the checksum field is written as zero (used before recomputing it);
// otherwise h.Checksum is written verbatim. Given an unchanged header and
// zeroChecksum=false, EncodeIPv4(DecodeIPv4(b)) reproduces b byte-exact.
func EncodeIPv4(h IPv4Header, zeroChecksum bool) []byte {
	headerLen := h.HeaderLengthBytes()
	buf := make([]byte, headerLen)

	buf[0] = (h.Version << 4) | (h.IHL & 0x0F)
	buf[1] = (h.DSCP << 2) | (h.ECN & 0x03)
	binary.BigEndian.PutUint16(buf[2:4], h.TotalLength)
	binary.BigEndian.PutUint16(buf[4:6], h.ID)

	var flagsFrag uint16
	if h.FlagReserved {
		flagsFrag |= 0x8000
	}
	if h.FlagDF {
		flagsFrag |= 0x4000
	}
	if h.FlagMF {
		flagsFrag |= 0x2000
	}
	flagsFrag |= h.FragOffset & 0x1FFF
	binary.BigEndian.PutUint16(buf[6:8], flagsFrag)

	buf[8] = h.TTL
	buf[9] = h.Protocol
	if zeroChecksum {
		binary.BigEndian.PutUint16(buf[10:12], 0)
	} else {
		binary.BigEndian.PutUint16(buf[10:12], h.Checksum)
	}

	src4 := h.SrcAddr.As4()
	dst4 := h.DstAddr.As4()
	copy(buf[12:16], src4[:])
	copy(buf[16:20], dst4[:])

	if len(h.Options) > 0 {
		copy(buf[IPv4HeaderMinSize:], h.Options)
	}

	return buf
}

// RecomputeChecksum returns h with Checksum set to the value computed
// over its re-encoded bytes (checksum field zeroed first).
func (h IPv4Header) RecomputeChecksum() IPv4Header {
	h.Checksum = checksumIPv4(EncodeIPv4(h, true))
	return h
}
