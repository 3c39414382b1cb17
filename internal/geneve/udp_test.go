package geneve_test

import (
	"errors"
	"testing"

	"github.com/netplane-oss/gwlbtun/internal/geneve"
)

func TestDecodeUDPRoundTrip(t *testing.T) {
	t.Parallel()

	h := geneve.UDPHeader{SrcPort: 40000, DstPort: 6081, Length: 28, Checksum: 0xBEEF}
	buf := geneve.EncodeUDP(h)

	got, err := geneve.DecodeUDP(buf, 0, 100)
	if err != nil {
		t.Fatalf("DecodeUDP: %v", err)
	}
	if got.SrcPort != h.SrcPort || got.DstPort != h.DstPort || got.Length != h.Length || got.Checksum != h.Checksum {
		t.Fatalf("got %+v, want %+v", got, h)
	}
	if want := 100 - geneve.UDPHeaderSize; got.PayloadLength != want {
		t.Fatalf("PayloadLength = %d, want %d", got.PayloadLength, want)
	}

	again := geneve.EncodeUDP(got)
	if string(again) != string(buf) {
		t.Fatalf("round trip mismatch: got=% x want=% x", again, buf)
	}
}

func TestDecodeUDPTruncated(t *testing.T) {
	t.Parallel()

	_, err := geneve.DecodeUDP([]byte{0, 1, 2}, 0, 10)
	if !errors.Is(err, geneve.ErrTruncatedHeader) {
		t.Fatalf("got err=%v, want ErrTruncatedHeader", err)
	}
}
