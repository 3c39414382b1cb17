package geneve_test

import (
	"errors"
	"testing"

	"github.com/netplane-oss/gwlbtun/internal/geneve"
)

func TestDecodeICMP(t *testing.T) {
	t.Parallel()

	buf := []byte{8, 0, 0xAB, 0xCD, 1, 2, 3, 4}

	got, err := geneve.DecodeICMP(buf, 0, 16)
	if err != nil {
		t.Fatalf("DecodeICMP: %v", err)
	}
	if got.Type != 8 || got.Code != 0 {
		t.Fatalf("got type=%d code=%d, want type=8 code=0", got.Type, got.Code)
	}
	if want := 16 - geneve.ICMPHeaderSize; got.PayloadLength != want {
		t.Fatalf("PayloadLength = %d, want %d", got.PayloadLength, want)
	}
}

func TestDecodeICMPPayloadLengthClampedAtZero(t *testing.T) {
	t.Parallel()

	buf := []byte{0, 0, 0, 0, 0, 0, 0, 0}

	got, err := geneve.DecodeICMP(buf, 0, 4)
	if err != nil {
		t.Fatalf("DecodeICMP: %v", err)
	}
	if got.PayloadLength != 0 {
		t.Fatalf("PayloadLength = %d, want 0", got.PayloadLength)
	}
}

func TestDecodeICMPTruncated(t *testing.T) {
	t.Parallel()

	_, err := geneve.DecodeICMP([]byte{0, 0, 0}, 0, 10)
	if !errors.Is(err, geneve.ErrTruncatedHeader) {
		t.Fatalf("got err=%v, want ErrTruncatedHeader", err)
	}
}
