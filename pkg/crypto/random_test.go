package crypto

import (
	"bytes"
	"testing"
)

func TestSecureRandomFills(t *testing.T) {
	a := make([]byte, 64)
	b := make([]byte, 64)
	if err := SecureRandom(nil, a); err != nil {
		t.Fatalf("SecureRandom: %v", err)
	}
	if err := SecureRandom(nil, b); err != nil {
		t.Fatalf("SecureRandom: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two 64-byte reads must not collide")
	}
}

func TestSecureRandomCustomSource(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte{0x5A}, 16))
	out := make([]byte, 16)
	if err := SecureRandom(src, out); err != nil {
		t.Fatalf("SecureRandom: %v", err)
	}
	if !bytes.Equal(out, bytes.Repeat([]byte{0x5A}, 16)) {
		t.Error("injected source was not used")
	}

	// Exhausted source surfaces the error.
	if err := SecureRandom(src, out); err == nil {
		t.Error("expected error from exhausted source")
	}
}

func TestConstantTimeCompare(t *testing.T) {
	if !ConstantTimeCompare([]byte{1, 2, 3}, []byte{1, 2, 3}) {
		t.Error("equal slices must compare true")
	}
	if ConstantTimeCompare([]byte{1, 2, 3}, []byte{1, 2, 4}) {
		t.Error("different slices must compare false")
	}
	if ConstantTimeCompare([]byte{1, 2}, []byte{1, 2, 3}) {
		t.Error("different lengths must compare false")
	}
}

func TestZeroize(t *testing.T) {
	secret := []byte{1, 2, 3, 4}
	other := []byte{5, 6}
	ZeroizeMultiple(secret, other)
	for _, b := range append(secret, other...) {
		if b != 0 {
			t.Error("zeroize left data behind")
			break
		}
	}
}
