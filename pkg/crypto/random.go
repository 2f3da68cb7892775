// Package crypto provides the cryptographic primitives consumed by the
// handshake driver: randomness, the TLS pseudo-random function, X25519
// ephemeral key exchange, and RSA parameter signatures.
//
// Security Note: all random number generation defaults to crypto/rand,
// which sources entropy from the operating system CSPRNG. The driver
// injects its random source so tests can substitute a deterministic one.
package crypto

import (
	"crypto/rand"
	"io"
)

// Reader is the process-wide cryptographically secure random source.
// It wraps crypto/rand.Reader so callers share one injection point.
var Reader io.Reader = rand.Reader

// SecureRandom fills b with cryptographically secure random bytes from r.
// A nil r falls back to the process-wide Reader.
//
// An error here means the system's random number generator failed, which
// callers should treat as a critical failure.
func SecureRandom(r io.Reader, b []byte) error {
	if r == nil {
		r = Reader
	}
	_, err := io.ReadFull(r, b)
	return err
}

// ConstantTimeCompare compares two byte slices in constant time.
// Returns true if the slices are equal. This prevents timing attacks when
// comparing verify data or other secrets.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var result byte
	for i := range a {
		result |= a[i] ^ b[i]
	}
	return result == 0
}

// Zeroize overwrites sensitive data with zeros. Call on premaster and
// master secret material when it is no longer needed.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ZeroizeMultiple zeroizes several byte slices.
func ZeroizeMultiple(slices ...[]byte) {
	for _, s := range slices {
		Zeroize(s)
	}
}
