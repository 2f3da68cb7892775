// x25519.go implements the ephemeral X25519 exchange for ECDHE suites.
//
// X25519 (RFC 7748) is an elliptic curve Diffie-Hellman function over
// Curve25519. The Montgomery-ladder implementation in cloudflare/circl is
// constant time and rejects low-order public values, which would otherwise
// force the shared secret to a known point.
package crypto

import (
	"fmt"
	"io"

	"github.com/cloudflare/circl/dh/x25519"

	"github.com/gilwalzer/s2n/internal/constants"
	qerrors "github.com/gilwalzer/s2n/internal/errors"
)

// ECDHEKey is an ephemeral X25519 key pair, generated fresh per handshake
// and discarded once the premaster secret is derived.
type ECDHEKey struct {
	private x25519.Key
	public  x25519.Key
}

// GenerateECDHEKey creates a new ephemeral key pair using r as the random
// source (nil falls back to the process-wide Reader).
func GenerateECDHEKey(r io.Reader) (*ECDHEKey, error) {
	k := &ECDHEKey{}
	if err := SecureRandom(r, k.private[:]); err != nil {
		return nil, err
	}
	x25519.KeyGen(&k.public, &k.private)
	return k, nil
}

// PublicBytes returns the 32-byte public value for the key exchange message.
func (k *ECDHEKey) PublicBytes() []byte {
	out := make([]byte, constants.X25519PublicKeySize)
	copy(out, k.public[:])
	return out
}

// SharedSecret computes the X25519 shared secret with the peer's public
// value. It fails on a malformed length or a low-order peer point.
func (k *ECDHEKey) SharedSecret(peerPublic []byte) ([]byte, error) {
	if len(peerPublic) != constants.X25519PublicKeySize {
		return nil, fmt.Errorf("%w: x25519 public value is %d bytes", qerrors.ErrBadMessage, len(peerPublic))
	}
	var peer, shared x25519.Key
	copy(peer[:], peerPublic)
	if !x25519.Shared(&shared, &k.private, &peer) {
		return nil, fmt.Errorf("%w: low-order x25519 public value", qerrors.ErrBadMessage)
	}
	out := make([]byte, constants.X25519SharedSecretSize)
	copy(out, shared[:])
	return out, nil
}

// Destroy zeroizes the private key material.
func (k *ECDHEKey) Destroy() {
	Zeroize(k.private[:])
}
