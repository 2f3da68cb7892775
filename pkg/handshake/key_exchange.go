// ServerKeyExchange and ClientKeyExchange handlers.
//
// ECDHE suites exchange ephemeral X25519 values, the server's signed over
// both randoms (RFC 4492 §5.4 with the RFC 7748 curve). RSA suites encrypt
// a 48-byte premaster secret to the server's certificate key
// (RFC 5246 §7.4.7.1). Either way both sides finish here holding the
// master secret.
package handshake

import (
	"crypto/rsa"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/gilwalzer/s2n/internal/constants"
	qerrors "github.com/gilwalzer/s2n/internal/errors"
	s2ncrypto "github.com/gilwalzer/s2n/pkg/crypto"
	"github.com/gilwalzer/s2n/pkg/protocol"
)

// ECDHE named-curve wire constants (RFC 4492 §5.4, RFC 7748).
const (
	curveTypeNamed uint8  = 3
	curveX25519    uint16 = 0x001D
	sigAlgRSA      uint8  = 1
)

// deriveMasterSecret installs the master secret and destroys the premaster.
func (c *Conn) deriveMasterSecret(premaster []byte) {
	c.pending.masterSecret = s2ncrypto.MasterSecret(
		c.actualProtocolVersion, premaster,
		c.pending.clientRandom[:], c.pending.serverRandom[:])
	s2ncrypto.Zeroize(premaster)
}

// sendServerKey emits the signed ephemeral X25519 parameters.
func (c *Conn) sendServerKey() error {
	key, err := s2ncrypto.GenerateECDHEKey(c.rand())
	if err != nil {
		return err
	}
	c.pending.ecdheKey = key

	pb := cryptobyte.NewBuilder(nil)
	pb.AddUint8(curveTypeNamed)
	pb.AddUint16(curveX25519)
	pb.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(key.PublicBytes())
	})
	params, err := pb.Bytes()
	if err != nil {
		return err
	}

	sig, err := s2ncrypto.SignParams(c.pending.signatureDigest, c.config.PrivateKey, c.rand(),
		c.pending.clientRandom[:], c.pending.serverRandom[:], params)
	if err != nil {
		return err
	}

	b := cryptobyte.NewBuilder(nil)
	b.AddBytes(params)
	if c.actualProtocolVersion >= protocol.VersionTLS12 {
		b.AddUint8(c.pending.signatureDigest.HashAlgorithmID())
		b.AddUint8(sigAlgRSA)
	}
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(sig)
	})
	body, err := b.Bytes()
	if err != nil {
		return err
	}
	c.handshake.io.Write(body)

	if c.config.RequestClientCert {
		c.pending.clientCertRequested = true
		c.handshake.nextState = StateServerCertReq
	} else {
		c.handshake.nextState = StateServerHelloDone
	}
	return nil
}

// recvServerKey verifies the server's parameter signature and stores the
// peer's ephemeral public value.
func (c *Conn) recvServerKey() error {
	body := c.messageBody()
	s := cryptobyte.String(body)

	var curveType uint8
	var curve uint16
	var point cryptobyte.String
	if !s.ReadUint8(&curveType) || !s.ReadUint16(&curve) || !s.ReadUint8LengthPrefixed(&point) {
		return fmt.Errorf("%w: truncated server key exchange", qerrors.ErrBadMessage)
	}
	if curveType != curveTypeNamed || curve != curveX25519 {
		return fmt.Errorf("%w: unsupported curve (type %d, id %d)", qerrors.ErrBadMessage, curveType, curve)
	}
	params := body[:len(body)-len(s)]

	if c.actualProtocolVersion >= protocol.VersionTLS12 {
		var hashAlg, sigAlg uint8
		if !s.ReadUint8(&hashAlg) || !s.ReadUint8(&sigAlg) {
			return fmt.Errorf("%w: truncated signature algorithm", qerrors.ErrBadMessage)
		}
		if hashAlg != c.pending.signatureDigest.HashAlgorithmID() || sigAlg != sigAlgRSA {
			return fmt.Errorf("%w: signature algorithm (%d, %d)", qerrors.ErrBadMessage, hashAlg, sigAlg)
		}
	}
	var sig cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&sig) || !s.Empty() {
		return fmt.Errorf("%w: malformed key exchange signature", qerrors.ErrBadMessage)
	}

	if err := s2ncrypto.VerifyParams(c.pending.signatureDigest, c.pending.peerRSAKey,
		c.pending.clientRandom[:], c.pending.serverRandom[:], params, sig); err != nil {
		return err
	}

	c.pending.peerECDHEPublic = make([]byte, len(point))
	copy(c.pending.peerECDHEPublic, point)

	if c.config.OfferClientCert {
		c.handshake.nextState = StateServerCertReq
	} else {
		c.handshake.nextState = StateServerHelloDone
	}
	return nil
}

// sendClientKey establishes the premaster secret from the client side.
func (c *Conn) sendClientKey() error {
	b := cryptobyte.NewBuilder(nil)

	switch c.pending.cipherSuite.KeyExchange() {
	case protocol.KeyExchangeECDHE:
		key, err := s2ncrypto.GenerateECDHEKey(c.rand())
		if err != nil {
			return err
		}
		premaster, err := key.SharedSecret(c.pending.peerECDHEPublic)
		if err != nil {
			return err
		}
		key.Destroy()
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(key.PublicBytes())
		})
		body, err := b.Bytes()
		if err != nil {
			return err
		}
		c.handshake.io.Write(body)
		c.deriveMasterSecret(premaster)

	default: // RSA
		if c.pending.peerRSAKey == nil {
			return fmt.Errorf("%w: no server RSA key for key exchange", qerrors.ErrInternal)
		}
		premaster := make([]byte, constants.PremasterSecretSize)
		premaster[0] = c.clientProtocolVersion.Major()
		premaster[1] = c.clientProtocolVersion.Minor()
		if err := s2ncrypto.SecureRandom(c.rand(), premaster[2:]); err != nil {
			return err
		}
		encrypted, err := rsa.EncryptPKCS1v15(c.rand(), c.pending.peerRSAKey, premaster)
		if err != nil {
			return err
		}
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(encrypted)
		})
		body, err := b.Bytes()
		if err != nil {
			return err
		}
		c.handshake.io.Write(body)
		c.deriveMasterSecret(premaster)
	}

	c.handshake.nextState = StateClientChangeCipherSpec
	return nil
}

// recvClientKey establishes the premaster secret on the server.
func (c *Conn) recvClientKey() error {
	s := cryptobyte.String(c.messageBody())

	switch c.pending.cipherSuite.KeyExchange() {
	case protocol.KeyExchangeECDHE:
		var point cryptobyte.String
		if !s.ReadUint8LengthPrefixed(&point) || !s.Empty() {
			return fmt.Errorf("%w: malformed ecdhe client key exchange", qerrors.ErrBadMessage)
		}
		premaster, err := c.pending.ecdheKey.SharedSecret(point)
		if err != nil {
			return err
		}
		c.pending.ecdheKey.Destroy()
		c.pending.ecdheKey = nil
		c.deriveMasterSecret(premaster)

	default: // RSA
		var encrypted cryptobyte.String
		if !s.ReadUint16LengthPrefixed(&encrypted) || !s.Empty() {
			return fmt.Errorf("%w: malformed rsa client key exchange", qerrors.ErrBadMessage)
		}

		// Bleichenbacher defense: prepare a random premaster and let a
		// padding failure leave it in place, then fix the version bytes in
		// constant time so a wrong client_version is indistinguishable from
		// bad padding.
		premaster := make([]byte, constants.PremasterSecretSize)
		if err := s2ncrypto.SecureRandom(c.rand(), premaster); err != nil {
			return err
		}
		fallback := make([]byte, constants.PremasterSecretSize)
		copy(fallback, premaster)

		_ = rsa.DecryptPKCS1v15SessionKey(c.rand(), c.config.PrivateKey, encrypted, premaster)

		versionOK := subtle.ConstantTimeByteEq(premaster[0], c.clientProtocolVersion.Major()) &
			subtle.ConstantTimeByteEq(premaster[1], c.clientProtocolVersion.Minor())
		subtle.ConstantTimeCopy(versionOK^1, premaster, fallback)
		s2ncrypto.Zeroize(fallback)

		c.deriveMasterSecret(premaster)
	}

	c.handshake.nextState = StateClientChangeCipherSpec
	return nil
}
