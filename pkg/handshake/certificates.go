// Certificate, CertificateStatus and CertificateRequest handlers.
//
// The certificate chain travels as a u24-prefixed list of u24-prefixed DER
// entries, leaf first (RFC 5246 §7.4.2). Only the leaf is parsed; chain
// validation policy belongs to the embedder.
package handshake

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	qerrors "github.com/gilwalzer/s2n/internal/errors"
	"github.com/gilwalzer/s2n/pkg/protocol"
)

// afterServerCertState decides what follows the certificate flight. Both
// sides derive it from the same negotiated facts, keeping the strict
// message-type expectation aligned.
func (c *Conn) afterServerCertState() State {
	if c.pending.ocspNegotiated {
		return StateServerCertStatus
	}
	return c.afterCertStatusState()
}

// afterCertStatusState decides what follows CertificateStatus (or the
// certificate when no status is stapled). A certificate request cannot
// follow CertificateStatus with an RSA key exchange, so that combination
// skips the request.
func (c *Conn) afterCertStatusState() State {
	if c.pending.cipherSuite.KeyExchange() == protocol.KeyExchangeECDHE {
		return StateServerKey
	}
	if !c.pending.ocspNegotiated && c.expectsClientCertRequest() {
		return StateServerCertReq
	}
	return StateServerHelloDone
}

func (c *Conn) expectsClientCertRequest() bool {
	if c.mode == RoleServer {
		return c.config.RequestClientCert
	}
	return c.config.OfferClientCert
}

// marshalCertificateChain encodes a (possibly empty) DER chain.
func marshalCertificateChain(chain [][]byte) ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, der := range chain {
			der := der
			b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes(der)
			})
		}
	})
	return b.Bytes()
}

// unmarshalCertificateChain decodes a certificate message body into DER
// entries.
func unmarshalCertificateChain(body []byte) ([][]byte, error) {
	s := cryptobyte.String(body)
	var list cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&list) || !s.Empty() {
		return nil, fmt.Errorf("%w: malformed chain framing", qerrors.ErrBadCertificate)
	}
	var chain [][]byte
	for !list.Empty() {
		var entry cryptobyte.String
		if !list.ReadUint24LengthPrefixed(&entry) || len(entry) == 0 {
			return nil, fmt.Errorf("%w: malformed chain entry", qerrors.ErrBadCertificate)
		}
		der := make([]byte, len(entry))
		copy(der, entry)
		chain = append(chain, der)
	}
	return chain, nil
}

// sendServerCert emits the configured certificate chain.
func (c *Conn) sendServerCert() error {
	if len(c.config.CertificateChain) == 0 {
		return fmt.Errorf("%w: no certificate chain configured", qerrors.ErrInternal)
	}
	body, err := marshalCertificateChain(c.config.CertificateChain)
	if err != nil {
		return err
	}
	c.handshake.io.Write(body)
	c.handshake.nextState = c.afterServerCertState()
	return nil
}

// recvServerCert parses the server's chain and extracts the leaf RSA key.
func (c *Conn) recvServerCert() error {
	chain, err := unmarshalCertificateChain(c.messageBody())
	if err != nil {
		return err
	}
	if len(chain) == 0 {
		return fmt.Errorf("%w: empty server chain", qerrors.ErrBadCertificate)
	}

	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return fmt.Errorf("%w: %v", qerrors.ErrBadCertificate, err)
	}
	rsaKey, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: leaf key is not RSA", qerrors.ErrBadCertificate)
	}
	c.pending.peerCertificate = leaf
	c.pending.peerRSAKey = rsaKey

	c.handshake.nextState = c.afterServerCertState()
	return nil
}

// sendServerCertStatus staples the configured OCSP response.
func (c *Conn) sendServerCertStatus() error {
	b := cryptobyte.NewBuilder(nil)
	b.AddUint8(protocol.OCSPStatusType)
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(c.config.OCSPResponse)
	})
	body, err := b.Bytes()
	if err != nil {
		return err
	}
	c.handshake.io.Write(body)
	c.handshake.nextState = c.afterCertStatusState()
	return nil
}

// recvServerCertStatus stores the stapled OCSP response.
func (c *Conn) recvServerCertStatus() error {
	s := cryptobyte.String(c.messageBody())
	var statusType uint8
	var response cryptobyte.String
	if !s.ReadUint8(&statusType) || !s.ReadUint24LengthPrefixed(&response) || !s.Empty() {
		return fmt.Errorf("%w: malformed certificate status", qerrors.ErrBadMessage)
	}
	if statusType != protocol.OCSPStatusType {
		return fmt.Errorf("%w: certificate status type %d", qerrors.ErrBadMessage, statusType)
	}
	c.pending.ocspResponse = make([]byte, len(response))
	copy(c.pending.ocspResponse, response)

	c.handshake.nextState = c.afterCertStatusState()
	return nil
}

// sendServerCertReq asks the client for a certificate: RSA signing only,
// the signature algorithms we verify on TLS 1.2, and an empty CA list.
func (c *Conn) sendServerCertReq() error {
	b := cryptobyte.NewBuilder(nil)
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint8(1) // rsa_sign
	})
	if c.actualProtocolVersion >= protocol.VersionTLS12 {
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddUint16(0x0401) // sha256/rsa
			b.AddUint16(0x0201) // sha1/rsa
		})
	}
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {}) // no CA constraints
	body, err := b.Bytes()
	if err != nil {
		return err
	}
	c.handshake.io.Write(body)
	c.pending.clientCertRequested = true
	c.handshake.nextState = StateServerHelloDone
	return nil
}

// recvServerCertReq records that the server wants a client certificate.
func (c *Conn) recvServerCertReq() error {
	s := cryptobyte.String(c.messageBody())
	var certTypes cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&certTypes) || len(certTypes) == 0 {
		return fmt.Errorf("%w: malformed certificate request", qerrors.ErrBadMessage)
	}
	if c.actualProtocolVersion >= protocol.VersionTLS12 {
		var sigAlgs cryptobyte.String
		if !s.ReadUint16LengthPrefixed(&sigAlgs) || len(sigAlgs)%2 != 0 {
			return fmt.Errorf("%w: malformed signature algorithms", qerrors.ErrBadMessage)
		}
	}
	var cas cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&cas) || !s.Empty() {
		return fmt.Errorf("%w: malformed certificate authorities", qerrors.ErrBadMessage)
	}

	c.pending.clientCertRequested = true
	c.handshake.nextState = StateServerHelloDone
	return nil
}

// sendServerHelloDone closes the server's first flight with an empty body.
func (c *Conn) sendServerHelloDone() error {
	if c.pending.clientCertRequested {
		c.handshake.nextState = StateClientCert
	} else {
		c.handshake.nextState = StateClientKey
	}
	return nil
}

// recvServerHelloDone verifies the empty body and turns the handshake over
// to the client's flight.
func (c *Conn) recvServerHelloDone() error {
	if len(c.messageBody()) != 0 {
		return fmt.Errorf("%w: server hello done with a body", qerrors.ErrBadMessage)
	}
	if c.pending.clientCertRequested {
		c.handshake.nextState = StateClientCert
	} else {
		c.handshake.nextState = StateClientKey
	}
	return nil
}

// sendClientCert answers a certificate request with an empty chain; client
// authentication keys are not configured on this endpoint.
func (c *Conn) sendClientCert() error {
	body, err := marshalCertificateChain(nil)
	if err != nil {
		return err
	}
	c.handshake.io.Write(body)
	c.handshake.nextState = StateClientKey
	return nil
}

// recvClientCert accepts the client's (possibly empty) chain.
func (c *Conn) recvClientCert() error {
	chain, err := unmarshalCertificateChain(c.messageBody())
	if err != nil {
		return err
	}
	if len(chain) > 0 {
		leaf, err := x509.ParseCertificate(chain[0])
		if err != nil {
			return fmt.Errorf("%w: %v", qerrors.ErrBadCertificate, err)
		}
		c.pending.peerCertificate = leaf
	}
	c.handshake.nextState = StateClientKey
	return nil
}

// sendClientCertVerify would sign the transcript with the client's key.
// This endpoint only ever sends empty client chains, so the state is
// unreachable from our own transitions.
func (c *Conn) sendClientCertVerify() error {
	return fmt.Errorf("%w: client certificate keys are not configured", qerrors.ErrInternal)
}

// recvClientCertVerify mirrors sendClientCertVerify: a client that sent an
// empty chain must not send CertificateVerify.
func (c *Conn) recvClientCertVerify() error {
	return fmt.Errorf("%w: certificate verify without a client certificate", qerrors.ErrUnexpectedMessage)
}
