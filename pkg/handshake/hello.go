// ClientHello and ServerHello handlers.
//
// Version policy lives here rather than in the codecs: the codec enforces
// structure, the connection enforces what it will negotiate.
package handshake

import (
	"encoding/binary"
	"fmt"

	qerrors "github.com/gilwalzer/s2n/internal/errors"
	s2ncrypto "github.com/gilwalzer/s2n/pkg/crypto"
	"github.com/gilwalzer/s2n/pkg/protocol"
)

// fillRandom builds a hello random: four bytes of big-endian GMT time
// followed by 28 bytes from the random source.
func (c *Conn) fillRandom(random []byte) error {
	binary.BigEndian.PutUint32(random[:4], uint32(c.config.Clock().Unix()))
	return s2ncrypto.SecureRandom(c.rand(), random[4:])
}

// signatureDigestFor returns the default key exchange signature digest for
// a negotiated version: SHA-1 on TLS 1.2, the combined MD5+SHA-1 digest
// before it.
func signatureDigestFor(v protocol.Version) s2ncrypto.SignatureDigest {
	if v == protocol.VersionTLS12 {
		return s2ncrypto.DigestSHA1
	}
	return s2ncrypto.DigestMD5SHA1
}

// sendClientHello opens the handshake as a client.
func (c *Conn) sendClientHello() error {
	if err := c.fillRandom(c.pending.clientRandom[:]); err != nil {
		return err
	}
	c.clientProtocolVersion = c.config.MaxVersion
	c.actualProtocolVersion = c.config.MaxVersion

	var exts []protocol.Extension
	if c.config.MaxVersion >= protocol.VersionTLS12 {
		exts = append(exts, protocol.SignatureAlgorithmsExtension())
	}
	if c.config.RequestOCSP {
		exts = append(exts, protocol.StatusRequestExtension())
	}

	msg := &protocol.ClientHello{
		Version:      c.clientProtocolVersion,
		Random:       c.pending.clientRandom,
		CipherSuites: c.config.CipherPreferences,
		Extensions:   exts,
	}
	body, err := msg.Marshal()
	if err != nil {
		return err
	}
	c.handshake.io.Write(body)

	c.handshake.nextState = StateServerHello
	return nil
}

// recvClientHello processes the client's opening message on the server.
func (c *Conn) recvClientHello() error {
	msg, err := protocol.UnmarshalClientHello(c.messageBody())
	if err != nil {
		return err
	}

	if msg.Version < c.config.MinVersion {
		return fmt.Errorf("%w: client offered %s", qerrors.ErrBadVersion, msg.Version)
	}
	c.clientProtocolVersion = msg.Version
	c.pending.clientRandom = msg.Random

	return c.negotiateAsServer(msg.CipherSuites, msg.Extensions)
}

// recvSSLv2ClientHello processes an SSLv2-framed ClientHello. The offered
// version travels in the compatibility header, passed in by the reader.
func (c *Conn) recvSSLv2ClientHello(versionMajor, versionMinor uint8) error {
	msg, err := protocol.UnmarshalSSLv2ClientHello(versionMajor, versionMinor, c.handshake.io.All())
	if err != nil {
		return err
	}

	if msg.Version < c.config.MinVersion {
		return fmt.Errorf("%w: sslv2 client offered %s", qerrors.ErrBadVersion, msg.Version)
	}
	c.clientProtocolVersion = msg.Version
	c.pending.clientRandom = msg.Random

	return c.negotiateAsServer(msg.CipherSuites, nil)
}

// negotiateAsServer selects the cipher suite and records the extensions the
// hello carried, then points the handshake at ServerHello.
func (c *Conn) negotiateAsServer(offered []protocol.CipherSuite, exts []protocol.Extension) error {
	version := c.clientProtocolVersion
	if version > c.config.MaxVersion {
		version = c.config.MaxVersion
	}

	suite := protocol.SelectCipherSuite(c.config.CipherPreferences, offered, version)
	if suite == 0 {
		return qerrors.ErrNoSharedCipher
	}
	c.pending.cipherSuite = suite

	if _, ok := protocol.FindExtension(exts, protocol.ExtStatusRequest); ok && len(c.config.OCSPResponse) > 0 {
		c.pending.ocspNegotiated = true
	}

	c.handshake.nextState = StateServerHello
	return nil
}

// sendServerHello answers the client: the server random, the negotiated
// version (downgraded to the client's offer when it is below ours), the
// selected cipher suite, and the negotiated extensions.
func (c *Conn) sendServerHello() error {
	if err := c.fillRandom(c.pending.serverRandom[:]); err != nil {
		return err
	}

	if c.clientProtocolVersion < c.actualProtocolVersion {
		c.actualProtocolVersion = c.clientProtocolVersion
	}
	if err := c.actualProtocolVersion.CheckRange(); err != nil {
		return err
	}
	c.serverProtocolVersion = c.actualProtocolVersion
	c.actualProtocolVersionEstablished = true
	c.rec.SetVersion(c.actualProtocolVersion)

	var exts []protocol.Extension
	if c.pending.ocspNegotiated {
		exts = append(exts, protocol.EmptyStatusRequestExtension())
	}

	msg := &protocol.ServerHello{
		Version:     c.actualProtocolVersion,
		Random:      c.pending.serverRandom,
		CipherSuite: c.pending.cipherSuite,
		Extensions:  exts,
	}
	body, err := msg.Marshal()
	if err != nil {
		return err
	}
	c.handshake.io.Write(body)

	c.pending.signatureDigest = signatureDigestFor(c.actualProtocolVersion)
	c.handshake.nextState = StateServerCert
	return nil
}

// recvServerHello adopts the server's version and cipher selection on the
// client.
func (c *Conn) recvServerHello() error {
	msg, err := protocol.UnmarshalServerHello(c.messageBody())
	if err != nil {
		return err
	}

	c.serverProtocolVersion = msg.Version
	if msg.Version > c.config.MaxVersion {
		return fmt.Errorf("%w: server selected %s above our maximum", qerrors.ErrBadVersion, msg.Version)
	}
	c.actualProtocolVersion = msg.Version
	c.actualProtocolVersionEstablished = true
	if err := c.actualProtocolVersion.CheckRange(); err != nil {
		return err
	}
	c.rec.SetVersion(c.actualProtocolVersion)
	c.pending.signatureDigest = signatureDigestFor(c.actualProtocolVersion)

	c.pending.serverRandom = msg.Random

	if err := c.setCipherAsClient(msg.CipherSuite); err != nil {
		return err
	}

	if _, ok := protocol.FindExtension(msg.Extensions, protocol.ExtStatusRequest); ok {
		c.pending.ocspNegotiated = true
	}

	c.handshake.nextState = StateServerCert
	return nil
}

// setCipherAsClient verifies the server's selection was actually offered
// and is supported at the negotiated version.
func (c *Conn) setCipherAsClient(suite protocol.CipherSuite) error {
	offered := false
	for _, cs := range c.config.CipherPreferences {
		if cs == suite {
			offered = true
			break
		}
	}
	if !offered || !suite.IsSupported() || c.actualProtocolVersion < suite.MinVersion() {
		return fmt.Errorf("%w: server selected %s", qerrors.ErrNoSharedCipher, suite)
	}
	c.pending.cipherSuite = suite
	return nil
}
