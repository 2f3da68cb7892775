// Package handshake implements the TLS 1.0/1.1/1.2 handshake driver for
// client and server endpoints.
//
// Handshake flow (full, no resumption):
//
//	Client                                 Server
//	    |                                      |
//	    | -------- ClientHello --------------> |
//	    | <------- ServerHello --------------- |
//	    | <------- Certificate --------------- |
//	    | <------- [CertificateStatus] ------- |
//	    | <------- [ServerKeyExchange] ------- |
//	    | <------- [CertificateRequest] ------ |
//	    | <------- ServerHelloDone ----------- |
//	    | -------- [Certificate] ------------> |
//	    | -------- ClientKeyExchange --------> |
//	    | -------- ChangeCipherSpec ---------> |
//	    | -------- Finished -----------------> |
//	    | <------- ChangeCipherSpec ---------- |
//	    | <------- Finished ------------------ |
//	    |                                      |
//	    |     === Handshake Over ===           |
//
// The driver is a deterministic state machine pumped by Negotiate. It never
// blocks: when the transport cannot make progress, Negotiate returns a
// Blocked status and the caller re-invokes it once the transport is ready.
// Resuming after a suspension is semantically identical to never having
// returned.
package handshake

import (
	"crypto/rsa"
	"crypto/x509"
	"io"
	"time"

	"github.com/gilwalzer/s2n/internal/constants"
	"github.com/gilwalzer/s2n/pkg/buffer"
	s2ncrypto "github.com/gilwalzer/s2n/pkg/crypto"
	"github.com/gilwalzer/s2n/pkg/metrics"
	"github.com/gilwalzer/s2n/pkg/protocol"
	"github.com/gilwalzer/s2n/pkg/record"
)

// Role is the endpoint's side of the handshake.
type Role int

// Endpoint roles. The values index the per-state handler pairs.
const (
	RoleClient Role = 0
	RoleServer Role = 1
)

// String returns the role name.
func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Blocked reports why Negotiate returned before reaching HANDSHAKE_OVER.
type Blocked int

// Suspension statuses.
const (
	// NotBlocked means the handshake completed (or failed fatally).
	NotBlocked Blocked = iota
	// BlockedOnRead means the transport had no bytes to deliver.
	BlockedOnRead
	// BlockedOnWrite means the transport could not accept more bytes.
	BlockedOnWrite
)

// String returns the status name.
func (b Blocked) String() string {
	switch b {
	case BlockedOnRead:
		return "blocked_on_read"
	case BlockedOnWrite:
		return "blocked_on_write"
	default:
		return "not_blocked"
	}
}

// CipherStatus tracks whether a direction has activated its pending cipher.
// Record protection itself is outside this driver; the status flips at
// ChangeCipherSpec so an embedding record stack knows when to switch keys.
type CipherStatus int

// Cipher activation statuses.
const (
	StatusPlaintext CipherStatus = iota
	StatusEncrypted
)

// readErrorDelay is the uniform delay applied before surfacing a read-path
// handler failure, dampening error-oracle side channels.
const readErrorDelay = 10 * time.Millisecond

// Config carries the endpoint's negotiation policy and injected
// capabilities. The zero value is not usable; start from DefaultConfig.
type Config struct {
	// MinVersion and MaxVersion bound the negotiable protocol versions.
	MinVersion protocol.Version
	MaxVersion protocol.Version

	// CipherPreferences is the suite preference order. Servers select the
	// first preference the client offered; clients offer the whole list.
	CipherPreferences []protocol.CipherSuite

	// CertificateChain is the server's DER certificate chain, leaf first.
	CertificateChain [][]byte

	// PrivateKey is the server's RSA key, matching the leaf certificate.
	PrivateKey *rsa.PrivateKey

	// OCSPResponse is a stapled DER OCSP response, sent when the client
	// offers status_request.
	OCSPResponse []byte

	// RequestClientCert makes the server send a CertificateRequest.
	RequestClientCert bool

	// OfferClientCert makes the client expect a CertificateRequest and
	// answer it with an empty certificate chain.
	OfferClientCert bool

	// RequestOCSP makes the client offer the status_request extension.
	RequestOCSP bool

	// Logger receives driver events. Defaults to the silent logger.
	Logger *metrics.Logger

	// Tracer wraps each Negotiate invocation in a span.
	Tracer metrics.Tracer

	// Collector receives handshake counters; nil disables collection.
	Collector *metrics.Collector

	// Rand is the cryptographic random source; nil uses the process CSPRNG.
	Rand io.Reader

	// Clock supplies the GMT timestamp in hello randoms.
	Clock func() time.Time

	// Sleep implements the read-path error delay.
	Sleep func(time.Duration)
}

// DefaultConfig returns a config negotiating TLS 1.0 through TLS 1.2 with
// the default cipher preferences.
func DefaultConfig() *Config {
	return &Config{
		MinVersion:        protocol.VersionTLS10,
		MaxVersion:        protocol.VersionTLS12,
		CipherPreferences: protocol.DefaultCipherPreferences(),
		Logger:            metrics.NullLogger(),
		Tracer:            metrics.NoOpTracer{},
		Clock:             time.Now,
		Sleep:             time.Sleep,
	}
}

// pendingParameters is the cryptographic state being negotiated. It becomes
// active at ChangeCipherSpec.
type pendingParameters struct {
	clientRandom [constants.RandomSize]byte
	serverRandom [constants.RandomSize]byte

	cipherSuite     protocol.CipherSuite
	signatureDigest s2ncrypto.SignatureDigest

	ecdheKey        *s2ncrypto.ECDHEKey
	peerECDHEPublic []byte

	peerCertificate *x509.Certificate
	peerRSAKey      *rsa.PublicKey
	ocspResponse    []byte

	masterSecret []byte

	// expectedFinished is the peer's verify_data, computed when its
	// ChangeCipherSpec arrives so the transcript excludes the Finished
	// message itself.
	expectedFinished    []byte
	ocspNegotiated      bool
	clientCertRequested bool
}

// Conn is one handshake connection. It owns the handshake state, the
// reassembly buffer, the transcript hashes and the pending parameters; the
// record buffers are owned by the record layer and observable through it.
// A Conn is not safe for concurrent use.
type Conn struct {
	mode   Role
	config *Config
	rec    *record.Layer

	handshake struct {
		state     State
		nextState State
		io        *buffer.Buffer
	}

	hashes  *transcriptHashes
	pending pendingParameters

	clientProtocolVersion            protocol.Version
	serverProtocolVersion            protocol.Version
	actualProtocolVersion            protocol.Version
	actualProtocolVersionEstablished bool

	closed    bool
	inStatus  CipherStatus
	outStatus CipherStatus
	blocked   Blocked

	// Inbound record being demultiplexed. recPending is true while a fully
	// read record awaits consumption, so zero-length records are still seen.
	curContentType protocol.ContentType
	curSSLv2       bool
	recPending     bool
	msgFragmented  bool
	alertIn        *buffer.Buffer

	started   bool
	startedAt time.Time
	log       *metrics.Logger
}

// NewConn creates a connection in state CLIENT_HELLO over the given
// non-blocking transport. A nil config uses DefaultConfig.
func NewConn(mode Role, tr io.ReadWriter, config *Config) *Conn {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = metrics.NullLogger()
	}
	if config.Tracer == nil {
		config.Tracer = metrics.NoOpTracer{}
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Sleep == nil {
		config.Sleep = time.Sleep
	}

	c := &Conn{
		mode:                  mode,
		config:                config,
		rec:                   record.NewLayer(tr),
		hashes:                newTranscriptHashes(),
		actualProtocolVersion: config.MaxVersion,
		alertIn:               buffer.NewWithCapacity(constants.AlertSize),
		log:                   config.Logger.Named("handshake").With(metrics.Fields{"role": mode.String()}),
	}
	c.handshake.state = StateClientHello
	c.handshake.nextState = StateClientHello
	c.handshake.io = buffer.New()
	return c
}

// Mode returns the connection's role.
func (c *Conn) Mode() Role {
	return c.mode
}

// State returns the current handshake state.
func (c *Conn) State() State {
	return c.handshake.state
}

// Blocked returns the suspension status of the last Negotiate call.
func (c *Conn) Blocked() Blocked {
	return c.blocked
}

// Closed reports whether the connection has been fatally closed.
func (c *Conn) Closed() bool {
	return c.closed
}

// ActualProtocolVersion returns the negotiated protocol version and whether
// it has been established.
func (c *Conn) ActualProtocolVersion() (protocol.Version, bool) {
	return c.actualProtocolVersion, c.actualProtocolVersionEstablished
}

// ClientProtocolVersion returns the version the client offered.
func (c *Conn) ClientProtocolVersion() protocol.Version {
	return c.clientProtocolVersion
}

// ServerProtocolVersion returns the version the server selected.
func (c *Conn) ServerProtocolVersion() protocol.Version {
	return c.serverProtocolVersion
}

// CipherSuite returns the negotiated cipher suite (zero until selected).
func (c *Conn) CipherSuite() protocol.CipherSuite {
	return c.pending.cipherSuite
}

// SignatureDigest returns the pending key exchange signature digest.
func (c *Conn) SignatureDigest() s2ncrypto.SignatureDigest {
	return c.pending.signatureDigest
}

// InStatus returns the inbound cipher activation status.
func (c *Conn) InStatus() CipherStatus {
	return c.inStatus
}

// OutStatus returns the outbound cipher activation status.
func (c *Conn) OutStatus() CipherStatus {
	return c.outStatus
}

// RecordLayer returns the connection's record layer, whose buffers are
// observable by embedders.
func (c *Conn) RecordLayer() *record.Layer {
	return c.rec
}

// rand returns the configured random source.
func (c *Conn) rand() io.Reader {
	if c.config.Rand != nil {
		return c.config.Rand
	}
	return s2ncrypto.Reader
}

// messageBody returns the body of the reassembled handshake message,
// excluding the four header bytes. Valid until the buffer is wiped.
func (c *Conn) messageBody() []byte {
	return c.handshake.io.All()[constants.HandshakeHeaderSize:]
}

// finishRecord marks the current inbound record fully consumed and wipes
// its payload buffer.
func (c *Conn) finishRecord() {
	c.rec.WipeIn()
	c.recPending = false
}

// releaseHandshakeBuffers wipes the reassembly buffer and drops the
// transcript hashes once the handshake is over. The pending parameters stay: the embedding
// record stack consumes them when it activates its keys.
func (c *Conn) releaseHandshakeBuffers() {
	if c.handshake.io != nil {
		c.handshake.io.Wipe()
	}
	c.hashes = nil
}
