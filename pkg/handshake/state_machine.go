// The handshake state machine and its drive loop.
//
// Each state has exactly one row: the record content type it travels in,
// its handshake message type, the role that writes it, and the handler pair
// indexed by role. The writing role's handler encodes; the other role's
// handler decodes. Handlers set nextState; the driver validates the
// transition against the legality table and only then assigns it.
package handshake

import (
	"context"
	"fmt"

	qerrors "github.com/gilwalzer/s2n/internal/errors"
	"github.com/gilwalzer/s2n/pkg/metrics"
	"github.com/gilwalzer/s2n/pkg/protocol"
)

// State is one handshake protocol state.
type State int

// Handshake states, in protocol order.
const (
	StateClientHello State = iota
	StateServerHello
	StateServerCert
	StateServerCertStatus
	StateServerKey
	StateServerCertReq
	StateServerHelloDone
	StateClientCert
	StateClientKey
	StateClientCertVerify
	StateClientChangeCipherSpec
	StateClientFinished
	StateServerChangeCipherSpec
	StateServerFinished
	StateHandshakeOver

	stateCount
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClientHello:
		return "CLIENT_HELLO"
	case StateServerHello:
		return "SERVER_HELLO"
	case StateServerCert:
		return "SERVER_CERT"
	case StateServerCertStatus:
		return "SERVER_CERT_STATUS"
	case StateServerKey:
		return "SERVER_KEY"
	case StateServerCertReq:
		return "SERVER_CERT_REQ"
	case StateServerHelloDone:
		return "SERVER_HELLO_DONE"
	case StateClientCert:
		return "CLIENT_CERT"
	case StateClientKey:
		return "CLIENT_KEY"
	case StateClientCertVerify:
		return "CLIENT_CERT_VERIFY"
	case StateClientChangeCipherSpec:
		return "CLIENT_CHANGE_CIPHER_SPEC"
	case StateClientFinished:
		return "CLIENT_FINISHED"
	case StateServerChangeCipherSpec:
		return "SERVER_CHANGE_CIPHER_SPEC"
	case StateServerFinished:
		return "SERVER_FINISHED"
	case StateHandshakeOver:
		return "HANDSHAKE_OVER"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Writer roles of a state.
const (
	writerClient = 'C'
	writerServer = 'S'
	writerBoth   = 'B'
)

// handlerFunc encodes or decodes one handshake message on the connection.
type handlerFunc func(*Conn) error

// handshakeAction is one row of the state machine.
type handshakeAction struct {
	recordType  protocol.ContentType
	messageType protocol.HandshakeType
	writer      byte
	handlers    [2]handlerFunc // indexed by Role
}

// stateMachine is the immutable per-state dispatch table.
var stateMachine = [stateCount]handshakeAction{
	StateClientHello: {
		recordType:  protocol.ContentHandshake,
		messageType: protocol.TypeClientHello,
		writer:      writerClient,
		handlers:    [2]handlerFunc{RoleClient: (*Conn).sendClientHello, RoleServer: (*Conn).recvClientHello},
	},
	StateServerHello: {
		recordType:  protocol.ContentHandshake,
		messageType: protocol.TypeServerHello,
		writer:      writerServer,
		handlers:    [2]handlerFunc{RoleClient: (*Conn).recvServerHello, RoleServer: (*Conn).sendServerHello},
	},
	StateServerCert: {
		recordType:  protocol.ContentHandshake,
		messageType: protocol.TypeCertificate,
		writer:      writerServer,
		handlers:    [2]handlerFunc{RoleClient: (*Conn).recvServerCert, RoleServer: (*Conn).sendServerCert},
	},
	StateServerCertStatus: {
		recordType:  protocol.ContentHandshake,
		messageType: protocol.TypeCertificateStatus,
		writer:      writerServer,
		handlers:    [2]handlerFunc{RoleClient: (*Conn).recvServerCertStatus, RoleServer: (*Conn).sendServerCertStatus},
	},
	StateServerKey: {
		recordType:  protocol.ContentHandshake,
		messageType: protocol.TypeServerKeyExchange,
		writer:      writerServer,
		handlers:    [2]handlerFunc{RoleClient: (*Conn).recvServerKey, RoleServer: (*Conn).sendServerKey},
	},
	StateServerCertReq: {
		recordType:  protocol.ContentHandshake,
		messageType: protocol.TypeCertificateRequest,
		writer:      writerServer,
		handlers:    [2]handlerFunc{RoleClient: (*Conn).recvServerCertReq, RoleServer: (*Conn).sendServerCertReq},
	},
	StateServerHelloDone: {
		recordType:  protocol.ContentHandshake,
		messageType: protocol.TypeServerHelloDone,
		writer:      writerServer,
		handlers:    [2]handlerFunc{RoleClient: (*Conn).recvServerHelloDone, RoleServer: (*Conn).sendServerHelloDone},
	},
	StateClientCert: {
		recordType:  protocol.ContentHandshake,
		messageType: protocol.TypeCertificate,
		writer:      writerClient,
		handlers:    [2]handlerFunc{RoleClient: (*Conn).sendClientCert, RoleServer: (*Conn).recvClientCert},
	},
	StateClientKey: {
		recordType:  protocol.ContentHandshake,
		messageType: protocol.TypeClientKeyExchange,
		writer:      writerClient,
		handlers:    [2]handlerFunc{RoleClient: (*Conn).sendClientKey, RoleServer: (*Conn).recvClientKey},
	},
	StateClientCertVerify: {
		recordType:  protocol.ContentHandshake,
		messageType: protocol.TypeCertificateVerify,
		writer:      writerClient,
		handlers:    [2]handlerFunc{RoleClient: (*Conn).sendClientCertVerify, RoleServer: (*Conn).recvClientCertVerify},
	},
	StateClientChangeCipherSpec: {
		recordType: protocol.ContentChangeCipherSpec,
		writer:     writerClient,
		handlers:   [2]handlerFunc{RoleClient: (*Conn).sendClientCCS, RoleServer: (*Conn).recvClientCCS},
	},
	StateClientFinished: {
		recordType:  protocol.ContentHandshake,
		messageType: protocol.TypeFinished,
		writer:      writerClient,
		handlers:    [2]handlerFunc{RoleClient: (*Conn).sendClientFinished, RoleServer: (*Conn).recvClientFinished},
	},
	StateServerChangeCipherSpec: {
		recordType: protocol.ContentChangeCipherSpec,
		writer:     writerServer,
		handlers:   [2]handlerFunc{RoleClient: (*Conn).recvServerCCS, RoleServer: (*Conn).sendServerCCS},
	},
	StateServerFinished: {
		recordType:  protocol.ContentHandshake,
		messageType: protocol.TypeFinished,
		writer:      writerServer,
		handlers:    [2]handlerFunc{RoleClient: (*Conn).recvServerFinished, RoleServer: (*Conn).sendServerFinished},
	},
	StateHandshakeOver: {
		recordType: protocol.ContentApplicationData,
		writer:     writerBoth,
	},
}

// legalTransitions enumerates every permitted state transition. The
// CertificateStatus message follows Certificate (RFC 6066 §8), so there is
// no SERVER_HELLO to SERVER_CERT_STATUS edge.
var legalTransitions = [stateCount][]State{
	StateClientHello:            {StateServerHello},
	StateServerHello:            {StateServerCert, StateServerKey, StateServerCertReq, StateServerHelloDone},
	StateServerCert:             {StateServerKey, StateServerCertReq, StateServerHelloDone, StateServerCertStatus},
	StateServerCertStatus:       {StateServerKey, StateServerHelloDone},
	StateServerKey:              {StateServerCertReq, StateServerHelloDone},
	StateServerCertReq:          {StateServerHelloDone},
	StateServerHelloDone:        {StateClientCert, StateClientKey},
	StateClientCert:             {StateClientKey},
	StateClientKey:              {StateClientCertVerify, StateClientChangeCipherSpec},
	StateClientCertVerify:       {StateClientChangeCipherSpec},
	StateClientChangeCipherSpec: {StateClientFinished},
	StateClientFinished:         {StateServerChangeCipherSpec},
	StateServerChangeCipherSpec: {StateServerFinished},
	StateServerFinished:         {StateHandshakeOver},
	StateHandshakeOver:          nil,
}

// currentAction returns the state machine row for the current state.
func (c *Conn) currentAction() *handshakeAction {
	return &stateMachine[c.handshake.state]
}

// roleWriter returns the writer letter of the connection's own role.
func (c *Conn) roleWriter() byte {
	if c.mode == RoleServer {
		return writerServer
	}
	return writerClient
}

// advanceState validates the handler-selected transition, wipes the message
// buffer, and installs the new state.
func (c *Conn) advanceState() error {
	current := c.handshake.state
	next := c.handshake.nextState

	legal := false
	for _, s := range legalTransitions[current] {
		if s == next {
			legal = true
			break
		}
	}
	if !legal {
		return fmt.Errorf("%w: illegal transition %s -> %s", qerrors.ErrInternal, current, next)
	}

	c.handshake.io.Wipe()
	c.msgFragmented = false
	c.log.Debug("state transition", metrics.Fields{"from": current.String(), "to": next.String()})
	c.handshake.state = next
	return nil
}

// dispatch invokes the current state's handler for the connection's role and
// wraps any failure with the state name.
func (c *Conn) dispatch() error {
	handler := c.currentAction().handlers[c.mode]
	if handler == nil {
		return fmt.Errorf("%w: no handler for %s as %s", qerrors.ErrInternal, c.handshake.state, c.mode)
	}
	if err := handler(c); err != nil {
		if qerrors.Is(err, qerrors.ErrBadMessage) && c.config.Collector != nil {
			c.config.Collector.ProtocolError()
		}
		return qerrors.NewHandshakeError(c.handshake.state.String(), err)
	}
	return nil
}

// Negotiate drives the handshake until it completes or suspends.
//
// It returns (NotBlocked, nil) when the handshake has reached
// HANDSHAKE_OVER, (BlockedOnRead|BlockedOnWrite, nil) when the transport
// stalled and the caller should re-invoke once it is ready, or a fatal
// error with the connection marked closed. Invoking Negotiate on a
// completed connection is a no-op returning success.
func (c *Conn) Negotiate(ctx context.Context) (Blocked, error) {
	if c.closed {
		return NotBlocked, qerrors.ErrClosed
	}

	var err error
	_, end := c.config.Tracer.StartSpan(ctx, metrics.SpanNegotiate,
		metrics.WithSpanKind(c.spanKind()),
		metrics.WithAttributes(map[string]interface{}{
			"tls.role":  c.mode.String(),
			"tls.state": c.handshake.state.String(),
		}))
	defer func() { end(err) }()

	if !c.started {
		c.started = true
		c.startedAt = c.config.Clock()
		if c.config.Collector != nil {
			c.config.Collector.HandshakeStarted()
		}
	}

	for c.currentAction().writer != writerBoth {
		// Drain egress left over from a previous suspension first.
		if c.rec.PendingOut() {
			if err = c.rec.Flush(); err != nil {
				if qerrors.Is(err, qerrors.ErrWouldBlock) {
					err = nil
					c.blocked = BlockedOnWrite
					c.countSuspension(BlockedOnWrite)
					return BlockedOnWrite, nil
				}
				c.fail()
				return NotBlocked, err
			}
		}

		if c.currentAction().writer == c.roleWriter() {
			c.blocked = BlockedOnWrite
			err = c.writeIO()
		} else {
			c.blocked = BlockedOnRead
			err = c.readIO()
		}
		if err != nil {
			if qerrors.Is(err, qerrors.ErrWouldBlock) {
				err = nil
				c.countSuspension(c.blocked)
				return c.blocked, nil
			}
			if c.blocked == BlockedOnRead {
				// Uniform delay so handler failures do not form a timing oracle.
				c.config.Sleep(readErrorDelay)
			}
			c.fail()
			return NotBlocked, err
		}

		if c.currentAction().writer == writerBoth {
			c.finish()
		}
	}

	c.blocked = NotBlocked
	return NotBlocked, nil
}

// fail marks the connection closed after a fatal error.
func (c *Conn) fail() {
	c.closed = true
	if c.config.Collector != nil {
		c.config.Collector.HandshakeFailed()
	}
}

// finish releases handshake resources once HANDSHAKE_OVER is reached.
func (c *Conn) finish() {
	c.releaseHandshakeBuffers()
	if c.config.Collector != nil {
		c.config.Collector.HandshakeCompleted(c.config.Clock().Sub(c.startedAt))
	}
	c.log.Info("handshake complete", metrics.Fields{
		"version": c.actualProtocolVersion.String(),
		"cipher":  c.pending.cipherSuite.String(),
	})
}

func (c *Conn) countSuspension(b Blocked) {
	if c.config.Collector == nil {
		return
	}
	if b == BlockedOnRead {
		c.config.Collector.ReadSuspended()
	} else {
		c.config.Collector.WriteSuspended()
	}
}

func (c *Conn) spanKind() metrics.SpanKind {
	if c.mode == RoleServer {
		return metrics.SpanKindServer
	}
	return metrics.SpanKindClient
}
