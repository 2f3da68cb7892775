package handshake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/gilwalzer/s2n/internal/errors"
	"github.com/gilwalzer/s2n/pkg/protocol"
	"github.com/gilwalzer/s2n/pkg/record"
)

func TestStateMachineTableComplete(t *testing.T) {
	for s := StateClientHello; s < stateCount; s++ {
		action := stateMachine[s]
		switch action.writer {
		case writerClient, writerServer:
			require.NotNil(t, action.handlers[RoleClient], "%s client handler", s)
			require.NotNil(t, action.handlers[RoleServer], "%s server handler", s)
		case writerBoth:
			assert.Equal(t, StateHandshakeOver, s, "only the terminal state is writer B")
		default:
			t.Errorf("%s has writer %q", s, action.writer)
		}
	}
}

func TestStateMachineRecordTypes(t *testing.T) {
	assert.Equal(t, protocol.ContentChangeCipherSpec, stateMachine[StateClientChangeCipherSpec].recordType)
	assert.Equal(t, protocol.ContentChangeCipherSpec, stateMachine[StateServerChangeCipherSpec].recordType)
	assert.Equal(t, protocol.ContentApplicationData, stateMachine[StateHandshakeOver].recordType)
	for _, s := range []State{StateClientHello, StateServerHello, StateServerCert, StateServerKey,
		StateServerHelloDone, StateClientKey, StateClientFinished, StateServerFinished} {
		assert.Equal(t, protocol.ContentHandshake, stateMachine[s].recordType, "%s", s)
	}
}

func TestNoServerHelloToCertStatusEdge(t *testing.T) {
	// CertificateStatus follows Certificate (RFC 6066 §8); the status state
	// must not be reachable directly from ServerHello.
	for _, next := range legalTransitions[StateServerHello] {
		assert.NotEqual(t, StateServerCertStatus, next)
	}
	assert.Contains(t, legalTransitions[StateServerCert], StateServerCertStatus)
}

func TestAdvanceStateRejectsIllegalTransition(t *testing.T) {
	_, tr := record.MemoryPipe()
	c := NewConn(RoleClient, tr, quietConfig())

	c.handshake.state = StateClientHello
	c.handshake.nextState = StateServerFinished
	err := c.advanceState()
	assert.ErrorIs(t, err, qerrors.ErrInternal)
	assert.Equal(t, StateClientHello, c.State(), "state must not change on an illegal transition")
}

func TestAdvanceStateWipesBuffer(t *testing.T) {
	_, tr := record.MemoryPipe()
	c := NewConn(RoleClient, tr, quietConfig())
	c.handshake.io.Write([]byte("leftovers"))

	c.handshake.state = StateClientHello
	c.handshake.nextState = StateServerHello
	require.NoError(t, c.advanceState())
	assert.Zero(t, c.handshake.io.Size())
	assert.Equal(t, StateServerHello, c.State())
}

func TestTerminalStateHasNoTransitions(t *testing.T) {
	assert.Empty(t, legalTransitions[StateHandshakeOver])
}

func TestWriterRoles(t *testing.T) {
	clientStates := []State{StateClientHello, StateClientCert, StateClientKey, StateClientCertVerify,
		StateClientChangeCipherSpec, StateClientFinished}
	for _, s := range clientStates {
		assert.EqualValues(t, writerClient, stateMachine[s].writer, "%s", s)
	}
	serverStates := []State{StateServerHello, StateServerCert, StateServerCertStatus, StateServerKey,
		StateServerCertReq, StateServerHelloDone, StateServerChangeCipherSpec, StateServerFinished}
	for _, s := range serverStates {
		assert.EqualValues(t, writerServer, stateMachine[s].writer, "%s", s)
	}
}
