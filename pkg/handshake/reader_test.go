package handshake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilwalzer/s2n/internal/constants"
	qerrors "github.com/gilwalzer/s2n/internal/errors"
	"github.com/gilwalzer/s2n/pkg/protocol"
	"github.com/gilwalzer/s2n/pkg/record"
)

// handshakeMessage frames a message type and body with the 4-byte header.
func handshakeMessage(msgType protocol.HandshakeType, body []byte) []byte {
	msg := make([]byte, constants.HandshakeHeaderSize+len(body))
	protocol.PutHandshakeHeader(msg, msgType, len(body))
	copy(msg[constants.HandshakeHeaderSize:], body)
	return msg
}

// frameRecords splits payload into records of the given payload sizes (the
// last size taking any remainder) and returns the wire bytes.
func frameRecords(ct protocol.ContentType, payload []byte, sizes []int) []byte {
	var wire []byte
	offset := 0
	for i, size := range sizes {
		if i == len(sizes)-1 || offset+size > len(payload) {
			size = len(payload) - offset
		}
		chunk := payload[offset : offset+size]
		offset += size
		wire = append(wire, byte(ct), 3, 3, byte(len(chunk)>>8), byte(len(chunk)))
		wire = append(wire, chunk...)
	}
	return wire
}

// serverHelloBody builds a raw ServerHello body byte by byte.
func serverHelloBody(major, minor, sessionIDLen byte, suite uint16, compression byte, trailing []byte) []byte {
	body := []byte{major, minor}
	random := make([]byte, constants.RandomSize)
	for i := range random {
		random[i] = byte(i + 1)
	}
	body = append(body, random...)
	body = append(body, sessionIDLen)
	body = append(body, make([]byte, sessionIDLen)...)
	body = append(body, byte(suite>>8), byte(suite))
	body = append(body, compression)
	return append(body, trailing...)
}

// clientAwaitingServerHello sends the ClientHello and leaves the client
// blocked on read.
func clientAwaitingServerHello(t *testing.T) (*Conn, *record.MemoryTransport) {
	t.Helper()
	clientTr, serverTr := record.MemoryPipe()
	client := NewConn(RoleClient, clientTr, quietConfig())

	blocked, err := client.Negotiate(context.Background())
	require.NoError(t, err)
	require.Equal(t, BlockedOnRead, blocked)
	require.Equal(t, StateServerHello, client.State())
	return client, serverTr
}

func TestServerHelloAcrossThreeRecords(t *testing.T) {
	client, serverTr := clientAwaitingServerHello(t)

	body := serverHelloBody(3, 3, 0, uint16(protocol.TLS_RSA_WITH_AES_128_GCM_SHA256), 0, nil)
	msg := handshakeMessage(protocol.TypeServerHello, body)
	serverTr.Write(frameRecords(protocol.ContentHandshake, msg, []int{5, 5, len(msg)}))

	blocked, err := client.Negotiate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BlockedOnRead, blocked)
	assert.Equal(t, StateServerCert, client.State())

	version, established := client.ActualProtocolVersion()
	assert.True(t, established)
	assert.Equal(t, protocol.VersionTLS12, version)
	assert.Equal(t, protocol.TLS_RSA_WITH_AES_128_GCM_SHA256, client.CipherSuite())
	assert.EqualValues(t, 1, client.pending.serverRandom[0])
}

func TestRefragmentationInvariance(t *testing.T) {
	body := serverHelloBody(3, 3, 0, uint16(protocol.TLS_RSA_WITH_AES_128_GCM_SHA256), 0, nil)
	msg := handshakeMessage(protocol.TypeServerHello, body)

	splits := [][]int{
		{len(msg)},
		{5, 5, len(msg)},
		{7, len(msg)},
		{1, 1, 1, 1, len(msg)},
		{3, 2, 4, 6, len(msg)},
	}

	var randoms [][constants.RandomSize]byte
	for _, split := range splits {
		client, serverTr := clientAwaitingServerHello(t)
		serverTr.Write(frameRecords(protocol.ContentHandshake, msg, split))

		_, err := client.Negotiate(context.Background())
		require.NoError(t, err, "split %v", split)
		require.Equal(t, StateServerCert, client.State(), "split %v", split)
		randoms = append(randoms, client.pending.serverRandom)
	}
	for i := 1; i < len(randoms); i++ {
		assert.Equal(t, randoms[0], randoms[i], "split %d diverged", i)
	}
}

func TestByteAtATimeRefragmentation(t *testing.T) {
	client, serverTr := clientAwaitingServerHello(t)

	body := serverHelloBody(3, 3, 0, uint16(protocol.TLS_RSA_WITH_AES_128_GCM_SHA256), 0, nil)
	msg := handshakeMessage(protocol.TypeServerHello, body)

	sizes := make([]int, len(msg))
	for i := range sizes {
		sizes[i] = 1
	}
	serverTr.Write(frameRecords(protocol.ContentHandshake, msg, sizes))

	_, err := client.Negotiate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateServerCert, client.State())
}

func TestServerHelloVersionAboveMaximum(t *testing.T) {
	client, serverTr := clientAwaitingServerHello(t)

	body := serverHelloBody(3, 4, 0, uint16(protocol.TLS_RSA_WITH_AES_128_GCM_SHA256), 0, nil)
	msg := handshakeMessage(protocol.TypeServerHello, body)
	serverTr.Write(frameRecords(protocol.ContentHandshake, msg, []int{len(msg)}))

	_, err := client.Negotiate(context.Background())
	assert.ErrorIs(t, err, qerrors.ErrBadVersion)
	assert.True(t, client.Closed())
}

func TestServerHelloSessionIDTooLong(t *testing.T) {
	client, serverTr := clientAwaitingServerHello(t)

	body := serverHelloBody(3, 3, 33, uint16(protocol.TLS_RSA_WITH_AES_128_GCM_SHA256), 0, nil)
	msg := handshakeMessage(protocol.TypeServerHello, body)
	serverTr.Write(frameRecords(protocol.ContentHandshake, msg, []int{len(msg)}))

	_, err := client.Negotiate(context.Background())
	assert.ErrorIs(t, err, qerrors.ErrBadSessionID)
}

func TestServerHelloNonzeroCompression(t *testing.T) {
	client, serverTr := clientAwaitingServerHello(t)

	body := serverHelloBody(3, 3, 0, uint16(protocol.TLS_RSA_WITH_AES_128_GCM_SHA256), 1, nil)
	msg := handshakeMessage(protocol.TypeServerHello, body)
	serverTr.Write(frameRecords(protocol.ContentHandshake, msg, []int{len(msg)}))

	_, err := client.Negotiate(context.Background())
	assert.ErrorIs(t, err, qerrors.ErrBadCompression)
}

func TestServerHelloTrailingByteTolerated(t *testing.T) {
	client, serverTr := clientAwaitingServerHello(t)

	body := serverHelloBody(3, 3, 0, uint16(protocol.TLS_RSA_WITH_AES_128_GCM_SHA256), 0, []byte{0x00})
	msg := handshakeMessage(protocol.TypeServerHello, body)
	serverTr.Write(frameRecords(protocol.ContentHandshake, msg, []int{len(msg)}))

	_, err := client.Negotiate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateServerCert, client.State())
}

func TestApplicationDataDuringHandshake(t *testing.T) {
	client, serverTr := clientAwaitingServerHello(t)

	var slept time.Duration
	client.config.Sleep = func(d time.Duration) { slept = d }

	serverTr.Write(frameRecords(protocol.ContentApplicationData, []byte{0xFF}, []int{1}))

	_, err := client.Negotiate(context.Background())
	assert.ErrorIs(t, err, qerrors.ErrBadMessage)
	assert.True(t, client.Closed())
	// Read-path failures apply the uniform delay.
	assert.Equal(t, readErrorDelay, slept)
}

func TestWarningAlertBetweenFlights(t *testing.T) {
	client, serverTr := clientAwaitingServerHello(t)

	// A warning alert first, split across two records for good measure.
	alert := []byte{byte(protocol.AlertLevelWarning), byte(protocol.AlertNoRenegotiation)}
	serverTr.Write(frameRecords(protocol.ContentAlert, alert, []int{1, 1}))

	blocked, err := client.Negotiate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BlockedOnRead, blocked)
	assert.Equal(t, StateServerHello, client.State(), "alert must not change state")

	// The next record is processed normally.
	body := serverHelloBody(3, 3, 0, uint16(protocol.TLS_RSA_WITH_AES_128_GCM_SHA256), 0, nil)
	msg := handshakeMessage(protocol.TypeServerHello, body)
	serverTr.Write(frameRecords(protocol.ContentHandshake, msg, []int{len(msg)}))

	_, err = client.Negotiate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateServerCert, client.State())
}

func TestFatalAlertClosesConnection(t *testing.T) {
	client, serverTr := clientAwaitingServerHello(t)

	alert := []byte{byte(protocol.AlertLevelFatal), byte(protocol.AlertHandshakeFailure)}
	serverTr.Write(frameRecords(protocol.ContentAlert, alert, []int{len(alert)}))

	_, err := client.Negotiate(context.Background())
	assert.ErrorIs(t, err, qerrors.ErrAlert)
	assert.True(t, client.Closed())
}

func TestCloseNotifyClosesConnection(t *testing.T) {
	client, serverTr := clientAwaitingServerHello(t)

	alert := []byte{byte(protocol.AlertLevelWarning), byte(protocol.AlertCloseNotify)}
	serverTr.Write(frameRecords(protocol.ContentAlert, alert, []int{len(alert)}))

	_, err := client.Negotiate(context.Background())
	assert.ErrorIs(t, err, qerrors.ErrClosed)
}

func TestUnknownContentTypeIgnored(t *testing.T) {
	client, serverTr := clientAwaitingServerHello(t)

	serverTr.Write(frameRecords(protocol.ContentType(99), []byte{1, 2, 3}, []int{3}))

	body := serverHelloBody(3, 3, 0, uint16(protocol.TLS_RSA_WITH_AES_128_GCM_SHA256), 0, nil)
	msg := handshakeMessage(protocol.TypeServerHello, body)
	serverTr.Write(frameRecords(protocol.ContentHandshake, msg, []int{len(msg)}))

	_, err := client.Negotiate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateServerCert, client.State())
}

func TestUnexpectedMessageType(t *testing.T) {
	client, serverTr := clientAwaitingServerHello(t)

	// A Certificate where a ServerHello is expected.
	msg := handshakeMessage(protocol.TypeCertificate, []byte{0, 0, 0})
	serverTr.Write(frameRecords(protocol.ContentHandshake, msg, []int{len(msg)}))

	_, err := client.Negotiate(context.Background())
	assert.ErrorIs(t, err, qerrors.ErrUnexpectedMessage)
}

func TestChangeCipherSpecWrongLength(t *testing.T) {
	server, peer := serverInState(t, StateClientChangeCipherSpec)
	peer.Write(frameRecords(protocol.ContentChangeCipherSpec, []byte{1, 1}, []int{2}))

	_, err := server.Negotiate(context.Background())
	assert.ErrorIs(t, err, qerrors.ErrBadMessage)
}

func TestChangeCipherSpecEmptyRecord(t *testing.T) {
	server, peer := serverInState(t, StateClientChangeCipherSpec)
	peer.Write(frameRecords(protocol.ContentChangeCipherSpec, nil, []int{0}))

	_, err := server.Negotiate(context.Background())
	assert.ErrorIs(t, err, qerrors.ErrBadMessage)
}

func TestChangeCipherSpecWrongValue(t *testing.T) {
	server, peer := serverInState(t, StateClientChangeCipherSpec)
	peer.Write(frameRecords(protocol.ContentChangeCipherSpec, []byte{2}, []int{1}))

	_, err := server.Negotiate(context.Background())
	assert.ErrorIs(t, err, qerrors.ErrBadMessage)
}

func TestOversizedHandshakeMessageRejected(t *testing.T) {
	client, serverTr := clientAwaitingServerHello(t)

	// A header declaring a body beyond the reassembly cap.
	hdr := make([]byte, constants.HandshakeHeaderSize)
	protocol.PutHandshakeHeader(hdr, protocol.TypeServerHello, constants.MaxHandshakeMessageSize+1)
	serverTr.Write(frameRecords(protocol.ContentHandshake, hdr, []int{len(hdr)}))

	_, err := client.Negotiate(context.Background())
	assert.ErrorIs(t, err, qerrors.ErrMessageTooLarge)
}

func TestSSLv2ClientHelloAccepted(t *testing.T) {
	clientTr, serverTr := record.MemoryPipe()
	server := NewConn(RoleServer, serverTr, serverTestConfig(t))

	// SSLv2 record: cipher specs offering 0xC02F and 0x009C, no session id,
	// 16-byte challenge.
	body := []byte{
		0x00, 0x06, // cipher specs length
		0x00, 0x00, // session id length
		0x00, 0x10, // challenge length
		0x00, 0xC0, 0x2F,
		0x00, 0x00, 0x9C,
	}
	challenge := make([]byte, 16)
	for i := range challenge {
		challenge[i] = byte(i)
	}
	body = append(body, challenge...)

	length := len(body) + 3
	header := []byte{0x80 | byte(length>>8), byte(length), 0x01, 0x03, 0x03}
	clientTr.Write(append(header, body...))

	blocked, err := server.Negotiate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BlockedOnRead, blocked)
	assert.Equal(t, protocol.VersionTLS12, server.ClientProtocolVersion())
	// The server has emitted its flight and waits for the client's.
	assert.Equal(t, StateClientKey, server.State())
	assert.Equal(t, protocol.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, server.CipherSuite())
}

// serverInState builds a server connection advanced by hand to the given
// state and returns the peer transport endpoint for injecting records.
func serverInState(t *testing.T, s State) (*Conn, *record.MemoryTransport) {
	t.Helper()
	peerTr, serverTr := record.MemoryPipe()
	server := NewConn(RoleServer, serverTr, serverTestConfig(t))
	server.handshake.state = s
	server.handshake.nextState = s
	return server, peerTr
}
