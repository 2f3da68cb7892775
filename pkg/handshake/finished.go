// ChangeCipherSpec and Finished handlers.
//
// The peer's expected verify_data is computed when its ChangeCipherSpec
// arrives: at that point the transcript holds everything up to, and
// excluding, the peer's Finished message, which is exactly what that
// Finished authenticates.
package handshake

import (
	"fmt"

	"github.com/gilwalzer/s2n/internal/constants"
	qerrors "github.com/gilwalzer/s2n/internal/errors"
	s2ncrypto "github.com/gilwalzer/s2n/pkg/crypto"
)

// ccsValue is the single legal ChangeCipherSpec payload byte.
const ccsValue = 1

// sendClientCCS activates the client's pending write cipher.
func (c *Conn) sendClientCCS() error {
	c.handshake.io.WriteByte(ccsValue)
	c.outStatus = StatusEncrypted
	c.handshake.nextState = StateClientFinished
	return nil
}

// recvClientCCS activates the server's pending read cipher and precomputes
// the client's expected verify_data.
func (c *Conn) recvClientCCS() error {
	if err := c.consumeCCSByte(); err != nil {
		return err
	}
	c.inStatus = StatusEncrypted
	c.pending.expectedFinished = s2ncrypto.FinishedVerifyData(
		c.actualProtocolVersion, c.pending.masterSecret,
		s2ncrypto.LabelClientFinished, c.hashes.clientDigest(c.actualProtocolVersion))
	c.handshake.nextState = StateClientFinished
	return nil
}

// sendServerCCS activates the server's pending write cipher.
func (c *Conn) sendServerCCS() error {
	c.handshake.io.WriteByte(ccsValue)
	c.outStatus = StatusEncrypted
	c.handshake.nextState = StateServerFinished
	return nil
}

// recvServerCCS activates the client's pending read cipher and precomputes
// the server's expected verify_data.
func (c *Conn) recvServerCCS() error {
	if err := c.consumeCCSByte(); err != nil {
		return err
	}
	c.inStatus = StatusEncrypted
	c.pending.expectedFinished = s2ncrypto.FinishedVerifyData(
		c.actualProtocolVersion, c.pending.masterSecret,
		s2ncrypto.LabelServerFinished, c.hashes.serverDigest(c.actualProtocolVersion))
	c.handshake.nextState = StateServerFinished
	return nil
}

// consumeCCSByte drains and validates the one-byte record payload. The
// reader has already checked the record length.
func (c *Conn) consumeCCSByte() error {
	b, err := c.rec.In().ReadByte()
	if err != nil {
		return fmt.Errorf("%w: empty change_cipher_spec", qerrors.ErrBadMessage)
	}
	if b != ccsValue {
		return fmt.Errorf("%w: change_cipher_spec value %d", qerrors.ErrBadMessage, b)
	}
	return nil
}

// sendClientFinished emits the client verify_data over the transcript up to
// this message.
func (c *Conn) sendClientFinished() error {
	verify := s2ncrypto.FinishedVerifyData(
		c.actualProtocolVersion, c.pending.masterSecret,
		s2ncrypto.LabelClientFinished, c.hashes.clientDigest(c.actualProtocolVersion))
	c.handshake.io.Write(verify)
	c.handshake.nextState = StateServerChangeCipherSpec
	return nil
}

// recvClientFinished verifies the client's verify_data in constant time.
func (c *Conn) recvClientFinished() error {
	if err := c.checkFinished(); err != nil {
		return err
	}
	c.handshake.nextState = StateServerChangeCipherSpec
	return nil
}

// sendServerFinished emits the server verify_data, completing the handshake.
func (c *Conn) sendServerFinished() error {
	verify := s2ncrypto.FinishedVerifyData(
		c.actualProtocolVersion, c.pending.masterSecret,
		s2ncrypto.LabelServerFinished, c.hashes.serverDigest(c.actualProtocolVersion))
	c.handshake.io.Write(verify)
	c.handshake.nextState = StateHandshakeOver
	return nil
}

// recvServerFinished verifies the server's verify_data, completing the
// handshake.
func (c *Conn) recvServerFinished() error {
	if err := c.checkFinished(); err != nil {
		return err
	}
	c.handshake.nextState = StateHandshakeOver
	return nil
}

// checkFinished compares the received verify_data against the value
// precomputed at ChangeCipherSpec.
func (c *Conn) checkFinished() error {
	body := c.messageBody()
	if len(body) != constants.FinishedVerifySize {
		return fmt.Errorf("%w: finished body of %d bytes", qerrors.ErrBadFinished, len(body))
	}
	if len(c.pending.expectedFinished) != constants.FinishedVerifySize {
		return fmt.Errorf("%w: finished before change_cipher_spec", qerrors.ErrInternal)
	}
	if !s2ncrypto.ConstantTimeCompare(body, c.pending.expectedFinished) {
		return qerrors.ErrBadFinished
	}
	return nil
}
