// Inbound record demultiplexing and handshake message reassembly.
//
// A record may carry a partial handshake header, a message fragment, one
// message, or several concatenated messages; alerts and ChangeCipherSpec
// arrive as their own content types interleaved with handshake records. The
// reassembler accumulates exactly one logical message in the handshake
// buffer before dispatching it, however the peer fragmented it.
package handshake

import (
	"fmt"

	"github.com/gilwalzer/s2n/internal/constants"
	qerrors "github.com/gilwalzer/s2n/internal/errors"
	"github.com/gilwalzer/s2n/pkg/metrics"
	"github.com/gilwalzer/s2n/pkg/protocol"
)

// readIO consumes one inbound record, dispatching per content type.
// ErrWouldBlock propagates when the transport has no complete record yet;
// partial reassembly state survives the suspension.
func (c *Conn) readIO() error {
	if !c.recPending {
		contentType, sslv2, err := c.rec.ReadFullRecord()
		if err != nil {
			return err
		}
		c.curContentType = contentType
		c.curSSLv2 = sslv2
		c.recPending = true
		if c.config.Collector != nil {
			c.config.Collector.RecordRead(c.rec.In().Len())
		}
	}

	switch c.curContentType {
	case protocol.ContentApplicationData:
		// Renegotiation is not supported: application data can only appear
		// mid-handshake if the peer believes the handshake is over.
		return fmt.Errorf("%w: application data during handshake", qerrors.ErrUnexpectedMessage)

	case protocol.ContentAlert:
		return c.processAlertFragments()

	case protocol.ContentChangeCipherSpec:
		return c.readChangeCipherSpec()

	case protocol.ContentHandshake:
		return c.readHandshakeRecord()

	default:
		c.log.Debug("ignoring record with unknown content type",
			metrics.Fields{"content_type": uint8(c.curContentType)})
		c.finishRecord()
		return nil
	}
}

// readChangeCipherSpec validates and dispatches a ChangeCipherSpec record.
// The record must contain exactly one byte.
func (c *Conn) readChangeCipherSpec() error {
	if c.currentAction().recordType != protocol.ContentChangeCipherSpec {
		return fmt.Errorf("%w: change_cipher_spec in state %s", qerrors.ErrUnexpectedMessage, c.handshake.state)
	}
	if c.rec.In().Len() != constants.ChangeCipherSpecLen {
		return fmt.Errorf("%w: change_cipher_spec record of %d bytes", qerrors.ErrBadMessage, c.rec.In().Len())
	}
	if err := c.dispatch(); err != nil {
		return err
	}
	c.finishRecord()
	return c.advanceState()
}

// readHandshakeRecord reassembles and dispatches handshake messages from the
// current record until the record is drained or a message is incomplete.
func (c *Conn) readHandshakeRecord() error {
	if c.curSSLv2 {
		return c.readSSLv2Hello()
	}

	in := c.rec.In()
	for in.Len() > 0 {
		action := c.currentAction()
		if action.recordType != protocol.ContentHandshake {
			return fmt.Errorf("%w: handshake record in state %s", qerrors.ErrUnexpectedMessage, c.handshake.state)
		}
		if action.writer == c.roleWriter() || action.writer == writerBoth {
			return fmt.Errorf("%w: peer data while %s writes", qerrors.ErrUnexpectedMessage, c.handshake.state)
		}

		ready, err := c.readHandshakeMessage()
		if err != nil {
			return err
		}
		if !ready {
			// NEED_MORE: the rest of the message is in a later record.
			break
		}

		messageType, _, err := protocol.ParseHandshakeHeader(c.handshake.io.At(0, constants.HandshakeHeaderSize))
		if err != nil {
			return err
		}
		if messageType != action.messageType {
			return fmt.Errorf("%w: got %s, want %s", qerrors.ErrUnexpectedMessage, messageType, action.messageType)
		}

		if err := c.dispatch(); err != nil {
			return err
		}
		if err := c.advanceState(); err != nil {
			return err
		}
	}
	c.finishRecord()
	return nil
}

// readHandshakeMessage accumulates record bytes into the handshake buffer.
// It returns true once one complete message (header and body) is present
// and has been fed to the transcript hashes, false when more records are
// needed.
func (c *Conn) readHandshakeMessage() (bool, error) {
	hio := c.handshake.io
	in := c.rec.In()

	if hio.Size() > 0 && in.Len() > 0 {
		// Continuing a message started in an earlier record.
		c.msgFragmented = true
	}

	// Complete the four header bytes first; a record may end mid-header.
	if hio.Size() < constants.HandshakeHeaderSize {
		hio.Write(in.Next(constants.HandshakeHeaderSize - hio.Size()))
		if hio.Size() < constants.HandshakeHeaderSize {
			return false, nil
		}
	}

	_, length, err := protocol.ParseHandshakeHeader(hio.At(0, constants.HandshakeHeaderSize))
	if err != nil {
		return false, err
	}

	remaining := constants.HandshakeHeaderSize + length - hio.Size()
	hio.Write(in.Next(remaining))

	if hio.Size() < constants.HandshakeHeaderSize+length {
		hio.Rewind()
		return false, nil
	}

	c.hashes.Write(hio.All())
	if c.msgFragmented && c.config.Collector != nil {
		c.config.Collector.MessageFragmented()
	}
	return true, nil
}

// readSSLv2Hello handles an SSLv2-framed ClientHello, legal only as the
// very first message a server reads. The record layer preserved the
// message type and version bytes in the header buffer; those three bytes
// plus the whole body enter the transcript.
func (c *Conn) readSSLv2Hello() error {
	if c.handshake.state != StateClientHello || c.mode != RoleServer {
		return fmt.Errorf("%w: sslv2 record outside initial client hello", qerrors.ErrUnexpectedMessage)
	}

	header := c.rec.HeaderIn().All()
	if protocol.HandshakeType(header[2]) != protocol.TypeClientHello {
		return fmt.Errorf("%w: sslv2 message type %d", qerrors.ErrBadMessage, header[2])
	}

	c.hashes.Write(header[2:constants.SSLv2RecordHeaderSize])
	in := c.rec.In()
	c.handshake.io.Write(in.Next(in.Len()))
	c.hashes.Write(c.handshake.io.All())

	if c.config.Collector != nil {
		c.config.Collector.SSLv2Compat()
	}

	if err := c.recvSSLv2ClientHello(header[3], header[4]); err != nil {
		return qerrors.NewHandshakeError(c.handshake.state.String(), err)
	}
	c.finishRecord()
	return c.advanceState()
}

// processAlertFragments reassembles two-byte alerts, which the peer may
// split across records. Warning alerts are logged and dropped; fatal alerts
// and close_notify end the connection.
func (c *Conn) processAlertFragments() error {
	in := c.rec.In()
	for in.Len() > 0 {
		c.alertIn.Write(in.Next(constants.AlertSize - c.alertIn.Size()))
		if c.alertIn.Size() < constants.AlertSize {
			break
		}

		alert := protocol.ParseAlert(c.alertIn.All())
		c.alertIn.Wipe()
		if c.config.Collector != nil {
			c.config.Collector.AlertReceived()
		}

		if alert.IsFatal() {
			c.finishRecord()
			c.closed = true
			if alert.Description == protocol.AlertCloseNotify {
				return fmt.Errorf("%w: close_notify", qerrors.ErrClosed)
			}
			return fmt.Errorf("%w: %s", qerrors.ErrAlert, alert)
		}
		c.log.Debug("ignoring warning alert", metrics.Fields{"alert": alert.String()})
	}
	c.finishRecord()
	return nil
}
