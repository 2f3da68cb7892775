// Outbound handshake message framing and fragmentation.
//
// The per-state handler assembles one message body into the handshake
// buffer behind a reserved header; the fragmenter then pulls payload-sized
// slices into records, hashing each slice into the transcript. A message
// may span several records, but a record never carries more than one
// message. Flush suspensions leave the remaining bytes in place and the
// next call resumes fragmenting where it stopped.
package handshake

import (
	"github.com/gilwalzer/s2n/internal/constants"
	"github.com/gilwalzer/s2n/pkg/protocol"
)

// writeIO emits the current state's message and advances the state once the
// message has been fully framed and flushed.
func (c *Conn) writeIO() error {
	action := c.currentAction()

	if !c.rec.PendingOut() && c.handshake.io.Size() == 0 {
		// Fresh message: reserve the header, let the handler append the
		// body, then finalize the now-known length.
		if action.recordType == protocol.ContentHandshake {
			c.handshake.io.Reserve(constants.HandshakeHeaderSize)
		}
		if err := c.dispatch(); err != nil {
			return err
		}
		if action.recordType == protocol.ContentHandshake {
			body := c.handshake.io.Size() - constants.HandshakeHeaderSize
			protocol.PutHandshakeHeader(
				c.handshake.io.At(0, constants.HandshakeHeaderSize),
				action.messageType, body)
		}
		if c.handshake.io.Size() > c.rec.MaxWritePayloadSize() && c.config.Collector != nil {
			c.config.Collector.MessageFragmented()
		}
	}

	for c.handshake.io.Len() > 0 {
		n := c.rec.MaxWritePayloadSize()
		if n > c.handshake.io.Len() {
			n = c.handshake.io.Len()
		}
		fragment := c.handshake.io.Next(n)

		if action.recordType == protocol.ContentHandshake {
			c.hashes.Write(fragment)
		}
		if err := c.rec.Write(action.recordType, fragment); err != nil {
			return err
		}
		if c.config.Collector != nil {
			c.config.Collector.RecordWritten(len(fragment))
		}
		// A would-block here suspends with the fragment already framed;
		// the drive loop flushes it before re-entering.
		if err := c.rec.Flush(); err != nil {
			return err
		}
	}

	return c.advanceState()
}
