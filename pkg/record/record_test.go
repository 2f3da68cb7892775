package record

import (
	"bytes"
	"testing"

	"github.com/gilwalzer/s2n/internal/constants"
	qerrors "github.com/gilwalzer/s2n/internal/errors"
	"github.com/gilwalzer/s2n/pkg/protocol"
)

func TestWriteFlushFrames(t *testing.T) {
	a, b := MemoryPipe()
	layer := NewLayer(a)
	layer.SetVersion(protocol.VersionTLS12)

	payload := []byte("handshake bytes")
	if err := layer.Write(protocol.ContentHandshake, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := layer.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	wire := make([]byte, 256)
	n, err := b.Read(wire)
	if err != nil {
		t.Fatalf("read wire: %v", err)
	}
	wire = wire[:n]

	if wire[0] != byte(protocol.ContentHandshake) {
		t.Errorf("content type: %d", wire[0])
	}
	if wire[1] != 3 || wire[2] != 3 {
		t.Errorf("record version: %d.%d", wire[1], wire[2])
	}
	if int(wire[3])<<8|int(wire[4]) != len(payload) {
		t.Errorf("length field: %d", int(wire[3])<<8|int(wire[4]))
	}
	if !bytes.Equal(wire[5:], payload) {
		t.Errorf("payload: %q", wire[5:])
	}
}

func TestReadFullRecordRoundTrip(t *testing.T) {
	a, b := MemoryPipe()
	sender := NewLayer(a)
	receiver := NewLayer(b)

	payload := []byte{1, 2, 3, 4, 5}
	sender.Write(protocol.ContentAlert, payload)
	if err := sender.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	ct, sslv2, err := receiver.ReadFullRecord()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ct != protocol.ContentAlert || sslv2 {
		t.Errorf("got (%s, %v)", ct, sslv2)
	}
	if !bytes.Equal(receiver.In().Bytes(), payload) {
		t.Errorf("payload: %v", receiver.In().Bytes())
	}
}

func TestReadFullRecordPartialDelivery(t *testing.T) {
	a, b := MemoryPipe()
	b.SetReadChunk(2) // deliver the record two bytes at a time

	sender := NewLayer(a)
	receiver := NewLayer(b)

	payload := bytes.Repeat([]byte{0xCC}, 31)
	sender.Write(protocol.ContentHandshake, payload)
	sender.Flush()

	ct, _, err := receiver.ReadFullRecord()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ct != protocol.ContentHandshake {
		t.Errorf("content type: %s", ct)
	}
	if !bytes.Equal(receiver.In().Bytes(), payload) {
		t.Errorf("payload mismatch")
	}
}

func TestReadFullRecordWouldBlockResumes(t *testing.T) {
	a, b := MemoryPipe()
	receiver := NewLayer(b)

	// Nothing delivered yet.
	if _, _, err := receiver.ReadFullRecord(); !qerrors.Is(err, qerrors.ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}

	// Deliver only part of the header.
	a.Write([]byte{byte(protocol.ContentHandshake), 3, 1})
	if _, _, err := receiver.ReadFullRecord(); !qerrors.Is(err, qerrors.ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock mid-header, got %v", err)
	}

	// Complete the header, deliver part of the payload.
	a.Write([]byte{0, 4, 0xAA, 0xBB})
	if _, _, err := receiver.ReadFullRecord(); !qerrors.Is(err, qerrors.ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock mid-payload, got %v", err)
	}

	a.Write([]byte{0xCC, 0xDD})
	ct, _, err := receiver.ReadFullRecord()
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if ct != protocol.ContentHandshake {
		t.Errorf("content type: %s", ct)
	}
	if !bytes.Equal(receiver.In().Bytes(), []byte{0xAA, 0xBB, 0xCC, 0xDD}) {
		t.Errorf("payload: %v", receiver.In().Bytes())
	}
}

func TestFlushWouldBlockResumes(t *testing.T) {
	a, b := MemoryPipe()
	a.SetWriteBudget(7) // less than header + payload

	layer := NewLayer(a)
	payload := []byte("0123456789")
	layer.Write(protocol.ContentHandshake, payload)

	if err := layer.Flush(); !qerrors.Is(err, qerrors.ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}
	if !layer.PendingOut() {
		t.Fatal("bytes must stay queued across the suspension")
	}

	a.AddWriteBudget(1000)
	if err := layer.Flush(); err != nil {
		t.Fatalf("resumed flush: %v", err)
	}
	if layer.PendingOut() {
		t.Error("egress must be drained after resume")
	}

	wire := make([]byte, 64)
	n, _ := b.Read(wire)
	if !bytes.Equal(wire[5:n], payload) {
		t.Errorf("delivered payload: %q", wire[5:n])
	}
}

func TestReadSSLv2Header(t *testing.T) {
	a, b := MemoryPipe()
	receiver := NewLayer(b)

	body := []byte{0x00, 0x03, 0x00, 0x00, 0x00, 0x10} // truncated hello, framing only
	length := len(body) + 3
	a.Write([]byte{0x80 | byte(length>>8), byte(length), 0x01, 0x03, 0x03})
	a.Write(body)

	ct, sslv2, err := receiver.ReadFullRecord()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !sslv2 {
		t.Fatal("expected sslv2 framing")
	}
	if ct != protocol.ContentHandshake {
		t.Errorf("content type: %s", ct)
	}
	hdr := receiver.HeaderIn().All()
	if hdr[2] != 0x01 || hdr[3] != 3 || hdr[4] != 3 {
		t.Errorf("preserved header bytes: %x", hdr)
	}
	if receiver.In().Len() != len(body) {
		t.Errorf("payload length: %d", receiver.In().Len())
	}
}

func TestSSLv2OnlyFirstRecord(t *testing.T) {
	a, b := MemoryPipe()
	receiver := NewLayer(b)

	// A normal record first.
	sender := NewLayer(a)
	sender.Write(protocol.ContentHandshake, []byte{1})
	sender.Flush()
	if _, sslv2, err := receiver.ReadFullRecord(); err != nil || sslv2 {
		t.Fatalf("first record: sslv2=%v err=%v", sslv2, err)
	}

	// A high bit in the content type position is no longer SSLv2 framing.
	a.Write([]byte{0x80, 0x05, 0x01, 0x00, 0x00})
	ct, sslv2, err := receiver.ReadFullRecord()
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if sslv2 {
		t.Error("sslv2 framing must only apply to the first record")
	}
	if ct != protocol.ContentType(0x80) {
		t.Errorf("content type: %d", ct)
	}
}

func TestOversizedRecordRejected(t *testing.T) {
	a, b := MemoryPipe()
	receiver := NewLayer(b)

	length := constants.MaxFragmentSize + 1
	a.Write([]byte{byte(protocol.ContentHandshake), 3, 3, byte(length >> 8), byte(length)})
	if _, _, err := receiver.ReadFullRecord(); !qerrors.Is(err, qerrors.ErrBadMessage) {
		t.Errorf("expected ErrBadMessage, got %v", err)
	}
}

func TestReadClosedTransport(t *testing.T) {
	a, b := MemoryPipe()
	receiver := NewLayer(b)

	a.Close()
	if _, _, err := receiver.ReadFullRecord(); !qerrors.Is(err, qerrors.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestWriteOversizedPayloadRejected(t *testing.T) {
	a, _ := MemoryPipe()
	layer := NewLayer(a)
	if err := layer.Write(protocol.ContentHandshake, make([]byte, constants.MaxFragmentSize+1)); err == nil {
		t.Error("expected error for oversized payload")
	}
}
