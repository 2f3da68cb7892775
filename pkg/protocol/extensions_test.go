package protocol

import (
	"bytes"
	"testing"

	"golang.org/x/crypto/cryptobyte"

	qerrors "github.com/gilwalzer/s2n/internal/errors"
)

func TestExtensionsRoundTrip(t *testing.T) {
	exts := []Extension{
		{Type: ExtStatusRequest, Data: []byte{1, 0, 0, 0, 0}},
		{Type: ExtRenegotiationInfo, Data: []byte{0}},
		{Type: 0x1234, Data: nil},
	}

	b := cryptobyte.NewBuilder(nil)
	AddExtensions(b, exts)
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := ParseExtensions(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 extensions, got %d", len(got))
	}
	for i := range exts {
		if got[i].Type != exts[i].Type || !bytes.Equal(got[i].Data, exts[i].Data) {
			t.Errorf("extension %d: got %+v, want %+v", i, got[i], exts[i])
		}
	}
}

func TestAddExtensionsEmptyWritesNothing(t *testing.T) {
	b := cryptobyte.NewBuilder(nil)
	AddExtensions(b, nil)
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty output, got %d bytes", len(data))
	}
}

func TestParseExtensionsMalformed(t *testing.T) {
	cases := [][]byte{
		{0x00},                         // truncated list length
		{0x00, 0x04, 0x00, 0x05},       // entry shorter than declared list
		{0x00, 0x02, 0x00, 0x05, 0xFF}, // trailing byte past the list
	}
	for i, data := range cases {
		if _, err := ParseExtensions(data); !qerrors.Is(err, qerrors.ErrBadExtensions) {
			t.Errorf("case %d: expected ErrBadExtensions, got %v", i, err)
		}
	}
}

func TestFindExtension(t *testing.T) {
	exts := []Extension{{Type: ExtStatusRequest, Data: []byte{1}}}
	if _, ok := FindExtension(exts, ExtStatusRequest); !ok {
		t.Error("expected to find status_request")
	}
	if _, ok := FindExtension(exts, ExtSignatureAlgorithms); ok {
		t.Error("did not expect to find signature_algorithms")
	}
}
