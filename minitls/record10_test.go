package minitls

import (
	"bytes"
	"io"
	"testing"
)

func TestSplitRecordsRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{0x01},
		bytes.Repeat([]byte{0xab}, 300),
		{},
	}
	types := []uint8{recordTypeHandshake, recordTypeApplicationData, recordTypeChangeCipherSpec}

	var wire []byte
	for i, p := range payloads {
		wire = append(wire, assembleRecord(types[i], p)...)
	}

	records, err := splitRecords(wire)
	if err != nil {
		t.Fatalf("splitRecords failed: %v", err)
	}
	if len(records) != len(payloads) {
		t.Fatalf("record count: got %d, want %d", len(records), len(payloads))
	}
	for i, rec := range records {
		if rec.typ != types[i] {
			t.Errorf("record %d type: got %d, want %d", i, rec.typ, types[i])
		}
		if rec.version != VersionTLS10 {
			t.Errorf("record %d version: got 0x%04x, want 0x%04x", i, rec.version, VersionTLS10)
		}
		if !bytes.Equal(rec.fragment, payloads[i]) {
			t.Errorf("record %d fragment mismatch", i)
		}
	}
}

func TestSplitRecordsErrors(t *testing.T) {
	testCases := []struct {
		name string
		wire []byte
		kind ErrorKind
	}{
		{
			name: "truncated header",
			wire: []byte{recordTypeHandshake, 3, 1},
			kind: ErrorUnexpectedFragment,
		},
		{
			name: "declared length exceeds input",
			wire: []byte{recordTypeHandshake, 3, 1, 0x01, 0x00, 0xaa},
			kind: ErrorUnexpectedFragment,
		},
		{
			name: "invalid record type",
			wire: []byte{99, 3, 1, 0, 1, 0xaa},
			kind: ErrorProtocol,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := splitRecords(tc.wire)
			if err == nil {
				t.Fatal("expected error")
			}
			kind, ok := ErrorKindOf(err)
			if !ok || kind != tc.kind {
				t.Errorf("error kind: got %v, want %v", kind, tc.kind)
			}
		})
	}
}

// chunkedReader returns at most n bytes per Read to exercise reassembly.
type chunkedReader struct {
	data []byte
	n    int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.n
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func TestRecordReaderReassembly(t *testing.T) {
	first := assembleRecord(recordTypeHandshake, bytes.Repeat([]byte{0x11}, 700))
	second := assembleRecord(recordTypeApplicationData, []byte("payload"))
	stream := append(append([]byte(nil), first...), second...)

	reader := NewRecordReader(&chunkedReader{data: stream, n: 3})

	raw1, err := reader.ReadRecord()
	if err != nil {
		t.Fatalf("first ReadRecord: %v", err)
	}
	if !bytes.Equal(raw1, first) {
		t.Error("first record bytes mismatch")
	}

	raw2, err := reader.ReadRecord()
	if err != nil {
		t.Fatalf("second ReadRecord: %v", err)
	}
	if !bytes.Equal(raw2, second) {
		t.Error("second record bytes mismatch")
	}
}
