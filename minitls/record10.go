package minitls

import (
	"encoding/binary"
	"fmt"
	"io"
)

// TLS 1.0 Record Layer framing
// Based on RFC 2246 Section 6.2

// record is one parsed record layer unit: a 5-byte header followed by the
// (possibly encrypted) fragment.
type record struct {
	typ      uint8
	version  uint16
	fragment []byte
}

// splitRecords cuts a buffer into complete records. The fragments alias the
// input buffer; callers that retain them must copy. A record whose declared
// length runs past the end of the buffer is ErrorUnexpectedFragment: the
// engine does not buffer partial records, reassembly is the transport's job.
func splitRecords(buf []byte) ([]record, error) {
	var records []record
	for len(buf) > 0 {
		if len(buf) < recordHeaderLen {
			return nil, unexpectedFragmentError("truncated record header: %d bytes", len(buf))
		}
		typ := buf[0]
		if typ < recordTypeChangeCipherSpec || typ > recordTypeApplicationData {
			return nil, protocolError("invalid record type: %d", typ)
		}
		version := binary.BigEndian.Uint16(buf[1:3])
		length := int(binary.BigEndian.Uint16(buf[3:5]))
		if len(buf) < recordHeaderLen+length {
			return nil, unexpectedFragmentError("record declares %d bytes, %d available", length, len(buf)-recordHeaderLen)
		}
		records = append(records, record{
			typ:      typ,
			version:  version,
			fragment: buf[recordHeaderLen : recordHeaderLen+length],
		})
		buf = buf[recordHeaderLen+length:]
	}
	return records, nil
}

// assembleRecord prepends a record header to a fragment. The version written
// is always {3, 1}.
func assembleRecord(typ uint8, fragment []byte) []byte {
	out := make([]byte, recordHeaderLen+len(fragment))
	out[0] = typ
	binary.BigEndian.PutUint16(out[1:3], VersionTLS10)
	binary.BigEndian.PutUint16(out[3:5], uint16(len(fragment)))
	copy(out[recordHeaderLen:], fragment)
	return out
}

// RecordReader reassembles complete TLS records from a byte stream so hosts
// can feed the engine whole records. The engine itself never sees a partial
// record.
type RecordReader struct {
	conn   io.Reader
	buffer []byte
}

// NewRecordReader creates a record reader over a transport stream.
func NewRecordReader(conn io.Reader) *RecordReader {
	return &RecordReader{
		conn:   conn,
		buffer: make([]byte, 0, 8192),
	}
}

// ReadRecord reads one complete record and returns its raw bytes, header
// included, ready to hand to Engine.Handle.
func (r *RecordReader) ReadRecord() ([]byte, error) {
	for len(r.buffer) < recordHeaderLen {
		if err := r.fill(); err != nil {
			return nil, fmt.Errorf("failed to read record header: %w", err)
		}
	}

	typ := r.buffer[0]
	if typ < recordTypeChangeCipherSpec || typ > recordTypeApplicationData {
		return nil, fmt.Errorf("invalid TLS record type: %d", typ)
	}
	length := int(binary.BigEndian.Uint16(r.buffer[3:5]))
	if length > maxRecordLength {
		return nil, fmt.Errorf("record too large: %d bytes", length)
	}

	total := recordHeaderLen + length
	for len(r.buffer) < total {
		if err := r.fill(); err != nil {
			return nil, fmt.Errorf("failed to read record fragment: %w", err)
		}
	}

	raw := make([]byte, total)
	copy(raw, r.buffer[:total])
	r.buffer = r.buffer[total:]
	return raw, nil
}

func (r *RecordReader) fill() error {
	readBuf := make([]byte, 4096)
	n, err := r.conn.Read(readBuf)
	if n > 0 {
		r.buffer = append(r.buffer, readBuf[:n]...)
		return nil
	}
	if err != nil {
		return err
	}
	return io.ErrNoProgress
}
