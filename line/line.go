// Package line reads newline-delimited records from an input stream and
// writes hex digest lines to an output stream.
package line

import (
	"bufio"
	"io"

	"github.com/pipelined/hashline"
)

// buffered reader/writer size. Records longer than this are still
// returned whole, the reader grows as needed.
const bufferSize = 1 << 16

type (
	// Pump yields one record per call, in input order. A record is the
	// byte content of one line with the trailing delimiter stripped; it
	// may be empty. Record length is unbounded.
	Pump struct {
		reader *bufio.Reader
	}

	// Sink appends one digest line per call to the output stream. Output
	// is buffered and must be flushed once the run is complete.
	Sink struct {
		writer *bufio.Writer
	}
)

// NewPump creates a record pump over r.
func NewPump(r io.Reader) *Pump {
	return &Pump{reader: bufio.NewReaderSize(r, bufferSize)}
}

// Pump returns the next record. The returned slice is owned by the caller.
// Pump uses the following error conventions:
//	- nil if a record was read;
//	- io.EOF if the stream is exhausted.
// A final record without a trailing delimiter is still a record; a stream
// whose last line is delimiter-terminated does not yield an extra empty
// record.
func (p *Pump) Pump() ([]byte, error) {
	record, err := p.reader.ReadBytes('\n')
	switch {
	case err == nil:
		return record[:len(record)-1], nil
	case err == io.EOF && len(record) > 0:
		return record, nil
	default:
		return nil, err
	}
}

// NewSink creates a digest sink over w.
func NewSink(w io.Writer) *Sink {
	return &Sink{writer: bufio.NewWriterSize(w, bufferSize)}
}

// Sink writes d as 64 lowercase hex characters and a line terminator.
func (s *Sink) Sink(d hashline.Digest) error {
	if _, err := s.writer.WriteString(d.Hex()); err != nil {
		return err
	}
	return s.writer.WriteByte('\n')
}

// Flush writes out any buffered output.
func (s *Sink) Flush() error {
	return s.writer.Flush()
}
