// Package batch groups records into count-bounded batches and lays each
// batch out as one contiguous stride-aligned buffer for the engine.
package batch

import (
	"io"

	"github.com/pipelined/hashline"
)

// Source yields the next record of the input. It uses the following error
// conventions:
//	- nil if a record was read;
//	- io.EOF if the stream is exhausted.
type Source func() ([]byte, error)

type (
	// Batch is an ordered group of records. Insertion order is input
	// order and is preserved all the way to the emitted digests.
	Batch struct {
		records [][]byte
		maxLen  int
	}

	// Packed is the engine-ready image of a batch: Count slots of Stride
	// bytes each, every slot zero-padded beyond its record's true length.
	// Slot i, Lens[i] and the engine's digest i all refer to the same
	// record.
	Packed struct {
		Data   []byte
		Lens   []uint32
		Stride int
	}
)

// Accumulate pulls records from next until limit records were collected or
// the stream is exhausted. A batch with Len() == 0 means the stream was
// already exhausted and the run is complete.
func Accumulate(next Source, limit int) (*Batch, error) {
	b := &Batch{}
	for b.Len() < limit {
		record, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		b.Append(record)
	}
	return b, nil
}

// Append adds a record to the batch.
func (b *Batch) Append(record []byte) {
	b.records = append(b.records, record)
	if len(record) > b.maxLen {
		b.maxLen = len(record)
	}
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int {
	return len(b.records)
}

// MaxLen returns the longest record length seen in the batch.
func (b *Batch) MaxLen() int {
	return b.maxLen
}

// Record returns record i.
func (b *Batch) Record(i int) []byte {
	return b.records[i]
}

// Stride returns the slot size of the batch.
func (b *Batch) Stride() int {
	return Stride(b.maxLen)
}

// Stride returns the slot size for the given maximum record length: the
// length rounded up to hashline.Alignment, with one alignment unit as the
// minimum so that even an all-empty batch gets non-empty slots.
func Stride(maxLen int) int {
	if maxLen < 1 {
		maxLen = 1
	}
	return (maxLen + hashline.Alignment - 1) / hashline.Alignment * hashline.Alignment
}

// Pack lays the batch out as one zero-filled contiguous buffer and the
// parallel array of true record lengths. Padding is deterministic zero;
// digest correctness depends on it.
func (b *Batch) Pack() Packed {
	stride := b.Stride()
	p := Packed{
		Data:   make([]byte, len(b.records)*stride),
		Lens:   make([]uint32, len(b.records)),
		Stride: stride,
	}
	for i, record := range b.records {
		copy(p.Data[i*stride:i*stride+len(record)], record)
		p.Lens[i] = uint32(len(record))
	}
	return p
}

// Count returns the number of slots.
func (p Packed) Count() int {
	return len(p.Lens)
}

// Slot returns the full stride-sized slot i, padding included.
func (p Packed) Slot(i int) []byte {
	return p.Data[i*p.Stride : (i+1)*p.Stride]
}

// Message returns the record bytes of slot i, padding excluded.
func (p Packed) Message(i int) []byte {
	return p.Data[i*p.Stride : i*p.Stride+int(p.Lens[i])]
}
