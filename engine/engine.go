// Package engine defines the capability interface of the external parallel
// digest engine. The pipeline treats the engine as a black box that, given
// a stride-padded buffer and true record lengths, returns one digest per
// lane, where digest i covers the bytes [0, Lens[i]) of slot i.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/pipelined/hashline"
)

// Backend represents an available digest engine. Opening a backend selects
// its device and builds its digest program.
type Backend interface {
	// Name identifies the engine in diagnostics.
	Name() string
	// Open returns a session ready to dispatch batches. The session must
	// be closed to release device resources.
	Open() (Session, error)
}

// Session is a bound engine. Sessions are used from a single goroutine;
// parallelism lives inside Dispatch.
type Session interface {
	// Dispatch transfers the packed batch to the engine, runs one lane
	// per record and blocks until every digest is available. Request
	// parameters are bound on every call: stride varies batch to batch.
	Dispatch(Request) (Result, error)
	// Close releases device resources.
	Close() error
}

type (
	// Request carries one packed batch to the engine.
	Request struct {
		// Messages holds Count slots of Stride bytes each, zero-padded
		// beyond every record's true length.
		Messages []byte
		// Lens holds the true record lengths, one per slot.
		Lens []uint32
		// Stride is the slot size in bytes, a multiple of
		// hashline.Alignment.
		Stride uint32
		// Count is the number of lanes to run.
		Count int
	}

	// Result holds one digest per lane. Digest i corresponds to slot i of
	// the request.
	Result struct {
		Digests []hashline.Digest
		// DeviceTime is the engine-side execution time of this dispatch,
		// excluding host packing and transfers.
		DeviceTime time.Duration
	}
)

// ErrInvariant reports a malformed request. It indicates a bug in the
// caller, not a recoverable condition.
var ErrInvariant = errors.New("request invariant violated")

// Validate checks the index and size correspondence between the packed
// buffer, the length array and the lane count.
func (r Request) Validate() error {
	if r.Count < 0 || len(r.Lens) != r.Count {
		return fmt.Errorf("%w: %d lengths for %d lanes", ErrInvariant, len(r.Lens), r.Count)
	}
	if r.Stride == 0 || r.Stride%hashline.Alignment != 0 {
		return fmt.Errorf("%w: stride %d is not a positive multiple of %d", ErrInvariant, r.Stride, hashline.Alignment)
	}
	if len(r.Messages) != r.Count*int(r.Stride) {
		return fmt.Errorf("%w: buffer is %d bytes, want %d", ErrInvariant, len(r.Messages), r.Count*int(r.Stride))
	}
	for i, n := range r.Lens {
		if n > r.Stride {
			return fmt.Errorf("%w: lane %d length %d exceeds stride %d", ErrInvariant, i, n, r.Stride)
		}
	}
	return nil
}

// BuildError is returned by Open when the engine program fails to build.
// Log carries the build diagnostic verbatim.
type BuildError struct {
	Log string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("program build failed:\n%s", e.Log)
}
