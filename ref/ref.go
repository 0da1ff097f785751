// Package ref is the pure-software digest engine. It implements the
// engine contract with the standard SHA-256 over each packed slot, so the
// pipeline can run and be tested without any accelerator present.
package ref

import (
	"crypto/sha256"
	"runtime"
	"sync"
	"time"

	"github.com/pipelined/hashline"
	"github.com/pipelined/hashline/engine"
)

// Backend is a software engine backend.
type Backend struct {
	// Workers caps the number of goroutines running lanes. Zero means
	// one per CPU. Worker count never affects digest values or order.
	Workers int
}

// Name implements engine.Backend.
func (Backend) Name() string {
	return "software/sha256"
}

// Open implements engine.Backend. There is no device to select and no
// program to build.
func (b Backend) Open() (engine.Session, error) {
	workers := b.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &session{workers: workers}, nil
}

type session struct {
	workers int
}

// Dispatch runs one SHA-256 lane per record. DeviceTime brackets lane
// execution only, the analogue of the accelerator's profiling events.
func (s *session) Dispatch(r engine.Request) (engine.Result, error) {
	if err := r.Validate(); err != nil {
		return engine.Result{}, err
	}

	digests := make([]hashline.Digest, r.Count)
	stride := int(r.Stride)
	workers := s.workers
	if workers > r.Count {
		workers = r.Count
	}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := w; i < r.Count; i += workers {
				offset := i * stride
				digests[i] = hashline.DigestOf(sha256.Sum256(r.Messages[offset : offset+int(r.Lens[i])]))
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	return engine.Result{Digests: digests, DeviceTime: elapsed}, nil
}

func (s *session) Close() error {
	return nil
}
