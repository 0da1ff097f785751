// Package mock provides a scripted engine backend for pipeline tests.
package mock

import (
	"time"

	"github.com/pipelined/hashline"
	"github.com/pipelined/hashline/engine"
)

// Backend is a scripted engine backend. It captures every dispatched
// request and returns canned results, so tests can assert on stride
// binding, lane counts and error propagation without a real engine.
type Backend struct {
	// OpenErr makes Open fail.
	OpenErr error
	// DispatchErr makes every Dispatch fail.
	DispatchErr error
	// DeviceTime is reported as the engine execution time of every
	// dispatch.
	DeviceTime time.Duration
	// Digest derives the digest for one lane. If nil, a marker digest
	// carrying the lane index is returned.
	Digest func(lane int, message []byte) hashline.Digest

	// Requests are captured in dispatch order.
	Requests []engine.Request
	// Opened and Closed count session lifecycle calls.
	Opened int
	Closed int
}

// Name implements engine.Backend.
func (b *Backend) Name() string {
	return "mock"
}

// Open implements engine.Backend.
func (b *Backend) Open() (engine.Session, error) {
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	b.Opened++
	return &session{backend: b}, nil
}

type session struct {
	backend *Backend
}

func (s *session) Dispatch(r engine.Request) (engine.Result, error) {
	b := s.backend
	b.Requests = append(b.Requests, r)
	if b.DispatchErr != nil {
		return engine.Result{}, b.DispatchErr
	}

	digests := make([]hashline.Digest, r.Count)
	for i := range digests {
		if b.Digest != nil {
			offset := i * int(r.Stride)
			digests[i] = b.Digest(i, r.Messages[offset:offset+int(r.Lens[i])])
		} else {
			digests[i] = hashline.Digest{uint32(i)}
		}
	}
	return engine.Result{Digests: digests, DeviceTime: b.DeviceTime}, nil
}

func (s *session) Close() error {
	s.backend.Closed++
	return nil
}
