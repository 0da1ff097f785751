// Package pipe drives the batched digest pipeline: records are pulled from
// the input stream, grouped into bounded batches, packed into a
// stride-aligned buffer, dispatched to the engine and emitted as hex lines
// in input order.
package pipe

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/xid"

	"github.com/pipelined/hashline/batch"
	"github.com/pipelined/hashline/engine"
	"github.com/pipelined/hashline/line"
	"github.com/pipelined/hashline/metric"
)

// DefaultBatchSize is the default maximum number of records per engine
// dispatch. It is a tuning knob, not a contract: large enough to amortize
// invocation overhead, small enough to bound host memory together with the
// batch's stride.
const DefaultBatchSize = 50_000_000

// Logger is a global interface for pipe loggers.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
}

// ErrNoBackend is returned if pipe is created without an engine backend.
var ErrNoBackend = errors.New("pipe: engine backend is not defined")

// Pipe is a pipeline with a fully defined digest sequence. One Run digests
// one input stream; a single control goroutine does all host work, the
// only parallelism lives inside the engine dispatch.
type Pipe struct {
	uid       string
	name      string
	batchSize int
	backend   engine.Backend
	tracker   *metric.Tracker
	log       Logger
}

// Option provides a way to set functional parameters to pipe.
type Option func(p *Pipe) error

// New creates a new pipe and applies provided options.
func New(options ...Option) (*Pipe, error) {
	p := &Pipe{
		uid:       xid.New().String(),
		batchSize: DefaultBatchSize,
		tracker:   &metric.Tracker{},
		log:       defaultLogger,
	}
	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}
	if p.backend == nil {
		return nil, ErrNoBackend
	}
	return p, nil
}

// WithBackend sets the engine backend to pipe.
func WithBackend(backend engine.Backend) Option {
	return func(p *Pipe) error {
		p.backend = backend
		return nil
	}
}

// WithLogger sets logger to pipe. If this option is not provided, silent
// logger is used.
func WithLogger(l Logger) Option {
	return func(p *Pipe) error {
		p.log = l
		return nil
	}
}

// WithName sets name to pipe.
func WithName(n string) Option {
	return func(p *Pipe) error {
		p.name = n
		return nil
	}
}

// WithBatchSize sets the maximum number of records per engine dispatch.
func WithBatchSize(n int) Option {
	return func(p *Pipe) error {
		if n < 1 {
			return fmt.Errorf("pipe: batch size %d is not positive", n)
		}
		p.batchSize = n
		return nil
	}
}

// WithMetric sets the throughput tracker for this pipe.
func WithMetric(t *metric.Tracker) Option {
	return func(p *Pipe) error {
		p.tracker = t
		return nil
	}
}

// Tracker returns the throughput tracker of the pipe.
func (p *Pipe) Tracker() *metric.Tracker {
	return p.tracker
}

// Run streams records from r through the engine and writes one hex digest
// line per record to w, in input order. Any error is fatal to the run;
// output already flushed for prior batches stays written.
func (p *Pipe) Run(r io.Reader, w io.Writer) error {
	session, err := p.backend.Open()
	if err != nil {
		return fmt.Errorf("open %s engine: %w", p.backend.Name(), err)
	}
	defer session.Close()

	p.log.Infof("%s: engine %s ready", p, p.backend.Name())

	pump := line.NewPump(r)
	sink := line.NewSink(w)

	for index := 1; ; index++ {
		b, err := batch.Accumulate(pump.Pump, p.batchSize)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if b.Len() == 0 {
			// stream was exhausted before this batch started
			break
		}

		packed := b.Pack()
		p.log.Infof("%s: batch %d: %d messages, max_len=%d, stride=%d bytes (%d words)",
			p, index, b.Len(), b.MaxLen(), packed.Stride, packed.Stride/4)

		// stride varies batch to batch and is bound on every dispatch
		result, err := session.Dispatch(engine.Request{
			Messages: packed.Data,
			Lens:     packed.Lens,
			Stride:   uint32(packed.Stride),
			Count:    packed.Count(),
		})
		if err != nil {
			return fmt.Errorf("dispatch batch %d: %w", index, err)
		}
		if len(result.Digests) != packed.Count() {
			return fmt.Errorf("%w: engine returned %d digests for %d lanes",
				engine.ErrInvariant, len(result.Digests), packed.Count())
		}

		p.tracker.Add(packed.Count(), result.DeviceTime)
		p.log.Infof("%s: batch %d: device time %v, %.2f MH/s",
			p, index, result.DeviceTime, rate(packed.Count(), result.DeviceTime)/1e6)
		if index == 1 {
			p.log.Debugf("%s: first digest %s", p, result.Digests[0])
		}

		for _, d := range result.Digests {
			if err := sink.Sink(d); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		}
	}

	if err := sink.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	p.log.Infof("%s: total: %d messages in %d batches, device time %v, %.2f MH/s",
		p, p.tracker.Messages(), p.tracker.Batches(), p.tracker.DeviceTime(), p.tracker.PerSecond()/1e6)
	return nil
}

// Convert pipe to string. Name is included if it has value.
func (p *Pipe) String() string {
	if p.name == "" {
		return p.uid
	}
	return fmt.Sprintf("%v %v", p.name, p.uid)
}

func rate(count int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(count) / d.Seconds()
}

type silentLogger struct{}

func (silentLogger) Debugf(format string, args ...interface{}) {}

func (silentLogger) Infof(format string, args ...interface{}) {}

var defaultLogger silentLogger
