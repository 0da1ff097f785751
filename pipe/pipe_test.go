package pipe_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/hashline/engine"
	"github.com/pipelined/hashline/mock"
	"github.com/pipelined/hashline/pipe"
	"github.com/pipelined/hashline/ref"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRun(t *testing.T) {
	p, err := pipe.New(
		pipe.WithBackend(ref.Backend{}),
		pipe.WithName("test"),
	)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, p.Run(strings.NewReader("abc\n\nhello\n"), &out))

	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad\n"+
			"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855\n"+
			"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824\n",
		out.String())

	assert.Equal(t, 1, p.Tracker().Batches())
	assert.Equal(t, uint64(3), p.Tracker().Messages())
}

func TestRunBatchSizeInvariance(t *testing.T) {
	input := "abc\n\nhello\n" + strings.Repeat("q", 200) + "\nlast"

	run := func(batchSize int) string {
		options := []pipe.Option{pipe.WithBackend(ref.Backend{})}
		if batchSize > 0 {
			options = append(options, pipe.WithBatchSize(batchSize))
		}
		p, err := pipe.New(options...)
		require.NoError(t, err)

		var out bytes.Buffer
		require.NoError(t, p.Run(strings.NewReader(input), &out))
		return out.String()
	}

	full := run(0)
	assert.Equal(t, 5, strings.Count(full, "\n"), "one line per record")

	// batch boundaries must not affect per-record digests
	assert.Equal(t, full, run(1))
	assert.Equal(t, full, run(2))
	assert.Equal(t, full, run(5))
}

func TestRunIdempotent(t *testing.T) {
	input := "abc\ndef\nghi\n"
	outputs := make([]string, 2)
	for i := range outputs {
		p, err := pipe.New(pipe.WithBackend(ref.Backend{}))
		require.NoError(t, err)

		var out bytes.Buffer
		require.NoError(t, p.Run(strings.NewReader(input), &out))
		outputs[i] = out.String()
	}
	assert.Equal(t, outputs[0], outputs[1])
}

func TestRunEmptyInput(t *testing.T) {
	backend := &mock.Backend{}
	p, err := pipe.New(pipe.WithBackend(backend))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, p.Run(strings.NewReader(""), &out))

	// empty input is not an error and dispatches nothing
	assert.Zero(t, out.Len())
	assert.Empty(t, backend.Requests)
	assert.Equal(t, 1, backend.Closed)
}

func TestRunExactBatchBoundary(t *testing.T) {
	backend := &mock.Backend{}
	p, err := pipe.New(
		pipe.WithBackend(backend),
		pipe.WithBatchSize(4),
	)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, p.Run(strings.NewReader("a\nb\nc\nd\n"), &out))

	// a batch exactly at the limit followed by EOF dispatches once,
	// with no spurious empty batch after it
	require.Len(t, backend.Requests, 1)
	assert.Equal(t, 4, backend.Requests[0].Count)
	assert.Equal(t, 1, backend.Closed)
}

func TestRunStrideRebinding(t *testing.T) {
	backend := &mock.Backend{}
	p, err := pipe.New(
		pipe.WithBackend(backend),
		pipe.WithBatchSize(2),
	)
	require.NoError(t, err)

	input := strings.Repeat("x", 100) + "\na\n" + strings.Repeat("y", 200) + "\nb\n"
	var out bytes.Buffer
	require.NoError(t, p.Run(strings.NewReader(input), &out))

	// stride is derived per batch and bound on every dispatch
	require.Len(t, backend.Requests, 2)
	assert.Equal(t, uint32(128), backend.Requests[0].Stride)
	assert.Equal(t, []uint32{100, 1}, backend.Requests[0].Lens)
	assert.Equal(t, uint32(256), backend.Requests[1].Stride)
	assert.Equal(t, []uint32{200, 1}, backend.Requests[1].Lens)
	for _, r := range backend.Requests {
		assert.NoError(t, r.Validate())
	}
}

func TestRunDeviceTime(t *testing.T) {
	backend := &mock.Backend{DeviceTime: 125 * time.Millisecond}
	p, err := pipe.New(
		pipe.WithBackend(backend),
		pipe.WithBatchSize(2),
	)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, p.Run(strings.NewReader("a\nb\nc\n"), &out))

	// the tracker sees exactly the engine-reported time
	assert.Equal(t, 2, p.Tracker().Batches())
	assert.Equal(t, uint64(3), p.Tracker().Messages())
	assert.Equal(t, 250*time.Millisecond, p.Tracker().DeviceTime())
	assert.InDelta(t, 12.0, p.Tracker().PerSecond(), 1e-9)
}

func TestRunOrder(t *testing.T) {
	// marker digests carry the lane index in their first word
	backend := &mock.Backend{}
	p, err := pipe.New(pipe.WithBackend(backend))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, p.Run(strings.NewReader("a\nb\nc\n"), &out))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "00000000", lines[0][:8])
	assert.Equal(t, "00000001", lines[1][:8])
	assert.Equal(t, "00000002", lines[2][:8])
}

func TestRunDispatchError(t *testing.T) {
	dispatchErr := errors.New("device lost")
	backend := &mock.Backend{DispatchErr: dispatchErr}
	p, err := pipe.New(pipe.WithBackend(backend))
	require.NoError(t, err)

	var out bytes.Buffer
	err = p.Run(strings.NewReader("a\n"), &out)
	assert.True(t, errors.Is(err, dispatchErr))
	// session released on the error path
	assert.Equal(t, 1, backend.Closed)
}

func TestRunOpenError(t *testing.T) {
	openErr := &engine.BuildError{Log: "kernel.cl:3: error"}
	backend := &mock.Backend{OpenErr: openErr}
	p, err := pipe.New(pipe.WithBackend(backend))
	require.NoError(t, err)

	var out bytes.Buffer
	err = p.Run(strings.NewReader("a\n"), &out)

	var buildErr *engine.BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, "kernel.cl:3: error", buildErr.Log)
}

func TestRunWriteError(t *testing.T) {
	backend := &mock.Backend{}
	p, err := pipe.New(pipe.WithBackend(backend))
	require.NoError(t, err)

	err = p.Run(strings.NewReader("a\n"), failWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write output")
}

func TestNew(t *testing.T) {
	_, err := pipe.New()
	assert.Equal(t, pipe.ErrNoBackend, err)

	_, err = pipe.New(
		pipe.WithBackend(&mock.Backend{}),
		pipe.WithBatchSize(0),
	)
	assert.Error(t, err)
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) {
	return 0, errors.New("sink broken")
}
