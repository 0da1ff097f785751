// Package metric measures engine throughput. Process-wide counters are
// published through expvar; a Tracker aggregates one run.
package metric

import (
	"expvar"
	"fmt"
	"sync/atomic"
	"time"
)

const engineLabel = "hashline.engine"

const (
	// BatchCounter counts dispatched batches.
	BatchCounter = "Batches"
	// MessageCounter counts digested records.
	MessageCounter = "Messages"
	// DeviceTimeCounter accumulates engine-side execution time.
	DeviceTimeCounter = "DeviceTime"
)

var (
	batches    = expvar.NewInt(key(BatchCounter))
	messages   = expvar.NewInt(key(MessageCounter))
	deviceTime = &duration{}
)

func init() {
	expvar.Publish(key(DeviceTimeCounter), deviceTime)
}

func key(counter string) string {
	return fmt.Sprintf("%s.%s", engineLabel, counter)
}

// Tracker aggregates per-batch engine timings for one run. Only device
// execution time is counted, never host packing or transfer time. Tracker
// is used from the single control goroutine of a run.
type Tracker struct {
	batches    int
	messages   uint64
	deviceTime time.Duration
}

// Add records one dispatched batch of count records that took dt of engine
// execution time.
func (t *Tracker) Add(count int, dt time.Duration) {
	t.batches++
	t.messages += uint64(count)
	t.deviceTime += dt

	batches.Add(1)
	messages.Add(int64(count))
	deviceTime.add(dt)
}

// Batches returns the number of dispatched batches.
func (t *Tracker) Batches() int {
	return t.batches
}

// Messages returns the number of digested records.
func (t *Tracker) Messages() uint64 {
	return t.messages
}

// DeviceTime returns the accumulated engine execution time.
func (t *Tracker) DeviceTime() time.Duration {
	return t.deviceTime
}

// PerSecond returns aggregate records per second of device time.
func (t *Tracker) PerSecond() float64 {
	if t.deviceTime <= 0 {
		return 0
	}
	return float64(t.messages) / t.deviceTime.Seconds()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%v", time.Duration(atomic.LoadInt64(&v.d)))
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}
