// Package history provides a bounded, timestamp-ordered sample buffer
// with interpolated lookup.
//
// The buffer is the bridge between telemetry ingestion and transform
// resolution: ingestion appends pose/angle samples as they arrive, and
// the resolver asks "what was the value at time t" for the capture
// timestamp of a camera frame that finished processing tens of
// milliseconds later.
package history

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Micros is a timestamp in microseconds on the capture clock. All
// telemetry samples and camera frames share this clock.
type Micros int64

// MicrosFromDuration converts a duration to microseconds.
func MicrosFromDuration(d time.Duration) Micros {
	return Micros(d.Microseconds())
}

// Sub returns the duration t - o.
func (t Micros) Sub(o Micros) time.Duration {
	return time.Duration(t-o) * time.Microsecond
}

// Lerper is implemented by payload types that support linear
// interpolation between two samples. alpha is in [0, 1]: 0 yields the
// receiver, 1 yields other.
type Lerper[V any] interface {
	Lerp(other V, alpha float64) V
}

var (
	// ErrOutOfOrder is returned by Insert when the new sample's timestamp
	// is not strictly after the latest retained sample. The telemetry
	// stream is assumed monotonic; reordering is a caller bug.
	ErrOutOfOrder = errors.New("history: sample timestamp not after latest retained sample")

	// ErrOutOfRange is returned by Query when the requested timestamp
	// falls outside the retained window by more than the configured
	// tolerance. Callers must treat this as "value unknown at t", not as
	// a fatal condition.
	ErrOutOfRange = errors.New("history: timestamp outside retained window")

	// ErrEmpty is returned by Query on a buffer with no samples. It
	// matches ErrOutOfRange under errors.Is.
	ErrEmpty = fmt.Errorf("%w: buffer is empty", ErrOutOfRange)
)

// Config bounds a Buffer's retention.
type Config struct {
	// MaxEntries caps the number of retained samples. Must be > 0.
	MaxEntries int

	// MaxAge evicts samples older than this relative to the newest
	// sample. Must exceed the pipeline's worst-case camera-to-resolver
	// latency, and be > 0.
	MaxAge time.Duration

	// Tolerance is how far outside the retained window a query may fall
	// and still be answered with the nearest boundary sample. Zero means
	// exact-window queries only.
	Tolerance time.Duration
}

// Validate checks the retention bounds.
func (c Config) Validate() error {
	if c.MaxEntries <= 0 {
		return fmt.Errorf("history: max entries must be > 0, got %d", c.MaxEntries)
	}
	if c.MaxAge <= 0 {
		return fmt.Errorf("history: max age must be > 0, got %v", c.MaxAge)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("history: tolerance must be >= 0, got %v", c.Tolerance)
	}
	return nil
}

type sample[V any] struct {
	ts    Micros
	value V
}

// Buffer retains a bounded time window of samples of one payload kind and
// answers interpolated lookups by timestamp.
//
// Inserts and queries may run concurrently: a single telemetry goroutine
// appends while resolver goroutines read. Each operation holds the lock
// only for a bounded in-memory scan of the (small) retained window, so a
// producer cannot starve readers or vice versa.
type Buffer[V Lerper[V]] struct {
	mu      sync.RWMutex
	samples []sample[V]
	cfg     Config
}

// New creates a Buffer with the given retention bounds.
func New[V Lerper[V]](cfg Config) (*Buffer[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Buffer[V]{
		samples: make([]sample[V], 0, cfg.MaxEntries),
		cfg:     cfg,
	}, nil
}

// Insert appends a sample. The timestamp must be strictly after the
// latest retained sample or ErrOutOfOrder is returned and the buffer is
// left unchanged. Samples older than MaxAge relative to the new sample,
// and samples beyond MaxEntries, are evicted.
func (b *Buffer[V]) Insert(ts Micros, value V) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n := len(b.samples); n > 0 {
		latest := b.samples[n-1].ts
		if ts <= latest {
			return fmt.Errorf("%w: %d <= %d", ErrOutOfOrder, ts, latest)
		}
	}
	b.samples = append(b.samples, sample[V]{ts: ts, value: value})

	// Evict from the front: by count, then by age relative to the newest.
	drop := 0
	for len(b.samples)-drop > b.cfg.MaxEntries {
		drop++
	}
	for len(b.samples)-drop > 1 && ts.Sub(b.samples[drop].ts) > b.cfg.MaxAge {
		drop++
	}
	if drop > 0 {
		b.samples = append(b.samples[:0], b.samples[drop:]...)
	}
	return nil
}

// Query returns the value at time ts. Between two retained samples the
// result is the linear interpolation of their payloads; on an exact
// timestamp hit the stored value is returned unchanged. Outside the
// retained window the nearest boundary sample is returned if ts is within
// Tolerance of it, else ErrOutOfRange. The tolerance applies on both
// sides: a query ahead of the latest sample fails the same way a stale
// one does, rather than extrapolating forward.
func (b *Buffer[V]) Query(ts Micros) (V, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var zero V
	n := len(b.samples)
	if n == 0 {
		return zero, ErrEmpty
	}

	oldest, latest := b.samples[0].ts, b.samples[n-1].ts
	if ts < oldest {
		if oldest.Sub(ts) <= b.cfg.Tolerance {
			return b.samples[0].value, nil
		}
		return zero, fmt.Errorf("%w: %d precedes oldest sample %d by %v",
			ErrOutOfRange, ts, oldest, oldest.Sub(ts))
	}
	if ts > latest {
		if ts.Sub(latest) <= b.cfg.Tolerance {
			return b.samples[n-1].value, nil
		}
		return zero, fmt.Errorf("%w: %d follows latest sample %d by %v",
			ErrOutOfRange, ts, latest, ts.Sub(latest))
	}

	// First sample at or after ts.
	i := sort.Search(n, func(i int) bool { return b.samples[i].ts >= ts })
	if b.samples[i].ts == ts {
		return b.samples[i].value, nil
	}
	lo, hi := b.samples[i-1], b.samples[i]
	alpha := float64(ts-lo.ts) / float64(hi.ts-lo.ts)
	return lo.value.Lerp(hi.value, alpha), nil
}

// Len returns the number of retained samples.
func (b *Buffer[V]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Latest returns the newest retained timestamp, or false if empty.
func (b *Buffer[V]) Latest() (Micros, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.samples) == 0 {
		return 0, false
	}
	return b.samples[len(b.samples)-1].ts, true
}

// Oldest returns the oldest retained timestamp, or false if empty.
func (b *Buffer[V]) Oldest() (Micros, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.samples) == 0 {
		return 0, false
	}
	return b.samples[0].ts, true
}

// Clear drops all retained samples.
func (b *Buffer[V]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = b.samples[:0]
}
