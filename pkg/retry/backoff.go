package retry

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func ExponentialBackoff(initialInterval, maxInterval time.Duration, multiplier float64) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initialInterval
	exp.MaxInterval = maxInterval
	exp.Multiplier = multiplier
	exp.MaxElapsedTime = 0
	return exp
}

func ExponentialBackoffWithMaxElapsed(initialInterval, maxInterval, maxElapsed time.Duration, multiplier float64) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initialInterval
	exp.MaxInterval = maxInterval
	exp.Multiplier = multiplier
	exp.MaxElapsedTime = maxElapsed
	return exp
}

// SequenceBackOff returns a fixed list of delays in order. Once the list is
// exhausted the last delay repeats. It carries no jitter, so the schedule
// is exactly reproducible.
type SequenceBackOff struct {
	mu     sync.Mutex
	delays []time.Duration
	next   int
}

func NewSequenceBackOff(delays ...time.Duration) *SequenceBackOff {
	d := make([]time.Duration, len(delays))
	copy(d, delays)
	return &SequenceBackOff{delays: d}
}

func (b *SequenceBackOff) NextBackOff() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.delays) == 0 {
		return backoff.Stop
	}

	i := b.next
	if i >= len(b.delays) {
		i = len(b.delays) - 1
	} else {
		b.next++
	}
	return b.delays[i]
}

func (b *SequenceBackOff) Reset() {
	b.mu.Lock()
	b.next = 0
	b.mu.Unlock()
}

// Delays returns the first n delays the sequence would produce from a fresh
// start without advancing b.
func (b *SequenceBackOff) Delays(n int) []time.Duration {
	b.mu.Lock()
	delays := b.delays
	b.mu.Unlock()

	fresh := NewSequenceBackOff(delays...)
	out := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fresh.NextBackOff())
	}
	return out
}
