package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type instantTimer struct {
	c      chan time.Time
	starts []time.Duration
}

func newInstantTimer() *instantTimer {
	return &instantTimer{c: make(chan time.Time, 1)}
}

func (t *instantTimer) Start(d time.Duration) {
	t.starts = append(t.starts, d)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

func reconnectDelays() []time.Duration {
	return []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second,
		8 * time.Second, 16 * time.Second, 60 * time.Second,
	}
}

func TestSequenceBackOff_RepeatsLastDelay(t *testing.T) {
	b := NewSequenceBackOff(reconnectDelays()...)

	var got []time.Duration
	for i := 0; i < 8; i++ {
		got = append(got, b.NextBackOff())
	}

	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 60 * time.Second, 60 * time.Second, 60 * time.Second,
	}, got)

	b.Reset()
	assert.Equal(t, 1*time.Second, b.NextBackOff())
}

func TestSequenceBackOff_Empty(t *testing.T) {
	assert.Equal(t, backoff.Stop, NewSequenceBackOff().NextBackOff())
}

func TestSequenceBackOff_Delays(t *testing.T) {
	b := NewSequenceBackOff(reconnectDelays()...)
	b.NextBackOff()

	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, b.Delays(3))
	assert.Equal(t, 2*time.Second, b.NextBackOff())
}

func TestSequenceBackOff_WithMaxRetriesStopsAfterThree(t *testing.T) {
	b := backoff.WithMaxRetries(NewSequenceBackOff(reconnectDelays()...), 3)

	assert.Equal(t, 1*time.Second, b.NextBackOff())
	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, 4*time.Second, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestDoWithTimer_RetriesUntilSuccess(t *testing.T) {
	timer := newInstantTimer()
	calls := 0
	var notified []int

	err := DoWithTimer(context.Background(), NewSequenceBackOff(reconnectDelays()...), timer, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, func(attempt int, err error, next time.Duration) {
		notified = append(notified, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, notified)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, timer.starts)
}

func TestDoWithTimer_FatalStopsImmediately(t *testing.T) {
	calls := 0
	cause := errors.New("bad credentials")

	err := DoWithTimer(context.Background(), NewSequenceBackOff(reconnectDelays()...), newInstantTimer(), func() error {
		calls++
		return NewFatalError(cause)
	}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, NewSequenceBackOff(time.Hour), func() error {
		return errors.New("unreachable")
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
}
