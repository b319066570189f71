package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapper_TripsOnFailureRatio(t *testing.T) {
	var transitions []gobreaker.State
	cfg := RatioConfig("test-trip", 1, time.Minute, time.Minute, 0.5, 2)
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}
	w := NewWrapper(cfg)

	failing := func() (interface{}, error) { return nil, errors.New("redis down") }

	_, err := w.Execute(failing)
	require.Error(t, err)
	assert.False(t, w.IsOpen())

	_, err = w.Execute(failing)
	require.Error(t, err)
	assert.True(t, w.IsOpen())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	_, err = w.Execute(func() (interface{}, error) { return "ok", nil })
	assert.True(t, IsRejection(err))
}

func TestWrapper_ExecuteWithContextCanceled(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-ctx"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := w.ExecuteWithContext(ctx, func() (interface{}, error) {
		called = true
		return nil, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, uint32(0), w.Counts().Requests)
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(gobreaker.ErrOpenState))
	assert.True(t, IsRejection(gobreaker.ErrTooManyRequests))
	assert.False(t, IsRejection(errors.New("timeout")))
	assert.False(t, IsRejection(nil))
}
