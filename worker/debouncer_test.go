package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan string, within time.Duration) (string, bool) {
	t.Helper()
	select {
	case key := <-ch:
		return key, true
	case <-time.After(within):
		return "", false
	}
}

func TestDebouncer_CoalescesBurstIntoOneKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(50)
	go d.Run(ctx)

	for i := 0; i < 10; i++ {
		d.Schedule("layer-1")
		time.Sleep(5 * time.Millisecond)
	}

	key, ok := receive(t, d.Due(), time.Second)
	require.True(t, ok)
	assert.Equal(t, "layer-1", key)

	_, ok = receive(t, d.Due(), 150*time.Millisecond)
	assert.False(t, ok, "burst must produce exactly one key")
}

func TestDebouncer_WaitsForQuietInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(100)
	go d.Run(ctx)

	start := time.Now()
	d.Schedule("layer-1")

	_, ok := receive(t, d.Due(), time.Second)
	require.True(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestDebouncer_CancelDropsPendingKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(30)
	go d.Run(ctx)

	d.Schedule("layer-1")
	d.Cancel("layer-1")

	_, ok := receive(t, d.Due(), 150*time.Millisecond)
	assert.False(t, ok)
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(30)
	go d.Run(ctx)

	d.Schedule("a")
	d.Schedule("b")
	d.Cancel("a")

	key, ok := receive(t, d.Due(), time.Second)
	require.True(t, ok)
	assert.Equal(t, "b", key)

	_, ok = receive(t, d.Due(), 100*time.Millisecond)
	assert.False(t, ok)
}
