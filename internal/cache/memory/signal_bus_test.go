package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalBusFanOut(t *testing.T) {
	bus := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bus.Subscribe(ctx, "positions")
	require.NoError(t, err)
	b, err := bus.Subscribe(ctx, "positions")
	require.NoError(t, err)
	other, err := bus.Subscribe(ctx, "simulations")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "positions", []byte("x")))
	assert.Equal(t, []byte("x"), <-a)
	assert.Equal(t, []byte("x"), <-b)
	select {
	case <-other:
		t.Fatal("wrong channel received the message")
	default:
	}
}

func TestSignalBusClosesOnCancel(t *testing.T) {
	bus := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx, "positions")
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
	assert.NoError(t, bus.Publish(context.Background(), "positions", []byte("late")))
}
