package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedBusCountsDrops(t *testing.T) {
	bus := NewTypedWithBuffer[int](2)
	slow := bus.Subscribe()
	for i := 0; i < 5; i++ {
		bus.Publish(i)
	}
	assert.Equal(t, uint64(3), bus.Dropped())
	assert.Equal(t, 0, <-slow)
	assert.Equal(t, 1, <-slow)
}

func TestTypedBusUnbuffered(t *testing.T) {
	bus := NewTypedWithBuffer[string](-1)
	_ = bus.Subscribe()
	bus.Publish("lost")
	assert.Equal(t, uint64(1), bus.Dropped())
}

func TestTypedBusUnsubscribeUnknown(t *testing.T) {
	bus := NewTyped[float64]()
	ch := bus.Subscribe()
	other := make(chan float64)
	bus.Unsubscribe(other)
	bus.Publish(1.5)
	v, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, 1.5, v)
}
