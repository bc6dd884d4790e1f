package ephemeral

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kohanai/kohana/internal/clock"
)

func TestStoreTakeRemoves(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	store := NewStore[string](5*time.Minute, clk)

	store.Put("a", "first")

	got, ok := store.Take("a")
	assert.True(t, ok)
	assert.Equal(t, "first", got)

	_, ok = store.Take("a")
	assert.False(t, ok)
}

func TestStoreExpiry(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	store := NewStore[int](5*time.Minute, clk)

	store.Put("a", 1)
	clk.Advance(5*time.Minute + time.Second)

	_, ok := store.Take("a")
	assert.False(t, ok)
}

func TestStorePutRestartsLifetime(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	store := NewStore[int](5*time.Minute, clk)

	store.Put("a", 1)
	clk.Advance(4 * time.Minute)
	store.Put("a", 2)
	clk.Advance(4 * time.Minute)

	got, ok := store.Take("a")
	assert.True(t, ok)
	assert.Equal(t, 2, got)
}

func TestStoreSweep(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	store := NewStore[int](time.Minute, clk)

	store.Put("a", 1)
	store.Put("b", 2)
	clk.Advance(30 * time.Second)
	store.Put("c", 3)
	clk.Advance(45 * time.Second)

	dropped := store.Sweep()
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 1, store.Len())
}
