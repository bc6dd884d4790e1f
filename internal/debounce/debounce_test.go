package debounce

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohanai/kohana/internal/channel"
	"github.com/kohanai/kohana/internal/clock"
	"github.com/kohanai/kohana/internal/logger"
)

func inbound(userID, text string) channel.InboundMessage {
	return channel.InboundMessage{
		Channel: channel.TypeDiscord,
		Sender:  channel.Identity{ID: userID},
		Message: channel.Message{Text: text},
	}
}

type recorder struct {
	mu      sync.Mutex
	batches []Batch
	reply   bool
}

func (r *recorder) resolve(_ context.Context, batch Batch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
	return r.reply
}

func (r *recorder) all() []Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Batch(nil), r.batches...)
}

func newTestAggregator(rec *recorder, clk clock.Clock) *Aggregator {
	return NewAggregator(logger.L, Options{
		Window:    3 * time.Second,
		LongBreak: 5 * time.Minute,
	}, clk, rec.resolve)
}

func TestBurstResolvesOnce(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{reply: true}
	agg := newTestAggregator(rec, clk)

	agg.Enqueue(inbound("u1", "one"))
	clk.Advance(time.Second)
	agg.Enqueue(inbound("u1", "two"))
	clk.Advance(time.Second)
	agg.Enqueue(inbound("u1", "three"))

	// Window slides with each message: nothing resolves before the last
	// arrival plus the full window.
	clk.Advance(2 * time.Second)
	assert.Empty(t, rec.all())

	clk.Advance(time.Second)
	batches := rec.all()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Messages, 3)
	assert.Equal(t, "three", batches[0].Target.Message.Text)
	assert.Equal(t, "u1", batches[0].UserID)
	assert.False(t, batches[0].Forced)
}

func TestSeparateWindowsResolveSeparately(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{reply: true}
	agg := newTestAggregator(rec, clk)

	agg.Enqueue(inbound("u1", "first"))
	clk.Advance(5 * time.Second)
	agg.Enqueue(inbound("u1", "second"))
	clk.Advance(5 * time.Second)

	batches := rec.all()
	require.Len(t, batches, 2)
	assert.Equal(t, "first", batches[0].Target.Message.Text)
	assert.Equal(t, "second", batches[1].Target.Message.Text)
	assert.False(t, batches[1].Forced)
}

func TestUsersAreIndependent(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{reply: true}
	agg := newTestAggregator(rec, clk)

	agg.Enqueue(inbound("u1", "from one"))
	agg.Enqueue(inbound("u2", "from two"))
	clk.Advance(3 * time.Second)

	batches := rec.all()
	require.Len(t, batches, 2)
	assert.NotEqual(t, batches[0].UserID, batches[1].UserID)
	for _, b := range batches {
		assert.Len(t, b.Messages, 1)
	}
}

func TestSuppressionCounter(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{reply: false}
	agg := newTestAggregator(rec, clk)

	agg.Enqueue(inbound("u1", "a"))
	clk.Advance(3 * time.Second)
	agg.Enqueue(inbound("u1", "b"))
	clk.Advance(3 * time.Second)

	batches := rec.all()
	require.Len(t, batches, 2)
	assert.Equal(t, 0, batches[0].Suppressed)
	assert.Equal(t, 1, batches[1].Suppressed)
	assert.Equal(t, 2, agg.Suppressed("u1"))

	// A reply resets the counter.
	rec.mu.Lock()
	rec.reply = true
	rec.mu.Unlock()
	agg.Enqueue(inbound("u1", "c"))
	clk.Advance(3 * time.Second)
	assert.Equal(t, 0, agg.Suppressed("u1"))
}

func TestLongBreakForcesReply(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{reply: true}
	agg := newTestAggregator(rec, clk)

	agg.Enqueue(inbound("u1", "before the break"))
	clk.Advance(3 * time.Second)

	clk.Advance(10 * time.Minute)
	agg.Enqueue(inbound("u1", "back again"))
	clk.Advance(3 * time.Second)

	batches := rec.all()
	require.Len(t, batches, 2)
	assert.False(t, batches[0].Forced, "first contact is never forced")
	assert.True(t, batches[1].Forced)
}

func TestEarlierPick(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{reply: true}
	agg := NewAggregator(logger.L, Options{
		Window:            3 * time.Second,
		LongBreak:         5 * time.Minute,
		EarlierPickChance: 0.15,
	}, clk, rec.resolve)
	agg.roll = func() float64 { return 0.1 }
	agg.pick = func(n int) int { return 0 }

	agg.Enqueue(inbound("u1", "early point"))
	agg.Enqueue(inbound("u1", "latest"))
	clk.Advance(3 * time.Second)

	batches := rec.all()
	require.Len(t, batches, 1)
	assert.Equal(t, "early point", batches[0].Target.Message.Text)
}

func TestStaleTimerFireWaitsForWindow(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{reply: true}
	agg := newTestAggregator(rec, clk)

	agg.Enqueue(inbound("u1", "one"))
	clk.Advance(time.Second)
	agg.Enqueue(inbound("u1", "two"))

	// With the real clock a timer callback can reach the lock just after a
	// new message slid the window. Such a fire must wait out the remainder
	// instead of resolving early.
	agg.fire("u1")
	assert.Empty(t, rec.all())

	clk.Advance(3 * time.Second)
	batches := rec.all()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Messages, 2)
	assert.Equal(t, "two", batches[0].Target.Message.Text)
}

func TestMessageDuringResolutionStartsNewBatch(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{reply: true}

	var agg *Aggregator
	resolve := func(ctx context.Context, batch Batch) bool {
		// Simulate a message arriving while the reply is being generated.
		if batch.Target.Message.Text == "first" {
			agg.Enqueue(inbound("u1", "while busy"))
		}
		return rec.resolve(ctx, batch)
	}
	agg = NewAggregator(logger.L, Options{
		Window:    3 * time.Second,
		LongBreak: 5 * time.Minute,
	}, clk, resolve)

	agg.Enqueue(inbound("u1", "first"))
	clk.Advance(3 * time.Second)
	require.Len(t, rec.all(), 1)

	clk.Advance(3 * time.Second)
	batches := rec.all()
	require.Len(t, batches, 2)
	assert.Equal(t, "while busy", batches[1].Target.Message.Text)
}
