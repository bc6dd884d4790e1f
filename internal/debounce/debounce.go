// Package debounce coalesces bursts of messages from one user into a single
// response decision, so the bot answers at a natural pace instead of line by
// line.
package debounce

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/kohanai/kohana/internal/channel"
	"github.com/kohanai/kohana/internal/clock"
)

// Batch is one resolved burst of messages from a single user.
type Batch struct {
	UserID   string
	Messages []channel.InboundMessage
	// Target is the message the response should address. Normally the most
	// recent of the batch, occasionally an earlier one.
	Target channel.InboundMessage
	// Forced is set when the gap since the user's previous resolution
	// exceeded the long-break threshold.
	Forced bool
	// Suppressed is the number of consecutive resolutions for this user
	// that ended without a reply.
	Suppressed int
	// LastResolved is when the user's previous batch resolved; zero on
	// first contact.
	LastResolved time.Time
}

// ResolveFunc handles a resolved batch and reports whether a reply was sent.
type ResolveFunc func(ctx context.Context, batch Batch) bool

// Options tunes the aggregator.
type Options struct {
	// Window is the sliding debounce delay. Each new message restarts it.
	Window time.Duration
	// LongBreak is the quiet gap after which a reply is forced.
	LongBreak time.Duration
	// EarlierPickChance is the probability of addressing an earlier message
	// of the batch instead of the latest.
	EarlierPickChance float64
}

type userState struct {
	pending []channel.InboundMessage
	timer   clock.Timer
	// deadline is when the current window closes. A fire that wakes up
	// before it (its timer was superseded while it waited on the lock) must
	// not resolve.
	deadline     time.Time
	suppressed   int
	lastResolved time.Time
	resolving    bool
	refire       bool
}

// Aggregator buffers messages per user and resolves each burst once the
// window closes. Users are independent; resolutions for different users may
// run concurrently, but a single user never has two resolutions in flight.
type Aggregator struct {
	logger  *slog.Logger
	opts    Options
	clock   clock.Clock
	resolve ResolveFunc

	mu    sync.Mutex
	users map[string]*userState

	// roll is the random source for the earlier-pick draw, replaceable in
	// tests.
	roll func() float64
	pick func(n int) int
}

// NewAggregator builds an aggregator that hands resolved batches to resolve.
func NewAggregator(log *slog.Logger, opts Options, clk clock.Clock, resolve ResolveFunc) *Aggregator {
	if opts.Window <= 0 {
		opts.Window = 4 * time.Second
	}
	if opts.LongBreak <= 0 {
		opts.LongBreak = 5 * time.Minute
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Aggregator{
		logger:  log.With(slog.String("service", "debounce")),
		opts:    opts,
		clock:   clk,
		resolve: resolve,
		users:   make(map[string]*userState),
		roll:    rand.Float64,
		pick:    rand.Intn,
	}
}

// Enqueue buffers a message for its sender and restarts the user's window.
func (a *Aggregator) Enqueue(msg channel.InboundMessage) {
	userID := msg.Sender.ID

	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.users[userID]
	if !ok {
		state = &userState{}
		a.users[userID] = state
	}
	state.pending = append(state.pending, msg)
	state.deadline = a.clock.Now().Add(a.opts.Window)

	if state.resolving {
		// The burst in flight keeps its batch; this message starts the
		// next one once resolution completes.
		state.refire = true
		return
	}
	if state.timer == nil {
		state.timer = a.clock.AfterFunc(a.opts.Window, func() { a.fire(userID) })
		return
	}
	state.timer.Reset(a.opts.Window)
}

// Suppressed returns the user's current consecutive-suppression count.
func (a *Aggregator) Suppressed(userID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if state, ok := a.users[userID]; ok {
		return state.suppressed
	}
	return 0
}

// fire runs when a user's window closes. It swaps the pending batch out
// under the lock and resolves it without holding the lock.
func (a *Aggregator) fire(userID string) {
	a.mu.Lock()
	state, ok := a.users[userID]
	if !ok || len(state.pending) == 0 || state.resolving {
		a.mu.Unlock()
		return
	}
	now := a.clock.Now()
	if now.Before(state.deadline) {
		// A message arrived while this fire waited on the lock and slid the
		// window; run out the remainder instead of resolving early.
		state.timer = a.clock.AfterFunc(state.deadline.Sub(now), func() { a.fire(userID) })
		a.mu.Unlock()
		return
	}
	state.resolving = true
	messages := state.pending
	state.pending = nil

	forced := !state.lastResolved.IsZero() && now.Sub(state.lastResolved) > a.opts.LongBreak
	batch := Batch{
		UserID:       userID,
		Messages:     messages,
		Target:       a.pickTarget(messages),
		Forced:       forced,
		Suppressed:   state.suppressed,
		LastResolved: state.lastResolved,
	}
	a.mu.Unlock()

	replied := a.resolve(context.Background(), batch)

	a.mu.Lock()
	defer a.mu.Unlock()
	state.lastResolved = a.clock.Now()
	if replied {
		state.suppressed = 0
	} else {
		state.suppressed++
	}
	state.resolving = false
	if state.refire && len(state.pending) > 0 {
		state.refire = false
		state.deadline = a.clock.Now().Add(a.opts.Window)
		state.timer = a.clock.AfterFunc(a.opts.Window, func() { a.fire(userID) })
	} else {
		state.refire = false
		state.timer = nil
	}
	a.logger.Debug("batch resolved",
		slog.String("user_id", userID),
		slog.Int("messages", len(batch.Messages)),
		slog.Bool("replied", replied),
		slog.Bool("forced", batch.Forced))
}

// pickTarget selects the message a resolution should address.
func (a *Aggregator) pickTarget(messages []channel.InboundMessage) channel.InboundMessage {
	last := len(messages) - 1
	if last > 0 && a.opts.EarlierPickChance > 0 && a.roll() < a.opts.EarlierPickChance {
		return messages[a.pick(last)]
	}
	return messages[last]
}
