package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

const defaultQueueSize = 256

// Processor handles normalized inbound traffic. The manager guarantees each
// call runs inside its own error boundary: a failure is logged and never
// affects other messages or the process.
type Processor interface {
	HandleInbound(ctx context.Context, msg InboundMessage) error
	HandleAction(ctx context.Context, ev ActionEvent) error
}

type task struct {
	ctx    context.Context
	msg    *InboundMessage
	action *ActionEvent
}

// Manager owns the registered adapters, their live connections, and the
// worker pool that dispatches inbound events to the processor.
type Manager struct {
	logger    *slog.Logger
	processor Processor

	mu       sync.Mutex
	adapters map[Type]Adapter
	conns    []Connection

	workers    int
	queue      chan task
	workerOnce sync.Once
	workerCtx  context.Context
	workerStop context.CancelFunc
}

// NewManager creates a manager with the given worker count.
func NewManager(log *slog.Logger, workers int) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	return &Manager{
		logger:   log.With(slog.String("component", "channel_manager")),
		adapters: map[Type]Adapter{},
		workers:  workers,
		queue:    make(chan task, defaultQueueSize),
	}
}

// SetProcessor installs the inbound processor. Must be called before StartAll.
func (m *Manager) SetProcessor(p Processor) {
	m.processor = p
}

// Register adds an adapter. Later registrations of the same type win.
func (m *Manager) Register(a Adapter) {
	if a == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapters[a.Type()] = a
}

// Sender returns the outbound side of the adapter for t.
func (m *Manager) Sender(t Type) (Sender, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	adapter, ok := m.adapters[t]
	if !ok {
		return nil, false
	}
	sender, ok := adapter.(Sender)
	return sender, ok
}

// StartAll connects every registered receiver and starts the worker pool.
func (m *Manager) StartAll(ctx context.Context) error {
	if m.processor == nil {
		return errors.New("inbound processor not configured")
	}
	m.startWorkers(ctx)

	m.mu.Lock()
	adapters := make([]Adapter, 0, len(m.adapters))
	for _, a := range m.adapters {
		adapters = append(adapters, a)
	}
	m.mu.Unlock()

	for _, a := range adapters {
		receiver, ok := a.(Receiver)
		if !ok {
			continue
		}
		conn, err := receiver.Connect(ctx, m)
		if err != nil {
			return fmt.Errorf("connect %s: %w", a.Type(), err)
		}
		m.mu.Lock()
		m.conns = append(m.conns, conn)
		m.mu.Unlock()
		m.logger.Info("channel connected", slog.String("channel", a.Type().String()))
	}
	return nil
}

// StopAll stops every live connection and the worker pool.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	conns := m.conns
	m.conns = nil
	m.mu.Unlock()

	var firstErr error
	for _, conn := range conns {
		if err := conn.Stop(ctx); err != nil && !errors.Is(err, ErrStopNotSupported) {
			if firstErr == nil {
				firstErr = err
			}
			m.logger.Error("stop connection failed",
				slog.String("channel", conn.ChannelType().String()), slog.Any("error", err))
		}
	}
	if m.workerStop != nil {
		m.workerStop()
	}
	return firstErr
}

// OnMessage enqueues an inbound message; drops with a log line when the
// queue is full rather than blocking the gateway read loop.
func (m *Manager) OnMessage(ctx context.Context, msg InboundMessage) {
	m.enqueue(task{ctx: context.WithoutCancel(ctx), msg: &msg})
}

// OnAction enqueues a button click event.
func (m *Manager) OnAction(ctx context.Context, ev ActionEvent) {
	m.enqueue(task{ctx: context.WithoutCancel(ctx), action: &ev})
}

func (m *Manager) enqueue(t task) {
	select {
	case m.queue <- t:
	default:
		m.logger.Warn("inbound queue full, dropping event")
	}
}

func (m *Manager) startWorkers(ctx context.Context) {
	m.workerOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		m.workerCtx, m.workerStop = context.WithCancel(context.WithoutCancel(ctx))
		for i := 0; i < m.workers; i++ {
			go m.runWorker(m.workerCtx)
		}
	})
}

func (m *Manager) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-m.queue:
			m.dispatch(t)
		}
	}
}

func (m *Manager) dispatch(t task) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("inbound handler panicked", slog.Any("panic", r))
		}
	}()

	switch {
	case t.msg != nil:
		if err := m.processor.HandleInbound(t.ctx, *t.msg); err != nil {
			m.logger.Error("inbound processing failed",
				slog.String("channel", t.msg.Channel.String()),
				slog.String("sender", t.msg.Sender.ID),
				slog.Any("error", err))
		}
	case t.action != nil:
		if err := m.processor.HandleAction(t.ctx, *t.action); err != nil {
			m.logger.Error("action processing failed",
				slog.String("channel", t.action.Channel.String()),
				slog.String("action", t.action.ActionID),
				slog.Any("error", err))
		}
	}
}
