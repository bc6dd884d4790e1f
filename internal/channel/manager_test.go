package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type recordingProcessor struct {
	mu       sync.Mutex
	messages []InboundMessage
	actions  []ActionEvent
	err      error
	done     chan struct{}
}

func (p *recordingProcessor) HandleInbound(_ context.Context, msg InboundMessage) error {
	p.mu.Lock()
	p.messages = append(p.messages, msg)
	p.mu.Unlock()
	if p.done != nil {
		p.done <- struct{}{}
	}
	return p.err
}

func (p *recordingProcessor) HandleAction(_ context.Context, ev ActionEvent) error {
	p.mu.Lock()
	p.actions = append(p.actions, ev)
	p.mu.Unlock()
	if p.done != nil {
		p.done <- struct{}{}
	}
	return p.err
}

func TestManagerDispatchesInbound(t *testing.T) {
	proc := &recordingProcessor{done: make(chan struct{}, 4)}
	m := NewManager(slog.Default(), 2)
	m.SetProcessor(proc)
	m.startWorkers(context.Background())
	defer m.workerStop()

	m.OnMessage(context.Background(), InboundMessage{Channel: TypeDiscord, Sender: Identity{ID: "u1"}})
	m.OnAction(context.Background(), ActionEvent{Channel: TypeDiscord, ActionID: "a1"})

	for i := 0; i < 2; i++ {
		select {
		case <-proc.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for dispatch")
		}
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	if len(proc.messages) != 1 || proc.messages[0].Sender.ID != "u1" {
		t.Fatalf("messages = %+v", proc.messages)
	}
	if len(proc.actions) != 1 || proc.actions[0].ActionID != "a1" {
		t.Fatalf("actions = %+v", proc.actions)
	}
}

func TestManagerIsolatesProcessorFailures(t *testing.T) {
	proc := &recordingProcessor{done: make(chan struct{}, 4), err: errors.New("boom")}
	m := NewManager(slog.Default(), 1)
	m.SetProcessor(proc)
	m.startWorkers(context.Background())
	defer m.workerStop()

	m.OnMessage(context.Background(), InboundMessage{Channel: TypeDiscord, Sender: Identity{ID: "u1"}})
	m.OnMessage(context.Background(), InboundMessage{Channel: TypeDiscord, Sender: Identity{ID: "u2"}})

	for i := 0; i < 2; i++ {
		select {
		case <-proc.done:
		case <-time.After(2 * time.Second):
			t.Fatal("a failing handler must not stall the worker")
		}
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	if len(proc.messages) != 2 {
		t.Fatalf("expected both messages handled, got %d", len(proc.messages))
	}
}

func TestStartAllRequiresProcessor(t *testing.T) {
	m := NewManager(slog.Default(), 1)
	if err := m.StartAll(context.Background()); err == nil {
		t.Fatal("expected error without processor")
	}
}
