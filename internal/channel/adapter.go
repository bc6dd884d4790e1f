package channel

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrStopNotSupported is returned by connections that cannot be stopped.
var ErrStopNotSupported = errors.New("channel connection stop not supported")

// Events receives normalized inbound traffic from an adapter. Implementations
// must not block; the manager queues work internally.
type Events interface {
	OnMessage(ctx context.Context, msg InboundMessage)
	OnAction(ctx context.Context, ev ActionEvent)
}

// Adapter identifies a platform binding.
type Adapter interface {
	Type() Type
}

// Sender delivers outbound traffic for one platform.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
	Typing(ctx context.Context, target string) error
	// Update edits a previously sent message in place (used to resolve
	// confirmation prompts). Adapters that cannot edit may send a new message.
	Update(ctx context.Context, target, messageID, text string) error
}

// Receiver connects to the platform gateway and feeds events until the
// context is cancelled or the connection is stopped.
type Receiver interface {
	Connect(ctx context.Context, events Events) (Connection, error)
}

// Connection is a live gateway session.
type Connection interface {
	ChannelType() Type
	Stop(ctx context.Context) error
	Running() bool
}

// BaseConnection is the common Connection implementation adapters embed.
type BaseConnection struct {
	channelType Type
	stop        func(ctx context.Context) error
	running     atomic.Bool
}

// NewConnection creates a running connection with the given stop hook.
func NewConnection(t Type, stop func(ctx context.Context) error) *BaseConnection {
	conn := &BaseConnection{
		channelType: t,
		stop:        stop,
	}
	conn.running.Store(true)
	return conn
}

func (c *BaseConnection) ChannelType() Type {
	return c.channelType
}

func (c *BaseConnection) Stop(ctx context.Context) error {
	if c.stop == nil {
		return ErrStopNotSupported
	}
	err := c.stop(ctx)
	if err == nil {
		c.running.Store(false)
	}
	return err
}

func (c *BaseConnection) Running() bool {
	return c.running.Load()
}
