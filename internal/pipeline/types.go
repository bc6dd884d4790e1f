// Package pipeline wires the intake path: gate, debounce, assembly,
// generation and delivery. It is the channel manager's message processor.
package pipeline

import (
	"context"

	"github.com/kohanai/kohana/internal/backend"
	"github.com/kohanai/kohana/internal/channel"
	"github.com/kohanai/kohana/internal/memory"
	"github.com/kohanai/kohana/internal/persona"
)

// PersonaStore reads companion settings per context.
type PersonaStore interface {
	Get(ctx context.Context, contextID string) (persona.Persona, error)
}

// Memory is the bounded per-user conversation log.
type Memory interface {
	Append(ctx context.Context, userID, role, content string) error
	History(ctx context.Context, userID string, limit int) ([]memory.Turn, error)
}

// Backend is the generation service used for replies and images.
type Backend interface {
	Generate(ctx context.Context, messages []backend.Message, cfg backend.GenerationConfig) (string, error)
	Classify(ctx context.Context, prompt string) (bool, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// GIFSource occasionally provides a GIF to chase a reply with.
type GIFSource interface {
	ShouldChase() bool
	Search(ctx context.Context, query string) (string, error)
}

// SenderResolver looks up the outbound half of a connected channel.
type SenderResolver interface {
	Sender(t channel.Type) (channel.Sender, bool)
}

// ImageRequest is a pending image-generation confirmation. It lives in the
// ephemeral store between the "draw this?" prompt and the button click.
type ImageRequest struct {
	Channel channel.Type
	UserID  string
	Target  string
	Prompt  string
}
