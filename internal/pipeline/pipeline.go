package pipeline

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/kohanai/kohana/internal/assemble"
	"github.com/kohanai/kohana/internal/backend"
	"github.com/kohanai/kohana/internal/channel"
	"github.com/kohanai/kohana/internal/clock"
	"github.com/kohanai/kohana/internal/config"
	"github.com/kohanai/kohana/internal/debounce"
	"github.com/kohanai/kohana/internal/ephemeral"
	"github.com/kohanai/kohana/internal/gate"
	"github.com/kohanai/kohana/internal/memory"
	"github.com/kohanai/kohana/internal/persona"
)

// recentLines is how many history lines the gate classifier sees.
const recentLines = 6

// Service is the message intake pipeline.
type Service struct {
	logger    *slog.Logger
	cfg       config.PipelineConfig
	personas  PersonaStore
	memory    Memory
	backend   Backend
	gate      *gate.Service
	assembler *assemble.Assembler
	gifs      GIFSource
	senders   SenderResolver
	clock     clock.Clock
	agg       *debounce.Aggregator
	images    *ephemeral.Store[ImageRequest]
}

// NewService builds the pipeline. gifs may be nil when Tenor is not
// configured.
func NewService(
	log *slog.Logger,
	cfg config.PipelineConfig,
	personas PersonaStore,
	mem Memory,
	be Backend,
	g *gate.Service,
	assembler *assemble.Assembler,
	gifs GIFSource,
	senders SenderResolver,
	clk clock.Clock,
) *Service {
	if clk == nil {
		clk = clock.System()
	}
	s := &Service{
		logger:    log.With(slog.String("service", "pipeline")),
		cfg:       cfg,
		personas:  personas,
		memory:    mem,
		backend:   be,
		gate:      g,
		assembler: assembler,
		gifs:      gifs,
		senders:   senders,
		clock:     clk,
		images:    ephemeral.NewStore[ImageRequest](cfg.ImageRequestTTL(), clk),
	}
	s.agg = debounce.NewAggregator(log, debounce.Options{
		Window:            cfg.DebounceWindow(),
		LongBreak:         cfg.LongBreak(),
		EarlierPickChance: cfg.EarlierPickChance,
	}, clk, s.resolveBatch)
	return s
}

// SweepImages reaps expired image confirmations. Wired to a cron schedule.
func (s *Service) SweepImages() {
	if dropped := s.images.Sweep(); dropped > 0 {
		s.logger.Debug("expired image requests swept", slog.Int("dropped", dropped))
	}
}

// HandleInbound processes one normalized inbound message. It never fails a
// message hard: errors are logged and the message is dropped.
func (s *Service) HandleInbound(ctx context.Context, msg channel.InboundMessage) error {
	p := s.persona(ctx, msg.ContextID())

	if !msg.Conversation.Direct && !p.ChannelAllowed(msg.Conversation.ID) {
		return nil
	}
	if msg.Message.Text == "" && msg.Message.FirstImage() == nil {
		return nil
	}

	if msg.Message.Text != "" {
		if err := s.memory.Append(ctx, msg.Sender.ID, memory.RoleUser, msg.Message.Text); err != nil {
			s.logger.Error("append user turn failed", slog.Any("error", err))
		}
	}

	if p.ImageGeneration {
		if prompt, ok := imagePrompt(msg.Message.Text); ok {
			return s.requestImage(ctx, msg, prompt)
		}
	}

	req := gate.Request{
		Text:          msg.Message.Text,
		SenderName:    msg.Sender.Username,
		Mentioned:     msg.Mentioned,
		ReplyToBot:    msg.ReplyToBot,
		DirectMessage: msg.Conversation.Direct,
		PersonaName:   p.Name,
	}
	if d, ok := s.gate.Quick(req); ok {
		s.logger.Debug("fast path reply",
			slog.String("user_id", msg.Sender.ID),
			slog.String("reason", d.Reason))
		s.respond(ctx, msg, p)
		return nil
	}

	s.agg.Enqueue(msg)
	return nil
}

// resolveBatch runs when a user's debounce window closes. Reports whether a
// reply was sent so the aggregator can track suppressions.
func (s *Service) resolveBatch(ctx context.Context, batch debounce.Batch) bool {
	msg := batch.Target
	p := s.persona(ctx, msg.ContextID())

	d := s.gate.Decide(ctx, gate.Request{
		Text:          msg.Message.Text,
		SenderName:    msg.Sender.Username,
		Mentioned:     msg.Mentioned,
		ReplyToBot:    msg.ReplyToBot,
		DirectMessage: msg.Conversation.Direct,
		Forced:        batch.Forced,
		Suppressed:    batch.Suppressed,
		PersonaName:   p.Name,
		PersonaTraits: p.Personality,
		Recent:        s.recent(ctx, msg.Sender.ID),
		Now:           s.clock.Now(),
		LastResolved:  batch.LastResolved,
	})
	if !d.Reply {
		s.logger.Debug("reply suppressed",
			slog.String("user_id", msg.Sender.ID),
			slog.Int("suppressed", batch.Suppressed))
		return false
	}
	return s.respond(ctx, msg, p)
}

// respond generates and delivers one reply. Reports whether it was sent.
func (s *Service) respond(ctx context.Context, msg channel.InboundMessage, p persona.Persona) bool {
	sender, ok := s.senders.Sender(msg.Channel)
	if !ok {
		s.logger.Warn("no sender for channel", slog.String("channel", msg.Channel.String()))
		return false
	}

	if err := sender.Typing(ctx, msg.Target()); err != nil {
		s.logger.Debug("typing indicator failed", slog.Any("error", err))
	}

	// Load the whole log; compaction keeps it bounded, and the summary row
	// can sit deeper than the prompt window. The assembler applies the
	// window after pulling the summary out.
	history, err := s.memory.History(ctx, msg.Sender.ID, 0)
	if err != nil {
		s.logger.Error("load history failed", slog.Any("error", err))
		history = nil
	}

	in := assemble.Input{
		Persona:    p,
		History:    history,
		Text:       msg.Message.Text,
		SenderName: msg.Sender.Username,
	}
	if att := msg.Message.FirstImage(); att != nil {
		in.ImageURL = att.URL
		in.ImageData = att.Data
		in.ImageMime = att.Mime
	}

	text, err := s.backend.Generate(ctx, s.assembler.Assemble(ctx, in), backend.DefaultGenerationConfig())
	if err != nil {
		s.logger.Error("generation failed, staying silent", slog.Any("error", err))
		return false
	}

	s.delay()

	err = sender.Send(ctx, channel.OutboundMessage{
		Target: msg.Target(),
		Message: channel.Message{
			Text:    text,
			ReplyTo: msg.Message.ID,
		},
	})
	if err != nil {
		s.logger.Error("send reply failed", slog.Any("error", err))
		return false
	}

	if err := s.memory.Append(ctx, msg.Sender.ID, memory.RoleModel, text); err != nil {
		s.logger.Error("append model turn failed", slog.Any("error", err))
	}

	s.chaseWithGIF(ctx, sender, msg)
	return true
}

// delay sleeps a small random interval before sending, to feel less
// instantaneous. Disabled when the configured maximum is zero.
func (s *Service) delay() {
	if s.cfg.ReplyDelayMaxMs <= 0 {
		return
	}
	time.Sleep(time.Duration(rand.Intn(s.cfg.ReplyDelayMaxMs)) * time.Millisecond)
}

// chaseWithGIF occasionally follows a reply with a GIF matching the user's
// message. Failures are silent.
func (s *Service) chaseWithGIF(ctx context.Context, sender channel.Sender, msg channel.InboundMessage) {
	if s.gifs == nil || !s.gifs.ShouldChase() {
		return
	}
	url, err := s.gifs.Search(ctx, msg.Message.Text)
	if err != nil {
		s.logger.Debug("gif search failed", slog.Any("error", err))
		return
	}
	err = sender.Send(ctx, channel.OutboundMessage{
		Target:  msg.Target(),
		Message: channel.Message{Text: url},
	})
	if err != nil {
		s.logger.Debug("gif send failed", slog.Any("error", err))
	}
}

// persona loads settings for a context, falling back to the built-in
// default when the store is unavailable.
func (s *Service) persona(ctx context.Context, contextID string) persona.Persona {
	p, err := s.personas.Get(ctx, contextID)
	if err != nil {
		s.logger.Error("load persona failed, using default", slog.Any("error", err))
		return persona.Default(contextID)
	}
	return p
}

// recent returns the last few history lines rendered for the gate
// classifier.
func (s *Service) recent(ctx context.Context, userID string) []string {
	turns, err := s.memory.History(ctx, userID, recentLines)
	if err != nil {
		return nil
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.Role+": "+t.Content)
	}
	return lines
}
