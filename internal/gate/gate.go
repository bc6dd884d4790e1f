// Package gate decides whether the bot should respond to a message. It
// combines deterministic triggers (mention, reply, name match, DM) with an
// LLM classifier and a keyword heuristic fallback.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"
)

// greetingQuiet is the silence needed before a plain greeting earns a reply
// on its own.
const greetingQuiet = 5 * time.Minute

// Classifier answers a single YES/NO question.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (bool, error)
}

// Request carries everything the gate needs to decide one message.
type Request struct {
	Text          string
	SenderName    string
	Mentioned     bool
	ReplyToBot    bool
	DirectMessage bool
	// Forced is set by the aggregator after a long break; it bypasses the
	// classifier entirely.
	Forced bool
	// Suppressed counts consecutive skipped replies for this user.
	Suppressed    int
	PersonaName   string
	PersonaTraits string
	// Recent holds a short slice of the latest conversation lines, oldest
	// first, for classifier context.
	Recent []string
	// Now and LastResolved drive the greeting rule: a plain greeting after a
	// quiet spell gets a reply. Both zero disables the rule.
	Now          time.Time
	LastResolved time.Time
}

// Decision is the gate outcome. Reason names the rule that fired.
type Decision struct {
	Reply  bool
	Reason string
}

// Decision reasons.
const (
	ReasonMention    = "mention"
	ReasonReply      = "reply"
	ReasonName       = "name"
	ReasonDirect     = "direct"
	ReasonForced     = "forced"
	ReasonCap        = "cap"
	ReasonGreeting   = "greeting"
	ReasonClassifier = "classifier"
	ReasonFallback   = "fallback"
)

// Service is the reply gate. Cap is the consecutive-suppression limit after
// which a reply is forced.
type Service struct {
	logger     *slog.Logger
	classifier Classifier
	cap        int

	// roll is the random source for the fallback heuristic, replaceable
	// in tests.
	roll func() float64
}

// NewService builds a gate around the given classifier.
func NewService(log *slog.Logger, classifier Classifier, cap int) *Service {
	if cap <= 0 {
		cap = 2
	}
	return &Service{
		logger:     log.With(slog.String("service", "gate")),
		classifier: classifier,
		cap:        cap,
		roll:       rand.Float64,
	}
}

// Cap returns the consecutive-suppression limit.
func (s *Service) Cap() int { return s.cap }

// Quick evaluates only the deterministic triggers. The second return is
// false when they are inconclusive and the full gate must run later.
func (s *Service) Quick(req Request) (Decision, bool) {
	if req.Mentioned {
		return Decision{Reply: true, Reason: ReasonMention}, true
	}
	if req.ReplyToBot {
		return Decision{Reply: true, Reason: ReasonReply}, true
	}
	if nameMentioned(req.Text, req.PersonaName) {
		return Decision{Reply: true, Reason: ReasonName}, true
	}
	if req.DirectMessage {
		return Decision{Reply: true, Reason: ReasonDirect}, true
	}
	return Decision{}, false
}

// Decide returns whether to respond to the message. It never returns an
// error for a well-formed request: classifier failures fall back to a
// keyword heuristic.
func (s *Service) Decide(ctx context.Context, req Request) Decision {
	if d, ok := s.Quick(req); ok {
		return d
	}
	if req.Forced {
		return Decision{Reply: true, Reason: ReasonForced}
	}
	if req.Suppressed >= s.cap {
		return Decision{Reply: true, Reason: ReasonCap}
	}
	if greetingAfterQuiet(req) {
		return Decision{Reply: true, Reason: ReasonGreeting}
	}

	if s.classifier != nil {
		reply, err := s.classifier.Classify(ctx, s.buildPrompt(req))
		if err == nil {
			return Decision{Reply: reply, Reason: ReasonClassifier}
		}
		s.logger.Warn("classifier failed, using fallback heuristic", slog.Any("error", err))
	}
	return Decision{Reply: s.fallback(req), Reason: ReasonFallback}
}

// nameMentioned reports whether the persona name appears in the text as a
// word of its own.
func nameMentioned(text, name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	for _, field := range strings.Fields(strings.ToLower(text)) {
		if strings.Trim(field, ".,!?;:'\"") == name {
			return true
		}
	}
	return false
}

func (s *Service) buildPrompt(req Request) string {
	var sb strings.Builder
	name := req.PersonaName
	if name == "" {
		name = "the bot"
	}
	fmt.Fprintf(&sb, "Analyze if this message requires a thoughtful reply from a human-like chat bot named %s.\n\n", name)
	sb.WriteString("Guidelines for replying:\n")
	sb.WriteString("- Reply to direct questions, requests for help, or meaningful conversations\n")
	sb.WriteString("- Reply to emotional expressions (happy, sad, excited, etc.)\n")
	sb.WriteString("- Reply to messages that seem to want engagement or response\n")
	sb.WriteString("- DO NOT reply to simple greetings like \"hi\", \"hello\" unless they seem to want conversation\n")
	sb.WriteString("- DO NOT reply to random statements, spam, or filler messages\n")
	sb.WriteString("- DO NOT reply to messages that are clearly not directed at anyone\n")
	sb.WriteString("- Consider the conversational context and flow\n\n")
	if req.PersonaTraits != "" {
		fmt.Fprintf(&sb, "Bot persona: %s\n", req.PersonaTraits)
	}
	if len(req.Recent) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, line := range req.Recent {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	if req.SenderName != "" {
		fmt.Fprintf(&sb, "Message from %s: %q\n\n", req.SenderName, req.Text)
	} else {
		fmt.Fprintf(&sb, "Message to analyze: %q\n\n", req.Text)
	}
	sb.WriteString("Respond with only one word: YES or NO")
	return sb.String()
}

// greetingAfterQuiet reports whether the message is a bare greeting after a
// long enough silence that ignoring it would feel rude.
func greetingAfterQuiet(req Request) bool {
	if req.Now.IsZero() {
		return false
	}
	if !plainGreetings[strings.ToLower(strings.TrimSpace(req.Text))] {
		return false
	}
	return req.LastResolved.IsZero() || req.Now.Sub(req.LastResolved) >= greetingQuiet
}

var (
	plainGreetings = map[string]bool{
		"hi": true, "hello": true, "hey": true, "yo": true, "sup": true,
	}
	emotionalWords = []string{
		"sad", "happy", "excited", "angry", "worried", "tired", "bored", "lonely",
	}
)

// fallback is the conservative decision used when the classifier is down.
func (s *Service) fallback(req Request) bool {
	msg := strings.ToLower(strings.TrimSpace(req.Text))

	if strings.Contains(msg, "?") {
		return s.roll() > 0.4
	}
	if len(msg) < 3 {
		return false
	}
	if plainGreetings[msg] {
		return s.roll() > 0.8
	}
	for _, word := range emotionalWords {
		if strings.Contains(msg, word) {
			return s.roll() > 0.3
		}
	}
	return s.roll() > 0.7
}
