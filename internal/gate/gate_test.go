package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kohanai/kohana/internal/logger"
)

type stubClassifier struct {
	answer bool
	err    error
	calls  int
}

func (c *stubClassifier) Classify(_ context.Context, _ string) (bool, error) {
	c.calls++
	return c.answer, c.err
}

func TestFastPathsSkipClassifier(t *testing.T) {
	tests := []struct {
		name   string
		req    Request
		reason string
	}{
		{"mention", Request{Text: "hey there", Mentioned: true}, ReasonMention},
		{"reply to bot", Request{Text: "yeah exactly", ReplyToBot: true}, ReasonReply},
		{"persona name", Request{Text: "kohana what do you think?", PersonaName: "Kohana"}, ReasonName},
		{"name with punctuation", Request{Text: "good morning Kohana!", PersonaName: "Kohana"}, ReasonName},
		{"direct message", Request{Text: "hi", DirectMessage: true}, ReasonDirect},
		{"forced after long break", Request{Text: "anyone around", Forced: true}, ReasonForced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := &stubClassifier{}
			svc := NewService(logger.L, classifier, 2)

			got := svc.Decide(context.Background(), tt.req)
			assert.True(t, got.Reply)
			assert.Equal(t, tt.reason, got.Reason)
			assert.Zero(t, classifier.calls)
		})
	}
}

func TestNameSubstringDoesNotTrigger(t *testing.T) {
	classifier := &stubClassifier{answer: false}
	svc := NewService(logger.L, classifier, 2)

	got := svc.Decide(context.Background(), Request{
		Text:        "the kohanas are a family I know",
		PersonaName: "Kohana",
	})
	assert.False(t, got.Reply)
	assert.Equal(t, 1, classifier.calls)
}

func TestSuppressionCapForcesReply(t *testing.T) {
	classifier := &stubClassifier{answer: false}
	svc := NewService(logger.L, classifier, 2)

	got := svc.Decide(context.Background(), Request{Text: "just saying things", Suppressed: 2})
	assert.True(t, got.Reply)
	assert.Equal(t, ReasonCap, got.Reason)
	assert.Zero(t, classifier.calls)
}

func TestGreetingAfterQuietSpell(t *testing.T) {
	classifier := &stubClassifier{answer: false}
	svc := NewService(logger.L, classifier, 2)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	got := svc.Decide(context.Background(), Request{
		Text:         "hey",
		Now:          now,
		LastResolved: now.Add(-10 * time.Minute),
	})
	assert.True(t, got.Reply)
	assert.Equal(t, ReasonGreeting, got.Reason)
	assert.Zero(t, classifier.calls)
}

func TestGreetingDuringActiveChatGoesToClassifier(t *testing.T) {
	classifier := &stubClassifier{answer: false}
	svc := NewService(logger.L, classifier, 2)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	got := svc.Decide(context.Background(), Request{
		Text:         "hey",
		Now:          now,
		LastResolved: now.Add(-30 * time.Second),
	})
	assert.False(t, got.Reply)
	assert.Equal(t, 1, classifier.calls)
}

func TestClassifierDecides(t *testing.T) {
	classifier := &stubClassifier{answer: true}
	svc := NewService(logger.L, classifier, 2)

	got := svc.Decide(context.Background(), Request{Text: "can someone explain how dns works"})
	assert.True(t, got.Reply)
	assert.Equal(t, ReasonClassifier, got.Reason)
	assert.Equal(t, 1, classifier.calls)
}

func TestClassifierFailureFallsBack(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("backend down")}
	svc := NewService(logger.L, classifier, 2)
	svc.roll = func() float64 { return 0.9 }

	got := svc.Decide(context.Background(), Request{Text: "what is going on here?"})
	assert.True(t, got.Reply)
	assert.Equal(t, ReasonFallback, got.Reason)
}

func TestFallbackShortMessage(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("backend down")}
	svc := NewService(logger.L, classifier, 2)
	svc.roll = func() float64 { return 0.99 }

	got := svc.Decide(context.Background(), Request{Text: "ok"})
	assert.False(t, got.Reply)
	assert.Equal(t, ReasonFallback, got.Reason)
}

func TestFallbackGreetingUsuallySilent(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("backend down")}
	svc := NewService(logger.L, classifier, 2)
	svc.roll = func() float64 { return 0.5 }

	got := svc.Decide(context.Background(), Request{Text: "hello"})
	assert.False(t, got.Reply)
}
