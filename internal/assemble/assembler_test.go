package assemble

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohanai/kohana/internal/backend"
	"github.com/kohanai/kohana/internal/logger"
	"github.com/kohanai/kohana/internal/memory"
	"github.com/kohanai/kohana/internal/persona"
	"github.com/kohanai/kohana/internal/search"
)

type stubClassifier struct {
	answer bool
	err    error
}

func (c *stubClassifier) Classify(_ context.Context, _ string) (bool, error) {
	return c.answer, c.err
}

type stubSearcher struct {
	results []search.Result
	err     error
	calls   int
}

func (s *stubSearcher) Search(_ context.Context, _ string) ([]search.Result, error) {
	s.calls++
	return s.results, s.err
}

func TestAssembleTextOnlyEmptyHistory(t *testing.T) {
	a := New(logger.L, nil, nil, 20)

	got := a.Assemble(context.Background(), Input{
		Persona: persona.Default("direct"),
		Text:    "hi",
	})

	// Persona pair then the current message.
	require.Len(t, got, 3)
	assert.Equal(t, backend.RoleUser, got[0].Role)
	assert.Contains(t, got[0].Text, "Kohana")
	assert.Equal(t, backend.RoleModel, got[1].Role)
	assert.Equal(t, "Okay, I understand.", got[1].Text)
	assert.Equal(t, backend.RoleUser, got[2].Role)
	assert.Equal(t, "hi", got[2].Text)
}

func TestAssembleOrdersHistoryBeforeCurrent(t *testing.T) {
	a := New(logger.L, nil, nil, 20)

	got := a.Assemble(context.Background(), Input{
		Persona: persona.Default("direct"),
		History: []memory.Turn{
			{Role: memory.RoleUser, Content: "what games do you like"},
			{Role: memory.RoleModel, Content: "mostly rhythm games lately"},
		},
		Text: "which one is your favorite?",
	})

	require.Len(t, got, 5)
	assert.Equal(t, "what games do you like", got[2].Text)
	assert.Equal(t, backend.RoleModel, got[3].Role)
	assert.Equal(t, "which one is your favorite?", got[4].Text)
}

func TestAssembleDropsPersistedCurrentTurn(t *testing.T) {
	a := New(logger.L, nil, nil, 20)

	got := a.Assemble(context.Background(), Input{
		Persona: persona.Default("direct"),
		History: []memory.Turn{
			{Role: memory.RoleUser, Content: "earlier line"},
			{Role: memory.RoleUser, Content: "hi"},
		},
		Text: "hi",
	})

	require.Len(t, got, 4)
	assert.Equal(t, "earlier line", got[2].Text)
	assert.Equal(t, "hi", got[3].Text)
}

func TestAssembleSummaryComesFirst(t *testing.T) {
	a := New(logger.L, nil, nil, 20)

	got := a.Assemble(context.Background(), Input{
		Persona: persona.Default("direct"),
		History: []memory.Turn{
			{Role: memory.RoleSummary, Content: "They talked about travel plans."},
			{Role: memory.RoleUser, Content: "so about that trip"},
		},
		Text: "should I book it?",
	})

	require.Len(t, got, 5)
	assert.Contains(t, got[2].Text, "They talked about travel plans.")
	assert.Equal(t, "so about that trip", got[3].Text)
}

func TestAssembleSummarySurvivesWindow(t *testing.T) {
	a := New(logger.L, nil, nil, 4)

	history := []memory.Turn{
		{Role: memory.RoleSummary, Content: "They talked about travel plans."},
	}
	for i := 0; i < 10; i++ {
		history = append(history, memory.Turn{Role: memory.RoleUser, Content: string(rune('a' + i))})
	}

	got := a.Assemble(context.Background(), Input{
		Persona: persona.Default("direct"),
		History: history,
		Text:    "latest",
	})

	// Persona pair + summary + 4 windowed turns + current message. The
	// summary leads the prompt even though it sits well past the window.
	require.Len(t, got, 8)
	assert.Contains(t, got[2].Text, "They talked about travel plans.")
	assert.Equal(t, "g", got[3].Text)
	assert.Equal(t, "latest", got[7].Text)
}

func TestAssembleWindowBound(t *testing.T) {
	a := New(logger.L, nil, nil, 4)

	history := make([]memory.Turn, 10)
	for i := range history {
		history[i] = memory.Turn{Role: memory.RoleUser, Content: string(rune('a' + i))}
	}

	got := a.Assemble(context.Background(), Input{
		Persona: persona.Default("direct"),
		History: history,
		Text:    "latest",
	})

	// Persona pair + 4 history turns + current message.
	require.Len(t, got, 7)
	assert.Equal(t, "g", got[2].Text)
	assert.Equal(t, "j", got[5].Text)
}

func TestAssembleInlineImageSkipsHistory(t *testing.T) {
	a := New(logger.L, nil, nil, 20)

	got := a.Assemble(context.Background(), Input{
		Persona:   persona.Default("direct"),
		History:   []memory.Turn{{Role: memory.RoleUser, Content: "older chatter"}},
		Text:      "what is this?",
		ImageData: []byte{0x89, 0x50},
		ImageMime: "image/png",
	})

	require.Len(t, got, 3)
	require.NotNil(t, got[2].Inline)
	assert.Equal(t, "image/png", got[2].Inline.MIMEType)
	assert.Equal(t, "what is this?", got[2].Text)
}

func TestAssembleSearchInjection(t *testing.T) {
	searcher := &stubSearcher{results: []search.Result{
		{Title: "Weather Tokyo", Description: "Cloudy, 18C"},
	}}
	a := New(logger.L, &stubClassifier{answer: true}, searcher, 20)

	p := persona.Default("direct")
	p.WebSearch = true

	got := a.Assemble(context.Background(), Input{
		Persona: p,
		Text:    "what's the weather in tokyo today?",
	})

	require.Len(t, got, 4)
	assert.Contains(t, got[2].Text, "Cloudy, 18C")
	assert.Equal(t, "what's the weather in tokyo today?", got[3].Text)
}

func TestAssembleSearchDisabledByFlag(t *testing.T) {
	searcher := &stubSearcher{}
	a := New(logger.L, &stubClassifier{answer: true}, searcher, 20)

	got := a.Assemble(context.Background(), Input{
		Persona: persona.Default("direct"),
		Text:    "what's the weather?",
	})

	require.Len(t, got, 3)
	assert.Zero(t, searcher.calls)
}

func TestAssembleSearchFailureDegrades(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("search down")}
	a := New(logger.L, &stubClassifier{answer: true}, searcher, 20)

	p := persona.Default("direct")
	p.WebSearch = true

	got := a.Assemble(context.Background(), Input{Persona: p, Text: "any news today?"})

	require.Len(t, got, 3)
	assert.Equal(t, "any news today?", got[2].Text)
}
