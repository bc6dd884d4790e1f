// Package assemble builds the ordered turn list handed to the generation
// backend: persona description, standing summary, bounded history, optional
// enrichments, and the current message.
package assemble

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kohanai/kohana/internal/backend"
	"github.com/kohanai/kohana/internal/memory"
	"github.com/kohanai/kohana/internal/persona"
	"github.com/kohanai/kohana/internal/search"
)

// maxImageBytes bounds attachment downloads.
const maxImageBytes = 8 << 20

// Classifier answers a single YES/NO question.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (bool, error)
}

// Searcher runs a web query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}

// Input is everything the assembler needs for one reply.
type Input struct {
	Persona persona.Persona
	History []memory.Turn
	// Text is the message being answered.
	Text       string
	SenderName string
	// ImageURL and ImageData describe an optional image attachment. Data
	// wins when both are set.
	ImageURL  string
	ImageData []byte
	ImageMime string
}

// Assembler produces backend message lists. Searcher may be nil when web
// search is not configured.
type Assembler struct {
	logger     *slog.Logger
	classifier Classifier
	searcher   Searcher
	client     *http.Client
	window     int
}

// New builds an assembler with the given history window.
func New(log *slog.Logger, classifier Classifier, searcher Searcher, window int) *Assembler {
	if window <= 0 {
		window = 20
	}
	return &Assembler{
		logger:     log.With(slog.String("service", "assemble")),
		classifier: classifier,
		searcher:   searcher,
		client:     &http.Client{Timeout: 20 * time.Second},
		window:     window,
	}
}

// Assemble returns the ordered turn list for the backend. Enrichment
// failures (image fetch, web search) degrade to text-only context and never
// return an error.
func (a *Assembler) Assemble(ctx context.Context, in Input) []backend.Message {
	messages := personaTurns(in.Persona)

	if inline := a.inlineImage(ctx, in); inline != nil {
		// Vision calls carry only the persona and the current message;
		// past turns would compete with the image for attention.
		messages = append(messages, backend.Message{
			Role:   backend.RoleUser,
			Text:   in.Text,
			Inline: inline,
		})
		return messages
	}

	history := trimCurrent(in.History, in.Text)
	summary, history := extractSummary(history)
	if summary != "" {
		messages = append(messages, backend.Message{
			Role: backend.RoleUser,
			Text: "Summary of our earlier conversation: " + summary,
		})
	}
	if len(history) > a.window {
		history = history[len(history)-a.window:]
	}
	for _, turn := range history {
		role := backend.RoleUser
		if turn.Role == memory.RoleModel {
			role = backend.RoleModel
		}
		messages = append(messages, backend.Message{Role: role, Text: turn.Content})
	}

	if snippet := a.searchContext(ctx, in); snippet != "" {
		messages = append(messages, backend.Message{
			Role: backend.RoleUser,
			Text: "Current web search results that may help answer the next message:\n" + snippet,
		})
	}

	text := in.Text
	if in.SenderName != "" {
		text = in.SenderName + ": " + text
	}
	messages = append(messages, backend.Message{Role: backend.RoleUser, Text: text})
	return messages
}

// personaTurns encodes the persona as a leading user/model turn pair.
func personaTurns(p persona.Persona) []backend.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s", p.Name)
	if p.Age > 0 {
		fmt.Fprintf(&sb, ", a %d year old", p.Age)
		if p.Gender != "" {
			fmt.Fprintf(&sb, " %s", p.Gender)
		}
	}
	sb.WriteString(".")
	if p.Mood != "" {
		fmt.Fprintf(&sb, " Your current mood: %s.", p.Mood)
	}
	if p.Personality != "" {
		fmt.Fprintf(&sb, " %s", p.Personality)
	}
	if p.Behavior != "" {
		fmt.Fprintf(&sb, " %s", p.Behavior)
	}
	if p.CustomInstructions != "" {
		fmt.Fprintf(&sb, " %s", p.CustomInstructions)
	}
	sb.WriteString(" Stay in character at all times.")

	return []backend.Message{
		{Role: backend.RoleUser, Text: sb.String()},
		{Role: backend.RoleModel, Text: "Okay, I understand."},
	}
}

// extractSummary pulls the standing summary out of the history so it can
// lead the prompt. Compaction keeps the summary row ahead of the turns it
// replaced, so it may sit deeper than the prompt window; the latest one
// wins and summary rows never count against the window.
func extractSummary(history []memory.Turn) (string, []memory.Turn) {
	summary := ""
	rest := make([]memory.Turn, 0, len(history))
	for _, t := range history {
		if t.Role == memory.RoleSummary {
			summary = t.Content
			continue
		}
		rest = append(rest, t)
	}
	return summary, rest
}

// trimCurrent drops a trailing user turn that duplicates the current
// message, which happens when the inbound turn was persisted before
// assembly.
func trimCurrent(history []memory.Turn, text string) []memory.Turn {
	n := len(history)
	if n > 0 && history[n-1].Role == memory.RoleUser && history[n-1].Content == text {
		return history[:n-1]
	}
	return history
}

// inlineImage resolves the attachment to raw bytes, or nil when there is no
// usable image.
func (a *Assembler) inlineImage(ctx context.Context, in Input) *backend.InlineData {
	if len(in.ImageData) > 0 {
		return &backend.InlineData{MIMEType: imageMime(in.ImageMime), Data: in.ImageData}
	}
	if in.ImageURL == "" {
		return nil
	}
	data, mime, err := a.fetchImage(ctx, in.ImageURL)
	if err != nil {
		a.logger.Warn("image fetch failed, continuing text-only", slog.Any("error", err))
		return nil
	}
	if in.ImageMime != "" {
		mime = in.ImageMime
	}
	return &backend.InlineData{MIMEType: imageMime(mime), Data: data}
}

func (a *Assembler) fetchImage(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			a.logger.Warn("close image response body failed", slog.Any("error", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("image fetch failed: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func imageMime(mime string) string {
	if mime == "" {
		return "image/png"
	}
	return mime
}

// searchContext decides whether the message warrants a web search and
// returns the snippet block, or empty on any failure or a negative call.
func (a *Assembler) searchContext(ctx context.Context, in Input) string {
	if a.searcher == nil || a.classifier == nil || !in.Persona.WebSearch {
		return ""
	}

	prompt := "Does answering the following message require up-to-date information from the web " +
		"(news, prices, weather, schedules, live facts)? Respond with only one word: YES or NO.\n\n" +
		"Message: " + in.Text
	need, err := a.classifier.Classify(ctx, prompt)
	if err != nil {
		a.logger.Warn("search classification failed, skipping", slog.Any("error", err))
		return ""
	}
	if !need {
		return ""
	}

	results, err := a.searcher.Search(ctx, in.Text)
	if err != nil {
		a.logger.Warn("web search failed, skipping", slog.Any("error", err))
		return ""
	}
	return search.Snippets(results)
}
