package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/kohanai/kohana/internal/config"
)

// Gemini talks to the Google generative API for chat, classification,
// summarization and image generation.
type Gemini struct {
	client          *genai.Client
	chatModel       string
	classifierModel string
	imageModel      string
	guard           *callGuard
	logger          *slog.Logger
}

// NewGemini builds a backend from config. The API key is required.
func NewGemini(ctx context.Context, log *slog.Logger, cfg config.GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Gemini{
		client:          client,
		chatModel:       cfg.ChatModel,
		classifierModel: cfg.ClassifierModel,
		imageModel:      cfg.ImageModel,
		guard:           newCallGuard(cfg),
		logger:          log.With(slog.String("service", "backend")),
	}, nil
}

// Generate produces one model reply for an ordered conversation.
func (g *Gemini) Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (string, error) {
	contents := buildContents(messages)
	if len(contents) == 0 {
		return "", fmt.Errorf("empty prompt")
	}

	out, err := g.guarded(ctx, func() (string, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.chatModel, contents, generationConfig(cfg))
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(out)
	if text == "" {
		return "", fmt.Errorf("model returned no text")
	}
	return text, nil
}

// Classify asks a single YES/NO question and reports the answer.
// Anything that does not start with YES counts as no.
func (g *Gemini) Classify(ctx context.Context, prompt string) (bool, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	out, err := g.guarded(ctx, func() (string, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.classifierModel, contents, &genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](0.1),
			MaxOutputTokens: 8,
		})
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	})
	if err != nil {
		return false, fmt.Errorf("classify: %w", err)
	}

	answer := strings.ToUpper(strings.TrimSpace(out))
	return strings.HasPrefix(answer, "YES"), nil
}

// Summarize condenses a conversation transcript into a short third-person
// summary used as a memory seed.
func (g *Gemini) Summarize(ctx context.Context, transcript string) (string, error) {
	prompt := "Summarize the following conversation in a few sentences. " +
		"Keep names, stated facts and preferences. Write in the third person.\n\n" + transcript
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	out, err := g.guarded(ctx, func() (string, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.chatModel, contents, &genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](0.3),
			MaxOutputTokens: 256,
		})
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	text := strings.TrimSpace(out)
	if text == "" {
		return "", fmt.Errorf("summarizer returned no text")
	}
	return text, nil
}

// GenerateImage renders one image for the prompt and returns the raw bytes.
func (g *Gemini) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, fmt.Errorf("no image returned")
	}
	data := resp.GeneratedImages[0].Image.ImageBytes
	g.logger.Debug("image generated", slog.Int("bytes", len(data)))
	return data, nil
}

func (g *Gemini) guarded(ctx context.Context, call func() (string, error)) (string, error) {
	return g.guard.do(ctx, call)
}

func buildContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleModel {
			role = genai.RoleModel
		}
		parts := make([]*genai.Part, 0, 2)
		if m.Text != "" {
			parts = append(parts, genai.NewPartFromText(m.Text))
		}
		if m.Inline != nil && len(m.Inline.Data) > 0 {
			parts = append(parts, genai.NewPartFromBytes(m.Inline.Data, m.Inline.MIMEType))
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}

func generationConfig(cfg GenerationConfig) *genai.GenerateContentConfig {
	out := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(cfg.Temperature),
		TopP:            genai.Ptr(cfg.TopP),
		TopK:            genai.Ptr(cfg.TopK),
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
	if cfg.RelaxedSafety {
		out.SafetySettings = relaxedSafety()
	}
	return out
}

func relaxedSafety() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return settings
}
