package backend

import (
	"testing"

	"google.golang.org/genai"
)

func TestBuildContents(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Text: "hello"},
		{Role: RoleModel, Text: "hi there"},
		{Role: RoleUser, Text: "look at this", Inline: &InlineData{MIMEType: "image/png", Data: []byte{1, 2, 3}}},
		{Role: RoleUser},
	}

	contents := buildContents(messages)
	if len(contents) != 3 {
		t.Fatalf("contents len = %d, want 3 (empty message must be dropped)", len(contents))
	}
	if contents[0].Role != genai.RoleUser {
		t.Errorf("first role = %q, want %q", contents[0].Role, genai.RoleUser)
	}
	if contents[1].Role != genai.RoleModel {
		t.Errorf("second role = %q, want %q", contents[1].Role, genai.RoleModel)
	}
	if len(contents[2].Parts) != 2 {
		t.Errorf("multimodal message parts = %d, want text plus inline data", len(contents[2].Parts))
	}
}

func TestGenerationConfigSafety(t *testing.T) {
	cfg := generationConfig(DefaultGenerationConfig())
	if len(cfg.SafetySettings) != 4 {
		t.Fatalf("safety settings = %d, want 4", len(cfg.SafetySettings))
	}
	for _, s := range cfg.SafetySettings {
		if s.Threshold != genai.HarmBlockThresholdBlockNone {
			t.Errorf("threshold for %s = %v, want block none", s.Category, s.Threshold)
		}
	}

	strict := generationConfig(GenerationConfig{Temperature: 0.5})
	if strict.SafetySettings != nil {
		t.Error("safety settings must stay unset without the relaxed flag")
	}
}
