package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Addr != DefaultHTTPAddr {
		t.Errorf("addr = %q, want %q", cfg.Server.Addr, DefaultHTTPAddr)
	}
	if cfg.Pipeline.SuppressionCap != 2 {
		t.Errorf("suppression cap = %d, want 2", cfg.Pipeline.SuppressionCap)
	}
	if cfg.Pipeline.DebounceWindow() != 4*time.Second {
		t.Errorf("debounce window = %v, want 4s", cfg.Pipeline.DebounceWindow())
	}
	if cfg.Pipeline.HistoryLimit != 50 || cfg.Pipeline.HistoryKeep != 30 {
		t.Errorf("history bounds = %d/%d, want 50/30", cfg.Pipeline.HistoryLimit, cfg.Pipeline.HistoryKeep)
	}
	if cfg.Gemini.ChatModel != DefaultChatModel {
		t.Errorf("chat model = %q, want %q", cfg.Gemini.ChatModel, DefaultChatModel)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[log]
level = "debug"

[pipeline]
debounce_window_seconds = 3
compaction = "summarize"

[discord]
enabled = true
token = "from-file"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DISCORD_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Pipeline.DebounceWindowSeconds != 3 {
		t.Errorf("window seconds = %d, want 3", cfg.Pipeline.DebounceWindowSeconds)
	}
	if cfg.Pipeline.Compaction != "summarize" {
		t.Errorf("compaction = %q, want summarize", cfg.Pipeline.Compaction)
	}
	if cfg.Discord.Token != "from-env" {
		t.Errorf("token = %q, want env override", cfg.Discord.Token)
	}
	if cfg.Pipeline.SuppressionCap != 2 {
		t.Errorf("suppression cap lost its default: %d", cfg.Pipeline.SuppressionCap)
	}
}
