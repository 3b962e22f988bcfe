package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"voice-agent/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
openai:
  api_key: test-key
groq:
  api_key: test-key
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Audio.Source != "microphone" {
		t.Errorf("Audio.Source: got %q", cfg.Audio.Source)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Audio.SampleRate: got %d", cfg.Audio.SampleRate)
	}
	if cfg.VAD.Engine != "energy" {
		t.Errorf("VAD.Engine: got %q", cfg.VAD.Engine)
	}
	if cfg.VAD.MarginFactor != 2.5 {
		t.Errorf("VAD.MarginFactor: got %v", cfg.VAD.MarginFactor)
	}
	if cfg.Groq.Model != "llama-3.3-70b-versatile" {
		t.Errorf("Groq.Model: got %q", cfg.Groq.Model)
	}
	if cfg.Groq.MaxTokens != 150 {
		t.Errorf("Groq.MaxTokens: got %d", cfg.Groq.MaxTokens)
	}
	if cfg.TTS.Volume != 0.9 {
		t.Errorf("TTS.Volume: got %v", cfg.TTS.Volume)
	}
	if cfg.History.CharBudget != 8000 {
		t.Errorf("History.CharBudget: got %d", cfg.History.CharBudget)
	}
	if cfg.Agent.Greeting == "" {
		t.Error("Agent.Greeting default missing")
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_GROQ_KEY", "gsk-from-env")

	path := writeConfig(t, `
groq:
  api_key: ${TEST_GROQ_KEY}
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Groq.APIKey != "gsk-from-env" {
		t.Errorf("Groq.APIKey: got %q", cfg.Groq.APIKey)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown source", "audio:\n  source: telepathy\n"},
		{"unknown vad engine", "vad:\n  engine: psychic\n"},
		{"inverted thresholds", "vad:\n  min_threshold: 5000\n  max_threshold: 200\n"},
		{"hysteresis out of range", "vad:\n  hysteresis: 1.5\n"},
		{"volume out of range", "tts:\n  volume: 2.0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := config.Load(path); err == nil {
				t.Error("Load accepted invalid config")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load accepted missing file")
	}
}
