package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Audio     AudioConfig     `yaml:"audio"`
	VAD       VADConfig       `yaml:"vad"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Groq      GroqConfig      `yaml:"groq"`
	TTS       TTSConfig       `yaml:"tts"`
	Agent     AgentConfig     `yaml:"agent"`
	History   HistoryConfig   `yaml:"history"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

type AudioConfig struct {
	Source     string `yaml:"source"`      // microphone | file
	FileDir    string `yaml:"file_dir"`    // WAV replay directory for the file source
	Device     string `yaml:"device"`      // input device name, empty = default
	SampleRate int    `yaml:"sample_rate"` // Hz
	BlockSize  int    `yaml:"block_size"`  // samples per block
	QueueSize  int    `yaml:"queue_size"`  // capture queue depth in blocks
}

type VADConfig struct {
	Engine           string  `yaml:"engine"` // energy | webrtc
	InitialThreshold float64 `yaml:"initial_threshold"`
	MinThreshold     float64 `yaml:"min_threshold"`
	MaxThreshold     float64 `yaml:"max_threshold"`
	MarginFactor     float64 `yaml:"margin_factor"`
	Hysteresis       float64 `yaml:"hysteresis"`
	AdaptRate        float64 `yaml:"adapt_rate"`
	SilenceBlocks    int     `yaml:"silence_blocks"`
	PrerollBlocks    int     `yaml:"preroll_blocks"`
	MinSegmentMs     int     `yaml:"min_segment_ms"`
	WebRTCMode       int     `yaml:"webrtc_mode"` // 0-3 aggressiveness
}

type OpenAIConfig struct {
	APIKey   string `yaml:"api_key"`
	Language string `yaml:"language"`
	Model    string `yaml:"model"`
}

type GroqConfig struct {
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	SystemPrompt   string  `yaml:"system_prompt"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type TTSConfig struct {
	PiperBinary    string  `yaml:"piper_binary"`
	PiperModel     string  `yaml:"piper_model"`
	SampleRate     int     `yaml:"sample_rate"`
	Rate           int     `yaml:"rate"`   // words per minute
	Volume         float64 `yaml:"volume"` // 0.0 - 1.0
	QueueSize      int     `yaml:"queue_size"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type AgentConfig struct {
	Greeting       string `yaml:"greeting"`
	Farewell       string `yaml:"farewell"`
	GroupSentences bool   `yaml:"group_sentences"` // buffer reply chunks to sentence boundaries
	MaxItemChars   int    `yaml:"max_item_chars"`
}

type HistoryConfig struct {
	CharBudget int `yaml:"char_budget"`
}

type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type TelemetryConfig struct {
	MetricsAddr string `yaml:"metrics_addr"` // empty = disabled
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Audio.Source == "" {
		c.Audio.Source = "microphone"
	}
	if c.Audio.FileDir == "" {
		c.Audio.FileDir = "./audio"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.BlockSize == 0 {
		c.Audio.BlockSize = 8000
	}
	if c.Audio.QueueSize == 0 {
		c.Audio.QueueSize = 32
	}
	if c.VAD.Engine == "" {
		c.VAD.Engine = "energy"
	}
	if c.VAD.InitialThreshold == 0 {
		c.VAD.InitialThreshold = 300
	}
	if c.VAD.MinThreshold == 0 {
		c.VAD.MinThreshold = 100
	}
	if c.VAD.MaxThreshold == 0 {
		c.VAD.MaxThreshold = 4000
	}
	if c.VAD.MarginFactor == 0 {
		c.VAD.MarginFactor = 2.5
	}
	if c.VAD.Hysteresis == 0 {
		c.VAD.Hysteresis = 0.75
	}
	if c.VAD.AdaptRate == 0 {
		c.VAD.AdaptRate = 0.1
	}
	if c.VAD.SilenceBlocks == 0 {
		c.VAD.SilenceBlocks = 2
	}
	if c.VAD.PrerollBlocks == 0 {
		c.VAD.PrerollBlocks = 1
	}
	if c.VAD.MinSegmentMs == 0 {
		c.VAD.MinSegmentMs = 400
	}
	if c.OpenAI.Language == "" {
		c.OpenAI.Language = "en"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "whisper-1"
	}
	if c.Groq.Model == "" {
		c.Groq.Model = "llama-3.3-70b-versatile"
	}
	if c.Groq.SystemPrompt == "" {
		c.Groq.SystemPrompt = "You are a helpful voice assistant. Keep responses concise and natural."
	}
	if c.Groq.Temperature == 0 {
		c.Groq.Temperature = 0.7
	}
	if c.Groq.MaxTokens == 0 {
		c.Groq.MaxTokens = 150
	}
	if c.Groq.TimeoutSeconds == 0 {
		c.Groq.TimeoutSeconds = 60
	}
	if c.TTS.SampleRate == 0 {
		c.TTS.SampleRate = 22050
	}
	if c.TTS.Rate == 0 {
		c.TTS.Rate = 180
	}
	if c.TTS.Volume == 0 {
		c.TTS.Volume = 0.9
	}
	if c.TTS.QueueSize == 0 {
		c.TTS.QueueSize = 16
	}
	if c.TTS.TimeoutSeconds == 0 {
		c.TTS.TimeoutSeconds = 30
	}
	if c.Agent.Greeting == "" {
		c.Agent.Greeting = "Voice assistant ready. How can I help you?"
	}
	if c.Agent.Farewell == "" {
		c.Agent.Farewell = "Goodbye!"
	}
	if c.Agent.MaxItemChars == 0 {
		c.Agent.MaxItemChars = 400
	}
	if c.History.CharBudget == 0 {
		c.History.CharBudget = 8000
	}
	if c.Archive.Dir == "" {
		c.Archive.Dir = "./segments"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Audio.Source {
	case "microphone", "file":
	default:
		return fmt.Errorf("unknown audio source %q", c.Audio.Source)
	}
	switch c.VAD.Engine {
	case "energy", "webrtc":
	default:
		return fmt.Errorf("unknown vad engine %q", c.VAD.Engine)
	}
	if c.VAD.MinThreshold > c.VAD.MaxThreshold {
		return fmt.Errorf("vad min_threshold %.0f exceeds max_threshold %.0f",
			c.VAD.MinThreshold, c.VAD.MaxThreshold)
	}
	if c.VAD.Hysteresis <= 0 || c.VAD.Hysteresis > 1 {
		return fmt.Errorf("vad hysteresis must be in (0, 1], got %v", c.VAD.Hysteresis)
	}
	if c.VAD.AdaptRate <= 0 || c.VAD.AdaptRate > 1 {
		return fmt.Errorf("vad adapt_rate must be in (0, 1], got %v", c.VAD.AdaptRate)
	}
	if c.TTS.Volume < 0 || c.TTS.Volume > 1 {
		return fmt.Errorf("tts volume must be in [0, 1], got %v", c.TTS.Volume)
	}
	return nil
}
