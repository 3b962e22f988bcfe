package piper

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"voice-agent/internal/domain"
)

// Synthesizer renders text to PCM by invoking the piper binary with
// --output_raw, reading 16-bit little-endian samples from stdout.
type Synthesizer struct {
	binary      string
	modelPath   string
	sampleRate  int
	lengthScale float64
	timeout     time.Duration
	logger      *slog.Logger
}

type Config struct {
	Binary     string
	ModelPath  string
	SampleRate int
	// Rate is words per minute; piper's length_scale stretches or
	// compresses phoneme durations, with 180 wpm as the neutral point.
	Rate    int
	Timeout time.Duration
}

func New(cfg Config, logger *slog.Logger) (*Synthesizer, error) {
	if cfg.Binary == "" {
		cfg.Binary = "piper"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 22050
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	binPath, err := exec.LookPath(cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("piper binary not found: %w", err)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("piper model not found: %w", err)
	}

	lengthScale := 1.0
	if cfg.Rate > 0 {
		lengthScale = 180.0 / float64(cfg.Rate)
	}

	return &Synthesizer{
		binary:      binPath,
		modelPath:   cfg.ModelPath,
		sampleRate:  cfg.SampleRate,
		lengthScale: lengthScale,
		timeout:     cfg.Timeout,
		logger:      logger,
	}, nil
}

func (s *Synthesizer) SampleRate() int {
	return s.sampleRate
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]int16, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.binary,
		"--model", s.modelPath,
		"--length_scale", fmt.Sprintf("%.3f", s.lengthScale),
		"--output_raw",
	)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return nil, &domain.SynthesisError{Text: text, Err: runCtx.Err()}
		}
		return nil, &domain.SynthesisError{
			Text: text,
			Err:  fmt.Errorf("piper failed: %w: %s", err, strings.TrimSpace(stderr.String())),
		}
	}

	raw := stdout.Bytes()
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}

	s.logger.Debug("synthesized speech",
		"chars", len(text),
		"samples", len(samples),
		"took", time.Since(start))

	return samples, nil
}
