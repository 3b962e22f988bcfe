//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"voice-agent/internal/application"
	"voice-agent/internal/domain"
)

// MicrophoneSource stub when portaudio is not available.
type MicrophoneSource struct {
	logger *slog.Logger
}

func NewMicrophoneSource(device string, sampleRate, blockSize, queueSize int, stats application.PipelineStats, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{logger: logger}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Start(_ context.Context) error {
	return &domain.DeviceError{
		Device: "microphone",
		Err:    fmt.Errorf("not available: rebuild with -tags portaudio"),
	}
}

func (m *MicrophoneSource) Blocks() <-chan domain.AudioBlock {
	return nil
}

func (m *MicrophoneSource) Stop() error {
	return nil
}
