//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const playbackChunk = 1024

// Speaker writes PCM to the default output device in small chunks,
// checking for cancellation between writes so barge-in stops output
// within one chunk.
type Speaker struct {
	logger *slog.Logger
	mu     sync.Mutex
}

func NewSpeaker(logger *slog.Logger) *Speaker {
	return &Speaker{logger: logger}
}

func (s *Speaker) Play(ctx context.Context, samples []int16, sampleRate int) error {
	// One playback at a time; the player serializes calls anyway.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	buffer := make([]int16, playbackChunk)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), playbackChunk, &buffer)
	if err != nil {
		return fmt.Errorf("opening output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("starting output stream: %w", err)
	}
	defer stream.Stop()

	for offset := 0; offset < len(samples); offset += playbackChunk {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := offset + playbackChunk
		if end > len(samples) {
			end = len(samples)
		}
		n := copy(buffer, samples[offset:end])
		for i := n; i < playbackChunk; i++ {
			buffer[i] = 0
		}

		if err := stream.Write(); err != nil {
			return fmt.Errorf("writing to output stream: %w", err)
		}
	}

	return nil
}

func (s *Speaker) Close() error {
	return nil
}
