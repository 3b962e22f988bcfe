package audio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"voice-agent/internal/domain"
)

// Recorder archives emitted speech segments as WAV files for later
// inspection or replay through the file source.
type Recorder struct {
	dir    string
	logger *slog.Logger
}

func NewRecorder(dir string, logger *slog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating archive dir: %w", err)
	}
	return &Recorder{dir: dir, logger: logger}, nil
}

func (r *Recorder) Archive(seg domain.SpeechSegment) error {
	path := filepath.Join(r.dir, seg.ID+".wav")

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating archive file: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, seg.SampleRate, 16, max(seg.Channels, 1), 1)

	data := make([]int, len(seg.Samples))
	for i, s := range seg.Samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: max(seg.Channels, 1),
			SampleRate:  seg.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("writing archive samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing archive file: %w", err)
	}

	r.logger.Debug("segment archived", "path", path, "duration", seg.Duration())
	return nil
}
