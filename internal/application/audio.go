package application

import (
	"context"

	"voice-agent/internal/domain"
)

// AudioSource continuously produces fixed-size audio blocks on its own
// goroutine. The capture loop must never block: when the queue is full the
// oldest unconsumed block is dropped.
type AudioSource interface {
	Start(ctx context.Context) error
	Blocks() <-chan domain.AudioBlock
	Stop() error
	Name() string
}

// AudioSink plays raw PCM to the output device. Play returns early when
// ctx is cancelled, stopping output within one write chunk.
type AudioSink interface {
	Play(ctx context.Context, samples []int16, sampleRate int) error
	Close() error
}

// SpeechToText is the recognition collaborator: raw PCM in, transcript out.
type SpeechToText interface {
	Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error)
}

// Synthesizer is the speech-synthesis collaborator. The returned samples
// are 16-bit mono PCM at SampleRate().
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]int16, error)
	SampleRate() int
}

// ChatStreamer is the language-model collaborator. Stream invokes onChunk
// for every reply fragment in arrival order and returns once the stream
// ends; failures carry a *domain.DialogueError reason code.
type ChatStreamer interface {
	Stream(ctx context.Context, turns []domain.Turn, onChunk func(string)) error
}

// SegmentArchiver persists emitted speech segments for later inspection.
type SegmentArchiver interface {
	Archive(segment domain.SpeechSegment) error
}
