package application

import (
	"context"
	"log/slog"

	"voice-agent/internal/domain"
)

// Transcriber consumes speech segments in order and forwards valid
// transcripts. Recognition failures and empty results drop the segment;
// the recognition client owns any retry policy.
type Transcriber struct {
	stt      SpeechToText
	archiver SegmentArchiver
	stats    PipelineStats
	logger   *slog.Logger

	out chan domain.Transcript
}

func NewTranscriber(stt SpeechToText, archiver SegmentArchiver, stats PipelineStats, logger *slog.Logger, queueSize int) *Transcriber {
	if stats == nil {
		stats = &NoopStats{}
	}
	if queueSize <= 0 {
		queueSize = 4
	}
	return &Transcriber{
		stt:      stt,
		archiver: archiver,
		stats:    stats,
		logger:   logger,
		out:      make(chan domain.Transcript, queueSize),
	}
}

// Transcripts is the output queue. Closed when Run returns.
func (t *Transcriber) Transcripts() <-chan domain.Transcript {
	return t.out
}

// Run consumes segments until the channel closes or ctx is cancelled.
func (t *Transcriber) Run(ctx context.Context, segments <-chan domain.SpeechSegment) error {
	defer close(t.out)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case seg, ok := <-segments:
			if !ok {
				return nil
			}
			t.handle(ctx, seg)
		}
	}
}

func (t *Transcriber) handle(ctx context.Context, seg domain.SpeechSegment) {
	if t.archiver != nil {
		if err := t.archiver.Archive(seg); err != nil {
			t.logger.Warn("archiving segment", "id", seg.ID, "error", err)
		}
	}

	text, err := t.stt.Transcribe(ctx, seg.Samples, seg.SampleRate)
	if err != nil {
		recErr := &domain.RecognitionError{SegmentID: seg.ID, Err: err}
		t.logger.Warn("dropping segment", "error", recErr)
		t.stats.TranscriptDropped()
		return
	}

	trimmed, ok := domain.ValidTranscriptText(text)
	if !ok {
		t.logger.Debug("no speech recognized", "id", seg.ID)
		t.stats.TranscriptDropped()
		return
	}

	t.logger.Info("transcribed", "id", seg.ID, "text", trimmed)

	select {
	case t.out <- domain.Transcript{SegmentID: seg.ID, Text: trimmed}:
	case <-ctx.Done():
	}
}
