package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// AudioBlock is one fixed-size chunk of captured PCM audio. Blocks are
// immutable once produced; the sequence number is monotonic per source.
type AudioBlock struct {
	Seq        uint64
	Samples    []int16
	SampleRate int
	Channels   int
}

// RMS returns the root-mean-square energy of the block's samples.
func (b AudioBlock) RMS() float64 {
	if len(b.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range b.Samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(b.Samples)))
}

// Duration returns the playback duration of the block.
func (b AudioBlock) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	frames := len(b.Samples) / max(b.Channels, 1)
	return time.Duration(frames) * time.Second / time.Duration(b.SampleRate)
}

// SpeechSegment is a contiguous span of audio classified as speech,
// padded with a little silence on both sides.
type SpeechSegment struct {
	ID         string
	Samples    []int16
	SampleRate int
	Channels   int
}

// NewSpeechSegment builds a segment from the given blocks. The blocks must
// share sample rate and channel count; the gate guarantees this.
func NewSpeechSegment(blocks []AudioBlock) SpeechSegment {
	seg := SpeechSegment{ID: uuid.NewString()}
	for _, b := range blocks {
		seg.Samples = append(seg.Samples, b.Samples...)
		seg.SampleRate = b.SampleRate
		seg.Channels = b.Channels
	}
	return seg
}

// Duration returns the playback duration of the segment.
func (s SpeechSegment) Duration() time.Duration {
	if s.SampleRate == 0 {
		return 0
	}
	frames := len(s.Samples) / max(s.Channels, 1)
	return time.Duration(frames) * time.Second / time.Duration(s.SampleRate)
}

// Transcript is the recognized text for one speech segment. Empty
// transcripts never leave the transcriber.
type Transcript struct {
	SegmentID string
	Text      string
}
