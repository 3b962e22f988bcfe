//go:build webrtcvad

package webrtc

import (
	"encoding/binary"
	"fmt"

	"github.com/maxhawkins/go-webrtcvad"

	"voice-agent/internal/domain"
)

// Classifier wraps the WebRTC voice activity detector as an alternative
// to the adaptive energy classifier. The detector only accepts 10, 20 or
// 30 ms frames at 8/16/32/48 kHz, so each capture block is sliced into
// 10 ms frames and counted as speech if any frame is voiced.
type Classifier struct {
	vad *webrtcvad.VAD
}

// NewClassifier creates a detector with the given aggressiveness mode,
// 0 (least aggressive) through 3 (most aggressive filtering).
func NewClassifier(mode int) (*Classifier, error) {
	vad, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("creating webrtc vad: %w", err)
	}
	if err := vad.SetMode(mode); err != nil {
		return nil, fmt.Errorf("setting vad mode %d: %w", mode, err)
	}
	return &Classifier{vad: vad}, nil
}

func (c *Classifier) IsSpeech(block domain.AudioBlock, collecting bool) (bool, error) {
	frameSamples := block.SampleRate / 100
	if frameSamples == 0 {
		return false, fmt.Errorf("unsupported sample rate %d", block.SampleRate)
	}

	frame := make([]byte, frameSamples*2)
	for offset := 0; offset+frameSamples <= len(block.Samples); offset += frameSamples {
		for i, s := range block.Samples[offset : offset+frameSamples] {
			binary.LittleEndian.PutUint16(frame[i*2:], uint16(s))
		}
		voiced, err := c.vad.Process(block.SampleRate, frame)
		if err != nil {
			return false, fmt.Errorf("vad process: %w", err)
		}
		if voiced {
			return true, nil
		}
	}
	return false, nil
}
