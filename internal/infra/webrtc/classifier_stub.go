//go:build !webrtcvad

package webrtc

import (
	"fmt"

	"voice-agent/internal/domain"
)

// Classifier is unavailable without the webrtcvad build tag, which needs
// cgo and the libfvad sources.
type Classifier struct{}

func NewClassifier(mode int) (*Classifier, error) {
	return nil, fmt.Errorf("webrtc vad support not compiled in (rebuild with -tags webrtcvad)")
}

func (c *Classifier) IsSpeech(block domain.AudioBlock, collecting bool) (bool, error) {
	return false, fmt.Errorf("webrtc vad support not compiled in")
}
