package domain

import "fmt"

// DeviceError reports an audio device failure. Fatal when returned from a
// source or sink Start; transient read/write errors are logged instead.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// RecognitionError reports a per-segment speech-to-text failure. The
// segment is dropped; the pipeline keeps running.
type RecognitionError struct {
	SegmentID string
	Err       error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognizing segment %s: %v", e.SegmentID, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// DialogueReason classifies language-model service failures.
type DialogueReason string

const (
	ReasonAuth      DialogueReason = "auth"
	ReasonRateLimit DialogueReason = "rate_limit"
	ReasonNetwork   DialogueReason = "network"
	ReasonTimeout   DialogueReason = "timeout"
)

// DialogueError reports a per-turn language-model failure with a reason
// code. The failed reply is never appended to history as assistant text.
type DialogueError struct {
	Reason DialogueReason
	Err    error
}

func (e *DialogueError) Error() string {
	return fmt.Sprintf("dialogue service (%s): %v", e.Reason, e.Err)
}

func (e *DialogueError) Unwrap() error { return e.Err }

// SynthesisError reports a per-item speech synthesis failure. The item is
// skipped; playback continues with the next one.
type SynthesisError struct {
	Text string
	Err  error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesizing %q: %v", e.Text, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
