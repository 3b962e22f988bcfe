package application

// PipelineStats receives pipeline observability events. Every non-fatal
// failure is contained in its component and reported here instead of
// propagating upward.
type PipelineStats interface {
	// BlockDropped counts a capture block discarded under backpressure.
	BlockDropped()
	// SegmentEmitted counts a speech segment handed to transcription.
	SegmentEmitted()
	// SegmentDiscarded counts a segment dropped for being too short.
	SegmentDiscarded()
	// SegmentOverflow counts a segment dropped on a full queue.
	SegmentOverflow()
	// TranscriptDropped counts an empty or failed recognition result.
	TranscriptDropped()
	// TurnCompleted counts a fully streamed assistant reply.
	TurnCompleted()
	// TurnInterrupted counts a reply cut off by barge-in or mid-stream error.
	TurnInterrupted()
	// TurnFailed counts a language-model request that produced nothing.
	TurnFailed()
	// SynthesisSkipped counts a playback item skipped after a synth error.
	SynthesisSkipped()
	// ItemPlayed counts a playback item played to completion.
	ItemPlayed()
}

// NoopStats discards all events.
type NoopStats struct{}

func (NoopStats) BlockDropped()      {}
func (NoopStats) SegmentEmitted()    {}
func (NoopStats) SegmentDiscarded()  {}
func (NoopStats) SegmentOverflow()   {}
func (NoopStats) TranscriptDropped() {}
func (NoopStats) TurnCompleted()     {}
func (NoopStats) TurnInterrupted()   {}
func (NoopStats) TurnFailed()        {}
func (NoopStats) SynthesisSkipped()  {}
func (NoopStats) ItemPlayed()        {}
