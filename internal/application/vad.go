package application

import (
	"context"
	"log/slog"
	"time"

	"voice-agent/internal/domain"
)

// GateState is the voice-activity state machine position.
type GateState int

const (
	GateIdle GateState = iota
	GateListening
	GateCollecting
	GateSegmented
)

func (s GateState) String() string {
	switch s {
	case GateIdle:
		return "idle"
	case GateListening:
		return "listening"
	case GateCollecting:
		return "collecting"
	case GateSegmented:
		return "segmented"
	default:
		return "unknown"
	}
}

// SpeechClassifier decides whether a block contains speech. collecting is
// true while a segment is being gathered, letting implementations apply
// hysteresis so a segment is not cut by a momentary dip.
type SpeechClassifier interface {
	IsSpeech(block domain.AudioBlock, collecting bool) (bool, error)
}

// ReplyInterrupter lets the gate cancel an in-flight assistant reply when
// the user starts speaking over it (barge-in).
type ReplyInterrupter interface {
	ReplyActive() bool
	Interrupt()
}

// EnergyClassifier is the default speech classifier: RMS energy against an
// adaptive threshold. The threshold trails the ambient noise level. It is
// recomputed from an exponential average over blocks classified inactive,
// so the speaker's own voice does not drag it upward, and it follows the
// noise floor back down as the room quietens.
type EnergyClassifier struct {
	threshold    float64
	noiseAvg     float64
	calibrated   bool
	minThreshold float64
	maxThreshold float64
	margin       float64
	hysteresis   float64
	adaptRate    float64
}

// EnergyClassifierConfig tunes the adaptive threshold rule.
type EnergyClassifierConfig struct {
	InitialThreshold float64
	MinThreshold     float64
	MaxThreshold     float64
	MarginFactor     float64 // threshold = noise average * margin
	Hysteresis       float64 // in (0,1]; applied while collecting
	AdaptRate        float64 // exponential average weight for new samples
}

func NewEnergyClassifier(cfg EnergyClassifierConfig) *EnergyClassifier {
	return &EnergyClassifier{
		threshold:    cfg.InitialThreshold,
		minThreshold: cfg.MinThreshold,
		maxThreshold: cfg.MaxThreshold,
		margin:       cfg.MarginFactor,
		hysteresis:   cfg.Hysteresis,
		adaptRate:    cfg.AdaptRate,
	}
}

func (c *EnergyClassifier) IsSpeech(block domain.AudioBlock, collecting bool) (bool, error) {
	rms := block.RMS()

	limit := c.threshold
	if collecting {
		limit *= c.hysteresis
	}
	active := rms >= limit

	if !active {
		c.adapt(rms)
	}
	return active, nil
}

// Threshold returns the current activity threshold. Only meaningful from
// the goroutine driving the classifier; exposed for tests and logging.
func (c *EnergyClassifier) Threshold() float64 { return c.threshold }

func (c *EnergyClassifier) adapt(rms float64) {
	if !c.calibrated {
		c.noiseAvg = rms
		c.calibrated = true
	} else {
		c.noiseAvg = (1-c.adaptRate)*c.noiseAvg + c.adaptRate*rms
	}

	next := c.noiseAvg * c.margin
	if next < c.minThreshold {
		next = c.minThreshold
	}
	if next > c.maxThreshold {
		next = c.maxThreshold
	}
	c.threshold = next
}

// VoiceGateConfig tunes segment boundaries.
type VoiceGateConfig struct {
	SilenceBlocks int           // consecutive inactive blocks that end a segment
	PrerollBlocks int           // blocks of leading context kept before the trigger
	MinSegment    time.Duration // shorter voiced spans are discarded as noise
}

// VoiceActivityGate groups contiguous active blocks into speech segments.
// All state, including the classifier's adaptive threshold, is owned by the
// goroutine running Run; nothing here is shared.
type VoiceActivityGate struct {
	cfg        VoiceGateConfig
	classifier SpeechClassifier
	interrupt  ReplyInterrupter
	stats      PipelineStats
	logger     *slog.Logger

	out chan domain.SpeechSegment

	state      GateState
	preroll    []domain.AudioBlock
	prerollLen int
	collected  []domain.AudioBlock
	silenceRun int
}

func NewVoiceActivityGate(
	cfg VoiceGateConfig,
	classifier SpeechClassifier,
	interrupt ReplyInterrupter,
	stats PipelineStats,
	logger *slog.Logger,
	queueSize int,
) *VoiceActivityGate {
	if stats == nil {
		stats = &NoopStats{}
	}
	if queueSize <= 0 {
		queueSize = 4
	}
	return &VoiceActivityGate{
		cfg:        cfg,
		classifier: classifier,
		interrupt:  interrupt,
		stats:      stats,
		logger:     logger,
		out:        make(chan domain.SpeechSegment, queueSize),
	}
}

// Segments is the gate's output queue. Closed when Run returns.
func (g *VoiceActivityGate) Segments() <-chan domain.SpeechSegment {
	return g.out
}

// State returns the current state. Only valid from the Run goroutine or
// after Run has returned; exposed for tests.
func (g *VoiceActivityGate) State() GateState { return g.state }

// Run consumes blocks until the channel closes or ctx is cancelled.
func (g *VoiceActivityGate) Run(ctx context.Context, blocks <-chan domain.AudioBlock) error {
	defer close(g.out)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case block, ok := <-blocks:
			if !ok {
				return nil
			}
			g.process(block)
		}
	}
}

func (g *VoiceActivityGate) process(block domain.AudioBlock) {
	active, err := g.classifier.IsSpeech(block, g.state == GateCollecting)
	if err != nil {
		g.logger.Warn("classifier error, treating block as silence", "error", err, "seq", block.Seq)
		active = false
	}

	switch g.state {
	case GateIdle:
		g.state = GateListening
		fallthrough

	case GateListening:
		if !active {
			g.pushPreroll(block)
			return
		}
		g.beginSegment(block)

	case GateCollecting:
		g.collected = append(g.collected, block)
		if active {
			g.silenceRun = 0
			return
		}
		g.silenceRun++
		if g.silenceRun >= g.cfg.SilenceBlocks {
			g.endSegment()
		}
	}
}

func (g *VoiceActivityGate) beginSegment(block domain.AudioBlock) {
	// Barge-in: the user started talking over an in-flight reply. Cancel
	// it before collecting so the reply stops within one block.
	if g.interrupt != nil && g.interrupt.ReplyActive() {
		g.logger.Info("barge-in detected, interrupting reply")
		g.interrupt.Interrupt()
	}

	g.prerollLen = len(g.preroll)
	g.collected = append(g.collected[:0], g.preroll...)
	g.collected = append(g.collected, block)
	g.preroll = g.preroll[:0]
	g.silenceRun = 0
	g.state = GateCollecting
}

func (g *VoiceActivityGate) endSegment() {
	g.state = GateSegmented

	voiced := g.voicedDuration()
	if voiced < g.cfg.MinSegment {
		g.logger.Debug("segment below minimum duration, discarding", "voiced", voiced)
		g.stats.SegmentDiscarded()
	} else {
		seg := domain.NewSpeechSegment(g.collected)
		select {
		case g.out <- seg:
			g.stats.SegmentEmitted()
			g.logger.Debug("segment emitted", "id", seg.ID, "duration", seg.Duration())
		default:
			// Transcription is behind; dropping the segment keeps the
			// gate real-time.
			g.stats.SegmentOverflow()
			g.logger.Warn("segment queue full, dropping segment", "duration", seg.Duration())
		}
	}

	g.collected = nil
	g.silenceRun = 0
	g.state = GateIdle
}

// voicedDuration is the span of collected audio excluding the leading
// preroll and trailing silence padding.
func (g *VoiceActivityGate) voicedDuration() time.Duration {
	start := g.prerollLen
	end := len(g.collected) - g.silenceRun
	var d time.Duration
	for i := start; i < end && i < len(g.collected); i++ {
		d += g.collected[i].Duration()
	}
	return d
}

func (g *VoiceActivityGate) pushPreroll(block domain.AudioBlock) {
	if g.cfg.PrerollBlocks <= 0 {
		return
	}
	g.preroll = append(g.preroll, block)
	if len(g.preroll) > g.cfg.PrerollBlocks {
		g.preroll = g.preroll[len(g.preroll)-g.cfg.PrerollBlocks:]
	}
}
