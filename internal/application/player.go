package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"voice-agent/internal/domain"
)

// PlaybackItem is one queued unit of assistant speech. The generation
// stamp ties it to the reply it belongs to; CancelAll advances the
// generation so stale items are discarded instead of played.
type PlaybackItem struct {
	Text       string
	generation uint64
}

// SpeechPlayer synthesizes and plays queued items strictly in enqueue
// order. Synthesis of item N+1 overlaps playback of item N; playback
// itself is always FIFO.
type SpeechPlayer struct {
	synth  Synthesizer
	sink   AudioSink
	stats  PipelineStats
	logger *slog.Logger
	volume float64

	items       chan PlaybackItem
	synthesized chan synthesizedItem

	generation atomic.Uint64
	pending    atomic.Int64
	playing    atomic.Bool

	mu          sync.Mutex
	cancelSynth context.CancelFunc
	cancelPlay  context.CancelFunc
}

type synthesizedItem struct {
	PlaybackItem
	samples []int16
}

func NewSpeechPlayer(synth Synthesizer, sink AudioSink, volume float64, stats PipelineStats, logger *slog.Logger, queueSize int) *SpeechPlayer {
	if stats == nil {
		stats = &NoopStats{}
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	if volume <= 0 || volume > 1 {
		volume = 1
	}
	return &SpeechPlayer{
		synth:       synth,
		sink:        sink,
		stats:       stats,
		logger:      logger,
		volume:      volume,
		items:       make(chan PlaybackItem, queueSize),
		synthesized: make(chan synthesizedItem, 1),
	}
}

// Generation returns the current cancellation generation. Callers that
// stream text across an interruptible span must capture it once, before
// streaming, and stamp every Enqueue with it: a chunk that races CancelAll
// then carries the old generation and is discarded instead of played.
func (p *SpeechPlayer) Generation() uint64 {
	return p.generation.Load()
}

// Enqueue adds text stamped with the given generation to the playback
// queue, blocking while the queue is full until ctx is cancelled.
func (p *SpeechPlayer) Enqueue(ctx context.Context, text string, generation uint64) error {
	item := PlaybackItem{Text: text, generation: generation}
	select {
	case p.items <- item:
		p.pending.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active reports whether any item is queued, being synthesized, or playing.
func (p *SpeechPlayer) Active() bool {
	return p.pending.Load() > 0 || p.playing.Load()
}

// CancelAll discards every unplayed item and stops in-progress synthesis
// and playback immediately.
func (p *SpeechPlayer) CancelAll() {
	p.generation.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelSynth != nil {
		p.cancelSynth()
	}
	if p.cancelPlay != nil {
		p.cancelPlay()
	}
}

// Run drives the synthesis and playback workers until ctx is cancelled.
func (p *SpeechPlayer) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.synthLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		p.playLoop(ctx)
	}()
	wg.Wait()
	return ctx.Err()
}

// PlayNow synthesizes and plays text synchronously, bypassing the queue.
// Used for the shutdown farewell after the workers have stopped.
func (p *SpeechPlayer) PlayNow(ctx context.Context, text string) {
	samples, err := p.synth.Synthesize(ctx, text)
	if err != nil {
		p.logger.Warn("direct synthesis failed", "error", err)
		return
	}
	if err := p.sink.Play(ctx, p.scale(samples), p.synth.SampleRate()); err != nil {
		p.logger.Warn("direct playback failed", "error", err)
	}
}

func (p *SpeechPlayer) synthLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-p.items:
			if item.generation != p.generation.Load() {
				p.pending.Add(-1)
				continue
			}

			ictx, cancel := context.WithCancel(ctx)
			p.setCancelSynth(cancel)
			samples, err := p.synth.Synthesize(ictx, item.Text)
			p.setCancelSynth(nil)
			cancel()

			if err != nil {
				p.pending.Add(-1)
				if !errors.Is(err, context.Canceled) {
					synthErr := &domain.SynthesisError{Text: item.Text, Err: err}
					p.logger.Warn("skipping playback item", "error", synthErr)
					p.stats.SynthesisSkipped()
				}
				continue
			}
			if item.generation != p.generation.Load() {
				p.pending.Add(-1)
				continue
			}

			select {
			case p.synthesized <- synthesizedItem{PlaybackItem: item, samples: samples}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *SpeechPlayer) playLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-p.synthesized:
			if item.generation != p.generation.Load() {
				p.pending.Add(-1)
				continue
			}

			ictx, cancel := context.WithCancel(ctx)
			p.setCancelPlay(cancel)
			p.playing.Store(true)
			err := p.sink.Play(ictx, p.scale(item.samples), p.synth.SampleRate())
			p.playing.Store(false)
			p.setCancelPlay(nil)
			cancel()
			p.pending.Add(-1)

			switch {
			case err == nil:
				p.stats.ItemPlayed()
			case errors.Is(err, context.Canceled):
				// Barge-in stopped the output mid-item.
			default:
				p.logger.Warn("playback failed", "error", err)
			}
		}
	}
}

func (p *SpeechPlayer) scale(samples []int16) []int16 {
	if p.volume >= 1 {
		return samples
	}
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = int16(float64(s) * p.volume)
	}
	return out
}

func (p *SpeechPlayer) setCancelSynth(cancel context.CancelFunc) {
	p.mu.Lock()
	p.cancelSynth = cancel
	p.mu.Unlock()
}

func (p *SpeechPlayer) setCancelPlay(cancel context.CancelFunc) {
	p.mu.Lock()
	p.cancelPlay = cancel
	p.mu.Unlock()
}
