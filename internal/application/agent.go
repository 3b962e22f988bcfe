package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"voice-agent/internal/domain"
)

// AgentConfig assembles the per-stage settings.
type AgentConfig struct {
	Gate         VoiceGateConfig
	Orchestrator OrchestratorConfig
	SystemPrompt string
	HistoryChars int
	Volume       float64
	QueueSize    int
	Greeting     string
	Farewell     string
}

// Agent owns the full capture → gate → transcribe → orchestrate → play
// pipeline. Stages run on their own goroutines connected by bounded
// queues; the only cross-stage calls are the barge-in interrupt and the
// player activity check.
type Agent struct {
	cfg          AgentConfig
	source       AudioSource
	gate         *VoiceActivityGate
	transcriber  *Transcriber
	orchestrator *DialogueOrchestrator
	player       *SpeechPlayer
	logger       *slog.Logger
}

func NewAgent(
	cfg AgentConfig,
	source AudioSource,
	classifier SpeechClassifier,
	stt SpeechToText,
	chat ChatStreamer,
	synth Synthesizer,
	sink AudioSink,
	archiver SegmentArchiver,
	stats PipelineStats,
	logger *slog.Logger,
) *Agent {
	if stats == nil {
		stats = &NoopStats{}
	}

	a := &Agent{
		cfg:    cfg,
		source: source,
		logger: logger,
	}

	a.player = NewSpeechPlayer(synth, sink, cfg.Volume, stats, logger.With("component", "player"), cfg.QueueSize)
	history := domain.NewHistory(cfg.SystemPrompt, cfg.HistoryChars)
	a.orchestrator = NewDialogueOrchestrator(cfg.Orchestrator, chat, a.player, history, stats, logger.With("component", "orchestrator"))
	a.transcriber = NewTranscriber(stt, archiver, stats, logger.With("component", "transcriber"), cfg.QueueSize)
	a.gate = NewVoiceActivityGate(cfg.Gate, classifier, a, stats, logger.With("component", "vad"), cfg.QueueSize)

	return a
}

// ReplyActive reports whether an assistant reply is streaming or queued.
// Part of the barge-in contract between the gate and the reply path.
func (a *Agent) ReplyActive() bool {
	return a.orchestrator.TurnInFlight() || a.player.Active()
}

// Interrupt cancels the in-flight reply stream and discards unplayed
// speech. Invoked by the gate when new user speech begins.
func (a *Agent) Interrupt() {
	a.orchestrator.CancelTurn()
	a.player.CancelAll()
}

// Run starts capture and drives the pipeline until ctx is cancelled. The
// shutdown order is fixed: capture stops first, downstream queues drain or
// cancel behind it, and the output device is released by the caller last.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting audio source", "source", a.source.Name())
	if err := a.source.Start(ctx); err != nil {
		return fmt.Errorf("starting audio: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.player.Run(gctx) })
	g.Go(func() error { return a.gate.Run(gctx, a.source.Blocks()) })
	g.Go(func() error { return a.transcriber.Run(gctx, a.gate.Segments()) })
	g.Go(func() error { return a.orchestrator.Run(gctx, a.transcriber.Transcripts()) })

	if a.cfg.Greeting != "" {
		if err := a.player.Enqueue(gctx, a.cfg.Greeting, a.player.Generation()); err != nil {
			a.logger.Warn("enqueueing greeting", "error", err)
		}
	}

	a.logger.Info("agent ready, listening")

	<-gctx.Done()

	if err := a.source.Stop(); err != nil {
		a.logger.Warn("stopping audio source", "error", err)
	}

	err := g.Wait()

	if a.cfg.Farewell != "" {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.player.PlayNow(sctx, a.cfg.Farewell)
		cancel()
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}
