package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"voice-agent/internal/domain"
)

// ReplySink receives assistant text for synthesis and playback. Enqueue
// takes the generation captured from Generation before the reply stream
// opened; items stamped with a generation that CancelAll has since advanced
// past are discarded, never played.
type ReplySink interface {
	Generation() uint64
	Enqueue(ctx context.Context, text string, generation uint64) error
	Active() bool
	CancelAll()
}

// OrchestratorConfig tunes the turn loop.
type OrchestratorConfig struct {
	TurnTimeout    time.Duration
	GroupSentences bool // group reply chunks to sentence boundaries before playback
	MaxItemChars   int
	Apology        string
}

// DialogueOrchestrator owns the conversation: it turns transcripts into
// streamed language-model requests, forwards reply chunks to playback as
// they arrive, and maintains the history.
type DialogueOrchestrator struct {
	cfg     OrchestratorConfig
	chat    ChatStreamer
	sink    ReplySink
	history *domain.History
	stats   PipelineStats
	logger  *slog.Logger

	mu          sync.Mutex
	cancelTurn  context.CancelFunc
	interrupted bool
	inFlight    bool
}

func NewDialogueOrchestrator(
	cfg OrchestratorConfig,
	chat ChatStreamer,
	sink ReplySink,
	history *domain.History,
	stats PipelineStats,
	logger *slog.Logger,
) *DialogueOrchestrator {
	if stats == nil {
		stats = &NoopStats{}
	}
	if cfg.Apology == "" {
		cfg.Apology = "I apologize, but I encountered an error processing your request."
	}
	return &DialogueOrchestrator{
		cfg:     cfg,
		chat:    chat,
		sink:    sink,
		history: history,
		stats:   stats,
		logger:  logger,
	}
}

// History exposes the conversation for inspection in tests.
func (o *DialogueOrchestrator) History() *domain.History { return o.history }

// TurnInFlight reports whether a reply stream is currently open.
func (o *DialogueOrchestrator) TurnInFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// CancelTurn aborts the in-flight reply stream, if any. Called on barge-in.
func (o *DialogueOrchestrator) CancelTurn() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancelTurn != nil {
		o.interrupted = true
		o.cancelTurn()
	}
}

// Run consumes transcripts until the channel closes or ctx is cancelled.
func (o *DialogueOrchestrator) Run(ctx context.Context, transcripts <-chan domain.Transcript) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tr, ok := <-transcripts:
			if !ok {
				return nil
			}
			o.handleTurn(ctx, tr)
		}
	}
}

func (o *DialogueOrchestrator) handleTurn(ctx context.Context, tr domain.Transcript) {
	var turnCtx context.Context
	var cancel context.CancelFunc
	if o.cfg.TurnTimeout > 0 {
		turnCtx, cancel = context.WithTimeout(ctx, o.cfg.TurnTimeout)
	} else {
		turnCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	o.beginTurn(cancel)
	defer o.endTurn()

	o.history.AppendUser(tr.Text)

	// The generation is fixed before the stream opens. A chunk that is
	// still in flight when barge-in advances the generation then stamps
	// stale and is discarded by the sink instead of spoken.
	gen := o.sink.Generation()

	asm := newSentenceAssembler(o.cfg.GroupSentences, o.cfg.MaxItemChars)
	var full, emitted strings.Builder

	err := o.chat.Stream(turnCtx, o.history.Snapshot(), func(chunk string) {
		full.WriteString(chunk)
		for _, item := range asm.Add(chunk) {
			o.emit(turnCtx, item, gen, &emitted)
		}
	})
	if err == nil {
		if tail := asm.Flush(); tail != "" {
			o.emit(turnCtx, tail, gen, &emitted)
		}
	}

	switch {
	case err == nil:
		o.history.AppendAssistant(strings.TrimSpace(full.String()))
		o.stats.TurnCompleted()
		o.logger.Info("assistant turn complete", "chars", emitted.Len())

	case o.wasInterrupted() || errors.Is(err, context.Canceled):
		// Barge-in (or shutdown): keep only what was already sent to
		// playback and mark the turn cut off.
		o.history.AppendAssistantInterrupted(strings.TrimSpace(emitted.String()))
		o.stats.TurnInterrupted()
		o.logger.Info("assistant turn interrupted", "spoken_chars", emitted.Len())

	default:
		var svcErr *domain.DialogueError
		if errors.As(err, &svcErr) {
			o.logger.Error("dialogue service failed", "reason", svcErr.Reason, "error", err)
		} else {
			o.logger.Error("dialogue service failed", "error", err)
		}
		if emitted.Len() > 0 {
			o.history.AppendAssistantInterrupted(strings.TrimSpace(emitted.String()))
			o.stats.TurnInterrupted()
		} else {
			o.stats.TurnFailed()
		}
		// The reply never finished; tell the user out loud instead of
		// going silent. The failed text is never appended to history.
		if enqErr := o.sink.Enqueue(ctx, o.cfg.Apology, o.sink.Generation()); enqErr != nil {
			o.logger.Warn("enqueueing apology", "error", enqErr)
		}
	}
}

func (o *DialogueOrchestrator) emit(ctx context.Context, item string, generation uint64, emitted *strings.Builder) {
	// The sink would discard a stale-generation item anyway; skipping it
	// here also keeps it out of the interrupted turn's history text.
	if o.sink.Generation() != generation {
		return
	}
	if err := o.sink.Enqueue(ctx, item, generation); err != nil {
		return
	}
	if o.cfg.GroupSentences {
		if emitted.Len() > 0 {
			emitted.WriteString(" ")
		}
		emitted.WriteString(item)
		return
	}
	emitted.WriteString(item)
}

func (o *DialogueOrchestrator) beginTurn(cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelTurn = cancel
	o.interrupted = false
	o.inFlight = true
}

func (o *DialogueOrchestrator) endTurn() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelTurn = nil
	o.inFlight = false
}

func (o *DialogueOrchestrator) wasInterrupted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.interrupted
}
