package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder counts pipeline events through OpenTelemetry with a
// Prometheus exporter, served on an optional /metrics endpoint.
type Recorder struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	blocksDropped      metric.Int64Counter
	segmentsEmitted    metric.Int64Counter
	segmentsDiscarded  metric.Int64Counter
	segmentsOverflowed metric.Int64Counter
	transcriptsDropped metric.Int64Counter
	turnsCompleted     metric.Int64Counter
	turnsInterrupted   metric.Int64Counter
	turnsFailed        metric.Int64Counter
	synthesisSkipped   metric.Int64Counter
	itemsPlayed        metric.Int64Counter
}

func NewRecorder(logger *slog.Logger) (*Recorder, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("initializing prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("voice-agent")

	r := &Recorder{
		provider: provider,
		handler:  promhttp.Handler(),
	}

	for _, c := range []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&r.blocksDropped, "voice_agent_blocks_dropped_total", "Capture blocks dropped because the queue was full"},
		{&r.segmentsEmitted, "voice_agent_segments_emitted_total", "Speech segments emitted by the voice gate"},
		{&r.segmentsDiscarded, "voice_agent_segments_discarded_total", "Segments discarded for being shorter than the minimum duration"},
		{&r.segmentsOverflowed, "voice_agent_segments_overflowed_total", "Segments dropped because the segment queue was full"},
		{&r.transcriptsDropped, "voice_agent_transcripts_dropped_total", "Segments whose transcription failed or produced no text"},
		{&r.turnsCompleted, "voice_agent_turns_completed_total", "Dialogue turns that streamed to completion"},
		{&r.turnsInterrupted, "voice_agent_turns_interrupted_total", "Dialogue turns cut short by barge-in"},
		{&r.turnsFailed, "voice_agent_turns_failed_total", "Dialogue turns that failed before any reply was spoken"},
		{&r.synthesisSkipped, "voice_agent_synthesis_skipped_total", "Playback items skipped after a synthesis failure"},
		{&r.itemsPlayed, "voice_agent_items_played_total", "Playback items rendered to the audio device"},
	} {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("creating counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}

	logger.Debug("metrics recorder initialized")
	return r, nil
}

// Handler serves the Prometheus scrape endpoint.
func (r *Recorder) Handler() http.Handler {
	return r.handler
}

func (r *Recorder) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

func (r *Recorder) BlockDropped()      { r.blocksDropped.Add(context.Background(), 1) }
func (r *Recorder) SegmentEmitted()    { r.segmentsEmitted.Add(context.Background(), 1) }
func (r *Recorder) SegmentDiscarded()  { r.segmentsDiscarded.Add(context.Background(), 1) }
func (r *Recorder) SegmentOverflow()   { r.segmentsOverflowed.Add(context.Background(), 1) }
func (r *Recorder) TranscriptDropped() { r.transcriptsDropped.Add(context.Background(), 1) }
func (r *Recorder) TurnCompleted()     { r.turnsCompleted.Add(context.Background(), 1) }
func (r *Recorder) TurnInterrupted()   { r.turnsInterrupted.Add(context.Background(), 1) }
func (r *Recorder) TurnFailed()        { r.turnsFailed.Add(context.Background(), 1) }
func (r *Recorder) SynthesisSkipped()  { r.synthesisSkipped.Add(context.Background(), 1) }
func (r *Recorder) ItemPlayed()        { r.itemsPlayed.Add(context.Background(), 1) }
