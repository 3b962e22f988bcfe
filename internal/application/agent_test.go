package application_test

import (
	"context"
	"testing"
	"time"

	"voice-agent/internal/application"
	"voice-agent/internal/domain"
)

type mockAudioSource struct {
	script []domain.AudioBlock
	blocks chan domain.AudioBlock
}

func newMockAudioSource(script []domain.AudioBlock) *mockAudioSource {
	return &mockAudioSource{
		script: script,
		blocks: make(chan domain.AudioBlock, len(script)+16),
	}
}

// push feeds additional blocks after Start, letting a test stage a second
// utterance once the first reply is in flight.
func (m *mockAudioSource) push(blocks ...domain.AudioBlock) {
	for _, b := range blocks {
		m.blocks <- b
	}
}

func (m *mockAudioSource) Name() string                          { return "mock" }
func (m *mockAudioSource) Blocks() <-chan domain.AudioBlock      { return m.blocks }
func (m *mockAudioSource) Stop() error                           { close(m.blocks); return nil }
func (m *mockAudioSource) Start(_ context.Context) error {
	for _, b := range m.script {
		m.blocks <- b
	}
	return nil
}

type fixedSTT struct {
	text string
}

func (f *fixedSTT) Transcribe(_ context.Context, _ []int16, _ int) (string, error) {
	return f.text, nil
}

func TestAgent_EndToEndTurn(t *testing.T) {
	quiet := block(50, 1600, 16000)
	loud := block(2000, 1600, 16000)

	source := newMockAudioSource([]domain.AudioBlock{
		quiet, loud, loud, loud, loud, loud, quiet, quiet,
	})
	chat := &scriptedChat{chunks: []string{"Paris", " is the capital", " of France."}}
	sink := &mockSink{}
	stats := &countingStats{}

	agent := application.NewAgent(
		application.AgentConfig{
			Gate: application.VoiceGateConfig{
				SilenceBlocks: 2,
				PrerollBlocks: 1,
				MinSegment:    300 * time.Millisecond,
			},
			SystemPrompt: "be concise",
			Volume:       1.0,
			QueueSize:    8,
		},
		source,
		&fixedClassifier{threshold: 500},
		&fixedSTT{text: "what is the capital of France"},
		chat,
		&mockSynth{},
		sink,
		nil,
		stats,
		testLogger(),
	)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return len(sink.playedItems()) == 3 })

	cancel()
	select {
	case err := <-done:
		if err != nil && err != context.Canceled {
			t.Fatalf("agent.Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not shut down")
	}

	got := sink.playedItems()
	want := []string{"Paris", " is the capital", " of France."}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("played items: got %v, want %v", got, want)
		}
	}

	if n := stats.get(&stats.segmentsEmitted); n != 1 {
		t.Errorf("segmentsEmitted: got %d, want 1", n)
	}
	if n := stats.get(&stats.turnsCompleted); n != 1 {
		t.Errorf("turnsCompleted: got %d, want 1", n)
	}
	if n := stats.get(&stats.itemsPlayed); n != 3 {
		t.Errorf("itemsPlayed: got %d, want 3", n)
	}
}

func TestAgent_GreetingPlaysFirst(t *testing.T) {
	quiet := block(50, 1600, 16000)
	source := newMockAudioSource([]domain.AudioBlock{quiet, quiet})
	sink := &mockSink{}

	agent := application.NewAgent(
		application.AgentConfig{
			Gate:      application.VoiceGateConfig{SilenceBlocks: 2, PrerollBlocks: 1, MinSegment: 300 * time.Millisecond},
			Volume:    1.0,
			QueueSize: 8,
			Greeting:  "Voice assistant ready.",
		},
		source,
		&fixedClassifier{threshold: 500},
		&fixedSTT{text: ""},
		&scriptedChat{},
		&mockSynth{},
		sink,
		nil,
		nil,
		testLogger(),
	)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return len(sink.playedItems()) == 1 })

	cancel()
	<-done

	if got := sink.playedItems()[0]; got != "Voice assistant ready." {
		t.Errorf("first played item: got %q", got)
	}
}

func TestAgent_BargeInInterruptsReply(t *testing.T) {
	quiet := block(50, 1600, 16000)
	loud := block(2000, 1600, 16000)

	source := newMockAudioSource([]domain.AudioBlock{
		quiet, loud, loud, loud, quiet, quiet,
	})
	// The reply stream stays open until cancelled, keeping the turn in
	// flight while the second utterance arrives.
	chat := &scriptedChat{chunks: []string{"I was saying"}, blockCtx: true}
	sink := &mockSink{}
	stats := &countingStats{}

	agent := application.NewAgent(
		application.AgentConfig{
			Gate:      application.VoiceGateConfig{SilenceBlocks: 2, PrerollBlocks: 1, MinSegment: 100 * time.Millisecond},
			Volume:    1.0,
			QueueSize: 8,
		},
		source,
		&fixedClassifier{threshold: 500},
		&fixedSTT{text: "tell me everything"},
		chat,
		&mockSynth{},
		sink,
		nil,
		stats,
		testLogger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()

	waitFor(t, 2*time.Second, agent.ReplyActive)

	// The user talks over the reply.
	source.push(loud, loud, quiet, quiet)

	waitFor(t, 2*time.Second, func() bool {
		return stats.get(&stats.turnsInterrupted) == 1
	})

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not shut down")
	}
}
