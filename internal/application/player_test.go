package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voice-agent/internal/application"
)

// mockSynth encodes the text into the samples so the sink can recover it.
type mockSynth struct {
	delays map[string]time.Duration
	errs   map[string]error
}

func (m *mockSynth) SampleRate() int { return 16000 }

func (m *mockSynth) Synthesize(ctx context.Context, text string) ([]int16, error) {
	if d, ok := m.delays[text]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := m.errs[text]; ok {
		return nil, err
	}
	samples := make([]int16, len(text))
	for i, r := range []byte(text) {
		samples[i] = int16(r)
	}
	return samples, nil
}

type mockSink struct {
	mu        sync.Mutex
	played    []string
	playDelay time.Duration
}

func (m *mockSink) Play(ctx context.Context, samples []int16, _ int) error {
	if m.playDelay > 0 {
		select {
		case <-time.After(m.playDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	text := make([]byte, len(samples))
	for i, s := range samples {
		text[i] = byte(s)
	}
	m.mu.Lock()
	m.played = append(m.played, string(text))
	m.mu.Unlock()
	return nil
}

func (m *mockSink) Close() error { return nil }

func (m *mockSink) playedItems() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.played...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestSpeechPlayer_PlaysInEnqueueOrder(t *testing.T) {
	synth := &mockSynth{delays: map[string]time.Duration{
		"first":  40 * time.Millisecond,
		"second": 5 * time.Millisecond,
	}}
	sink := &mockSink{}
	stats := &countingStats{}
	player := application.NewSpeechPlayer(synth, sink, 1.0, stats, testLogger(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go player.Run(ctx)

	for _, text := range []string{"first", "second", "third"} {
		if err := player.Enqueue(ctx, text, player.Generation()); err != nil {
			t.Fatalf("Enqueue(%q): %v", text, err)
		}
	}

	waitFor(t, time.Second, func() bool { return len(sink.playedItems()) == 3 })

	got := sink.playedItems()
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("playback order: got %v, want %v", got, want)
		}
	}
	if n := stats.get(&stats.itemsPlayed); n != 3 {
		t.Errorf("itemsPlayed: got %d, want 3", n)
	}
}

func TestSpeechPlayer_CancelAllDiscardsQueued(t *testing.T) {
	synth := &mockSynth{}
	sink := &mockSink{playDelay: 200 * time.Millisecond}
	stats := &countingStats{}
	player := application.NewSpeechPlayer(synth, sink, 1.0, stats, testLogger(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go player.Run(ctx)

	for _, text := range []string{"one", "two", "three"} {
		if err := player.Enqueue(ctx, text, player.Generation()); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, time.Second, player.Active)
	time.Sleep(30 * time.Millisecond)

	player.CancelAll()

	waitFor(t, time.Second, func() bool { return !player.Active() })

	if got := sink.playedItems(); len(got) != 0 {
		t.Errorf("items played after cancel: %v", got)
	}
	if n := stats.get(&stats.itemsPlayed); n != 0 {
		t.Errorf("itemsPlayed: got %d, want 0", n)
	}
}

func TestSpeechPlayer_SkipsFailedSynthesis(t *testing.T) {
	synth := &mockSynth{errs: map[string]error{"bad": errors.New("voice model crashed")}}
	sink := &mockSink{}
	stats := &countingStats{}
	player := application.NewSpeechPlayer(synth, sink, 1.0, stats, testLogger(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go player.Run(ctx)

	player.Enqueue(ctx, "bad", player.Generation())
	player.Enqueue(ctx, "good", player.Generation())

	waitFor(t, time.Second, func() bool { return len(sink.playedItems()) == 1 })

	if got := sink.playedItems()[0]; got != "good" {
		t.Errorf("played: got %q, want %q", got, "good")
	}
	if n := stats.get(&stats.synthSkipped); n != 1 {
		t.Errorf("synthSkipped: got %d, want 1", n)
	}
}

func TestSpeechPlayer_StaleGenerationIsDiscarded(t *testing.T) {
	synth := &mockSynth{}
	sink := &mockSink{}
	stats := &countingStats{}
	player := application.NewSpeechPlayer(synth, sink, 1.0, stats, testLogger(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go player.Run(ctx)

	// An item stamped with a generation captured before CancelAll must
	// never play, even though it is enqueued after the cancellation.
	gen := player.Generation()
	player.CancelAll()

	if err := player.Enqueue(ctx, "stale", gen); err != nil {
		t.Fatal(err)
	}
	if err := player.Enqueue(ctx, "fresh", player.Generation()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, time.Second, func() bool { return len(sink.playedItems()) == 1 })
	waitFor(t, time.Second, func() bool { return !player.Active() })

	if got := sink.playedItems(); len(got) != 1 || got[0] != "fresh" {
		t.Errorf("played: %v, want only %q", got, "fresh")
	}
	if n := stats.get(&stats.itemsPlayed); n != 1 {
		t.Errorf("itemsPlayed: got %d, want 1", n)
	}
}

func TestSpeechPlayer_ActiveLifecycle(t *testing.T) {
	synth := &mockSynth{}
	sink := &mockSink{}
	player := application.NewSpeechPlayer(synth, sink, 1.0, nil, testLogger(), 8)

	if player.Active() {
		t.Error("Active before any enqueue")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go player.Run(ctx)

	player.Enqueue(ctx, "hello", player.Generation())

	waitFor(t, time.Second, func() bool { return !player.Active() })

	if got := sink.playedItems(); len(got) != 1 || got[0] != "hello" {
		t.Errorf("played: %v", got)
	}
}
