package audio_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	"voice-agent/internal/domain"
	infraaudio "voice-agent/internal/infra/audio"
)

func TestEncodeWAV(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768}
	data := infraaudio.EncodeWAV(samples, 16000)

	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatal("missing RIFF header")
	}
	if !bytes.Equal(data[8:12], []byte("WAVE")) {
		t.Fatal("missing WAVE marker")
	}

	rate := binary.LittleEndian.Uint32(data[24:28])
	if rate != 16000 {
		t.Errorf("sample rate: got %d", rate)
	}

	wantLen := 44 + len(samples)*2
	if len(data) != wantLen {
		t.Errorf("length: got %d, want %d", len(data), wantLen)
	}

	// First sample starts right after the 44-byte header.
	first := int16(binary.LittleEndian.Uint16(data[44:46]))
	if first != 0 {
		t.Errorf("first sample: got %d", first)
	}
	second := int16(binary.LittleEndian.Uint16(data[46:48]))
	if second != 100 {
		t.Errorf("second sample: got %d", second)
	}
}

func TestEncodeWAV_DecodableByStandardTools(t *testing.T) {
	samples := []int16{10, 20, 30, 40}
	data := infraaudio.EncodeWAV(samples, 22050)

	decoder := wav.NewDecoder(bytes.NewReader(data))
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}

	if len(buf.Data) != len(samples) {
		t.Fatalf("decoded samples: got %d, want %d", len(buf.Data), len(samples))
	}
	for i, want := range samples {
		if int16(buf.Data[i]) != want {
			t.Errorf("sample %d: got %d, want %d", i, buf.Data[i], want)
		}
	}
}

func TestRecorder_ArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rec, err := infraaudio.NewRecorder(dir, logger)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	seg := domain.SpeechSegment{
		ID:         "test-segment",
		Samples:    []int16{1, 2, 3, 4, 5},
		SampleRate: 16000,
		Channels:   1,
	}
	if err := rec.Archive(seg); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	path := filepath.Join(dir, "test-segment.wav")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("archived file missing: %v", err)
	}
	defer f.Close()

	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		t.Fatalf("decoding archive: %v", err)
	}
	if len(buf.Data) != 5 {
		t.Fatalf("decoded samples: got %d, want 5", len(buf.Data))
	}
	for i, want := range seg.Samples {
		if int16(buf.Data[i]) != want {
			t.Errorf("sample %d: got %d, want %d", i, buf.Data[i], want)
		}
	}
	if buf.Format.SampleRate != 16000 {
		t.Errorf("sample rate: got %d", buf.Format.SampleRate)
	}
}
