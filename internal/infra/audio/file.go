package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/wav"

	"voice-agent/internal/application"
	"voice-agent/internal/domain"
)

// FileSource replays 16-bit mono WAV files from a directory as a paced
// stream of audio blocks. It exists for development and testing without
// audio hardware; processed files are renamed so they play once.
type FileSource struct {
	dir        string
	sampleRate int
	blockSize  int
	stats      application.PipelineStats
	logger     *slog.Logger

	blocks chan domain.AudioBlock
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	processed map[string]bool
	seq       uint64
}

func NewFileSource(dir string, sampleRate, blockSize, queueSize int, stats application.PipelineStats, logger *slog.Logger) *FileSource {
	if stats == nil {
		stats = &application.NoopStats{}
	}
	if queueSize <= 0 {
		queueSize = 32
	}
	return &FileSource{
		dir:        dir,
		sampleRate: sampleRate,
		blockSize:  blockSize,
		stats:      stats,
		logger:     logger,
		blocks:     make(chan domain.AudioBlock, queueSize),
		done:       make(chan struct{}),
		processed:  make(map[string]bool),
	}
}

func (f *FileSource) Name() string {
	return "file"
}

func (f *FileSource) Blocks() <-chan domain.AudioBlock {
	return f.blocks
}

func (f *FileSource) Start(ctx context.Context) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("creating audio dir: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	go f.scanLoop(runCtx)
	return nil
}

func (f *FileSource) Stop() error {
	if f.cancel != nil {
		f.cancel()
		<-f.done
	}
	return nil
}

func (f *FileSource) scanLoop(ctx context.Context) {
	defer close(f.done)
	defer close(f.blocks)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			path, ok := f.nextFile()
			if !ok {
				continue
			}
			if err := f.replay(ctx, path); err != nil {
				f.logger.Warn("replaying wav file", "path", path, "error", err)
			}
		}
	}
}

func (f *FileSource) nextFile() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		f.logger.Warn("reading audio dir", "error", err)
		return "", false
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".wav") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(f.dir, name)
		if f.processed[path] {
			continue
		}
		f.processed[path] = true
		return path, true
	}
	return "", false
}

// replay decodes a WAV file and emits its samples as real-time-paced
// blocks, so the gate sees the same timing it would from a microphone.
func (f *FileSource) replay(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening wav: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("decoding wav: %w", err)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}

	rate := f.sampleRate
	if buf.Format != nil && buf.Format.SampleRate > 0 {
		rate = buf.Format.SampleRate
	}
	pace := time.Duration(f.blockSize) * time.Second / time.Duration(rate)

	for offset := 0; offset < len(samples); offset += f.blockSize {
		end := offset + f.blockSize
		if end > len(samples) {
			end = len(samples)
		}
		block := make([]int16, f.blockSize)
		copy(block, samples[offset:end])

		f.push(domain.AudioBlock{
			Seq:        f.seq,
			Samples:    block,
			SampleRate: rate,
			Channels:   1,
		})
		f.seq++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pace):
		}
	}

	if err := os.Rename(path, path+".processed"); err != nil {
		f.logger.Warn("marking wav file processed", "path", path, "error", err)
	}
	return nil
}

// push never blocks: on a full queue the oldest block is evicted and the
// drop recorded, matching the microphone source.
func (f *FileSource) push(block domain.AudioBlock) {
	select {
	case f.blocks <- block:
		return
	default:
	}

	select {
	case <-f.blocks:
		f.stats.BlockDropped()
		f.logger.Debug("replay queue full, dropped oldest block")
	default:
	}

	select {
	case f.blocks <- block:
	default:
	}
}
