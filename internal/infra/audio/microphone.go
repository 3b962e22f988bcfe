//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"voice-agent/internal/application"
	"voice-agent/internal/domain"
)

// MicrophoneSource captures fixed-size PCM blocks from the default (or a
// named) input device. The capture loop blocks only on the driver; when
// the queue is full the oldest block is dropped so capture stays real-time.
type MicrophoneSource struct {
	device     string
	sampleRate int
	blockSize  int
	stats      application.PipelineStats
	logger     *slog.Logger

	blocks chan domain.AudioBlock
	done   chan struct{}

	mu      sync.Mutex
	stream  *portaudio.Stream
	running bool
}

func NewMicrophoneSource(device string, sampleRate, blockSize, queueSize int, stats application.PipelineStats, logger *slog.Logger) *MicrophoneSource {
	if stats == nil {
		stats = &application.NoopStats{}
	}
	if queueSize <= 0 {
		queueSize = 32
	}
	return &MicrophoneSource{
		device:     device,
		sampleRate: sampleRate,
		blockSize:  blockSize,
		stats:      stats,
		logger:     logger,
		blocks:     make(chan domain.AudioBlock, queueSize),
		done:       make(chan struct{}),
	}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Blocks() <-chan domain.AudioBlock {
	return m.blocks
}

func (m *MicrophoneSource) Start(ctx context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return &domain.DeviceError{Device: "microphone", Err: fmt.Errorf("initializing portaudio: %w", err)}
	}

	buffer := make([]int16, m.blockSize)

	stream, err := m.openStream(buffer)
	if err != nil {
		portaudio.Terminate()
		return &domain.DeviceError{Device: "microphone", Err: err}
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return &domain.DeviceError{Device: "microphone", Err: fmt.Errorf("starting stream: %w", err)}
	}

	m.mu.Lock()
	m.stream = stream
	m.running = true
	m.mu.Unlock()

	go m.captureLoop(ctx, buffer)

	m.logger.Info("microphone started",
		"sampleRate", m.sampleRate,
		"blockSize", m.blockSize,
	)
	return nil
}

func (m *MicrophoneSource) openStream(buffer []int16) (*portaudio.Stream, error) {
	if m.device != "" && m.device != "default" {
		dev, err := m.findInputDevice(m.device)
		if err != nil {
			m.logger.Warn("input device not found, using default", "device", m.device)
		} else {
			params := portaudio.StreamParameters{
				Input: portaudio.StreamDeviceParameters{
					Device:   dev,
					Channels: 1,
					Latency:  dev.DefaultLowInputLatency,
				},
				SampleRate:      float64(m.sampleRate),
				FramesPerBuffer: m.blockSize,
			}
			return portaudio.OpenStream(params, buffer)
		}
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), m.blockSize, buffer)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	return stream, nil
}

func (m *MicrophoneSource) findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}

func (m *MicrophoneSource) captureLoop(ctx context.Context, buffer []int16) {
	defer close(m.done)

	var seq uint64
	for {
		if ctx.Err() != nil {
			return
		}
		m.mu.Lock()
		stream, running := m.stream, m.running
		m.mu.Unlock()
		if !running || stream == nil {
			return
		}

		if err := stream.Read(); err != nil {
			m.mu.Lock()
			running = m.running
			m.mu.Unlock()
			if !running {
				return
			}
			// Transient read errors are logged; capture continues.
			m.logger.Warn("microphone read error", "error", err)
			continue
		}

		samples := make([]int16, len(buffer))
		copy(samples, buffer)

		block := domain.AudioBlock{
			Seq:        seq,
			Samples:    samples,
			SampleRate: m.sampleRate,
			Channels:   1,
		}
		seq++

		m.push(block)
	}
}

// push never blocks: on a full queue the oldest block is evicted and the
// drop recorded.
func (m *MicrophoneSource) push(block domain.AudioBlock) {
	select {
	case m.blocks <- block:
		return
	default:
	}

	select {
	case <-m.blocks:
		m.stats.BlockDropped()
		m.logger.Debug("capture queue full, dropped oldest block")
	default:
	}

	select {
	case m.blocks <- block:
	default:
	}
}

func (m *MicrophoneSource) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	stream := m.stream
	m.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	<-m.done
	if stream != nil {
		stream.Close()
	}
	portaudio.Terminate()
	close(m.blocks)
	return nil
}
