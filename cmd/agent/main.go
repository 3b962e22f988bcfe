package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-agent/config"
	"voice-agent/internal/application"
	"voice-agent/internal/infra/audio"
	"voice-agent/internal/infra/groq"
	"voice-agent/internal/infra/metrics"
	"voice-agent/internal/infra/openai"
	"voice-agent/internal/infra/piper"
	"voice-agent/internal/infra/webrtc"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	var stats application.PipelineStats = &application.NoopStats{}
	var recorder *metrics.Recorder
	if cfg.Telemetry.MetricsAddr != "" {
		recorder, err = metrics.NewRecorder(logger)
		if err != nil {
			logger.Error("initializing metrics", "error", err)
			os.Exit(1)
		}
		stats = recorder
		go serveMetrics(cfg.Telemetry.MetricsAddr, recorder, logger)
	}

	source := createAudioSource(cfg.Audio, stats, logger)

	classifier, err := createClassifier(cfg.VAD)
	if err != nil {
		logger.Error("initializing vad", "error", err)
		os.Exit(1)
	}

	whisperClient := openai.NewWhisperClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Language)
	groqClient := groq.NewClient(cfg.Groq.APIKey, cfg.Groq.Model, cfg.Groq.Temperature, cfg.Groq.MaxTokens)

	synth, err := piper.New(piper.Config{
		Binary:     cfg.TTS.PiperBinary,
		ModelPath:  cfg.TTS.PiperModel,
		SampleRate: cfg.TTS.SampleRate,
		Rate:       cfg.TTS.Rate,
		Timeout:    time.Duration(cfg.TTS.TimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		logger.Error("initializing speech synthesis", "error", err)
		os.Exit(1)
	}

	var archiver application.SegmentArchiver
	if cfg.Archive.Enabled {
		archiver, err = audio.NewRecorder(cfg.Archive.Dir, logger)
		if err != nil {
			logger.Error("initializing segment archive", "error", err)
			os.Exit(1)
		}
	}

	agent := application.NewAgent(
		application.AgentConfig{
			Gate: application.VoiceGateConfig{
				SilenceBlocks: cfg.VAD.SilenceBlocks,
				PrerollBlocks: cfg.VAD.PrerollBlocks,
				MinSegment:    time.Duration(cfg.VAD.MinSegmentMs) * time.Millisecond,
			},
			Orchestrator: application.OrchestratorConfig{
				TurnTimeout:    time.Duration(cfg.Groq.TimeoutSeconds) * time.Second,
				GroupSentences: cfg.Agent.GroupSentences,
				MaxItemChars:   cfg.Agent.MaxItemChars,
			},
			SystemPrompt: cfg.Groq.SystemPrompt,
			HistoryChars: cfg.History.CharBudget,
			Volume:       cfg.TTS.Volume,
			QueueSize:    cfg.TTS.QueueSize,
			Greeting:     cfg.Agent.Greeting,
			Farewell:     cfg.Agent.Farewell,
		},
		source,
		classifier,
		whisperClient,
		groqClient,
		synth,
		audio.NewSpeaker(logger),
		archiver,
		stats,
		logger,
	)

	logger.Info("starting voice agent",
		"audio_source", cfg.Audio.Source,
		"vad_engine", cfg.VAD.Engine,
	)

	if err := agent.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("agent error", "error", err)
		os.Exit(1)
	}

	if recorder != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
		recorder.Shutdown(sctx)
		scancel()
	}
}

func createAudioSource(cfg config.AudioConfig, stats application.PipelineStats, logger *slog.Logger) application.AudioSource {
	switch cfg.Source {
	case "file":
		return audio.NewFileSource(cfg.FileDir, cfg.SampleRate, cfg.BlockSize, cfg.QueueSize, stats, logger)
	default:
		return audio.NewMicrophoneSource(cfg.Device, cfg.SampleRate, cfg.BlockSize, cfg.QueueSize, stats, logger)
	}
}

func createClassifier(cfg config.VADConfig) (application.SpeechClassifier, error) {
	if cfg.Engine == "webrtc" {
		return webrtc.NewClassifier(cfg.WebRTCMode)
	}
	return application.NewEnergyClassifier(application.EnergyClassifierConfig{
		InitialThreshold: cfg.InitialThreshold,
		MinThreshold:     cfg.MinThreshold,
		MaxThreshold:     cfg.MaxThreshold,
		MarginFactor:     cfg.MarginFactor,
		Hysteresis:       cfg.Hysteresis,
		AdaptRate:        cfg.AdaptRate,
	}), nil
}

func serveMetrics(addr string, recorder *metrics.Recorder, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	logger.Info("metrics server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", "error", err)
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
