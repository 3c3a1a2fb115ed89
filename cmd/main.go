package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sorivoice/server/adapters/llm"
	adapterstt "github.com/sorivoice/server/adapters/stt"
	adaptertts "github.com/sorivoice/server/adapters/tts"
	"github.com/sorivoice/server/domain/entities"
	"github.com/sorivoice/server/domain/repositories"
	"github.com/sorivoice/server/internal/api"
	"github.com/sorivoice/server/internal/autochat"
	"github.com/sorivoice/server/internal/config"
	"github.com/sorivoice/server/internal/conversation"
	"github.com/sorivoice/server/internal/metrics"
	"github.com/sorivoice/server/internal/stt"
	"github.com/sorivoice/server/internal/websocket"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	m := metrics.New(prometheus.DefaultRegisterer)

	// Conversation patterns, optionally overlaid from a file
	patterns := conversation.Default()
	if cfg.PatternsFile != "" {
		loaded, err := conversation.Load(cfg.PatternsFile)
		if err != nil {
			logger.Fatal("failed to load conversation patterns", zap.Error(err))
		}
		patterns = loaded
	}

	ctx := context.Background()

	// Recognition engine
	var engine repositories.SpeechToText
	switch cfg.STTProvider {
	case config.STTProviderGoogle:
		google, err := adapterstt.NewGoogleSpeechToText(ctx, logger)
		if err != nil {
			logger.Fatal("failed to create google speech client", zap.Error(err))
		}
		defer google.Close()
		engine = google
	default:
		engine = adapterstt.NewMockSpeechToText(logger)
	}

	// Synthesis engine
	var factory repositories.TextToSpeechFactory
	switch cfg.TTSProvider {
	case config.TTSProviderElevenLabs:
		elevenLabs, err := adaptertts.NewElevenLabsFactory(adaptertts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("failed to create eleven labs factory", zap.Error(err))
		}
		factory = elevenLabs
	default:
		factory = adaptertts.NewMockFactory(logger)
	}

	// Responder
	var responder repositories.Responder
	switch cfg.Responder {
	case config.ResponderGemini:
		gemini, err := llm.NewGeminiResponder(ctx, logger)
		if err != nil {
			logger.Fatal("failed to create gemini responder", zap.Error(err))
		}
		responder = gemini
	default:
		responder = conversation.NewPatternResponder(patterns)
	}

	// WebSocket hub and the audio streaming path
	hub := websocket.NewHub(m, logger)
	streamer := websocket.NewAudioStreamer(hub, factory,
		entities.VoiceConfig{Language: cfg.Language}, m, logger)

	// Auto-chat scheduler
	manager := autochat.NewManager(hub, streamer, patterns, autochat.Config{
		Tick:            cfg.SchedulerTick,
		PauseWindow:     cfg.PauseWindow,
		DefaultTheme:    cfg.DefaultTheme,
		DefaultInterval: cfg.DefaultInterval,
	}, m, logger)
	defer manager.Shutdown()

	sttConfig := stt.Config{
		QueueCapacity: cfg.QueueCapacity,
		IdleTimeout:   cfg.IdleTimeout,
		Audio: repositories.AudioConfig{
			SampleRate: cfg.SampleRate,
			Encoding:   cfg.AudioEncoding,
			Language:   cfg.Language,
		},
	}

	chatHandler := websocket.NewChatHandler(hub, engine, responder, streamer, manager, sttConfig, logger)
	sttHandler := websocket.NewSTTHandler(hub, engine, sttConfig, logger)
	ttsHandler := websocket.NewTTSHandler(hub, streamer, logger)

	// Create Echo instance
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, hub, chatHandler, sttHandler, ttsHandler, manager, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("sttProvider", cfg.STTProvider),
		zap.String("ttsProvider", cfg.TTSProvider),
		zap.String("responder", cfg.Responder))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
