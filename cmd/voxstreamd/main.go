package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/voxstream/voxstream/adapters/llm"
	"github.com/voxstream/voxstream/adapters/stt"
	"github.com/voxstream/voxstream/adapters/tts"
	"github.com/voxstream/voxstream/domain/repositories"
	"github.com/voxstream/voxstream/internal/api"
	"github.com/voxstream/voxstream/internal/auth"
	"github.com/voxstream/voxstream/internal/config"
	"github.com/voxstream/voxstream/internal/server"
	"github.com/voxstream/voxstream/usecase"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	// Secrets come from the environment, not the config file.
	// .env is optional in deployed environments.
	_ = godotenv.Load()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			panic(err)
		}
		cfg = loaded
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	speechToText, err := newSpeechToText(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize speech-to-text", zap.Error(err))
	}
	textToSpeech, err := newTextToSpeech(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize text-to-speech", zap.Error(err))
	}
	chatModel, err := newLLM(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize language model", zap.Error(err))
	}

	conversationService := usecase.NewConversationService(
		speechToText,
		textToSpeech,
		chatModel,
		repositories.AudioConfig{
			SampleRate: cfg.Audio.SampleRate,
			Encoding:   cfg.Audio.Encoding,
			Language:   cfg.Audio.Language,
		},
		logger,
	)

	hub := server.NewHub(conversationService, logger)
	issuer := auth.NewTokenIssuer(
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour,
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, hub, issuer, logger)

	go func() {
		if err := e.Start(cfg.Server.Address); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("address", cfg.Server.Address),
		zap.String("stt", cfg.Providers.SpeechToText),
		zap.String("tts", cfg.Providers.TextToSpeech),
		zap.String("llm", cfg.Providers.LLM),
		zap.Bool("authEnabled", issuer.Enabled()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = level
	return zc.Build()
}

func newSpeechToText(cfg *config.Config, logger *zap.Logger) (repositories.SpeechToText, error) {
	switch cfg.Providers.SpeechToText {
	case "google":
		return stt.NewGoogleSpeechToText(logger), nil
	default:
		return stt.NewMockSpeechToText(logger), nil
	}
}

func newTextToSpeech(cfg *config.Config, logger *zap.Logger) (repositories.TextToSpeech, error) {
	switch cfg.Providers.TextToSpeech {
	case "elevenlabs":
		return tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
	default:
		return tts.NewMockTextToSpeech(logger), nil
	}
}

func newLLM(cfg *config.Config, logger *zap.Logger) (repositories.LargeLanguageModel, error) {
	switch cfg.Providers.LLM {
	case "gemini":
		return llm.NewGeminiLLM(llm.NewGeminiConfigFromEnv(), logger)
	default:
		return llm.NewMockLLM(), nil
	}
}
