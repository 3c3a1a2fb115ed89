// Package config loads the server configuration from the environment,
// with a .env file overlay for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Provider names selectable through the environment.
const (
	STTProviderMock   = "mock"
	STTProviderGoogle = "google"

	TTSProviderMock       = "mock"
	TTSProviderElevenLabs = "elevenlabs"

	ResponderPatterns = "patterns"
	ResponderGemini   = "gemini"
)

// Config is the full server configuration.
type Config struct {
	Port string

	STTProvider string
	TTSProvider string
	Responder   string

	// Recognition pipeline.
	QueueCapacity int
	IdleTimeout   time.Duration
	SampleRate    int
	AudioEncoding string
	Language      string

	// Auto-chat scheduler.
	SchedulerTick   time.Duration
	PauseWindow     time.Duration
	DefaultTheme    string
	DefaultInterval int

	// Optional conversation pattern overlay file.
	PatternsFile string
}

// Load reads the configuration. A missing .env file is not an error;
// the process environment always wins.
func Load() Config {
	godotenv.Load()

	return Config{
		Port: getEnv("PORT", "8080"),

		STTProvider: getEnv("STT_PROVIDER", STTProviderMock),
		TTSProvider: getEnv("TTS_PROVIDER", TTSProviderMock),
		Responder:   getEnv("RESPONDER", ResponderPatterns),

		QueueCapacity: getEnvInt("AUDIO_QUEUE_CAPACITY", 50),
		IdleTimeout:   getEnvDuration("AUDIO_IDLE_TIMEOUT", 5*time.Second),
		SampleRate:    getEnvInt("AUDIO_SAMPLE_RATE", 16000),
		AudioEncoding: getEnv("AUDIO_ENCODING", "LINEAR16"),
		Language:      getEnv("LANGUAGE", "ko-KR"),

		SchedulerTick:   getEnvDuration("AUTO_CHAT_TICK", 5*time.Second),
		PauseWindow:     getEnvDuration("AUTO_CHAT_PAUSE_WINDOW", 90*time.Second),
		DefaultTheme:    getEnv("AUTO_CHAT_DEFAULT_THEME", "casual"),
		DefaultInterval: getEnvInt("AUTO_CHAT_DEFAULT_INTERVAL", 30),

		PatternsFile: getEnv("CONVERSATION_PATTERNS_FILE", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
