package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration resolved from the environment.
type Config struct {
	Audio    AudioConfig
	STT      STTConfig
	Deepgram DeepgramConfig
	OpenAI   OpenAIConfig
	Log      LogConfig
	Paths    PathsConfig
	Hotkey   HotkeyConfig
	Session  SessionConfig
}

type AudioConfig struct {
	// Backend is "portaudio" or "ffmpeg".
	Backend         string
	SampleFormat    string
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type STTConfig struct {
	// Provider is "deepgram", "openai" or "none".
	Provider string
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type OpenAIConfig struct {
	APIKey     string
	APIBaseURL string
	Model      string
	Language   string
	Prompt     string
	MaxRetry   int
}

type LogConfig struct {
	Dir    string
	Format string
	Level  string
}

type PathsConfig struct {
	Preferences   string
	History       string
	RecordingsDir string
}

type HotkeyConfig struct {
	// Device is the evdev node on Linux; empty means autodetect.
	Device string
}

type SessionConfig struct {
	TranscribeTimeout time.Duration
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	base := envOrDefault("ECHOMIC_HOME", filepath.Join(home, ".config", "echomic"))

	cfg := Config{
		Audio: AudioConfig{
			Backend:         strings.ToLower(envOrDefault("ECHOMIC_AUDIO_BACKEND", "portaudio")),
			SampleFormat:    envOrDefault("ECHOMIC_SAMPLE_FORMAT", "f32"),
			RecorderCommand: envOrDefault("ECHOMIC_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("ECHOMIC_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     firstNonEmpty(os.Getenv("ECHOMIC_AUDIO_INPUT_DEVICE"), "default"),
			SampleRate:      envOrDefaultInt("ECHOMIC_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("ECHOMIC_CHANNELS", 1),
		},
		STT: STTConfig{
			Provider: strings.ToLower(envOrDefault("ECHOMIC_STT_PROVIDER", "")),
		},
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		OpenAI: OpenAIConfig{
			APIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			APIBaseURL: envOrDefault("OPENAI_API_BASE", "https://api.openai.com/v1"),
			Model:      envOrDefault("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
			Language:   strings.TrimSpace(os.Getenv("OPENAI_LANGUAGE")),
			Prompt:     strings.TrimSpace(os.Getenv("OPENAI_PROMPT")),
			MaxRetry:   envOrDefaultInt("OPENAI_MAX_RETRY", 3),
		},
		Log: LogConfig{
			Dir:    envOrDefault("ECHOMIC_LOG_DIR", filepath.Join(base, "logs")),
			Format: strings.ToLower(envOrDefault("ECHOMIC_LOG_FORMAT", "text")),
			Level:  strings.ToLower(envOrDefault("ECHOMIC_LOG_LEVEL", "info")),
		},
		Paths: PathsConfig{
			Preferences:   envOrDefault("ECHOMIC_PREFS_FILE", filepath.Join(base, "preferences.yaml")),
			History:       envOrDefault("ECHOMIC_HISTORY_DB", filepath.Join(base, "history.db")),
			RecordingsDir: envOrDefault("ECHOMIC_RECORDINGS_DIR", filepath.Join(base, "recordings")),
		},
		Hotkey: HotkeyConfig{
			Device: strings.TrimSpace(os.Getenv("ECHOMIC_KEYBOARD_DEVICE")),
		},
		Session: SessionConfig{
			TranscribeTimeout: time.Duration(envOrDefaultInt("ECHOMIC_TRANSCRIBE_TIMEOUT_SEC", 60)) * time.Second,
		},
	}

	switch cfg.Audio.Backend {
	case "portaudio", "ffmpeg":
	default:
		cfg.Audio.Backend = "portaudio"
	}
	if cfg.STT.Provider == "" {
		cfg.STT.Provider = defaultProvider(cfg)
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.OpenAI.MaxRetry <= 0 {
		cfg.OpenAI.MaxRetry = 3
	}
	if cfg.Session.TranscribeTimeout <= 0 {
		cfg.Session.TranscribeTimeout = 60 * time.Second
	}

	return cfg, nil
}

// defaultProvider picks whichever provider has a key, Deepgram first.
func defaultProvider(cfg Config) string {
	switch {
	case cfg.Deepgram.APIKey != "":
		return "deepgram"
	case cfg.OpenAI.APIKey != "":
		return "openai"
	default:
		return "none"
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
