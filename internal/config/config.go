package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Providers ProvidersConfig `yaml:"providers"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// AudioConfig contains uplink audio parameters.
type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	Encoding   string `yaml:"encoding"`
	Language   string `yaml:"language"`
}

// ProvidersConfig selects the backing implementation per stage.
// "mock" runs the deterministic in-process adapters.
type ProvidersConfig struct {
	SpeechToText string `yaml:"speech_to_text"` // mock | google
	TextToSpeech string `yaml:"text_to_speech"` // mock | elevenlabs
	LLM          string `yaml:"llm"`            // mock | gemini
}

// AuthConfig contains session token configuration. An empty secret
// disables authentication.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Address: ":8080"},
		Audio: AudioConfig{
			SampleRate: 16000,
			Encoding:   "pcm16",
			Language:   "en-US",
		},
		Providers: ProvidersConfig{
			SpeechToText: "mock",
			TextToSpeech: "mock",
			LLM:          "mock",
		},
		Auth:    AuthConfig{TokenTTLHours: 24},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads and parses the configuration file, applying defaults for
// omitted fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Providers.Validate(); err != nil {
		return fmt.Errorf("providers config: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates server configuration.
func (s *ServerConfig) Validate() error {
	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	return nil
}

// Validate validates audio configuration.
func (a *AudioConfig) Validate() error {
	switch a.SampleRate {
	case 8000, 16000, 24000, 44100, 48000:
	default:
		return fmt.Errorf("unsupported sample_rate %d", a.SampleRate)
	}
	if a.Encoding == "" {
		return fmt.Errorf("encoding cannot be empty")
	}
	if a.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}
	return nil
}

// Validate validates provider selection.
func (p *ProvidersConfig) Validate() error {
	switch p.SpeechToText {
	case "mock", "google":
	default:
		return fmt.Errorf("speech_to_text must be mock or google, got %q", p.SpeechToText)
	}
	switch p.TextToSpeech {
	case "mock", "elevenlabs":
	default:
		return fmt.Errorf("text_to_speech must be mock or elevenlabs, got %q", p.TextToSpeech)
	}
	switch p.LLM {
	case "mock", "gemini":
	default:
		return fmt.Errorf("llm must be mock or gemini, got %q", p.LLM)
	}
	return nil
}

// Validate validates auth configuration.
func (a *AuthConfig) Validate() error {
	if a.TokenTTLHours < 0 {
		return fmt.Errorf("token_ttl_hours must not be negative, got %d", a.TokenTTLHours)
	}
	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", l.Level)
	}
	switch l.Format {
	case "json", "console":
	default:
		return fmt.Errorf("format must be json or console, got %q", l.Format)
	}
	return nil
}
