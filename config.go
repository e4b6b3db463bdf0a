package pitwall

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"justapengu.in/pitwall/internal/gemini"
	"justapengu.in/pitwall/internal/racesim"
)

type ServerConfig struct {
	HTTPAddr          string        `json:"http_addr" yaml:"http_addr" env:"PITWALL_HTTP_ADDR"`
	LogLevel          string        `json:"log_level" yaml:"log_level" env:"PITWALL_LOG_LEVEL"`
	AdvisorTimeout    time.Duration `json:"advisor_timeout" yaml:"advisor_timeout" env:"PITWALL_ADVISOR_TIMEOUT"`
	CommentaryTimeout time.Duration `json:"commentary_timeout" yaml:"commentary_timeout" env:"PITWALL_COMMENTARY_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"PITWALL_SHUTDOWN_TIMEOUT"`
	AllowedOrigins    []string      `json:"allowed_origins" yaml:"allowed_origins" env:"PITWALL_ALLOWED_ORIGINS" envSeparator:","`

	// ViewerBuffer is the number of messages queued for a websocket viewer before it is
	// considered too slow and detached.
	ViewerBuffer int `json:"viewer_buffer" yaml:"viewer_buffer" env:"PITWALL_VIEWER_BUFFER"`
}

type GeminiConfig struct {
	APIKey          string `json:"api_key" yaml:"api_key" env:"GEMINI_API_KEY"`
	Model           string `json:"model" yaml:"model" env:"GEMINI_MODEL"`
	CommentaryModel string `json:"commentary_model" yaml:"commentary_model" env:"GEMINI_COMMENTARY_MODEL"`
	BaseURL         string `json:"base_url" yaml:"base_url" env:"GEMINI_BASE_URL"`
}

type Config struct {
	Server ServerConfig       `json:"server" yaml:",inline"`
	Gemini GeminiConfig       `json:"gemini" yaml:"gemini"`
	Race   racesim.RaceConfig `json:"race" yaml:"race"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:          ":8787",
			LogLevel:          "info",
			AdvisorTimeout:    8 * time.Second,
			CommentaryTimeout: 10 * time.Second,
			ShutdownTimeout:   5 * time.Second,
			AllowedOrigins:    []string{"*"},
			ViewerBuffer:      64,
		},
		Gemini: GeminiConfig{
			Model:           gemini.DefaultModel,
			CommentaryModel: gemini.DefaultCommentaryModel,
			BaseURL:         gemini.DefaultBaseURL,
		},
		Race: racesim.DefaultRaceConfig(),
	}
}

// ReadConfig loads the defaults, overlays the yaml file at path (if it exists) and then any
// environment variables.
func ReadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		f, err := os.Open(path)

		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "could not open config %s", path)
		} else if err == nil {
			defer f.Close()

			if err := yaml.NewDecoder(f).Decode(config); err != nil {
				return nil, errors.Wrapf(err, "could not parse config %s", path)
			}
		}
	}

	if err := env.Parse(&config.Server); err != nil {
		return nil, errors.Wrap(err, "could not parse server environment")
	}

	if err := env.Parse(&config.Gemini); err != nil {
		return nil, errors.Wrap(err, "could not parse gemini environment")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.HTTPAddr) == "" {
		return errors.New("http_addr is required")
	}

	if _, err := logrus.ParseLevel(c.Server.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log_level")
	}

	if c.Server.AdvisorTimeout <= 0 || c.Server.CommentaryTimeout <= 0 || c.Server.ShutdownTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}

	if c.Server.ViewerBuffer < 1 {
		return errors.Errorf("viewer_buffer must be at least 1, got %d", c.Server.ViewerBuffer)
	}

	return errors.Wrap(c.Race.Validate(), "invalid race")
}

func (c *Config) LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.Server.LogLevel)

	if err != nil {
		return logrus.InfoLevel
	}

	return level
}

// Redacted returns a copy of the config that is safe to log or export.
func (c *Config) Redacted() Config {
	out := *c

	if out.Gemini.APIKey != "" {
		out.Gemini.APIKey = "_redacted_"
	}

	return out
}
