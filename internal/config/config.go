package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	LogLevel   string        `mapstructure:"log_level"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	RateLimit  float64       `mapstructure:"rate_limit"`

	SilenceTimeout   time.Duration `mapstructure:"silence_timeout"`
	InterimInterval  time.Duration `mapstructure:"interim_interval"`
	PipelineTimeout  time.Duration `mapstructure:"pipeline_timeout"`
	RecognizeTimeout time.Duration `mapstructure:"recognize_timeout"`
	ChunkQueue       int           `mapstructure:"chunk_queue"`
	MaxChunkBytes    int           `mapstructure:"max_chunk_bytes"`
	MaxUtterance     int           `mapstructure:"max_utterance_bytes"`

	DefaultName        string   `mapstructure:"default_name"`
	CensoredWords      []string `mapstructure:"censored_words"`
	BackpressurePolicy string   `mapstructure:"backpressure_policy"`
}

// Load reads config/config.<CONFIG_ENV>.yaml (CONFIG_DIR overrides the
// directory) and applies BABEL_* environment overrides on top.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "config"
	}
	fileName := filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("BABEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 256)
	v.SetDefault("secret", "")
	v.SetDefault("rate_limit", 50)
	v.SetDefault("silence_timeout", "500ms")
	v.SetDefault("interim_interval", "50ms")
	v.SetDefault("pipeline_timeout", "10s")
	v.SetDefault("recognize_timeout", "5s")
	v.SetDefault("chunk_queue", 64)
	v.SetDefault("max_chunk_bytes", 64<<10)
	v.SetDefault("max_utterance_bytes", 2<<20)
	v.SetDefault("default_name", "Guest")
	v.SetDefault("censored_words", []string{})
	v.SetDefault("backpressure_policy", "drop")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("log_level", cfg.LogLevel).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.SilenceTimeout <= 0:
		return fmt.Errorf("silence_timeout must be positive, got %s", c.SilenceTimeout)
	case c.InterimInterval < 0:
		return fmt.Errorf("interim_interval must not be negative, got %s", c.InterimInterval)
	case c.SendBuffer <= 0:
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	return nil
}
