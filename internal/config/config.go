package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	Secret     string `mapstructure:"secret"`

	SendBuffer   int           `mapstructure:"send_buffer"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// RingTimeout auto-ends unanswered private calls as missed.
	RingTimeout time.Duration `mapstructure:"ring_timeout"`

	// Call initiation rate limit per user, per window.
	CallRateLimit  int           `mapstructure:"call_rate_limit"`
	CallRateWindow time.Duration `mapstructure:"call_rate_window"`

	StunServers []string `mapstructure:"stun_servers"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("ring_timeout", "30s")
	v.SetDefault("call_rate_limit", 10)
	v.SetDefault("call_rate_window", "1m")
	v.SetDefault("stun_servers", []string{"stun:stun.l.google.com:19302"})

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Secret == "" {
		// An empty key would leave session cookies unauthenticated.
		// Ephemeral keys invalidate sessions on restart; fine for a
		// dev setup, configure a real secret in production.
		cfg.Secret = uuid.NewString()
		log.Warn().Str("module", "config").Msg("no session secret configured, generated an ephemeral one")
	}
	return &cfg, nil
}
