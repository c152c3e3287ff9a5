package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`

	// Secret is the shared HMAC key for call-token verification.
	Secret     string `mapstructure:"secret"`
	AuthCookie string `mapstructure:"auth_cookie"`

	// Engine selects the media engine: "webrtc" or "memory".
	Engine  string `mapstructure:"engine"`
	Workers int    `mapstructure:"workers"`

	AnnouncedIP string `mapstructure:"announced_ip"`
	RTCMinPort  uint16 `mapstructure:"rtc_min_port"`
	RTCMaxPort  uint16 `mapstructure:"rtc_max_port"`

	ReadLimit        int64         `mapstructure:"read_limit"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	MessageRateLimit int           `mapstructure:"message_rate_limit"`
	MaxRoomPeers     int           `mapstructure:"max_room_peers"`
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

	v.SetEnvPrefix("eusuite")
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	// Registering the key is what lets AutomaticEnv surface
	// EUSUITE_SECRET through Unmarshal when no config file is present.
	v.SetDefault("secret", "")
	v.SetDefault("auth_cookie", "call_token")
	v.SetDefault("engine", "webrtc")
	v.SetDefault("workers", 0)
	v.SetDefault("rtc_min_port", 40000)
	v.SetDefault("rtc_max_port", 49999)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("message_rate_limit", 50)
	v.SetDefault("max_room_peers", 0)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("secret is required (set EUSUITE_SECRET or the secret config key)")
	}
	return &cfg, nil
}
