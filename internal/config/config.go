package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server string `mapstructure:"server"`

	Nickname string `mapstructure:"nickname"`
	Channel  string `mapstructure:"channel"`

	SnapshotPath string `mapstructure:"snapshot_path"`

	PollInterval      time.Duration `mapstructure:"poll_interval"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	ReconnectCooldown time.Duration `mapstructure:"reconnect_cooldown"`
	AnnouncePacing    time.Duration `mapstructure:"announce_pacing"`
	RoomTTL           time.Duration `mapstructure:"room_ttl"`

	HTTPAddr string `mapstructure:"http_addr"`
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
	v.SetDefault("server", "aochd.jp:6667")
	v.SetDefault("nickname", "rakou_bot")
	v.SetDefault("channel", "#AoCHD")
	v.SetDefault("snapshot_path", "aochd_rooms.json")
	v.SetDefault("poll_interval", "500ms")
	v.SetDefault("handshake_timeout", "120s")
	v.SetDefault("settle_delay", "500ms")
	v.SetDefault("reconnect_cooldown", "60s")
	v.SetDefault("announce_pacing", "500ms")
	v.SetDefault("room_ttl", "24h")
	v.SetDefault("http_addr", "")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
