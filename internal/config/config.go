package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	// Client side: which relay room to join and how to identify.
	RelayURL string `mapstructure:"relay_url"`
	Room     string `mapstructure:"room"`
	Username string `mapstructure:"username"`
	SpoolDir string `mapstructure:"spool_dir"`

	// Protocol policy. Peers with different values still interoperate;
	// only timing differs.
	MaxFrameSize int           `mapstructure:"max_frame_size"`
	FramePacing  time.Duration `mapstructure:"frame_pacing"`
	SyncDelayMin time.Duration `mapstructure:"sync_delay_min"`
	SyncDelayMax time.Duration `mapstructure:"sync_delay_max"`
	ReactionTTL  time.Duration `mapstructure:"reaction_ttl"`

	// Relay join rate limiting.
	JoinLimit  int           `mapstructure:"join_limit"`
	JoinWindow time.Duration `mapstructure:"join_window"`
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
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "54s")

	v.SetDefault("relay_url", "ws://localhost:8080/api/ws/rooms")
	v.SetDefault("room", "lobby")
	v.SetDefault("username", "guest")
	v.SetDefault("spool_dir", os.TempDir())

	v.SetDefault("max_frame_size", 60000)
	v.SetDefault("frame_pacing", "50ms")
	v.SetDefault("sync_delay_min", "500ms")
	v.SetDefault("sync_delay_max", "1500ms")
	v.SetDefault("reaction_ttl", "3s")

	v.SetDefault("join_limit", 10)
	v.SetDefault("join_window", "1m")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
