package server

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the deployment-time surface of the server. Values come from
// worldify.yaml next to the binary and WORLDIFY_* environment variables;
// cmd/server layers flags on top.
type Config struct {
	ListenAddr    string        `mapstructure:"listen_addr"`
	DefaultRoomID string        `mapstructure:"default_room_id"`
	RoomCapacity  int           `mapstructure:"room_capacity"`
	TickRate      int           `mapstructure:"tick_rate"` // ticks per second
	GridExtent    uint16        `mapstructure:"grid_extent"`
	WorldExtent   float32       `mapstructure:"world_extent"` // half-width of the walkable square
	MoveSpeed     float32       `mapstructure:"move_speed"`   // units per second
	JoinTTL       time.Duration `mapstructure:"join_ttl"`
	LogFile       string        `mapstructure:"log_file"`
	Debug         bool          `mapstructure:"debug"`
}

// TickInterval converts the configured rate into the ticker period.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// LoadConfig reads configuration through viper, falling back to defaults when
// no config file is present.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigName("worldify")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("worldify")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("default_room_id", "LOBBY")
	v.SetDefault("room_capacity", 16)
	v.SetDefault("tick_rate", 20)
	v.SetDefault("grid_extent", 128)
	v.SetDefault("world_extent", 120.0)
	v.SetDefault("move_speed", 6.0)
	v.SetDefault("join_ttl", 30*time.Second)
	v.SetDefault("log_file", "")
	v.SetDefault("debug", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
