package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries the runtime tunables. Values come from config.yaml when
// present, overridden by environment variables (HUB_PORT, LOCK_STALE_AFTER,
// and so on).
type Config struct {
	Hub struct {
		Addr string `mapstructure:"addr"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"hub"`
	Lock struct {
		StaleAfter     time.Duration `mapstructure:"stale_after"`
		RenewOnAcquire bool          `mapstructure:"renew_on_acquire"`
	} `mapstructure:"lock"`
	Sync struct {
		Throttle time.Duration `mapstructure:"throttle"`
	} `mapstructure:"sync"`
	Cursor struct {
		Throttle time.Duration `mapstructure:"throttle"`
	} `mapstructure:"cursor"`
	Shape struct {
		MinSize float64 `mapstructure:"min_size"`
	} `mapstructure:"shape"`
}

// Load reads configuration with sane defaults; a missing config file is not
// an error.
func Load() Config {
	viper.SetDefault("hub.addr", "")
	viper.SetDefault("hub.port", 8888)
	viper.SetDefault("lock.stale_after", 30*time.Second)
	viper.SetDefault("lock.renew_on_acquire", false)
	viper.SetDefault("sync.throttle", 40*time.Millisecond)
	viper.SetDefault("cursor.throttle", 80*time.Millisecond)
	viper.SetDefault("shape.min_size", 5.0)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		panic("config error: " + err.Error())
	}
	return c
}
