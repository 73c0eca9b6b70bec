// Package config loads the engine's tunables. Every timer duration is a
// setting here, not a constant.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the CLI and engine need.
type Config struct {
	TransportURL string `mapstructure:"transport_url"`
	DirectoryURL string `mapstructure:"directory_url"`
	UserID       string `mapstructure:"user_id"`
	CachePath    string `mapstructure:"cache_path"`
	LogLevel     string `mapstructure:"log_level"`

	RenderBufferMS    int `mapstructure:"render_buffer_ms"`
	FlushDebounceMS   int `mapstructure:"flush_debounce_ms"`
	FlushMaxWaitMS    int `mapstructure:"flush_max_wait_ms"`
	TypingExpiryMS    int `mapstructure:"typing_expiry_ms"`
	TypingThrottleMS  int `mapstructure:"typing_throttle_ms"`
	TypingStopMS      int `mapstructure:"typing_stop_ms"`
	RefreshIntervalMS int `mapstructure:"refresh_interval_ms"`
}

// Durations converted from the millisecond settings.
func (c Config) RenderBuffer() time.Duration    { return time.Duration(c.RenderBufferMS) * time.Millisecond }
func (c Config) FlushDebounce() time.Duration   { return time.Duration(c.FlushDebounceMS) * time.Millisecond }
func (c Config) FlushMaxWait() time.Duration    { return time.Duration(c.FlushMaxWaitMS) * time.Millisecond }
func (c Config) TypingExpiry() time.Duration    { return time.Duration(c.TypingExpiryMS) * time.Millisecond }
func (c Config) TypingThrottle() time.Duration  { return time.Duration(c.TypingThrottleMS) * time.Millisecond }
func (c Config) TypingStop() time.Duration      { return time.Duration(c.TypingStopMS) * time.Millisecond }
func (c Config) RefreshInterval() time.Duration { return time.Duration(c.RefreshIntervalMS) * time.Millisecond }

func setDefaults(v *viper.Viper) {
	v.SetDefault("transport_url", "ws://localhost:8080/ws")
	v.SetDefault("directory_url", "http://localhost:8080/api")
	v.SetDefault("user_id", "")
	v.SetDefault("cache_path", "weft.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("render_buffer_ms", 120)
	v.SetDefault("flush_debounce_ms", 75)
	v.SetDefault("flush_max_wait_ms", 500)
	v.SetDefault("typing_expiry_ms", 1400)
	v.SetDefault("typing_throttle_ms", 400)
	v.SetDefault("typing_stop_ms", 800)
	v.SetDefault("refresh_interval_ms", 30000)
}

// Load reads configuration from the given file (optional), weft.yaml in
// the working directory, and WEFT_* environment variables, in rising
// precedence of env over file over defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("WEFT")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	} else {
		v.SetConfigName("weft")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// A missing default config file is fine; defaults apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, err
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}
