package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	DBPath     string `mapstructure:"db_path"`
	Secret     string `mapstructure:"secret"`

	ReadLimit    int64         `mapstructure:"read_limit"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	SendBuffer   int           `mapstructure:"send_buffer"`

	CountdownFrom int           `mapstructure:"countdown_from"`
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	StrictAuth    bool          `mapstructure:"strict_auth"`

	VoteRate  float64 `mapstructure:"vote_rate"`
	VoteBurst int     `mapstructure:"vote_burst"`

	SeedDemo bool `mapstructure:"seed_demo"`
}

// VoteRateLimit is the per-connection vote limiter rate.
func (c *Config) VoteRateLimit() rate.Limit {
	return rate.Limit(c.VoteRate)
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
	v.SetDefault("db_path", "partywave.db")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("countdown_from", 5)
	v.SetDefault("tick_interval", "1s")
	v.SetDefault("strict_auth", false)
	v.SetDefault("vote_rate", 5)
	v.SetDefault("vote_burst", 10)
	v.SetDefault("seed_demo", false)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
