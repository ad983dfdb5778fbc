package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// defaultSecret signs session cookies in development only.
const defaultSecret = "change-me"

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	Secret         string        `mapstructure:"secret"`
	LogLevel       string        `mapstructure:"log_level"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	MaxShed        int           `mapstructure:"max_shed"`
	Redis          Redis         `mapstructure:"redis"`
}

// Redis configures cross-instance relaying. An empty Addr runs the server
// standalone.
type Redis struct {
	Addr   string `mapstructure:"addr"`
	DB     int    `mapstructure:"db"`
	Prefix string `mapstructure:"prefix"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "debug")
	v.SetDefault("host", "")
	v.SetDefault("port", 5000)
	v.SetDefault("allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("secret", defaultSecret)
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("max_shed", 256)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "coderoom")
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("CODEROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Plain names used by existing deployments.
	_ = v.BindEnv("port", "CODEROOM_PORT", "PORT")
	_ = v.BindEnv("host", "CODEROOM_HOST", "HOST")
	_ = v.BindEnv("allowed_origins", "CODEROOM_ALLOWED_ORIGINS", "FRONTEND_URL")
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

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// Env values arrive as a single comma separated string.
	cfg.AllowedOrigins = splitOrigins(cfg.AllowedOrigins)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Str("addr", cfg.Addr()).Strs("origins", cfg.AllowedOrigins).Msg("config ready")
	return &cfg, nil
}

func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, o := range strings.Split(item, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("config: send_buffer must be positive")
	}
	if c.Mode == "release" && (c.Secret == "" || c.Secret == defaultSecret) {
		return fmt.Errorf("config: release mode needs a session secret (CODEROOM_SECRET)")
	}
	if c.PingPeriod >= c.PongWait {
		return fmt.Errorf("config: ping_period %s must be shorter than pong_wait %s", c.PingPeriod, c.PongWait)
	}
	return nil
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
