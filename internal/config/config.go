package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Environment string `mapstructure:"environment"`
	Port        string `mapstructure:"port"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WorkersConfig struct {
	DispatchInterval time.Duration `mapstructure:"dispatch_interval"`
	DispatchLimit    int           `mapstructure:"dispatch_limit"`
	StuckHorizon     time.Duration `mapstructure:"stuck_horizon"`
}

type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

type AuthConfig struct {
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `mapstructure:"requests_per_second"`
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("SHOPFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", ":8080")
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("workers.dispatch_interval", 2*time.Minute)
	viper.SetDefault("workers.dispatch_limit", 500)
	viper.SetDefault("workers.stuck_horizon", time.Hour)
	viper.SetDefault("auth.access_token_ttl", 15*time.Minute)
	viper.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)
	viper.SetDefault("ratelimit.requests_per_second", 50)

	if err := viper.ReadInConfig(); err != nil {
		// Just log if config file is not found, relying on Env or simply empty values if that's intended (though risky without defaults)
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}
