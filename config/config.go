// Ininicializing common application configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultPath = "./config/config.yaml"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	App     AppConfig     `mapstructure:"app"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	AppVersion    string        `mapstructure:"app_version"`
	Host          string        `mapstructure:"host"`
	Port          string        `mapstructure:"port"`
	Timeout       time.Duration `mapstructure:"timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	Env           string        `mapstructure:"environment"`
	Mode          string        `mapstructure:"mode"`
	AllowedOrigin string        `mapstructure:"allowed_origin"`
}

type AppConfig struct {
	DefaultFormat   string        `mapstructure:"default_format"`
	DefaultQuality  float64       `mapstructure:"default_quality"`
	CompressQuality float64       `mapstructure:"compress_quality"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	RenderTimeout   time.Duration `mapstructure:"render_timeout"`
	SessionIdleTTL  time.Duration `mapstructure:"session_idle_ttl"`
	ReapInterval    time.Duration `mapstructure:"reap_interval"`
}

// GatewayConfig points at the background-removal API. Background removal is
// disabled while APIKey is empty.
type GatewayConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.app_version", "dev")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allowed_origin", "http://localhost:5173")

	v.SetDefault("app.default_format", "png")
	v.SetDefault("app.default_quality", 0.92)
	v.SetDefault("app.compress_quality", 0.6)
	v.SetDefault("app.max_upload_bytes", 25<<20)
	v.SetDefault("app.render_timeout", 30*time.Second)
	v.SetDefault("app.session_idle_ttl", 30*time.Minute)
	v.SetDefault("app.reap_interval", time.Minute)

	v.SetDefault("gateway.url", "https://api.slazzer.com/v2.0/remove_image_background")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.timeout", 60*time.Second)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9094"})
	v.SetDefault("kafka.topic", "image-exports")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig reads the YAML file at path, falling back to DefaultPath when
// path is empty. A missing default file is not an error; every key has a
// default and can be overridden with STUDIO_* variables (server.port ->
// STUDIO_SERVER_PORT).
func LoadConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STUDIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if len(c.Kafka.Brokers) == 1 && strings.Contains(c.Kafka.Brokers[0], ",") {
		c.Kafka.Brokers = strings.Split(c.Kafka.Brokers[0], ",")
	}
	return &c, nil
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
