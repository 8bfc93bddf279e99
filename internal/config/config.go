package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		IdleTimeout     time.Duration `yaml:"idleTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
		CORSOrigins     []string      `yaml:"corsOrigins"`
	} `yaml:"server"`

	Database Database `yaml:"database"`

	Auth struct {
		// APIKeys maps a user id to its key. Empty disables authentication.
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rateLimit"`

	Simulator struct {
		TickInterval    time.Duration `yaml:"tickInterval"`
		FilesPerTickMin float64       `yaml:"filesPerTickMin"`
		FilesPerTickMax float64       `yaml:"filesPerTickMax"`
		Seed            uint64        `yaml:"seed"`
	} `yaml:"simulator"`

	Cache struct {
		// Invalidation is per process: a tier written by `profile set` reaches
		// a running server only after this TTL. Negative disables the cache.
		ProfileTTL time.Duration `yaml:"profileTTL"`
	} `yaml:"cache"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	OpenAI struct {
		APIKey  string `yaml:"apiKey"`
		Model   string `yaml:"model"`
		BaseURL string `yaml:"baseURL"`
	} `yaml:"openai"`

	MQTT struct {
		Broker      string `yaml:"broker"`
		ClientID    string `yaml:"clientID"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topicPrefix"`
	} `yaml:"mqtt"`

	Sentry struct {
		DSN         string `yaml:"dsn"`
		Environment string `yaml:"environment"`
	} `yaml:"sentry"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Database selects and configures the record store.
type Database struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	// Path of the SQLite file.
	Path string `yaml:"path"`
	// DSN overrides host/port/user/password/name for mysql and postgres.
	DSN string `yaml:"dsn"`
}

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Default returns a configuration that runs locally without any external service.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// Load baca file config.yaml. Missing fields fall back to defaults and the
// result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML config bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = "n0dr1e.db"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case DriverMySQL:
			c.Database.Port = 3306
		case DriverPostgres:
			c.Database.Port = 5432
		}
	}

	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 10
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}

	if c.Simulator.TickInterval == 0 {
		c.Simulator.TickInterval = 100 * time.Millisecond
	}
	if c.Simulator.FilesPerTickMin == 0 {
		c.Simulator.FilesPerTickMin = 25
	}
	if c.Simulator.FilesPerTickMax == 0 {
		c.Simulator.FilesPerTickMax = 75
	}

	if c.Cache.ProfileTTL == 0 {
		c.Cache.ProfileTTL = 30 * time.Second
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "n0dr1e"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "n0dr1e"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres:
		if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Name == "") {
			return fmt.Errorf("database.host and database.name are required for %s", c.Database.Driver)
		}
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("database.driver %q not supported (mysql, postgres, sqlite, memory)", c.Database.Driver)
	}
	for user, key := range c.Auth.APIKeys {
		if strings.TrimSpace(user) == "" || strings.TrimSpace(key) == "" {
			return fmt.Errorf("auth.apiKeys entries need a user and a key")
		}
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rateLimit values must not be negative")
	}
	if c.Simulator.TickInterval < time.Millisecond {
		return fmt.Errorf("simulator.tickInterval must be at least 1ms")
	}
	if c.Simulator.FilesPerTickMin <= 0 || c.Simulator.FilesPerTickMax < c.Simulator.FilesPerTickMin {
		return fmt.Errorf("simulator.filesPerTickMin must be > 0 and <= filesPerTickMax")
	}
	if c.Minio.Endpoint != "" && c.Minio.BucketName == "" {
		return fmt.Errorf("minio.bucketName is required when minio.endpoint is set")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q not supported", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q not supported (text, json)", c.Log.Format)
	}
	return nil
}

// MinioEnabled reports whether scan reports are archived.
func (c *Config) MinioEnabled() bool { return c.Minio.Endpoint != "" }

// OpenAIEnabled reports whether the threat advisor is available.
func (c *Config) OpenAIEnabled() bool { return c.OpenAI.APIKey != "" }

// ProfileCacheEnabled reports whether profile reads go through the cache.
func (c *Config) ProfileCacheEnabled() bool { return c.Cache.ProfileTTL > 0 }

// MQTTEnabled reports whether lifecycle events are published.
func (c *Config) MQTTEnabled() bool { return c.MQTT.Broker != "" }
