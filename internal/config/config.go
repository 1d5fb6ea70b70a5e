package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Blacklist BlacklistConfig `yaml:"blacklist"`
	Training  TrainingConfig  `yaml:"training"`
	Auth      AuthConfig      `yaml:"auth"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ArtifactsConfig selects the model artifact backend. Backend "s3" uses the
// configured bucket; "memory" keeps artifacts in process (tests, local dev).
type ArtifactsConfig struct {
	Backend         string `yaml:"backend"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type BlacklistConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type TrainingConfig struct {
	MinSamples      int           `yaml:"min_samples"`
	BatchSize       int           `yaml:"batch_size"`
	Interval        time.Duration `yaml:"interval"`
	WindowHours     int           `yaml:"window_hours"`
	KeepVersions    int           `yaml:"keep_versions"`
	OptimizeMinRows int           `yaml:"optimize_min_rows"`
}

func (c TrainingConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}

	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 2
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.DB == 0 {
		c.Redis.DB = 1
	}

	if c.Artifacts.Backend == "" {
		c.Artifacts.Backend = "s3"
	}
	if c.Artifacts.Prefix == "" {
		c.Artifacts.Prefix = "models/"
	}
	if c.Artifacts.Region == "" {
		c.Artifacts.Region = "us-east-1"
	}

	if c.Blacklist.BaseURL == "" {
		c.Blacklist.BaseURL = "http://backend:3000"
	}
	if c.Blacklist.Timeout == 0 {
		c.Blacklist.Timeout = 5 * time.Second
	}

	if c.Training.MinSamples == 0 {
		c.Training.MinSamples = 10000
	}
	if c.Training.BatchSize == 0 {
		c.Training.BatchSize = 1000
	}
	if c.Training.Interval == 0 {
		c.Training.Interval = 6 * time.Hour
	}
	if c.Training.WindowHours == 0 {
		c.Training.WindowHours = 24
	}
	if c.Training.KeepVersions == 0 {
		c.Training.KeepVersions = 5
	}
	if c.Training.OptimizeMinRows == 0 {
		c.Training.OptimizeMinRows = 1000
	}

	if c.Auth.APIKey == "" {
		c.Auth.APIKey = "change-me-in-production"

		fmt.Println("WARNING: Using default API key. Set auth.api_key in production!")
	}
}
