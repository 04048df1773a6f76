package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. QUIZ_REDIS_ADDR.
const EnvPrefix = "QUIZ"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Quiz     QuizConfig     `yaml:"quiz"`
	Engine   EngineConfig   `yaml:"engine"`
	Results  ResultsConfig  `yaml:"results"`
}

type ServerConfig struct {
	Port            string `yaml:"port"`
	ReadTimeout     string `yaml:"readTimeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    string `yaml:"writeTimeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout string `yaml:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret" envconfig:"JWT_SECRET"`
	TokenTTL  string `yaml:"tokenTTL" envconfig:"TOKEN_TTL"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type QuizConfig struct {
	TTL string `yaml:"ttl"`
}

// EngineConfig tunes the live-session engine. Durations are Go duration strings.
type EngineConfig struct {
	DefaultTimeLimit string `yaml:"defaultTimeLimit" envconfig:"DEFAULT_TIME_LIMIT"`
	StartDelay       string `yaml:"startDelay" envconfig:"START_DELAY"`
	ReviewDelay      string `yaml:"reviewDelay" envconfig:"REVIEW_DELAY"`
	SessionGrace     string `yaml:"sessionGrace" envconfig:"SESSION_GRACE"`
	SendBuffer       int    `yaml:"sendBuffer" envconfig:"SEND_BUFFER"`
	MultiSession     bool   `yaml:"multiSession" envconfig:"MULTI_SESSION"`
}

// ResultsConfig selects where finished sessions are persisted. Every enabled durable
// sink receives every result. With RedisQueue set the server only enqueues and the
// worker command delivers. With no durable sink an in-process sink keeps the last
// MemoryLimit sessions.
type ResultsConfig struct {
	Postgres     bool     `yaml:"postgres"`
	RedisQueue   string   `yaml:"redisQueue" envconfig:"REDIS_QUEUE"`
	Timeout      string   `yaml:"timeout"`
	MemoryLimit  int      `yaml:"memoryLimit" envconfig:"MEMORY_LIMIT"`
	RetryBackoff string   `yaml:"retryBackoff" envconfig:"RETRY_BACKOFF"`
	S3           S3Config `yaml:"s3"`
}

type S3Config struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"accessKeyId" envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secretAccessKey" envconfig:"SECRET_ACCESS_KEY"`
}

// Load reads YAML config from path, then applies QUIZ_* environment overrides.
// A .env file in the working directory is loaded first if present.
// An empty path skips the file and uses environment only.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
