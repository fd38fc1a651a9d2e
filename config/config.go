package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v8"
)

type Config struct {
	AppName string `env:"APP_NAME" envDefault:"Image converter"`
	Port    string `env:"PORT" envDefault:"8080"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	BodyLimitMB int `env:"BODY_LIMIT_MB" envDefault:"64"`

	RateLimitMaxRequests   int `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"100"`
	RateLimitDurationInSec int `env:"RATE_LIMIT_DURATION_IN_SEC" envDefault:"5"`

	CacheTTLInMin int `env:"CACHE_TTL_IN_MIN" envDefault:"5"`

	ChunkSize          int     `env:"BATCH_CHUNK_SIZE" envDefault:"5"`
	Preprocessor       string  `env:"PREPROCESSOR" envDefault:"imaging"`
	PreprocessMaxBytes int     `env:"PREPROCESS_MAX_BYTES" envDefault:"1048576"`
	PreprocessFallback bool    `env:"PREPROCESS_FALLBACK" envDefault:"true"`
	EncodeQuality      float32 `env:"ENCODE_QUALITY" envDefault:"92"`
	PreviewCapacity    int     `env:"PREVIEW_CAPACITY" envDefault:"1000"`

	PreviewSweepIntervalInSec int `env:"PREVIEW_SWEEP_INTERVAL_IN_SEC" envDefault:"60"`

	URLFetchTimeoutInSec int `env:"URL_FETCH_TIMEOUT_IN_SEC" envDefault:"30"`
	URLMaxBytes          int `env:"URL_MAX_BYTES" envDefault:"52428800"`

	S3Region    string `env:"S3_REGION"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
}

func New() *Config {
	conf, err := Load()
	if err != nil {
		slog.Error(err.Error())

		panic("Failed to parse config")
	}

	return conf
}

func Load() (*Config, error) {
	conf := &Config{}

	if err := env.Parse(conf); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("BATCH_CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.PreviewCapacity <= 0 {
		errs = append(errs, fmt.Errorf("PREVIEW_CAPACITY must be positive, got %d", c.PreviewCapacity))
	}
	if c.EncodeQuality < 1 || c.EncodeQuality > 100 {
		errs = append(errs, fmt.Errorf("ENCODE_QUALITY must be within 1..100, got %v", c.EncodeQuality))
	}
	if c.S3Bucket != "" && (c.S3AccessKey == "" || c.S3SecretKey == "" || c.S3Endpoint == "") {
		errs = append(errs, errors.New("S3_ACCESS_KEY, S3_SECRET_KEY and S3_ENDPOINT are required when S3_BUCKET is set"))
	}

	return errors.Join(errs...)
}

func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

func (c *Config) RateLimitDuration() time.Duration {
	return time.Duration(c.RateLimitDurationInSec) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLInMin) * time.Minute
}

func (c *Config) PreviewSweepInterval() time.Duration {
	return time.Duration(c.PreviewSweepIntervalInSec) * time.Second
}

func (c *Config) URLFetchTimeout() time.Duration {
	return time.Duration(c.URLFetchTimeoutInSec) * time.Second
}
