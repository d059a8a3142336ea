// config.go
// Everything is read from the environment. A .env file next to the binary is
// loaded first when present, which is handy for local runs.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr      string `env:"ADDR,default=:12345" validate:"required"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	LogFormat string `env:"LOG_FORMAT,default=text" validate:"oneof=text json"`

	SweepInterval    time.Duration `env:"SWEEP_INTERVAL,default=60s" validate:"gt=0"`
	RoomIdleTTL      time.Duration `env:"ROOM_IDLE_TTL,default=0s" validate:"gte=0"`
	RoomHistorySize  int           `env:"ROOM_HISTORY_SIZE,default=100" validate:"gt=0"`
	DirectLogEnabled bool          `env:"DIRECT_LOG_ENABLED,default=true"`

	SendBuffer      int           `env:"SEND_BUFFER,default=256" validate:"gt=0"`
	PingInterval    time.Duration `env:"PING_INTERVAL,default=30s" validate:"gt=0"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	MaxMessageBytes int64         `env:"MAX_MESSAGE_BYTES,default=65536" validate:"gt=0"`

	GeocoderURL     string        `env:"GEOCODER_URL,default=https://restapi.amap.com/v3/place/text" validate:"required,url"`
	GeocoderKey     string        `env:"GEOCODER_KEY"`
	GeocoderRegion  string        `env:"GEOCODER_REGION"`
	GeocoderTimeout time.Duration `env:"GEOCODER_TIMEOUT,default=5s" validate:"gt=0"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s" validate:"gt=0"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

func (c Config) managerOptions() Options {
	return Options{
		SweepInterval:   c.SweepInterval,
		RoomIdleTTL:     c.RoomIdleTTL,
		SendBuffer:      c.SendBuffer,
		PingInterval:    c.PingInterval,
		WriteTimeout:    c.WriteTimeout,
		MaxMessageBytes: c.MaxMessageBytes,
	}
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}
