package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment holds the ambient region/endpoint configuration that every
// remote client needs. It is resolved once at startup and passed into each
// constructor explicitly so tests can inject a fixed environment instead of
// reading process state ad hoc.
//
// Precedence: process environment > .env file > built-in defaults.
type Environment struct {
	Region string `json:"region"`

	// Queue transport
	RedisAddr    string `json:"redisAddr"`
	RequestQueue string `json:"requestQueue"`
	StatusQueue  string `json:"statusQueue"`

	// Job status polling
	PollInterval   time.Duration `json:"pollInterval"`
	MaxPollRetries int           `json:"maxPollRetries"`

	// Declared output sinks
	OutputBucket string `json:"outputBucket"`
	OutputStream string `json:"outputStream"`

	// Tile pipeline
	ToolchainImage string `json:"toolchainImage"`
	MinZoom        int    `json:"minZoom"`
	MaxZoom        int    `json:"maxZoom"`
}

// DefaultEnvironment returns the built-in defaults used when neither the
// process environment nor a .env file overrides a value.
func DefaultEnvironment() Environment {
	return Environment{
		Region:         "us-west-2",
		RedisAddr:      "127.0.0.1:6379",
		RequestQueue:   "image-requests",
		StatusQueue:    "image-status",
		PollInterval:   5 * time.Second,
		MaxPollRetries: 120,
		OutputBucket:   "detection-outputs",
		OutputStream:   "detection-stream",
		ToolchainImage: "ghcr.io/osgeo/gdal:ubuntu-small-latest",
		MinZoom:        0,
		MaxZoom:        12,
	}
}

// LoadEnvironment resolves the environment with the documented precedence.
// A missing .env file is not an error.
func LoadEnvironment() Environment {
	if err := godotenv.Load(); err == nil {
		log.Printf("[Config] Loaded .env file")
	}

	env := DefaultEnvironment()
	env.Region = envString("DETECT_REGION", env.Region)
	env.RedisAddr = envString("DETECT_REDIS_ADDR", env.RedisAddr)
	env.RequestQueue = envString("DETECT_REQUEST_QUEUE", env.RequestQueue)
	env.StatusQueue = envString("DETECT_STATUS_QUEUE", env.StatusQueue)
	env.PollInterval = envDuration("DETECT_POLL_INTERVAL", env.PollInterval)
	env.MaxPollRetries = envInt("DETECT_MAX_POLL_RETRIES", env.MaxPollRetries)
	env.OutputBucket = envString("DETECT_OUTPUT_BUCKET", env.OutputBucket)
	env.OutputStream = envString("DETECT_OUTPUT_STREAM", env.OutputStream)
	env.ToolchainImage = envString("DETECT_TOOLCHAIN_IMAGE", env.ToolchainImage)
	env.MinZoom = envInt("DETECT_MIN_ZOOM", env.MinZoom)
	env.MaxZoom = envInt("DETECT_MAX_ZOOM", env.MaxZoom)

	return env
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[Config] Invalid integer for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[Config] Invalid duration for %s: %q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
