package config

import (
	"testing"
	"time"
)

func TestLoadEnvironmentDefaults(t *testing.T) {
	env := LoadEnvironment()

	if env.RequestQueue != "image-requests" {
		t.Errorf("expected default request queue, got %q", env.RequestQueue)
	}
	if env.MaxPollRetries != 120 {
		t.Errorf("expected default max poll retries 120, got %d", env.MaxPollRetries)
	}
}

func TestLoadEnvironmentPrecedence(t *testing.T) {
	t.Setenv("DETECT_REGION", "eu-central-1")
	t.Setenv("DETECT_POLL_INTERVAL", "250ms")
	t.Setenv("DETECT_MAX_POLL_RETRIES", "7")

	env := LoadEnvironment()

	if env.Region != "eu-central-1" {
		t.Errorf("expected region from env, got %q", env.Region)
	}
	if env.PollInterval != 250*time.Millisecond {
		t.Errorf("expected poll interval 250ms, got %s", env.PollInterval)
	}
	if env.MaxPollRetries != 7 {
		t.Errorf("expected max poll retries 7, got %d", env.MaxPollRetries)
	}
}

func TestLoadEnvironmentInvalidValuesFallBack(t *testing.T) {
	t.Setenv("DETECT_MAX_POLL_RETRIES", "not-a-number")
	t.Setenv("DETECT_POLL_INTERVAL", "soon")

	env := LoadEnvironment()

	if env.MaxPollRetries != 120 {
		t.Errorf("expected fallback max poll retries, got %d", env.MaxPollRetries)
	}
	if env.PollInterval != 5*time.Second {
		t.Errorf("expected fallback poll interval, got %s", env.PollInterval)
	}
}
