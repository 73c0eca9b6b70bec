package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.RenderBuffer() != 120*time.Millisecond {
		t.Errorf("render buffer = %v", c.RenderBuffer())
	}
	if c.FlushMaxWait() != 500*time.Millisecond {
		t.Errorf("flush max wait = %v", c.FlushMaxWait())
	}
	if c.TypingExpiry() != 1400*time.Millisecond {
		t.Errorf("typing expiry = %v", c.TypingExpiry())
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weft.yaml")
	data := []byte("transport_url: ws://example.test/ws\nrender_buffer_ms: 90\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.TransportURL != "ws://example.test/ws" {
		t.Errorf("transport url = %q", c.TransportURL)
	}
	if c.RenderBuffer() != 90*time.Millisecond {
		t.Errorf("render buffer = %v", c.RenderBuffer())
	}
	// Unset keys keep their defaults.
	if c.FlushDebounce() != 75*time.Millisecond {
		t.Errorf("flush debounce = %v", c.FlushDebounce())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("WEFT_USER_ID", "u-env")

	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.UserID != "u-env" {
		t.Errorf("user id = %q, want env value", c.UserID)
	}
}
