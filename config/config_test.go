package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	proto "github.com/ystepanoff/rssilock/protocol"
)

const sampleConfig = `{
	// adapter index, hci0
	adapter: 0,
	clients_file: "clients.json",
	lock_threshold: -12,
	unlock_threshold: -3,
	borderline_limit: 2,
	refresh_seconds: 1.5,
	actions: {
		run_as: "sudo -u alice",
		lock: ["xdg-screensaver lock"],
		unlock: ["loginctl unlock-session", "notify-send welcome"]
	},
	redis: {addr: "localhost:6379", key: "rssilock", ttl_seconds: 30}
}`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.LockThreshold != -12 || c.UnlockThreshold != -3 || c.BorderlineLimit != 2 {
		t.Errorf("thresholds = %d/%d/%d", c.LockThreshold, c.UnlockThreshold, c.BorderlineLimit)
	}
	p := c.Presence()
	if p.PollInterval != 1500*time.Millisecond {
		t.Errorf("poll interval = %v", p.PollInterval)
	}
	if c.ExchangeTimeout() != 4*time.Second {
		t.Errorf("exchange timeout = %v, want default 4s", c.ExchangeTimeout())
	}
	if !c.LockOnStart || c.Actions.Backend != BackendExec {
		t.Errorf("defaults lost: lock_on_start=%v backend=%q", c.LockOnStart, c.Actions.Backend)
	}
	if c.Actions.RunAs != "sudo -u alice" || len(c.Actions.Unlock) != 2 {
		t.Errorf("actions = %+v", c.Actions)
	}
	if c.Redis == nil || c.Redis.Addr != "localhost:6379" || c.Redis.TTLSeconds != 30 {
		t.Errorf("redis = %+v", c.Redis)
	}
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse({}) error = %v", err)
	}
	want := Default()
	if c.ClientsFile != want.ClientsFile || c.RefreshSeconds != want.RefreshSeconds || c.Redis != nil {
		t.Errorf("Parse({}) = %+v", c)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"syntax", `{adapter: }`},
		{"inverted thresholds", `{lock_threshold: -2, unlock_threshold: -8}`},
		{"zero refresh", `{refresh_seconds: 0}`},
		{"zero exchange timeout", `{exchange_timeout_seconds: 0}`},
		{"negative adapter", `{adapter: -1}`},
		{"unknown backend", `{actions: {backend: "xlock"}}`},
		{"redis without addr", `{redis: {key: "x"}}`},
		{"empty clients file", `{clients_file: ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.in)); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Parse(%s) error = %v, want ErrInvalidConfig", tt.in, err)
			}
		})
	}
}

func TestLoadResolvesClientsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "clients.json"), []byte(`{"phone": "11:22:33:44:55:66"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.ClientsFile != filepath.Join(dir, "clients.json") {
		t.Errorf("clients file = %q", c.ClientsFile)
	}
	cl, err := LoadClient(c.ClientsFile)
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	want := Client{Name: "phone", Address: proto.Address{0x66, 0x55, 0x44, 0x33, 0x22, 0x11}}
	if cl != want {
		t.Errorf("LoadClient() = %+v, want %+v", cl, want)
	}

	if _, err := Load(filepath.Join(dir, "missing.json5")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) error = %v", err)
	}
}

func TestParseClient(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"one", `{"phone": "AA:BB:CC:DD:EE:FF"}`, nil},
		{"none", `{}`, ErrNoClient},
		{"two", `{"a": "AA:BB:CC:DD:EE:FF", "b": "11:22:33:44:55:66"}`, ErrTooManyClients},
		{"bad address", `{"phone": "AA:BB:CC"}`, ErrInvalidConfig},
		{"not an object", `["AA:BB:CC:DD:EE:FF"]`, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClient([]byte(tt.in))
			if tt.wantErr == nil && err != nil {
				t.Fatalf("ParseClient() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseClient() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
