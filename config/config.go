// Package config loads the daemon configuration and the known-clients file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/flynn/json5"

	"github.com/ystepanoff/rssilock/presence"
	proto "github.com/ystepanoff/rssilock/protocol"
)

const (
	DefaultPath        = "/etc/rssilock/config.json5"
	DefaultClientsFile = "known_clients"
)

var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrNoClient       = errors.New("no known client")
	ErrTooManyClients = errors.New("exactly one known client is supported")
)

const (
	BackendExec   = "exec"
	BackendLogind = "logind"
)

type Actions struct {
	Backend string `json:"backend"`
	// RunAs prefixes every command, e.g. "sudo -u alice".
	RunAs  string   `json:"run_as"`
	Lock   []string `json:"lock"`
	Unlock []string `json:"unlock"`
}

type Redis struct {
	Addr       string `json:"addr"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	Key        string `json:"key"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type Config struct {
	Adapter     int    `json:"adapter"`
	ClientsFile string `json:"clients_file"`

	LockThreshold   int  `json:"lock_threshold"`
	UnlockThreshold int  `json:"unlock_threshold"`
	BorderlineLimit uint `json:"borderline_limit"`

	RefreshSeconds         float64 `json:"refresh_seconds"`
	ExchangeTimeoutSeconds float64 `json:"exchange_timeout_seconds"`

	LockOnStart          bool `json:"lock_on_start"`
	ForceAuthentication  bool `json:"force_authentication"`
	DisableSimplePairing bool `json:"disable_simple_pairing"`

	Actions Actions `json:"actions"`
	// Redis enables status publishing when set.
	Redis *Redis `json:"redis"`
}

func Default() Config {
	return Config{
		ClientsFile:            DefaultClientsFile,
		LockThreshold:          -10,
		UnlockThreshold:        -4,
		BorderlineLimit:        3,
		RefreshSeconds:         3,
		ExchangeTimeoutSeconds: 4,
		LockOnStart:            true,
		Actions:                Actions{Backend: BackendExec},
	}
}

// Load reads the configuration at path. Fields absent from the file keep
// their defaults; a relative clients_file is resolved against the
// directory of path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %s: %w", path, err)
	}
	if !filepath.IsAbs(c.ClientsFile) {
		c.ClientsFile = filepath.Join(filepath.Dir(path), c.ClientsFile)
	}
	return c, nil
}

func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := json5.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.Adapter < 0 {
		return fmt.Errorf("%w: adapter %d", ErrInvalidConfig, c.Adapter)
	}
	if c.ClientsFile == "" {
		return fmt.Errorf("%w: clients_file is empty", ErrInvalidConfig)
	}
	if c.ExchangeTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: exchange_timeout_seconds must be positive", ErrInvalidConfig)
	}
	if err := c.Presence().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.Actions.Backend {
	case BackendExec, BackendLogind:
	default:
		return fmt.Errorf("%w: unknown action backend %q", ErrInvalidConfig, c.Actions.Backend)
	}
	if c.Redis != nil {
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis.addr is empty", ErrInvalidConfig)
		}
		if c.Redis.TTLSeconds < 0 {
			return fmt.Errorf("%w: redis.ttl_seconds is negative", ErrInvalidConfig)
		}
	}
	return nil
}

func (c *Config) Presence() presence.Config {
	return presence.Config{
		LockThreshold:   c.LockThreshold,
		UnlockThreshold: c.UnlockThreshold,
		BorderlineLimit: c.BorderlineLimit,
		PollInterval:    seconds(c.RefreshSeconds),
	}
}

func (c *Config) ExchangeTimeout() time.Duration { return seconds(c.ExchangeTimeoutSeconds) }

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

// Client is the single trusted device.
type Client struct {
	Name    string
	Address proto.Address
}

// LoadClient reads a known-clients file: a JSON object mapping a name to a
// device address, holding exactly one entry.
func LoadClient(path string) (Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Client{}, fmt.Errorf("config.LoadClient: %w", err)
	}
	cl, err := ParseClient(data)
	if err != nil {
		return Client{}, fmt.Errorf("config.LoadClient: %s: %w", path, err)
	}
	return cl, nil
}

func ParseClient(data []byte) (Client, error) {
	var clients map[string]string
	if err := json5.Unmarshal(data, &clients); err != nil {
		return Client{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch len(clients) {
	case 0:
		return Client{}, ErrNoClient
	case 1:
	default:
		names := make([]string, 0, len(clients))
		for n := range clients {
			names = append(names, n)
		}
		sort.Strings(names)
		return Client{}, fmt.Errorf("%w: found %v", ErrTooManyClients, names)
	}
	var name, s string
	for name, s = range clients {
	}
	addr, err := proto.ParseAddress(s)
	if err != nil {
		return Client{}, fmt.Errorf("%w: client %q: %v", ErrInvalidConfig, name, err)
	}
	return Client{Name: name, Address: addr}, nil
}
