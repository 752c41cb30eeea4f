// Package config loads server configuration: compiled-in defaults, overlaid
// by an optional YAML file, overlaid by environment variables. The merged
// result is validated before anything starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"dustline/server/internal/sim"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "DUSTLINE_"

// Duration wraps time.Duration so YAML can express it as "5s" or "250ms".
type Duration time.Duration

// Duration returns the wrapped stdlib value.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is everything the server binary needs to boot.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	ClientDir   string `yaml:"client_dir"`
	LogLevel    string `yaml:"log_level"`
	LogEncoding string `yaml:"log_encoding"`

	TickRate         int `yaml:"tick_rate"`
	SnapshotEvery    int `yaml:"snapshot_every"`
	CommandCapacity  int `yaml:"command_capacity"`
	PerActorLimit    int `yaml:"per_actor_limit"`
	QueueWarningStep int `yaml:"queue_warning_step"`

	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	ShutdownGrace     Duration `yaml:"shutdown_grace"`

	World sim.Config `yaml:"world"`
}

// Default returns the stock configuration: 60Hz ticks, a broadcast every 30
// ticks, and the default skirmish world.
func Default() Config {
	return Config{
		HTTPAddr:          ":8080",
		LogLevel:          "info",
		LogEncoding:       "json",
		TickRate:          60,
		SnapshotEvery:     30,
		CommandCapacity:   1024,
		PerActorLimit:     32,
		QueueWarningStep:  256,
		HeartbeatInterval: Duration(5 * time.Second),
		IdleTimeout:       Duration(30 * time.Second),
		ShutdownGrace:     Duration(10 * time.Second),
		World:             sim.DefaultConfig(),
	}
}

// Load merges defaults, the YAML file at path (optional; empty path skips
// it), and environment overrides, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	overrides := []struct {
		key   string
		apply func(string) error
	}{
		{"HTTP_ADDR", func(v string) error { cfg.HTTPAddr = v; return nil }},
		{"CLIENT_DIR", func(v string) error { cfg.ClientDir = v; return nil }},
		{"LOG_LEVEL", func(v string) error { cfg.LogLevel = v; return nil }},
		{"LOG_ENCODING", func(v string) error { cfg.LogEncoding = v; return nil }},
		{"TICK_RATE", intSetter(&cfg.TickRate)},
		{"SNAPSHOT_EVERY", intSetter(&cfg.SnapshotEvery)},
		{"COMMAND_CAPACITY", intSetter(&cfg.CommandCapacity)},
		{"PER_ACTOR_LIMIT", intSetter(&cfg.PerActorLimit)},
		{"HEARTBEAT_INTERVAL", durationSetter(&cfg.HeartbeatInterval)},
		{"IDLE_TIMEOUT", durationSetter(&cfg.IdleTimeout)},
		{"SHUTDOWN_GRACE", durationSetter(&cfg.ShutdownGrace)},
		{"WORLD_SEED", func(v string) error {
			seed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("parse %sWORLD_SEED: %w", EnvPrefix, err)
			}
			cfg.World.Seed = seed
			return nil
		}},
		{"WORLD_MODE", func(v string) error { cfg.World.Mode = v; return nil }},
	}
	for _, o := range overrides {
		v, ok := os.LookupEnv(EnvPrefix + o.key)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(v); err != nil {
			return err
		}
	}
	return nil
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse integer override %q: %w", v, err)
		}
		*dst = n
		return nil
	}
}

func durationSetter(dst *Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse duration override %q: %w", v, err)
		}
		*dst = Duration(d)
		return nil
	}
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr must be set")
	}
	if c.TickRate < 1 || c.TickRate > 1000 {
		return fmt.Errorf("tick_rate must be between 1 and 1000, got %d", c.TickRate)
	}
	if c.SnapshotEvery < 1 {
		return fmt.Errorf("snapshot_every must be at least 1, got %d", c.SnapshotEvery)
	}
	if c.CommandCapacity < 1 {
		return fmt.Errorf("command_capacity must be at least 1, got %d", c.CommandCapacity)
	}
	if c.PerActorLimit < 1 {
		return fmt.Errorf("per_actor_limit must be at least 1, got %d", c.PerActorLimit)
	}
	if c.HeartbeatInterval.Duration() <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	if c.IdleTimeout.Duration() <= c.HeartbeatInterval.Duration() {
		return fmt.Errorf("idle_timeout must exceed heartbeat_interval")
	}
	if c.ShutdownGrace.Duration() <= 0 {
		return fmt.Errorf("shutdown_grace must be positive")
	}
	return nil
}

// LoopConfig projects the loop-facing knobs.
func (c Config) LoopConfig() sim.LoopConfig {
	return sim.LoopConfig{
		TickRate:        c.TickRate,
		SnapshotEvery:   c.SnapshotEvery,
		CommandCapacity: c.CommandCapacity,
		PerActorLimit:   c.PerActorLimit,
		WarningStep:     c.QueueWarningStep,
	}
}
