// Package config holds the book-reconstruction engine's configuration,
// trimmed from the teacher's pkg/config.Config down to the sections this
// engine actually has: logging, engine tuning, and reconciler tolerances.
// The server/database/redis/auth/websocket/grpc sections of the teacher's
// Config belong to a service boundary out of scope per spec.md §1.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for an axob-rebuild deployment.
type Config struct {
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Engine    EngineConfig    `json:"engine" yaml:"engine"`
	Reconcile ReconcileConfig `json:"reconcile" yaml:"reconcile"`
}

// LoggingConfig mirrors the teacher's logging section unchanged.
type LoggingConfig struct {
	Level        string `json:"level" yaml:"level"`
	Format       string `json:"format" yaml:"format"`
	EnableCaller bool   `json:"enable_caller" yaml:"enable_caller"`
}

// EngineConfig tunes the per-instrument book engine.
type EngineConfig struct {
	// LadderDepth is the Level-N snapshot depth; canonical values are 5 and 10.
	LadderDepth int `json:"ladder_depth" yaml:"ladder_depth"`
	// ChannelWorkerPoolSize bounds the ants pool the multiplexer fans
	// channel workers out onto (spec.md §5).
	ChannelWorkerPoolSize int `json:"channel_worker_pool_size" yaml:"channel_worker_pool_size"`
}

// ReconcileConfig tunes the snapshot reconciler's timestamp-sanity check.
type ReconcileConfig struct {
	// SZSETimestampToleranceMillis is how far a regenerated snapshot may
	// trail the exchange snapshot, per spec.md §4.9 ("up to one second").
	SZSETimestampToleranceMillis int64 `json:"szse_timestamp_tolerance_millis" yaml:"szse_timestamp_tolerance_millis"`
	// SSETimestampToleranceNanos is an Open Question in spec.md §9 — the
	// original source marks SSE timestamp policy TODO. Defaulted to 0
	// (exact equality) rather than guessed at; see DESIGN.md.
	SSETimestampToleranceNanos int64 `json:"sse_timestamp_tolerance_nanos" yaml:"sse_timestamp_tolerance_nanos"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "json", EnableCaller: true},
		Engine: EngineConfig{
			LadderDepth:           10,
			ChannelWorkerPoolSize: 32,
		},
		Reconcile: ReconcileConfig{
			SZSETimestampToleranceMillis: 1000,
			SSETimestampToleranceNanos:   0,
		},
	}
}

// Load reads and parses a YAML configuration file, filling unset fields
// from Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Engine.LadderDepth == 0 {
		cfg.Engine.LadderDepth = 10
	}
	return cfg, nil
}

// SZSETolerance returns the SZSE timestamp tolerance as a time.Duration.
func (c ReconcileConfig) SZSETolerance() time.Duration {
	return time.Duration(c.SZSETimestampToleranceMillis) * time.Millisecond
}
