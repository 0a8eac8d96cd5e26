// Package config loads the environment-driven configuration described
// in spec §6/§AMBIENT-2 into typed structs, applying the defaults from
// the timeout table in §5 and rejecting out-of-range values eagerly so
// a misconfigured process never opens a socket.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default values mirror the spec's §5 timeout table and resource caps.
const (
	DefaultTrackerPort        = 5000
	DefaultChunkSize          = 512 * 1024
	DefaultParallelism        = 8
	DefaultMaxParallelism     = 64
	DefaultMaxInflightServes  = 64
	DefaultKeepaliveInterval  = 30 * time.Second
	DefaultLivenessTimeout    = 90 * time.Second
	DefaultReapInterval       = 30 * time.Second
	DefaultServeTimeout       = 60 * time.Second
	DefaultChunkTimeout       = 30 * time.Second
	DefaultDiscoveryTimeout   = 5 * time.Second
	DefaultRetryBudgetPerItem = 5
)

// Error is a configuration error; callers map it to exit code 2 per
// spec §6's exit-code table.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// Tracker holds the Tracker role's configuration.
type Tracker struct {
	ListenAddr    string
	LivenessTimeout time.Duration
	ReapInterval    time.Duration
}

// LoadTracker reads TRACKER_ADDR, LIVENESS_TIMEOUT, REAP_INTERVAL.
func LoadTracker() (Tracker, error) {
	cfg := Tracker{
		ListenAddr:      getString("TRACKER_ADDR", fmt.Sprintf(":%d", DefaultTrackerPort)),
		LivenessTimeout: DefaultLivenessTimeout,
		ReapInterval:    DefaultReapInterval,
	}
	var err error
	if cfg.LivenessTimeout, err = getDuration("LIVENESS_TIMEOUT", cfg.LivenessTimeout); err != nil {
		return Tracker{}, err
	}
	if cfg.ReapInterval, err = getDuration("REAP_INTERVAL", cfg.ReapInterval); err != nil {
		return Tracker{}, err
	}
	if cfg.LivenessTimeout <= 0 {
		return Tracker{}, &Error{"LIVENESS_TIMEOUT", "must be positive"}
	}
	if cfg.ReapInterval <= 0 {
		return Tracker{}, &Error{"REAP_INTERVAL", "must be positive"}
	}
	return cfg, nil
}

// Seeder holds the Seeder role's configuration.
type Seeder struct {
	TrackerAddr       string
	BindAddr          string
	ChunkSize         int
	KeepaliveInterval time.Duration
	ServeTimeout      time.Duration
	MaxInflightServes int
}

// LoadSeeder reads TRACKER_ADDR, SEEDER_BIND, CHUNK_SIZE,
// KEEPALIVE_INTERVAL.
func LoadSeeder() (Seeder, error) {
	cfg := Seeder{
		TrackerAddr:       getString("TRACKER_ADDR", fmt.Sprintf("127.0.0.1:%d", DefaultTrackerPort)),
		BindAddr:          getString("SEEDER_BIND", "127.0.0.1:0"),
		ChunkSize:         DefaultChunkSize,
		KeepaliveInterval: DefaultKeepaliveInterval,
		ServeTimeout:      DefaultServeTimeout,
		MaxInflightServes: DefaultMaxInflightServes,
	}
	var err error
	if cfg.ChunkSize, err = getInt("CHUNK_SIZE", cfg.ChunkSize); err != nil {
		return Seeder{}, err
	}
	if cfg.KeepaliveInterval, err = getDuration("KEEPALIVE_INTERVAL", cfg.KeepaliveInterval); err != nil {
		return Seeder{}, err
	}
	if cfg.ChunkSize <= 0 {
		return Seeder{}, &Error{"CHUNK_SIZE", "must be positive"}
	}
	if cfg.KeepaliveInterval <= 0 {
		return Seeder{}, &Error{"KEEPALIVE_INTERVAL", "must be positive"}
	}
	if cfg.TrackerAddr == "" {
		return Seeder{}, &Error{"TRACKER_ADDR", "must not be empty"}
	}
	return cfg, nil
}

// Leecher holds the Leecher role's configuration.
type Leecher struct {
	TrackerAddr        string
	DownloadDir        string
	Parallelism        int
	ChunkTimeout       time.Duration
	DiscoveryTimeout   time.Duration
	RetryBudgetPerItem int
}

// LoadLeecher reads TRACKER_ADDR, DOWNLOAD_DIR, PARALLELISM.
func LoadLeecher() (Leecher, error) {
	cfg := Leecher{
		TrackerAddr:        getString("TRACKER_ADDR", fmt.Sprintf("127.0.0.1:%d", DefaultTrackerPort)),
		DownloadDir:        getString("DOWNLOAD_DIR", "."),
		Parallelism:        DefaultParallelism,
		ChunkTimeout:       DefaultChunkTimeout,
		DiscoveryTimeout:   DefaultDiscoveryTimeout,
		RetryBudgetPerItem: DefaultRetryBudgetPerItem,
	}
	var err error
	if cfg.Parallelism, err = getInt("PARALLELISM", cfg.Parallelism); err != nil {
		return Leecher{}, err
	}
	if cfg.Parallelism <= 0 || cfg.Parallelism > DefaultMaxParallelism {
		return Leecher{}, &Error{"PARALLELISM", fmt.Sprintf("must be in [1, %d]", DefaultMaxParallelism)}
	}
	if cfg.TrackerAddr == "" {
		return Leecher{}, &Error{"TRACKER_ADDR", "must not be empty"}
	}
	return cfg, nil
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &Error{key, fmt.Sprintf("not an integer: %v", err)}
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &Error{key, fmt.Sprintf("not a duration: %v", err)}
	}
	return d, nil
}
