// Package config loads and validates Granite server configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level server configuration.
type Config struct {
	ListenAddr  string            `json:"listen_addr"`
	ObjectStore ObjectStoreConfig `json:"object_store"`
	Compaction  CompactionConfig  `json:"compaction"`
	Membership  MembershipConfig  `json:"membership"`
	// DebugPoints enables named fault-injection branch points. Empty in
	// production deployments.
	DebugPoints []string `json:"debug_points"`
}

// ObjectStoreConfig selects and configures the rowset payload backend.
type ObjectStoreConfig struct {
	Type      string `json:"type"` // "memory", "filesystem" or "s3"
	RootPath  string `json:"root_path"`
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
	UseSSL    bool   `json:"use_ssl"`
}

// CompactionConfig tunes candidate selection and the scheduler.
type CompactionConfig struct {
	// DefaultPolicy is the cumulative policy bound to tablets whose
	// metadata does not name one: "size_tiered" or "time_series".
	DefaultPolicy string `json:"default_policy"`

	// TierRatio is the maximum size ratio between adjacent rowsets grouped
	// into one size tier.
	TierRatio float64 `json:"tier_ratio"`

	// MinTierRowsets is the minimum run length a size tier must reach
	// before it qualifies for cumulative compaction.
	MinTierRowsets int `json:"min_tier_rowsets"`

	// TimeSeriesWindow groups rowsets created within the same window for
	// the time-series policy.
	TimeSeriesWindowSeconds int `json:"time_series_window_seconds"`

	// BaseMinRowsets is the minimum cumulative-point rowset count before
	// base compaction qualifies.
	BaseMinRowsets int `json:"base_min_rowsets"`

	// SchedulerWorkers is the number of background compaction workers.
	SchedulerWorkers int `json:"scheduler_workers"`

	// TriggerWaitSeconds bounds how long a trigger call waits for a
	// submitted task before answering "accepted, still running".
	TriggerWaitSeconds int `json:"trigger_wait_seconds"`
}

// MembershipConfig configures peer discovery for single-replica compaction.
type MembershipConfig struct {
	Type  string   `json:"type"` // "static" or "gossip"
	Nodes []string `json:"nodes"`

	Gossip GossipConfig `json:"gossip"`
}

// GossipConfig configures memberlist-based discovery.
type GossipConfig struct {
	BindAddr      string   `json:"bind_addr"`
	BindPort      int      `json:"bind_port"`
	AdvertiseAddr string   `json:"advertise_addr"`
	AdvertisePort int      `json:"advertise_port"`
	SeedNodes     []string `json:"seed_nodes"`
}

// TriggerWait returns the bounded trigger wait as a duration.
func (c CompactionConfig) TriggerWait() time.Duration {
	if c.TriggerWaitSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.TriggerWaitSeconds) * time.Second
}

// TimeSeriesWindow returns the time-series bucketing window as a duration.
func (c CompactionConfig) TimeSeriesWindow() time.Duration {
	if c.TimeSeriesWindowSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.TimeSeriesWindowSeconds) * time.Second
}

// DebugPointEnabled reports whether a named fault-injection point is active.
func (c *Config) DebugPointEnabled(name string) bool {
	for _, point := range c.DebugPoints {
		if point == name {
			return true
		}
	}
	return false
}

// Default returns the configuration used when no file or env is given.
func Default() *Config {
	return &Config{
		ListenAddr: ":8040",
		ObjectStore: ObjectStoreConfig{
			Type:     "filesystem",
			RootPath: "/var/lib/granite/data",
		},
		Compaction: CompactionConfig{
			DefaultPolicy:      "size_tiered",
			TierRatio:          2.0,
			MinTierRowsets:     3,
			BaseMinRowsets:     5,
			SchedulerWorkers:   4,
			TriggerWaitSeconds: 2,
		},
		Membership: MembershipConfig{
			Type: "static",
		},
	}
}

// Load reads config from path (or $GRANITE_CONFIG), then applies environment
// overrides on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("GRANITE_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if env := os.Getenv("GRANITE_LISTEN_ADDR"); env != "" {
		cfg.ListenAddr = env
	}
	if env := os.Getenv("GRANITE_OBJECT_STORE_TYPE"); env != "" {
		cfg.ObjectStore.Type = env
	}
	if env := os.Getenv("GRANITE_OBJECT_STORE_ROOT"); env != "" {
		cfg.ObjectStore.RootPath = env
	}
	if env := os.Getenv("GRANITE_OBJECT_STORE_ENDPOINT"); env != "" {
		cfg.ObjectStore.Endpoint = env
	}
	if env := os.Getenv("GRANITE_OBJECT_STORE_BUCKET"); env != "" {
		cfg.ObjectStore.Bucket = env
	}
	if env := os.Getenv("GRANITE_OBJECT_STORE_ACCESS_KEY"); env != "" {
		cfg.ObjectStore.AccessKey = env
	}
	if env := os.Getenv("GRANITE_OBJECT_STORE_SECRET_KEY"); env != "" {
		cfg.ObjectStore.SecretKey = env
	}
	if env := os.Getenv("GRANITE_OBJECT_STORE_REGION"); env != "" {
		cfg.ObjectStore.Region = env
	}
	if env := os.Getenv("GRANITE_OBJECT_STORE_USE_SSL"); env != "" {
		cfg.ObjectStore.UseSSL = env == "true" || env == "1"
	}
	if env := os.Getenv("GRANITE_COMPACTION_POLICY"); env != "" {
		cfg.Compaction.DefaultPolicy = env
	}
	if env := os.Getenv("GRANITE_COMPACTION_WORKERS"); env != "" {
		if n, err := strconv.Atoi(env); err == nil {
			cfg.Compaction.SchedulerWorkers = n
		}
	}
	if env := os.Getenv("GRANITE_MEMBERSHIP_TYPE"); env != "" {
		cfg.Membership.Type = env
	}
	if env := os.Getenv("GRANITE_MEMBERSHIP_NODES"); env != "" {
		cfg.Membership.Nodes = splitNonEmpty(env)
	}
	if env := os.Getenv("GRANITE_GOSSIP_SEED_NODES"); env != "" {
		cfg.Membership.Gossip.SeedNodes = splitNonEmpty(env)
	}
	if env := os.Getenv("GRANITE_DEBUG_POINTS"); env != "" {
		cfg.DebugPoints = splitNonEmpty(env)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.ObjectStore.Type {
	case "memory":
	case "filesystem":
		if c.ObjectStore.RootPath == "" {
			return fmt.Errorf("object_store.root_path is required for filesystem stores")
		}
	case "s3":
		if c.ObjectStore.Bucket == "" {
			return fmt.Errorf("object_store.bucket is required for s3 stores")
		}
	default:
		return fmt.Errorf("unknown object_store.type %q", c.ObjectStore.Type)
	}

	switch c.Compaction.DefaultPolicy {
	case "", "size_tiered", "time_series":
	default:
		return fmt.Errorf("unknown compaction.default_policy %q", c.Compaction.DefaultPolicy)
	}

	if c.Compaction.TierRatio < 0 {
		return fmt.Errorf("compaction.tier_ratio must be >= 0")
	}
	return nil
}

func splitNonEmpty(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
