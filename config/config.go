package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"attackgraph/pkg/models"
)

// Config is the root configuration.
type Config struct {
	AttackGraph AttackGraphConfig `yaml:"attackgraph"`
}

// AttackGraphConfig is the project configuration.
type AttackGraphConfig struct {
	OutputDir string          `yaml:"output_dir"`
	Session   models.Session  `yaml:"session"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Modules   ModulesConfig   `yaml:"modules"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Input     InputConfig     `yaml:"input"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Cache     CacheConfig     `yaml:"cache"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Rules     RulesConfig     `yaml:"rules"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// SchedulerConfig controls pacing. Zero QPS values fall back to the adaptive
// limits computed from Population.
type SchedulerConfig struct {
	Population  int                `yaml:"population"`
	PerHostQPS  float64            `yaml:"per_host_qps"`
	PerProtoQPS map[string]float64 `yaml:"per_proto_qps"`
	Jitter      *float64           `yaml:"jitter"`
}

// ExecutorConfig controls tool invocation.
type ExecutorConfig struct {
	DefaultTimeout time.Duration            `yaml:"default_timeout"`
	Timeouts       map[string]time.Duration `yaml:"timeouts"`
}

// ModulesConfig selects which modules are registered. Empty means all.
type ModulesConfig struct {
	Enabled []string `yaml:"enabled"`
}

// DiscoveryConfig controls the subfinder, dnsx and nmap stages.
type DiscoveryConfig struct {
	Ports            string        `yaml:"ports"`
	Scripts          string        `yaml:"scripts"`
	SubfinderTimeout time.Duration `yaml:"subfinder_timeout"`
	DnsxTimeout      time.Duration `yaml:"dnsx_timeout"`
	NmapTimeout      time.Duration `yaml:"nmap_timeout"`
}

// InputConfig controls the job queue reader.
type InputConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// PipelineConfig controls pipeline behavior.
type PipelineConfig struct {
	Workers       int           `yaml:"workers"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// RedisConfig controls Redis queue input.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// RedisStoreConfig addresses a Redis keyspace.
type RedisStoreConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// CacheConfig controls the Redis result cache.
type CacheConfig struct {
	Enabled bool             `yaml:"enabled"`
	Redis   RedisStoreConfig `yaml:"redis"`
}

// SnapshotConfig controls graph snapshots. Path is the default file; Redis
// stores named snapshots when enabled.
type SnapshotConfig struct {
	Path  string              `yaml:"path"`
	Redis SnapshotRedisConfig `yaml:"redis"`
}

// SnapshotRedisConfig controls named snapshots in Redis.
type SnapshotRedisConfig struct {
	Enabled          bool `yaml:"enabled"`
	RedisStoreConfig `yaml:",inline"`
}

// RulesConfig controls Sigma node-tagging rules.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OutputConfig controls result summary output.
type OutputConfig struct {
	Mode string           `yaml:"mode"` // file|http
	File FileOutputConfig `yaml:"file"`
	HTTP HTTPOutputConfig `yaml:"http"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
	Format  string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint of the worker.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrEmpty is LoadConfig, but a missing file yields an empty config.
func LoadOrEmpty(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	return cfg, err
}
