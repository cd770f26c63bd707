// Package config loads the discretization, dispatch and device settings of a
// run from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/notargets/SEKernel/dispatch"
	"github.com/notargets/SEKernel/index"
	"github.com/notargets/SEKernel/partitions"
	"github.com/notargets/SEKernel/runner/builder"
	"github.com/notargets/SEKernel/utils"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is the root configuration.
type Config struct {
	Mesh      MeshConfig      `yaml:"mesh"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Partition PartitionConfig `yaml:"partition"`
	Device    DeviceConfig    `yaml:"device"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MeshConfig sizes the field buffers.
type MeshConfig struct {
	Dim  int `yaml:"dim"`  // 1, 2 or 3
	N    int `yaml:"n"`    // polynomial degree
	NVar int `yaml:"nvar"` // variables per field
	NEl  int `yaml:"nel"`  // elements in this block
}

// DispatchConfig selects the host executor.
type DispatchConfig struct {
	Workers int `yaml:"workers"` // 1 runs serially, 0 uses every CPU
}

// PartitionConfig places this process in the rank decomposition.
type PartitionConfig struct {
	Rank     int    `yaml:"rank"`
	Ranks    int    `yaml:"ranks"`
	Strategy string `yaml:"strategy"` // block, roundrobin
}

// DeviceConfig selects the accelerator backend.
type DeviceConfig struct {
	Props     string `yaml:"props"`      // OCCA device properties, empty for host only
	FloatType string `yaml:"float_type"` // float64, float32
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Mesh: MeshConfig{
			Dim:  2,
			N:    7,
			NVar: 1,
			NEl:  1,
		},
		Dispatch: DispatchConfig{Workers: 1},
		Partition: PartitionConfig{
			Rank:     0,
			Ranks:    1,
			Strategy: "block",
		},
		Device: DeviceConfig{FloatType: "float64"},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Parse decodes YAML on top of the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	return Load(bytes.NewReader(data))
}

// Load is Parse reading from r.
func Load(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks ranges and names.
func (c *Config) Validate() error {
	m := c.Mesh
	switch {
	case m.Dim < 1 || m.Dim > 3:
		return fmt.Errorf("%w: mesh.dim %d", ErrInvalid, m.Dim)
	case m.N < 0:
		return fmt.Errorf("%w: mesh.n %d", ErrInvalid, m.N)
	case m.NVar < 1:
		return fmt.Errorf("%w: mesh.nvar %d", ErrInvalid, m.NVar)
	case m.NEl < 1:
		return fmt.Errorf("%w: mesh.nel %d", ErrInvalid, m.NEl)
	case c.Dispatch.Workers < 0:
		return fmt.Errorf("%w: dispatch.workers %d", ErrInvalid, c.Dispatch.Workers)
	case c.Partition.Ranks < 1:
		return fmt.Errorf("%w: partition.ranks %d", ErrInvalid, c.Partition.Ranks)
	case c.Partition.Rank < 0 || c.Partition.Rank >= c.Partition.Ranks:
		return fmt.Errorf("%w: partition.rank %d outside 0..%d",
			ErrInvalid, c.Partition.Rank, c.Partition.Ranks-1)
	}
	if _, err := partitions.ParseStrategy(c.Partition.Strategy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := builder.ParseFloatType(c.Device.FloatType); err != nil {
		return fmt.Errorf("%w: device.float_type: %v", ErrInvalid, err)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q", ErrInvalid, c.Logging.Level)
	}
	return nil
}

// Executor returns the host executor for the dispatch settings.
func (c *Config) Executor() dispatch.Executor {
	if c.Dispatch.Workers == 1 {
		return dispatch.Serial{}
	}
	return dispatch.NewParallel(c.Dispatch.Workers)
}

// Layout is the field layout of the configured mesh.
func (c *Config) Layout(kind index.Kind, boundary bool) index.Layout {
	m := c.Mesh
	return index.Layout{Kind: kind, Dim: m.Dim, Boundary: boundary, N: m.N, NVar: m.NVar, NEl: m.NEl}
}

// PartitionBuilder returns a builder splitting the configured elements over
// the configured ranks.
func (c *Config) PartitionBuilder() *partitions.PartitionBuilder {
	strategy, _ := partitions.ParseStrategy(c.Partition.Strategy)
	return &partitions.PartitionBuilder{
		NumElements:   c.Mesh.NEl,
		NumPartitions: c.Partition.Ranks,
		Strategy:      strategy,
	}
}

// RunnerConfig is the device kernel shape of the configured mesh and rank.
func (c *Config) RunnerConfig() builder.Config {
	floatType, _ := builder.ParseFloatType(c.Device.FloatType)
	return builder.Config{
		Dim:       c.Mesh.Dim,
		N:         c.Mesh.N,
		NVar:      c.Mesh.NVar,
		NEl:       c.Mesh.NEl,
		Rank:      c.Partition.Rank,
		FloatType: floatType,
		IntType:   builder.INT32,
	}
}

// Logger builds the logger for logging.level.
func (c *Config) Logger() (*zap.Logger, error) {
	return utils.NewLogger(c.Logging.Level)
}
