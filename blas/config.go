package blas

import (
	"fmt"
	"github.com/notargets/BatchKernel/memory"
	"github.com/notargets/BatchKernel/numerics"
	"github.com/notargets/BatchKernel/runner/builder"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"os"
	"strings"
)

// Config is the handle configuration, usually read from YAML:
//
//	device: '{"mode": "CUDA", "device_id": 0}'
//	check_numerics: warn|fail
//	layer: trace
//	scratch_memory: unified
//	log_level: debug
//	alignment: 64
type Config struct {
	Device        string `yaml:"device"`
	CheckNumerics string `yaml:"check_numerics"`
	Layer         string `yaml:"layer"`
	ScratchMemory string `yaml:"scratch_memory"`
	LogLevel      string `yaml:"log_level"`
	Alignment     int    `yaml:"alignment"`
}

// DefaultConfig returns a configuration using the Serial backend with checks
// and logging off
func DefaultConfig() Config {
	return Config{
		Device:        `{"mode": "Serial"}`,
		CheckNumerics: "none",
		ScratchMemory: "discrete",
		LogLevel:      "disabled",
		Alignment:     int(builder.NoAlignment),
	}
}

// ParseConfig decodes YAML over DefaultConfig and validates the result
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if _, err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// settings is a Config with every name resolved
type settings struct {
	check     numerics.Mode
	layer     LayerMode
	scratch   memory.AllocMode
	level     zerolog.Level
	alignment builder.AlignmentType
}

func (c Config) resolve() (settings, error) {
	var s settings
	var err error
	if s.check, err = numerics.ParseMode(c.CheckNumerics); err != nil {
		return s, err
	}
	if s.layer, err = ParseLayerMode(c.Layer); err != nil {
		return s, err
	}

	switch strings.ToLower(c.ScratchMemory) {
	case "", "discrete":
		s.scratch = memory.Discrete
	case "unified", "managed":
		s.scratch = memory.Unified
	default:
		return s, fmt.Errorf("blas: unknown scratch memory mode %q", c.ScratchMemory)
	}

	s.level = zerolog.Disabled
	if c.LogLevel != "" {
		if s.level, err = zerolog.ParseLevel(c.LogLevel); err != nil {
			return s, fmt.Errorf("blas: log level: %w", err)
		}
	}

	switch a := builder.AlignmentType(c.Alignment); a {
	case 0:
		s.alignment = builder.NoAlignment
	case builder.NoAlignment, builder.CacheLineAlign, builder.WarpAlign, builder.PageAlign:
		s.alignment = a
	default:
		return s, fmt.Errorf("blas: unsupported alignment %d", c.Alignment)
	}
	return s, nil
}

// LayerMode flags gate optional logging around entry points
type LayerMode uint

const (
	LayerTrace LayerMode = 1 << iota // Log every call with its arguments
	LayerBench                       // Log the wall time of every call

	LayerNone LayerMode = 0
)

// ParseLayerMode parses names joined by '|' or ','
func ParseLayerMode(s string) (LayerMode, error) {
	var m LayerMode
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	})
	for _, f := range fields {
		switch f {
		case "none":
		case "trace":
			m |= LayerTrace
		case "bench":
			m |= LayerBench
		default:
			return LayerNone, fmt.Errorf("blas: unknown layer mode %q", f)
		}
	}
	return m, nil
}
