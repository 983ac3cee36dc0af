package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/xerrors"

	u "github.com/moratsam/rsparity/util"
)

var ErrInvalid = xerrors.New("invalid config")

type Config struct {
	// Field width in bits: 8 or 16.
	Width int `mapstructure:"width"`
	// Kernel name, or "auto" to detect from the CPU.
	Kernel string `mapstructure:"kernel"`
	// Workers in the CPU pool, 0 for one per logical core.
	Workers int `mapstructure:"workers"`
	// ChunkSize in bytes for cache blocking, 0 to derive it from the L2 size.
	ChunkSize        int           `mapstructure:"chunk_size"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	LogLevel         string        `mapstructure:"log_level"`

	Memory struct {
		// Limit in bytes, 0 to use the available memory reported by the OS.
		Limit uint64 `mapstructure:"limit"`
		// Fraction of the available memory a job may use.
		Fraction float64 `mapstructure:"fraction"`
		// MinStripe is the smallest stripe worth a read pass.
		MinStripe int `mapstructure:"min_stripe"`
	} `mapstructure:"memory"`

	GPU struct {
		Enabled      bool    `mapstructure:"enabled"`
		MinBlockSize int64   `mapstructure:"min_block_size"`
		MinSources   int     `mapstructure:"min_sources"`
		InitialRatio float64 `mapstructure:"initial_ratio"`
		// Smoothing weight given to the newest throughput sample.
		Smoothing float64 `mapstructure:"smoothing"`
		// Segment is the largest element range sent to the device per command.
		Segment int `mapstructure:"segment"`
	} `mapstructure:"gpu"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("width", 16)
	v.SetDefault("kernel", "auto")
	v.SetDefault("workers", 0)
	v.SetDefault("chunk_size", 0)
	v.SetDefault("progress_interval", "500ms")
	v.SetDefault("log_level", "info")
	v.SetDefault("memory.limit", 0)
	v.SetDefault("memory.fraction", 0.5)
	v.SetDefault("memory.min_stripe", 64*1024)
	v.SetDefault("gpu.enabled", false)
	v.SetDefault("gpu.min_block_size", 1<<20)
	v.SetDefault("gpu.min_sources", 64)
	v.SetDefault("gpu.initial_ratio", 0.25)
	v.SetDefault("gpu.smoothing", 0.5)
	v.SetDefault("gpu.segment", 1<<20)
}

// Load reads an optional config file, then RSPAR_* environment overrides
// (RSPAR_GPU_ENABLED=true), on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, u.WrapErr("read config", err)
		}
	}
	v.SetEnvPrefix("RSPAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, u.WrapErr("unmarshal config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the defaults without reading files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func (c *Config) Validate() error {
	switch {
	case c.Width != 8 && c.Width != 16:
		return xerrors.Errorf("width %d: %w", c.Width, ErrInvalid)
	case c.Memory.Fraction < 0 || c.Memory.Fraction > 1:
		return xerrors.Errorf("memory fraction %v: %w", c.Memory.Fraction, ErrInvalid)
	case c.GPU.InitialRatio < 0 || c.GPU.InitialRatio >= 1:
		return xerrors.Errorf("gpu initial ratio %v: %w", c.GPU.InitialRatio, ErrInvalid)
	case c.GPU.Smoothing <= 0 || c.GPU.Smoothing > 1:
		return xerrors.Errorf("gpu smoothing %v: %w", c.GPU.Smoothing, ErrInvalid)
	case c.ChunkSize < 0 || c.Workers < 0:
		return xerrors.Errorf("negative size: %w", ErrInvalid)
	}
	return nil
}
