// Package config loads the sandbox policy and run settings for ncval.
//
// Values start from Default, are overlaid by a YAML file (the --config flag,
// or NCVAL_CONFIG when no flag is given) and finally by command-line flags.
package config

import (
	"errors"
	"fmt"
	"math/bits"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"ncval/internal/arm"
	"ncval/internal/validator"
)

// EnvConfig names the environment variable consulted when no path is given.
const EnvConfig = "NCVAL_CONFIG"

// Config is the full ncval configuration.
type Config struct {
	// Target selects the instruction set. Only "arm" is built in.
	Target string `yaml:"target" json:"target" jsonschema:"title=Target,description=Instruction set to validate,enum=arm,default=arm"`

	BundleSize int    `yaml:"bundle_size" json:"bundle_size" jsonschema:"title=Bundle Size,description=Bundle size in bytes (power of two),default=16"`
	DataMask   uint32 `yaml:"data_mask" json:"data_mask" jsonschema:"title=Data Mask,description=Bits that must be cleared in a data address"`
	CodeMask   uint32 `yaml:"code_mask" json:"code_mask" jsonschema:"title=Code Mask,description=Bits that must be cleared in an indirect branch target"`

	// Base is the load address of raw code images.
	Base uint32 `yaml:"base" json:"base" jsonschema:"title=Base,description=Load address of raw code images"`

	// Trampolines are addresses outside the region that direct branches may
	// reach.
	Trampolines []uint32 `yaml:"trampolines,omitempty" json:"trampolines,omitempty" jsonschema:"title=Trampolines,description=Permitted out-of-region branch targets"`

	// ExemptOffsets lists region offsets allowed to straddle a bundle
	// boundary.
	ExemptOffsets []int `yaml:"exempt_offsets,omitempty" json:"exempt_offsets,omitempty" jsonschema:"title=Exempt Offsets,description=Instruction offsets exempt from the bundle-crossing rule"`

	Workers   int `yaml:"workers" json:"workers" jsonschema:"title=Workers,description=Parallel validations in batch mode (0 = number of CPUs)"`
	CacheSize int `yaml:"cache_size" json:"cache_size" jsonschema:"title=Cache Size,description=Number of reports kept in the validation cache (0 disables it),default=256"`
}

// Default returns the standard ARM sandbox policy.
func Default() *Config {
	p := arm.DefaultPolicy()
	return &Config{
		Target:     arm.Name,
		BundleSize: p.BundleSize,
		DataMask:   p.DataMask,
		CodeMask:   p.CodeMask,
		Base:       0x20000,
		Workers:    runtime.GOMAXPROCS(0),
		CacheSize:  256,
	}
}

// Load reads the YAML file at path over the defaults. An empty path falls
// back to NCVAL_CONFIG; when that is unset too the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error
	if c.Target != arm.Name {
		errs = append(errs, fmt.Errorf("unknown target %q", c.Target))
	}
	if c.BundleSize < 4 || bits.OnesCount(uint(c.BundleSize)) != 1 {
		errs = append(errs, fmt.Errorf("bundle_size %d is not a power of two >= 4", c.BundleSize))
	}
	if c.DataMask == 0 {
		errs = append(errs, errors.New("data_mask is zero"))
	}
	if c.CodeMask&c.DataMask != c.DataMask {
		errs = append(errs, fmt.Errorf("code_mask %#08x does not include data_mask %#08x", c.CodeMask, c.DataMask))
	}
	if c.BundleSize > 0 && c.Base%uint32(c.BundleSize) != 0 {
		errs = append(errs, fmt.Errorf("base %#x is not bundle aligned", c.Base))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers %d is negative", c.Workers))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache_size %d is negative", c.CacheSize))
	}
	for _, off := range c.ExemptOffsets {
		if off < 0 {
			errs = append(errs, fmt.Errorf("exempt offset %d is negative", off))
		}
	}
	return errors.Join(errs...)
}

// Policy returns the ARM sandbox parameters.
func (c *Config) Policy() arm.Policy {
	return arm.Policy{
		BundleSize: c.BundleSize,
		DataMask:   c.DataMask,
		CodeMask:   c.CodeMask,
	}
}

// NewValidator builds a validator for the configured target.
func (c *Config) NewValidator() (*validator.Validator, error) {
	if c.Target != arm.Name {
		return nil, fmt.Errorf("unknown target %q", c.Target)
	}
	return arm.NewValidator(c.Policy())
}

// Region wraps code loaded at base with the configured trampolines and
// exemptions.
func (c *Config) Region(code []byte, base uint32) validator.Region {
	return validator.Region{
		Code:          code,
		Base:          base,
		Trampolines:   append([]uint32(nil), c.Trampolines...),
		ExemptOffsets: append([]int(nil), c.ExemptOffsets...),
	}
}
