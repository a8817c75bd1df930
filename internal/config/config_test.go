package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ncval.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "arm", cfg.Target)
	assert.Equal(t, 16, cfg.BundleSize)
	assert.Equal(t, uint32(0xC0000000), cfg.DataMask)
	assert.Equal(t, uint32(0xC000000F), cfg.CodeMask)
	assert.Equal(t, uint32(0x20000), cfg.Base)
	assert.Equal(t, 256, cfg.CacheSize)
	assert.Positive(t, cfg.Workers)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
bundle_size: 32
data_mask: 0xF0000000
code_mask: 0xF000001F
base: 0x40000
trampolines: [0x1000, 0x1010]
exempt_offsets: [12]
workers: 2
cache_size: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "arm", cfg.Target, "unset fields keep their defaults")
	assert.Equal(t, 32, cfg.BundleSize)
	assert.Equal(t, uint32(0xF0000000), cfg.DataMask)
	assert.Equal(t, uint32(0xF000001F), cfg.CodeMask)
	assert.Equal(t, uint32(0x40000), cfg.Base)
	assert.Equal(t, []uint32{0x1000, 0x1010}, cfg.Trampolines)
	assert.Equal(t, []int{12}, cfg.ExemptOffsets)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 0, cfg.CacheSize)

	p := cfg.Policy()
	assert.Equal(t, 32, p.BundleSize)
	assert.Equal(t, uint32(0xF000001F), p.CodeMask)
}

func TestLoadFromEnvironment(t *testing.T) {
	path := writeConfig(t, "base: 0x80000\n")
	t.Setenv(EnvConfig, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x80000), cfg.Base)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv(EnvConfig, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Base, cfg.Base)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "bundle_size: [", "parse config"},
		{"unknown target", "target: mips\n", `unknown target "mips"`},
		{"bundle not power of two", "bundle_size: 24\n", "bundle_size 24"},
		{"zero data mask", "data_mask: 0\n", "data_mask is zero"},
		{"code mask misses data bits", "code_mask: 0x0000000F\n", "does not include data_mask"},
		{"unaligned base", "base: 0x20004\n", "not bundle aligned"},
		{"negative workers", "workers: -1\n", "workers -1"},
		{"negative exempt offset", "exempt_offsets: [-4]\n", "exempt offset -4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewValidator(t *testing.T) {
	cfg := Default()
	cfg.Trampolines = []uint32{0x1000}
	v, err := cfg.NewValidator()
	require.NoError(t, err)

	// bx lr is an unmasked indirect branch.
	code := []byte{0x1e, 0xff, 0x2f, 0xe1}
	r := v.Validate(cfg.Region(code, cfg.Base))
	assert.False(t, r.Accepted)

	region := cfg.Region(nil, cfg.Base)
	assert.Equal(t, []uint32{0x1000}, region.Trampolines)
	cfg.Trampolines[0] = 0x2000
	assert.Equal(t, uint32(0x1000), region.Trampolines[0], "region keeps its own copy")

	cfg.Target = "x86"
	_, err = cfg.NewValidator()
	assert.Error(t, err)
}
