package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ncval/internal/arm"
	"ncval/internal/validator"
)

// nop; bx lr
var code = []byte{
	0x00, 0xf0, 0x20, 0xe3,
	0x1e, 0xff, 0x2f, 0xe1,
}

func TestKeyFor(t *testing.T) {
	base := validator.Region{Code: code, Base: 0x20000}
	k := KeyFor("arm/b16", base)
	assert.Equal(t, k, KeyFor("arm/b16", base))
	assert.Len(t, k.String(), 64)
	assert.Len(t, k.Short(), 12)

	tests := []struct {
		name string
		fp   string
		r    validator.Region
	}{
		{"fingerprint", "arm/b32", base},
		{"base", "arm/b16", validator.Region{Code: code, Base: 0x20010}},
		{"code", "arm/b16", validator.Region{Code: code[:4], Base: 0x20000}},
		{"trampolines", "arm/b16", validator.Region{Code: code, Base: 0x20000, Trampolines: []uint32{0x1000}}},
		{"exempt offsets", "arm/b16", validator.Region{Code: code, Base: 0x20000, ExemptOffsets: []int{4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, k, KeyFor(tt.fp, tt.r))
		})
	}
}

func TestDigest(t *testing.T) {
	assert.Equal(t, Digest([]byte("abc")), Digest([]byte("abc")))
	assert.NotEqual(t, Digest([]byte("abc")), Digest([]byte("abd")))
}

func TestValidate(t *testing.T) {
	v, err := arm.NewValidator(arm.DefaultPolicy())
	require.NoError(t, err)
	c, err := New(4)
	require.NoError(t, err)

	r := validator.Region{Code: code, Base: 0x20000}
	first := c.Validate(v, r)
	second := c.Validate(v, r)
	assert.Same(t, first, second)
	assert.False(t, first.Accepted)
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Len: 1}, c.Stats())

	other := c.Validate(v, validator.Region{Code: code[:4], Base: 0x20000})
	assert.True(t, other.Accepted)
	assert.Equal(t, 2, c.Stats().Len)
}

func TestEviction(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)
	a, b := Digest([]byte("a")), Digest([]byte("b"))
	c.Add(a, &validator.Report{Accepted: true})
	c.Add(b, &validator.Report{})

	_, ok := c.Get(a)
	assert.False(t, ok)
	rep, ok := c.Get(b)
	require.True(t, ok)
	assert.False(t, rep.Accepted)
}

func TestDisabled(t *testing.T) {
	c, err := New(0)
	require.NoError(t, err)
	k := Digest(code)
	c.Add(k, &validator.Report{})
	_, ok := c.Get(k)
	assert.False(t, ok)
	assert.Equal(t, Stats{}, c.Stats())

	var nilCache *Cache
	_, ok = nilCache.Get(k)
	assert.False(t, ok)
	assert.Equal(t, Stats{}, nilCache.Stats())

	_, err = New(-1)
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	v, err := arm.NewValidator(arm.DefaultPolicy())
	require.NoError(t, err)
	c, err := New(4)
	require.NoError(t, err)

	r := validator.Region{Code: code, Base: 0x20000}
	first, hit := c.Lookup(v, r)
	assert.False(t, hit)
	second, hit := c.Lookup(v, validator.Region{Code: append([]byte(nil), code...), Base: 0x20000})
	assert.True(t, hit, "same bytes in a new buffer")
	assert.Same(t, first, second)

	var nilCache *Cache
	rep, hit := nilCache.Lookup(v, r)
	assert.False(t, hit)
	assert.False(t, rep.Accepted)
}

func TestConcurrentLookup(t *testing.T) {
	v, err := arm.NewValidator(arm.DefaultPolicy())
	require.NoError(t, err)
	c, err := New(8)
	require.NoError(t, err)

	r := validator.Region{Code: code, Base: 0x20000}
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		misses int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, hit := c.Lookup(v, r); !hit {
				mu.Lock()
				misses++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, misses, "one caller validates, the rest share its report")
}

func TestConcurrentValidate(t *testing.T) {
	v, err := arm.NewValidator(arm.DefaultPolicy())
	require.NoError(t, err)
	c, err := New(8)
	require.NoError(t, err)

	r := validator.Region{Code: code, Base: 0x20000}
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.False(t, c.Validate(v, r).Accepted)
		}()
	}
	wg.Wait()
	s := c.Stats()
	assert.Equal(t, uint64(16), s.Hits+s.Misses)
	assert.Equal(t, 1, s.Len)
}
