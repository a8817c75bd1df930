// Package cache memoizes validation reports by a digest of the target policy
// and the region being validated.
package cache

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"

	"ncval/internal/validator"
)

// Key identifies a (target, region) pair.
type Key [32]byte

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// Short returns the first 12 hex digits of k.
func (k Key) Short() string { return k.String()[:12] }

// KeyFor digests everything that can change the verdict for r under the
// target described by fingerprint.
func KeyFor(fingerprint string, r validator.Region) Key {
	h := blake3.New()
	var buf [8]byte
	word := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	word(uint64(len(fingerprint)))
	h.Write([]byte(fingerprint))
	word(uint64(r.Base))
	word(uint64(len(r.Trampolines)))
	for _, t := range r.Trampolines {
		word(uint64(t))
	}
	word(uint64(len(r.ExemptOffsets)))
	for _, off := range r.ExemptOffsets {
		word(uint64(off))
	}
	word(uint64(len(r.Code)))
	h.Write(r.Code)

	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// Digest returns the blake3 digest of data.
func Digest(data []byte) Key { return Key(blake3.Sum256(data)) }

// Cache is a fixed-size LRU of reports. A nil or zero-size Cache never hits.
// Cached reports are shared and must not be modified. Concurrent lookups of
// the same key share a single validation.
type Cache struct {
	reports *lru.Cache
	flight  singleflight.Group
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// New returns a cache holding up to size reports. size 0 disables caching.
func New(size int) (*Cache, error) {
	if size < 0 {
		return nil, fmt.Errorf("cache size %d is negative", size)
	}
	c := &Cache{}
	if size == 0 {
		return c, nil
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create report cache: %w", err)
	}
	c.reports = l
	return c, nil
}

func (c *Cache) Get(k Key) (*validator.Report, bool) {
	if c == nil || c.reports == nil {
		return nil, false
	}
	v, ok := c.reports.Get(k)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return v.(*validator.Report), true
}

func (c *Cache) Add(k Key, r *validator.Report) {
	if c == nil || c.reports == nil {
		return
	}
	c.reports.Add(k, r)
}

// Validate returns the cached report for r, validating and storing it on a
// miss.
func (c *Cache) Validate(v *validator.Validator, r validator.Region) *validator.Report {
	rep, _ := c.Lookup(v, r)
	return rep
}

// Lookup is Validate that also reports whether the result came from the
// cache or from a validation another caller was already running.
func (c *Cache) Lookup(v *validator.Validator, r validator.Region) (*validator.Report, bool) {
	if c == nil {
		return v.Validate(r), false
	}
	k := KeyFor(v.Fingerprint(), r)
	if rep, ok := c.Get(k); ok {
		slog.Debug("Validation cache hit", "key", k.Short(), "size", len(r.Code))
		return rep, true
	}
	ran := false
	res, _, _ := c.flight.Do(k.String(), func() (any, error) {
		if c.reports != nil {
			if rep, ok := c.reports.Peek(k); ok {
				return rep, nil
			}
		}
		ran = true
		rep := v.Validate(r)
		c.Add(k, rep)
		return rep, nil
	})
	return res.(*validator.Report), !ran
}

// Stats reports hit and miss counts and the current number of entries.
type Stats struct {
	Hits, Misses uint64
	Len          int
}

func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if c.reports != nil {
		s.Len = c.reports.Len()
	}
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("%d hits, %d misses, %d cached", s.Hits, s.Misses, s.Len)
}
