package tiles

import (
	"fmt"
	"math/rand/v2"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/tzwhere/internal/dataset"
)

// Policy decides how long loaded tiles stay in the partial cache.
type Policy int

const (
	// PolicyOff never caches: every lookup reads its tile from storage.
	PolicyOff Policy = iota
	// PolicyFull keeps every loaded tile forever.
	PolicyFull
	// PolicyPerRun clears the cache after every lookup.
	PolicyPerRun
	// PolicyPerRunLottery clears the cache after a lookup with a fixed probability.
	PolicyPerRunLottery
	// PolicyLRU keeps at most MaxTiles tiles, dropping the least recently used.
	PolicyLRU
)

const (
	DefaultClearProbability = 0.2
	DefaultMaxTiles         = 4
)

func (p Policy) String() string {
	switch p {
	case PolicyOff:
		return "off"
	case PolicyFull:
		return "full"
	case PolicyPerRun:
		return "per-run"
	case PolicyPerRunLottery:
		return "per-run-lottery"
	case PolicyLRU:
		return "lru"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return PolicyOff, nil
	case "full", "":
		return PolicyFull, nil
	case "per-run", "perrun", "run":
		return PolicyPerRun, nil
	case "per-run-lottery", "lottery":
		return PolicyPerRunLottery, nil
	case "lru":
		return PolicyLRU, nil
	default:
		return PolicyOff, fmt.Errorf("unknown cache policy %q", s)
	}
}

// Eviction configures the partial cache. Rand is only consulted by the
// lottery policy; tests inject a deterministic source.
type Eviction struct {
	Policy           Policy
	ClearProbability float64
	MaxTiles         int
	Rand             func() float64
}

func (e Eviction) withDefaults() Eviction {
	if e.ClearProbability <= 0 || e.ClearProbability > 1 {
		e.ClearProbability = DefaultClearProbability
	}
	if e.MaxTiles <= 0 {
		e.MaxTiles = DefaultMaxTiles
	}
	if e.Rand == nil {
		e.Rand = rand.Float64
	}
	return e
}

// tileCache is only touched under Store.mu.
type tileCache interface {
	get(name string) (*dataset.Dataset, bool)
	add(name string, ds *dataset.Dataset)
	purge()
	len() int
}

func newCache(e Eviction) (tileCache, error) {
	switch e.Policy {
	case PolicyOff:
		return noCache{}, nil
	case PolicyFull, PolicyPerRun, PolicyPerRunLottery:
		return mapCache{}, nil
	case PolicyLRU:
		c, err := lru.New[string, *dataset.Dataset](e.MaxTiles)
		if err != nil {
			return nil, fmt.Errorf("lru cache: %w", err)
		}
		return lruCache{c: c}, nil
	default:
		return nil, fmt.Errorf("unsupported cache policy %s", e.Policy)
	}
}

type noCache struct{}

func (noCache) get(string) (*dataset.Dataset, bool) { return nil, false }
func (noCache) add(string, *dataset.Dataset)        {}
func (noCache) purge()                              {}
func (noCache) len() int                            { return 0 }

type mapCache map[string]*dataset.Dataset

func (m mapCache) get(name string) (*dataset.Dataset, bool) {
	ds, ok := m[name]
	return ds, ok
}

func (m mapCache) add(name string, ds *dataset.Dataset) { m[name] = ds }

func (m mapCache) purge() { clear(m) }

func (m mapCache) len() int { return len(m) }

type lruCache struct {
	c *lru.Cache[string, *dataset.Dataset]
}

func (l lruCache) get(name string) (*dataset.Dataset, bool) { return l.c.Get(name) }
func (l lruCache) add(name string, ds *dataset.Dataset)    { l.c.Add(name, ds) }
func (l lruCache) purge()                                  { l.c.Purge() }
func (l lruCache) len() int                                { return l.c.Len() }
