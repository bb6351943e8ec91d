// Package config loads the simulator's TOML configuration file into a
// typed lookup surface, with strict-mode auditing of unused settings.
package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/bits-and-blooms/bloom/v3"
	"github.com/nexus-arch/coresim/internal/logging"
)

// raw mirrors the on-disk TOML shape: a top-level "sim"/"sys" table plus
// an arbitrary number of "process{i}" tables and nested cache/memory
// definition tables, all represented as nested maps since the exact key
// set is simulator-config-dependent.
type raw = map[string]any

// Config is a typed view over a parsed TOML document. Every lookup is
// tracked for the strict-unused-setting audit.
type Config struct {
	data   raw
	strict bool
	log    *logging.Logger

	mu       sync.Mutex
	seen     *bloom.BloomFilter // fast probabilistic pre-check
	usedKeys map[string]bool    // exact set, consulted on a bloom hit
	allKeys  map[string]bool
	frozen   bool
}

// Load parses path as TOML and returns a Config. Parse errors are fatal
// at init per spec §7 (reported here as a returned error; callers in
// cmd/coresim escalate to logging.Fatal).
func Load(path string, log *logging.Logger) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var data raw
	if _, err := toml.Decode(string(b), &data); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	c := &Config{
		data:     data,
		log:      log,
		seen:     bloom.NewWithEstimates(4096, 0.01),
		usedKeys: make(map[string]bool),
		allKeys:  make(map[string]bool),
	}
	collectKeys(data, "", c.allKeys)
	if sim, ok := data["sim"].(raw); ok {
		if strict, ok := sim["strict_unused"].(bool); ok {
			c.strict = strict
		}
	}
	c.markUsed("sim.strict_unused")
	return c, nil
}

func collectKeys(m raw, prefix string, out map[string]bool) {
	for k, v := range m {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		if nested, ok := v.(raw); ok {
			collectKeys(nested, full, out)
			continue
		}
		out[full] = true
	}
}

func (c *Config) markUsed(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen.Add([]byte(key))
	c.usedKeys[key] = true
}

// wasRequested checks the bloom filter first; a negative there is
// conclusive (no false negatives by construction), a positive falls
// through to the exact set to rule out a bloom false positive.
func (c *Config) wasRequested(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.seen.Test([]byte(key)) {
		return false
	}
	return c.usedKeys[key]
}

func lookup(data raw, key string) (any, bool) {
	v, ok := data[key]
	return v, ok
}

func split(key string) (group, rest string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

func (c *Config) resolve(key string) (any, bool) {
	c.markUsed(key)
	group, rest := split(key)
	cur, ok := lookup(c.data, group)
	if !ok {
		return nil, false
	}
	for rest != "" {
		m, ok := cur.(raw)
		if !ok {
			return nil, false
		}
		group, rest = split(rest)
		cur, ok = lookup(m, group)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func typedErr(key string, want string) error {
	return fmt.Errorf("config: key %q is not a valid %s", key, want)
}

// Uint32 returns the value at the dotted key path (e.g. "process0.core_id")
// as a uint32, or def if the key is absent.
func (c *Config) Uint32(key string, def uint32) uint32 {
	v, ok := c.resolve(key)
	if !ok {
		return def
	}
	i, ok := toInt64(v)
	if !ok {
		c.fail(typedErr(key, "uint32"))
		return def
	}
	return uint32(i)
}

func (c *Config) Uint64(key string, def uint64) uint64 {
	v, ok := c.resolve(key)
	if !ok {
		return def
	}
	i, ok := toInt64(v)
	if !ok {
		c.fail(typedErr(key, "uint64"))
		return def
	}
	return uint64(i)
}

func (c *Config) Bool(key string, def bool) bool {
	v, ok := c.resolve(key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		c.fail(typedErr(key, "bool"))
		return def
	}
	return b
}

func (c *Config) String(key string, def string) string {
	v, ok := c.resolve(key)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		c.fail(typedErr(key, "string"))
		return def
	}
	return s
}

func (c *Config) Float64(key string, def float64) float64 {
	v, ok := c.resolve(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		c.fail(typedErr(key, "double"))
		return def
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func (c *Config) fail(err error) {
	if c.log != nil {
		c.log.Error("config: type mismatch", logging.Err(err))
	}
}

// Freeze runs the strict-unused-setting audit: every key present in the
// document that was never fetched by a typed getter is a fatal error in
// strict mode, or a logged warning otherwise.
func (c *Config) Freeze() error {
	c.mu.Lock()
	c.frozen = true
	var unused []string
	for k := range c.allKeys {
		if !c.seen.Test([]byte(k)) || !c.usedKeys[k] {
			unused = append(unused, k)
		}
	}
	c.mu.Unlock()

	if len(unused) == 0 {
		return nil
	}
	if c.strict {
		return fmt.Errorf("config: %d unused setting(s), e.g. %q", len(unused), unused[0])
	}
	if c.log != nil {
		for _, k := range unused {
			c.log.Warn("config: unused setting", logging.String("key", k))
		}
	}
	return nil
}
