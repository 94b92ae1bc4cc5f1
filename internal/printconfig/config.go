// Package printconfig stores flat key/value print settings the way the
// slicer serializes them: keys keep their first-seen order, values are
// opaque strings. The same store backs the archive-level print config,
// per-object and per-volume overrides, and layer-range overrides.
package printconfig

import (
	"fmt"
	"strings"
)

// Config is an ordered set of key/value options.
type Config struct {
	keys   []string
	values map[string]string
}

// New returns an empty config.
func New() *Config {
	return &Config{values: map[string]string{}}
}

// Set deserializes a single option into the config. Setting an existing
// key overwrites its value in place; new keys append.
func (c *Config) Set(key, value string) {
	if c.values == nil {
		c.values = map[string]string{}
	}
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// Get returns the value for key.
func (c *Config) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Has reports whether key is present.
func (c *Config) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Serialize returns the wire value of key, empty if absent.
func (c *Config) Serialize(key string) string {
	return c.values[key]
}

// Keys returns the option keys in insertion order.
func (c *Config) Keys() []string {
	return c.keys
}

// Empty reports whether the config has no options.
func (c *Config) Empty() bool {
	return len(c.keys) == 0
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := New()
	for _, k := range c.keys {
		out.Set(k, c.values[k])
	}
	return out
}

// LoadGcodeComments parses the "; key = value" comment lines the slicer
// appends to gcode files and stores in the archive's print config part.
// Lines that are not option comments are ignored.
func (c *Config) LoadGcodeComments(data string) {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, ";") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, ";"))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		c.Set(key, strings.TrimSpace(value))
	}
}

// GcodeComments serializes the config as "; key = value" lines under a
// header comment, skipping the keys in skip.
func (c *Config) GcodeComments(header string, skip ...string) string {
	skipSet := map[string]bool{}
	for _, k := range skip {
		skipSet[k] = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "; %s\n\n", header)
	for _, key := range c.keys {
		if skipSet[key] {
			continue
		}
		fmt.Fprintf(&b, "; %s = %s\n", key, c.values[key])
	}
	return b.String()
}
