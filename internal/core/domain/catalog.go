package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// Catalog is an ordered set of targets with case-insensitive lookup.
type Catalog struct {
	targets []*Target
	index   map[string]int
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// Add appends a target. Names must be unique regardless of case.
func (c *Catalog) Add(t *Target) error {
	if t.Name == "" {
		return zerr.Wrap(ErrInvalidTarget, "target name is empty")
	}
	key := strings.ToLower(t.Name)
	if _, ok := c.index[key]; ok {
		return zerr.With(zerr.Wrap(ErrDuplicateTarget, "failed to add target"), "target", t.Name)
	}
	c.index[key] = len(c.targets)
	c.targets = append(c.targets, t)
	return nil
}

// Put adds a target or replaces the one with the same name, keeping its position.
func (c *Catalog) Put(t *Target) error {
	if t.Name == "" {
		return zerr.Wrap(ErrInvalidTarget, "target name is empty")
	}
	if i, ok := c.index[strings.ToLower(t.Name)]; ok {
		c.targets[i] = t
		return nil
	}
	return c.Add(t)
}

// Lookup returns the target with the given name, ignoring case.
func (c *Catalog) Lookup(name string) (*Target, error) {
	i, ok := c.index[strings.ToLower(name)]
	if !ok {
		return nil, zerr.With(zerr.Wrap(ErrTargetNotFound, "unknown target"), "target", name)
	}
	return c.targets[i], nil
}

// Targets returns the targets in insertion order.
func (c *Catalog) Targets() []*Target {
	out := make([]*Target, len(c.targets))
	copy(out, c.targets)
	return out
}

// Names returns the target names in insertion order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.targets))
	for i, t := range c.targets {
		names[i] = t.Name
	}
	return names
}

// Len returns the number of targets.
func (c *Catalog) Len() int {
	return len(c.targets)
}
