// Package labelmap caches the mapping from raw model labels to canonical food keys.
//
// The whole table is loaded on first use and served from memory until
// Invalidate is called. Changes made to the backing table by other processes
// are not seen before that; the table is curated offline and is read-only
// here.
package labelmap

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nutrisnap/nutrisnap/internal/datastore"
	"github.com/nutrisnap/nutrisnap/internal/errors"
	"github.com/nutrisnap/nutrisnap/internal/logger"
)

// Source loads every mapping from the backing store in insertion order
type Source interface {
	LabelMappings(ctx context.Context) ([]datastore.LabelMapping, error)
}

// Entry is one cached mapping
type Entry struct {
	RawLabel string
	FoodKey  string
}

var lower = cases.Lower(language.Und)

// Normalize lower-cases a raw label and replaces spaces with underscores
func Normalize(label string) string {
	return strings.ReplaceAll(lower.String(strings.TrimSpace(label)), " ", "_")
}

// Cache is a lazily populated, process-wide view of the label_mapping table
type Cache struct {
	source Source
	log    logger.Logger

	mu      sync.RWMutex
	loaded  bool
	entries []Entry
	index   map[string]string
}

// New returns an empty cache backed by source
func New(source Source, log logger.Logger) *Cache {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Cache{source: source, log: log}
}

// Lookup returns the food key of a raw label. The label is normalized first.
func (c *Cache) Lookup(ctx context.Context, rawLabel string) (string, bool, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return "", false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.index[Normalize(rawLabel)]
	return key, ok, nil
}

// AllEntries returns a copy of all mappings in insertion order
func (c *Cache) AllEntries(ctx context.Context) ([]Entry, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out, nil
}

// Invalidate drops the cached table; the next access reloads it
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.entries = nil
	c.index = nil
	c.log.Debug("label mapping cache invalidated")
}

// Len returns the number of cached entries, zero when not loaded
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ensureLoaded populates the cache once. The write lock is held during the
// load so concurrent first callers wait for a single query.
func (c *Cache) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}

	rows, err := c.source.LabelMappings(ctx)
	if err != nil {
		return errors.New(err).
			Component("labelmap").
			Category(errors.CategoryDatabase).
			Context("operation", "load_label_mappings").
			Build()
	}

	entries := make([]Entry, 0, len(rows))
	index := make(map[string]string, len(rows))
	for i := range rows {
		raw := Normalize(rows[i].RawLabel)
		if _, dup := index[raw]; dup {
			continue
		}
		index[raw] = rows[i].FoodKey
		entries = append(entries, Entry{RawLabel: raw, FoodKey: rows[i].FoodKey})
	}

	c.entries = entries
	c.index = index
	c.loaded = true
	c.log.Info("label mappings loaded", logger.Int("entries", len(entries)))
	return nil
}
