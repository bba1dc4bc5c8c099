package services

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
)

// foldName produces the case-insensitive lookup key for a display name.
// A Caser is stateful, so a fresh one is made per call.
func foldName(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// NameCache is the session's bidirectional display name <-> id memo for one object kind.
type NameCache struct {
	mu       sync.RWMutex
	byName   map[string]string
	byFolded map[string]string
	byID     map[string]string
}

func NewNameCache() *NameCache {
	c := &NameCache{}
	c.Clear()
	return c
}

// Upsert memoizes a resolved pair in both directions.
func (c *NameCache) Upsert(id, name string) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" || name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[id] = name
	c.byName[name] = id
	c.byFolded[foldName(name)] = id
}

// RememberName records id -> name only. Listings use it so that duplicate display
// names never become a name -> id shortcut.
func (c *NameCache) RememberName(id, name string) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" || name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[id] = name
}

// Alias maps an additional typed name to an already resolved id.
func (c *NameCache) Alias(name, id string) {
	name, id = strings.TrimSpace(name), strings.TrimSpace(id)
	if name == "" || id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byName[name] = id
	c.byFolded[foldName(name)] = id
}

// Lookup finds a memoized id by exact name, then case-insensitively.
func (c *NameCache) Lookup(name string) (string, bool) {
	name = strings.TrimSpace(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id, ok := c.byName[name]; ok {
		return id, true
	}
	id, ok := c.byFolded[foldName(name)]
	return id, ok
}

// ScanByName searches the id -> name map for a single case-insensitive exact match.
func (c *NameCache) ScanByName(name string) (domain.NamedObject, bool) {
	want := foldName(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	var hit domain.NamedObject
	n := 0
	for id, n2 := range c.byID {
		if foldName(n2) == want {
			hit = domain.NamedObject{ID: id, DisplayName: n2}
			n++
		}
	}
	return hit, n == 1
}

// NameOf returns the memoized display name of id, or "".
func (c *NameCache) NameOf(id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byID[id]
}

func (c *NameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Clear empties the cache wholesale.
func (c *NameCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byName = make(map[string]string)
	c.byFolded = make(map[string]string)
	c.byID = make(map[string]string)
}
