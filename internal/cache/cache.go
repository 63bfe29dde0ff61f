// Package cache is the session-scoped, in-memory mirror of known documents that renderers read.
package cache

import (
	"errors"
	"sync"

	"docvault/internal/model"
)

var ErrDuplicateID = errors.New("document id already cached")

// Local is an id-keyed collection that preserves insertion order.
//
// Writes are applied in completion order: when two operations on the same id race, the one that
// finishes last wins. The mutex only keeps the structure itself consistent.
type Local struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]model.Document
}

func New() *Local {
	return &Local{docs: make(map[string]model.Document)}
}

// Append adds doc at the end. The id must not already be present.
func (c *Local) Append(doc model.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[doc.ID]; ok {
		return ErrDuplicateID
	}
	c.order = append(c.order, doc.ID)
	c.docs[doc.ID] = doc.Clone()
	return nil
}

// Patch applies fn to the cached entry in place. It is a no-op returning false when id is absent.
func (c *Local) Patch(id string, fn func(*model.Document)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	if !ok {
		return false
	}
	fn(&doc)
	doc.ID = id
	c.docs[id] = doc
	return true
}

// Remove drops id. It is a no-op returning false when id is absent.
func (c *Local) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return false
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *Local) Get(id string) (model.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.docs[id]
	if !ok {
		return model.Document{}, false
	}
	return doc.Clone(), true
}

func (c *Local) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Snapshot returns a copy of every entry in insertion order. Mutating it does not affect the cache.
func (c *Local) Snapshot() []model.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.docs[id].Clone())
	}
	return out
}
