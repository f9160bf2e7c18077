// Package session holds pending previews for one editing session. A
// preview remembers the state a live object had before a stored preset
// was shown on it, so the change can be reverted or committed.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Handle identifies a live object for the lifetime of a session.
type Handle string

// NewHandle returns a fresh random handle.
func NewHandle() Handle {
	return Handle(uuid.NewString())
}

// Preview is the pending state of one live object.
type Preview struct {
	Handle   Handle
	Original any    // state before the preview was applied
	RecordID string // record currently shown
}

// Cache maps handles to pending previews in the order they were begun.
type Cache struct {
	mu      sync.Mutex
	pending *orderedmap.OrderedMap[Handle, *Preview]
}

// New returns an empty cache. Create one per editing session.
func New() *Cache {
	return &Cache{pending: orderedmap.New[Handle, *Preview]()}
}

// Begin records original as the state to restore for h. Starting a second
// preview on the same handle keeps the first original and only updates the
// shown record.
func (c *Cache) Begin(h Handle, original any, recordID string) *Preview {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending.Get(h); ok {
		p.RecordID = recordID
		return p
	}
	p := &Preview{Handle: h, Original: original, RecordID: recordID}
	c.pending.Set(h, p)
	return p
}

// End removes the preview of h and returns it.
func (c *Cache) End(h Handle) (*Preview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending.Delete(h)
	if !ok {
		return nil, fmt.Errorf("no preview for %s", h)
	}
	return p, nil
}

// IsPreviewing reports whether h has a pending preview.
func (c *Cache) IsPreviewing(h Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending.Get(h)
	return ok
}

// Pending returns the open previews, oldest first.
func (c *Cache) Pending() []*Preview {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Preview, 0, c.pending.Len())
	for pair := c.pending.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Clear drops every pending preview and returns them, oldest first. Call
// it when the session ends.
func (c *Cache) Clear() []*Preview {
	out := c.Pending()
	c.mu.Lock()
	c.pending = orderedmap.New[Handle, *Preview]()
	c.mu.Unlock()
	return out
}
