package cache

import (
	"sort"
	"sync"

	"github.com/aaravmahajanofficial/dual-tier-cart/internal/models"
)

type entry struct {
	cart    *models.Cart
	dirty   bool
	version uint64
}

// Snapshot is a point-in-time copy of one memory entry.
type Snapshot struct {
	Cart    *models.Cart
	Dirty   bool
	Version uint64
}

// MemoryTier holds the authoritative in-process copy of every cart touched
// since startup. Entries never expire. Carts handed in or out are deep
// copies, so callers can never alias stored state.
type MemoryTier struct {
	mu      sync.RWMutex
	entries map[string]*entry
	dirty   int
}

func NewMemoryTier() *MemoryTier {
	return &MemoryTier{entries: make(map[string]*entry)}
}

func (m *MemoryTier) Get(userID string) (*models.Cart, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[userID]
	if !ok {
		return nil, false
	}

	return e.cart.Clone(), true
}

// Seed stores a clean copy loaded from the durable store. An existing entry
// wins, since it may hold changes the store has not seen.
func (m *MemoryTier) Seed(cart *models.Cart) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[cart.UserID]; ok {
		return false
	}

	m.entries[cart.UserID] = &entry{cart: cart.Clone(), version: 1}
	return true
}

// Put replaces the cart and bumps its version.
func (m *MemoryTier) Put(cart *models.Cart, dirty bool) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[cart.UserID]
	if !ok {
		e = &entry{}
		m.entries[cart.UserID] = e
	}

	m.setDirty(e, dirty)
	e.cart = cart.Clone()
	e.version++

	return e.version
}

func (m *MemoryTier) Snapshot(userID string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[userID]
	if !ok {
		return Snapshot{}, false
	}

	return Snapshot{Cart: e.cart.Clone(), Dirty: e.dirty, Version: e.version}, true
}

// MarkClean clears the dirty flag only if nothing was written since version.
func (m *MemoryTier) MarkClean(userID string, version uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[userID]
	if !ok || e.version != version {
		return false
	}

	m.setDirty(e, false)
	return true
}

// DirtyKeys returns the users whose carts still await persistence, sorted.
func (m *MemoryTier) DirtyKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, m.dirty)
	for userID, e := range m.entries {
		if e.dirty {
			keys = append(keys, userID)
		}
	}
	sort.Strings(keys)

	return keys
}

func (m *MemoryTier) DirtyCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.dirty
}

func (m *MemoryTier) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// caller holds m.mu
func (m *MemoryTier) setDirty(e *entry, dirty bool) {
	switch {
	case dirty && !e.dirty:
		m.dirty++
	case !dirty && e.dirty:
		m.dirty--
	}
	e.dirty = dirty
}
