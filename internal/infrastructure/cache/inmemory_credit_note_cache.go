package cache

import (
	"context"
	"sync"
	"time"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/google/uuid"
)

// InMemoryCreditNoteCache is an in-process credit note cache suitable for
// single-instance deployments and testing
type InMemoryCreditNoteCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[uuid.UUID]creditNoteCacheEntry
}

type creditNoteCacheEntry struct {
	records   []fiscal.CreditNoteRecord
	expiresAt time.Time
}

// NewInMemoryCreditNoteCache creates a new in-memory credit note cache
func NewInMemoryCreditNoteCache() *InMemoryCreditNoteCache {
	return &InMemoryCreditNoteCache{
		ttl:     defaultCreditNoteTTL,
		entries: make(map[uuid.UUID]creditNoteCacheEntry),
	}
}

// Get retrieves the cached credit note view for a tenant
func (c *InMemoryCreditNoteCache) Get(_ context.Context, tenantID uuid.UUID) ([]fiscal.CreditNoteRecord, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[tenantID]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, tenantID)
		c.mu.Unlock()
		return nil, false, nil
	}

	records := make([]fiscal.CreditNoteRecord, len(entry.records))
	copy(records, entry.records)
	return records, true, nil
}

// Set stores the credit note view for a tenant
func (c *InMemoryCreditNoteCache) Set(_ context.Context, tenantID uuid.UUID, records []fiscal.CreditNoteRecord) error {
	stored := make([]fiscal.CreditNoteRecord, len(records))
	copy(stored, records)

	c.mu.Lock()
	c.entries[tenantID] = creditNoteCacheEntry{
		records:   stored,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
	return nil
}

// Invalidate drops the tenant's cached view
func (c *InMemoryCreditNoteCache) Invalidate(_ context.Context, tenantID uuid.UUID) error {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.mu.Unlock()
	return nil
}
