package catalog

import (
	"context"
	"sync"

	"github.com/thebtf/factura/pkg/models"
)

// MemoryStore is an in-memory Store used by tests and by the worker when no
// backend is reachable at startup.
type MemoryStore struct {
	mu         sync.RWMutex
	businesses map[string]*models.Business
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{businesses: make(map[string]*models.Business)}
}

// GetBusiness loads a business record.
func (m *MemoryStore) GetBusiness(_ context.Context, businessID string) (*models.Business, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	biz, ok := m.businesses[businessID]
	if !ok {
		return nil, ErrUnknownBusiness
	}
	return cloneBusiness(biz), nil
}

// SaveCatalogItem appends an entry, rejecting duplicate normalized names.
func (m *MemoryStore) SaveCatalogItem(_ context.Context, businessID string, entry models.CatalogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	biz, ok := m.businesses[businessID]
	if !ok {
		return ErrUnknownBusiness
	}
	if _, exists := FindEntry(biz, entry.ItemName); exists {
		return ErrDuplicateItem
	}
	biz.Items = append(biz.Items, entry)
	return nil
}

// ImportBusiness replaces the record for a business id.
func (m *MemoryStore) ImportBusiness(_ context.Context, businessID string, biz *models.Business) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.businesses[businessID] = cloneBusiness(biz)
	return nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func cloneBusiness(biz *models.Business) *models.Business {
	out := &models.Business{Info: biz.Info}
	out.Items = append([]models.CatalogEntry(nil), biz.Items...)
	out.Customers = append([]models.Customer(nil), biz.Customers...)
	return out
}
