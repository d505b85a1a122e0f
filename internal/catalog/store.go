// Package catalog persists business records: the business header, its item
// catalog and its known customers. Two backends exist, Redis for the shared
// deployment and SQLite for single-node use; both are keyed by business id.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/thebtf/factura/pkg/models"
)

var (
	// ErrUnknownBusiness is returned when no record exists for a business id.
	ErrUnknownBusiness = errors.New("unknown business")
	// ErrDuplicateItem is returned when a catalog item with the same
	// normalized name already exists for the business.
	ErrDuplicateItem = errors.New("item already in catalog")
)

// Store is the persistence boundary for business catalogs.
type Store interface {
	// GetBusiness loads the full record for a business id.
	GetBusiness(ctx context.Context, businessID string) (*models.Business, error)

	// SaveCatalogItem appends one entry to the business catalog. Names are
	// deduplicated case-insensitively after trimming; a collision returns
	// ErrDuplicateItem and leaves the catalog untouched.
	SaveCatalogItem(ctx context.Context, businessID string, entry models.CatalogEntry) error

	// ImportBusiness writes a complete business record, replacing any
	// existing one. Used by the seed loader.
	ImportBusiness(ctx context.Context, businessID string, biz *models.Business) error

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	Close() error
}

// NameKey normalizes an item name for catalog dedup and lookup.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FindEntry looks an item up in a business catalog by normalized name.
func FindEntry(biz *models.Business, name string) (models.CatalogEntry, bool) {
	key := NameKey(name)
	if key == "" {
		return models.CatalogEntry{}, false
	}
	for _, entry := range biz.Items {
		if NameKey(entry.ItemName) == key {
			return entry, true
		}
	}
	return models.CatalogEntry{}, false
}
