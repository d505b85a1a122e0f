package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/thebtf/factura/pkg/models"
)

// SQLiteStore is the embedded catalog Store for single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS businesses (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	address TEXT NOT NULL DEFAULT '',
	contact TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS catalog_items (
	business_id TEXT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	name_key TEXT NOT NULL,
	item_name TEXT NOT NULL,
	unit_price REAL NOT NULL,
	tax_rate REAL NOT NULL,
	PRIMARY KEY (business_id, name_key)
);

CREATE TABLE IF NOT EXISTS customers (
	business_id TEXT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	address TEXT NOT NULL DEFAULT '',
	contact TEXT NOT NULL DEFAULT ''
);
`

// NewSQLiteStore opens (creating if needed) the catalog database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent sessions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// GetBusiness loads a business record with its items and customers.
func (s *SQLiteStore) GetBusiness(ctx context.Context, businessID string) (*models.Business, error) {
	biz := &models.Business{}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, address, contact FROM businesses WHERE id = ?`, businessID,
	).Scan(&biz.Info.Name, &biz.Info.Address, &biz.Info.Contact)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownBusiness
	}
	if err != nil {
		return nil, fmt.Errorf("load business %s: %w", businessID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_name, unit_price, tax_rate FROM catalog_items
		 WHERE business_id = ? ORDER BY rowid`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var entry models.CatalogEntry
		if err := rows.Scan(&entry.ItemName, &entry.UnitPrice, &entry.TaxRatePercent); err != nil {
			return nil, err
		}
		biz.Items = append(biz.Items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	custRows, err := s.db.QueryContext(ctx,
		`SELECT name, address, contact FROM customers
		 WHERE business_id = ? ORDER BY rowid`, businessID)
	if err != nil {
		return nil, err
	}
	defer custRows.Close()
	for custRows.Next() {
		var c models.Customer
		if err := custRows.Scan(&c.Name, &c.Address, &c.Contact); err != nil {
			return nil, err
		}
		biz.Customers = append(biz.Customers, c)
	}
	return biz, custRows.Err()
}

// SaveCatalogItem inserts one entry, relying on the (business_id, name_key)
// primary key for dedup.
func (s *SQLiteStore) SaveCatalogItem(ctx context.Context, businessID string, entry models.CatalogEntry) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM businesses WHERE id = ?`, businessID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUnknownBusiness
	}
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO catalog_items (business_id, name_key, item_name, unit_price, tax_rate)
		 VALUES (?, ?, ?, ?, ?)`,
		businessID, NameKey(entry.ItemName), entry.ItemName, entry.UnitPrice, entry.TaxRatePercent)
	if err != nil {
		return fmt.Errorf("save item for %s: %w", businessID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDuplicateItem
	}
	return nil
}

// ImportBusiness replaces the record for a business id in one transaction.
func (s *SQLiteStore) ImportBusiness(ctx context.Context, businessID string, biz *models.Business) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO businesses (id, name, address, contact) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, address=excluded.address, contact=excluded.contact`,
		businessID, biz.Info.Name, biz.Info.Address, biz.Info.Contact); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM catalog_items WHERE business_id = ?`, businessID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM customers WHERE business_id = ?`, businessID); err != nil {
		return err
	}
	for _, entry := range biz.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO catalog_items (business_id, name_key, item_name, unit_price, tax_rate)
			 VALUES (?, ?, ?, ?, ?)`,
			businessID, NameKey(entry.ItemName), entry.ItemName, entry.UnitPrice, entry.TaxRatePercent); err != nil {
			return err
		}
	}
	for _, c := range biz.Customers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO customers (business_id, name, address, contact) VALUES (?, ?, ?, ?)`,
			businessID, c.Name, c.Address, c.Contact); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
