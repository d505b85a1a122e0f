package catalog

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/factura/pkg/models"
)

// Business records live in Redis hashes keyed company:{id}. The header is
// stored as plain hash fields; the item and customer lists are JSON blobs in
// the item_list and customer_list fields.
const companyKeyPrefix = "company:"

// RedisStore is the Redis-backed catalog Store.
type RedisStore struct {
	pool *redis.Pool
}

// NewRedisStore creates a store over a connection pool to addr.
func NewRedisStore(addr, password string) *RedisStore {
	pool := &redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 240 * time.Second,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			opts := []redis.DialOption{}
			if password != "" {
				opts = append(opts, redis.DialPassword(password))
			}
			return redis.DialContext(ctx, "tcp", addr, opts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
	return &RedisStore{pool: pool}
}

// GetBusiness loads the company hash and decodes its list fields.
func (r *RedisStore) GetBusiness(ctx context.Context, businessID string) (*models.Business, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	fields, err := redis.StringMap(conn.Do("HGETALL", companyKeyPrefix+businessID))
	if err != nil {
		return nil, fmt.Errorf("load business %s: %w", businessID, err)
	}
	if len(fields) == 0 {
		return nil, ErrUnknownBusiness
	}

	biz := &models.Business{
		Info: models.BusinessInfo{
			Name:    fields["business_name"],
			Address: fields["business_address"],
			Contact: fields["business_contact"],
		},
	}
	if raw := fields["item_list"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &biz.Items); err != nil {
			return nil, fmt.Errorf("decode item_list for %s: %w", businessID, err)
		}
	}
	if raw := fields["customer_list"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &biz.Customers); err != nil {
			return nil, fmt.Errorf("decode customer_list for %s: %w", businessID, err)
		}
	}
	return biz, nil
}

// SaveCatalogItem reads the current item list, dedups by normalized name and
// writes the appended list back.
func (r *RedisStore) SaveCatalogItem(ctx context.Context, businessID string, entry models.CatalogEntry) error {
	biz, err := r.GetBusiness(ctx, businessID)
	if err != nil {
		return err
	}
	if _, exists := FindEntry(biz, entry.ItemName); exists {
		return ErrDuplicateItem
	}
	biz.Items = append(biz.Items, entry)

	data, err := json.Marshal(biz.Items)
	if err != nil {
		return err
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("HSET", companyKeyPrefix+businessID, "item_list", string(data)); err != nil {
		return fmt.Errorf("save item for %s: %w", businessID, err)
	}
	log.Debug().Str("business_id", businessID).Str("item", entry.ItemName).Msg("catalog item saved")
	return nil
}

// ImportBusiness writes a full company hash.
func (r *RedisStore) ImportBusiness(ctx context.Context, businessID string, biz *models.Business) error {
	items, err := json.Marshal(biz.Items)
	if err != nil {
		return err
	}
	customers, err := json.Marshal(biz.Customers)
	if err != nil {
		return err
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	_, err = conn.Do("HSET", companyKeyPrefix+businessID,
		"business_name", biz.Info.Name,
		"business_address", biz.Info.Address,
		"business_contact", biz.Info.Contact,
		"item_list", string(items),
		"customer_list", string(customers),
	)
	if err != nil {
		return fmt.Errorf("import business %s: %w", businessID, err)
	}
	return nil
}

// Ping checks the backend.
func (r *RedisStore) Ping(ctx context.Context) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("PING")
	return err
}

// Close releases the pool.
func (r *RedisStore) Close() error {
	return r.pool.Close()
}
