package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/factura/internal/config"
	"github.com/thebtf/factura/pkg/models"
)

// seedBusiness is the YAML shape of one business in a seed file.
type seedBusiness struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Contact string `yaml:"contact"`
	Items   []struct {
		Name      string  `yaml:"name"`
		UnitPrice float64 `yaml:"unit_price"`
		TaxRate   float64 `yaml:"tax_rate"`
	} `yaml:"items"`
	Customers []struct {
		Name    string `yaml:"name"`
		Address string `yaml:"address"`
		Contact string `yaml:"contact"`
	} `yaml:"customers"`
}

// Open creates the Store selected by the configuration.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "redis":
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Seed loads a YAML seed file and imports every business it defines.
func Seed(ctx context.Context, store Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var file struct {
		Businesses []seedBusiness `yaml:"businesses"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	for _, sb := range file.Businesses {
		if sb.ID == "" {
			return 0, fmt.Errorf("seed file %s: business %q has no id", path, sb.Name)
		}
		biz := &models.Business{
			Info: models.BusinessInfo{Name: sb.Name, Address: sb.Address, Contact: sb.Contact},
		}
		for _, it := range sb.Items {
			biz.Items = append(biz.Items, models.CatalogEntry{
				ItemName:       it.Name,
				UnitPrice:      it.UnitPrice,
				TaxRatePercent: it.TaxRate,
			})
		}
		for _, c := range sb.Customers {
			biz.Customers = append(biz.Customers, models.Customer{
				Name:    c.Name,
				Address: c.Address,
				Contact: c.Contact,
			})
		}
		if err := store.ImportBusiness(ctx, sb.ID, biz); err != nil {
			return 0, fmt.Errorf("import business %s: %w", sb.ID, err)
		}
		log.Info().
			Str("business_id", sb.ID).
			Int("items", len(biz.Items)).
			Int("customers", len(biz.Customers)).
			Msg("business imported")
	}
	return len(file.Businesses), nil
}
