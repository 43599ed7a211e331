package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promotion"
	"github.com/xenking/storefront/internal/domain/shipping"
	"github.com/xenking/storefront/internal/storage"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/internal/storage/redis"
	"github.com/xenking/storefront/internal/storage/sqlite"
)

// resources are the backends selected by Config.
type resources struct {
	pool       *pgxpool.Pool
	catalog    product.Repository
	promotions *promotion.Table
	kv         storage.KV
	sink       order.Sink

	closers []func() error
}

func openResources(ctx context.Context, lg *zap.Logger, cfg *Config) (_ *resources, rerr error) {
	res := &resources{}
	defer func() {
		if rerr != nil {
			res.Close(lg)
		}
	}()

	if cfg.UsesPostgres() {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		res.pool = pool
		res.closers = append(res.closers, func() error {
			pool.Close()
			return nil
		})
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
	}

	var err error
	if res.catalog, err = res.openCatalog(ctx, cfg); err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	if res.promotions, err = res.loadPromotions(ctx, cfg); err != nil {
		return nil, errors.Wrap(err, "load promotions")
	}
	if res.kv, err = res.openStorage(ctx, cfg); err != nil {
		return nil, errors.Wrap(err, "open storage")
	}

	switch cfg.Orders.Sink {
	case "postgres":
		res.sink = postgres.NewOrderSink(res.pool)
	default:
		res.sink = order.NewLogSink(lg.Named("orders"))
	}

	lg.Info("Resources ready",
		zap.String("catalog", cfg.Catalog.Source),
		zap.String("promotions", cfg.Promotions.Source),
		zap.Int("promotion_codes", res.promotions.Len()),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("orders", cfg.Orders.Sink),
	)
	return res, nil
}

func (res *resources) openCatalog(ctx context.Context, cfg *Config) (product.Repository, error) {
	if cfg.Catalog.Source == "postgres" {
		repo := postgres.NewCatalogRepository(res.pool)
		// Fail fast on an empty or unreadable catalog table.
		if _, err := repo.List(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	}
	products, collections, err := memory.LoadCatalogFile(cfg.Catalog.File)
	if err != nil {
		return nil, err
	}
	return memory.NewCatalog(products, collections)
}

func (res *resources) loadPromotions(ctx context.Context, cfg *Config) (*promotion.Table, error) {
	switch cfg.Promotions.Source {
	case "file":
		return promotion.LoadFile(cfg.Promotions.File)
	case "postgres":
		return postgres.NewPromotionRepository(res.pool).Table(ctx)
	default:
		return promotion.DefaultTable(), nil
	}
}

func (res *resources) openStorage(ctx context.Context, cfg *Config) (storage.KV, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return postgres.NewKV(res.pool), nil
	case "redis":
		kv, err := redis.Dial(ctx, cfg.Storage.RedisURL, redis.Options{
			Prefix: cfg.Storage.RedisPrefix,
			TTL:    cfg.Storage.RedisTTL,
		})
		if err != nil {
			return nil, err
		}
		res.closers = append(res.closers, kv.Close)
		return kv, nil
	case "sqlite":
		kv, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		res.closers = append(res.closers, kv.Close)
		return kv, nil
	default:
		return memory.NewKV(), nil
	}
}

// cartConfig builds the per-session cart settings from Config.
func cartConfig(cfg *Config, promos promotion.Lookup, rates shipping.Lookup) (cart.Config, error) {
	rate, err := cfg.TaxRate()
	if err != nil {
		return cart.Config{}, err
	}
	return cart.Config{
		Promotions: promos,
		Rates:      rates,
		Inventory:  inventoryPolicy(cfg),
		TaxRate:    decimal.NewNullDecimal(rate),
	}, nil
}

// inventoryPolicy maps Cart.Inventory onto a cart policy.
func inventoryPolicy(cfg *Config) cart.InventoryPolicy {
	if cfg.Cart.Inventory == "counted" {
		return cart.CountedPolicy{Ceiling: cfg.Cart.MaxPerLine}
	}
	return cart.FixedCapPolicy{InStock: cfg.Cart.MaxPerLine}
}

// Close releases backends in reverse order of opening.
func (res *resources) Close(lg *zap.Logger) {
	for i := len(res.closers) - 1; i >= 0; i-- {
		if err := res.closers[i](); err != nil {
			lg.Warn("Close resource", zap.Error(err))
		}
	}
	res.closers = nil
}
