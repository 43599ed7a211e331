package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promotion"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/internal/storage/postgres"
)

func main() {
	var (
		databaseURL    string
		catalogFile    string
		promotionsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file, optionally gzipped")
	flag.StringVar(&promotionsFile, "promotions-file", "db/seed/promotions.csv", "path to promotions CSV file; empty seeds the built-in codes")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, promotionsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

type seed struct {
	products    []product.Product
	collections []product.Collection
	promotions  []promotion.Promotion
}

// load parses both seed files concurrently while the database connects.
func load(g *errgroup.Group, catalogFile, promotionsFile string) *seed {
	s := &seed{}
	g.Go(func() error {
		slog.Info("reading catalog file", slog.String("path", catalogFile))
		var err error
		s.products, s.collections, err = memory.LoadCatalogFile(catalogFile)
		if err != nil {
			return errors.Wrap(err, "load catalog")
		}
		// Reject duplicate ids and slugs before touching the database.
		if _, err := memory.NewCatalog(s.products, s.collections); err != nil {
			return errors.Wrap(err, "index catalog")
		}
		return nil
	})
	g.Go(func() error {
		if promotionsFile == "" {
			s.promotions = promotion.Defaults()
			return nil
		}
		slog.Info("reading promotions file", slog.String("path", promotionsFile))
		t, err := promotion.LoadFile(promotionsFile)
		if err != nil {
			return errors.Wrap(err, "load promotions")
		}
		s.promotions = t.All()
		return nil
	})
	return s
}

func run(ctx context.Context, databaseURL, catalogFile, promotionsFile string) error {
	var g errgroup.Group
	s := load(&g, catalogFile, promotionsFile)

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("upserting catalog",
		slog.Int("products", len(s.products)),
		slog.Int("collections", len(s.collections)),
	)
	if err := postgres.NewCatalogRepository(pool).Seed(ctx, s.products, s.collections); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	slog.Info("upserting promotions", slog.Int("count", len(s.promotions)))
	if err := postgres.NewPromotionRepository(pool).Upsert(ctx, s.promotions); err != nil {
		return errors.Wrap(err, "seed promotions")
	}
	for _, p := range s.promotions {
		slog.Info("upserted promotion", slog.String("code", p.Code), slog.String("description", p.Description))
	}

	return nil
}
