package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/cache"
	"github.com/xenking/storefront/internal/catalog"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/repository"
)

const progressEvery = 10_000

type options struct {
	dataDir     string
	pattern     string
	databaseURL string
	redisAddr   string
	batchSize   int
	concurrency int
}

func main() {
	var opts options

	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing catalog feed files")
	flag.StringVar(&opts.pattern, "pattern", "*.jsonl.gz", "glob of feed files inside data-dir")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.redisAddr, "redis-addr", "", "Redis address whose featured cache is invalidated (or REDIS_ADDR env)")
	flag.IntVar(&opts.batchSize, "batch-size", 500, "products per upsert transaction")
	flag.IntVar(&opts.concurrency, "concurrency", 4, "files imported in parallel")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.redisAddr == "" {
		opts.redisAddr = os.Getenv("REDIS_ADDR")
	}
	if opts.batchSize <= 0 || opts.concurrency <= 0 {
		slog.Error("batch-size and concurrency must be positive")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, opts options) error {
	files, err := filepath.Glob(filepath.Join(opts.dataDir, opts.pattern))
	if err != nil {
		return errors.Wrap(err, "match feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s in %s", opts.pattern, opts.dataDir)
	}
	sort.Strings(files)

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	writer := repository.NewCatalogRepository(pool, repository.NewTxManager(pool, repository.DefaultTxConfig))

	slog.Info("importing feeds", slog.Int("files", len(files)), slog.Int("concurrency", opts.concurrency))

	var imported, invalid atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for _, f := range files {
		g.Go(func() error {
			stats, err := importFile(gctx, writer, f, opts.batchSize)
			if err != nil {
				return errors.Wrapf(err, "import %s", f)
			}
			imported.Add(int64(stats.Records))
			invalid.Add(int64(stats.Invalid))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("feeds imported",
		slog.Int64("products", imported.Load()),
		slog.Int64("invalid_lines", invalid.Load()),
	)

	if opts.redisAddr != "" {
		if err := invalidateFeatured(ctx, opts.redisAddr); err != nil {
			return errors.Wrap(err, "invalidate featured cache")
		}
	}
	return nil
}

// importFile streams one feed and upserts it in batches.
func importFile(ctx context.Context, writer product.CatalogWriter, path string, batchSize int) (catalog.Stats, error) {
	rc, err := catalog.Open(path)
	if err != nil {
		return catalog.Stats{}, err
	}
	defer func() { _ = rc.Close() }()

	batch := make([]product.ImportRecord, 0, batchSize)
	written := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := writer.Upsert(ctx, batch); err != nil {
			return err
		}
		prev := written
		written += len(batch)
		batch = batch[:0]
		if written/progressEvery != prev/progressEvery {
			slog.Info("import progress", slog.String("file", path), slog.Int("products", written))
		}
		return nil
	}

	stats, err := catalog.NewDecoder().Scan(ctx, rc,
		func(rec product.ImportRecord) error {
			batch = append(batch, rec)
			if len(batch) < batchSize {
				return nil
			}
			return flush()
		},
		func(line int, err error) {
			slog.Warn("skipping invalid line",
				slog.String("file", path),
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
		},
	)
	if err != nil {
		return stats, err
	}
	if err := flush(); err != nil {
		return stats, err
	}

	slog.Info("file complete",
		slog.String("file", path),
		slog.Int("products", stats.Records),
		slog.Int("invalid_lines", stats.Invalid),
	)
	return stats, nil
}

func invalidateFeatured(ctx context.Context, addr string) error {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = rdb.Close() }()

	if err := cache.NewFeaturedProducts(rdb, 0).Invalidate(ctx); err != nil {
		return err
	}
	slog.Info("featured cache invalidated", slog.String("redis", addr))
	return nil
}
