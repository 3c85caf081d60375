package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/catalog"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/repository"
)

const (
	upsertUserSQL = `INSERT INTO users (id, email, first_name, last_name, phone, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    email = EXCLUDED.email,
    first_name = EXCLUDED.first_name,
    last_name = EXCLUDED.last_name,
    phone = EXCLUDED.phone,
    is_active = EXCLUDED.is_active,
    updated_at = now()`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, scopes, active)
VALUES ($1, $2, $3, $4, TRUE)
ON CONFLICT (id) DO UPDATE SET
    key_hash = EXCLUDED.key_hash,
    name = EXCLUDED.name,
    scopes = EXCLUDED.scopes,
    active = TRUE`
)

type demoUser struct {
	email     string
	firstName string
	lastName  string
	phone     string
	active    bool
}

var demoUsers = []demoUser{
	{email: "alice@example.com", firstName: "Alice", lastName: "Nguyen", phone: "+61 400 000 001", active: true},
	{email: "bob@example.com", firstName: "Bob", lastName: "Okafor", phone: "+44 20 7946 0000", active: true},
	{email: "inactive@example.com", firstName: "Ivy", lastName: "Park", active: false},
}

// seedID derives a stable id so reruns update rows instead of duplicating them.
func seedID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("storefront-seed:"+name))
}

type options struct {
	databaseURL  string
	catalogFile  string
	apiKey       string
	apiKeyPepper string
	jwtSecret    string
	tokenTTL     time.Duration
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.catalogFile, "catalog-file", "db/seed/catalog.jsonl", "path to catalog feed (.jsonl or .jsonl.gz)")
	flag.StringVar(&opts.apiKey, "api-key", "", "admin API key to seed (or STOREFRONT_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STOREFRONT_API_KEY_PEPPER env)")
	flag.StringVar(&opts.jwtSecret, "jwt-secret", "", "secret used to print demo tokens (or STOREFRONT_JWT_SECRET env)")
	flag.DurationVar(&opts.tokenTTL, "token-ttl", 24*time.Hour, "lifetime of printed demo tokens")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("STOREFRONT_SEED_API_KEY")
	}
	if opts.apiKey == "" {
		slog.Error("API key is required: set --api-key or STOREFRONT_SEED_API_KEY")
		os.Exit(1)
	}
	if opts.apiKeyPepper == "" {
		opts.apiKeyPepper = os.Getenv("STOREFRONT_API_KEY_PEPPER")
	}
	if opts.jwtSecret == "" {
		opts.jwtSecret = os.Getenv("STOREFRONT_JWT_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	writer := repository.NewCatalogRepository(pool, repository.NewTxManager(pool, repository.DefaultTxConfig))
	if err := seedCatalog(ctx, writer, opts.catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if err := seedUsers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed users")
	}

	if err := seedAPIKey(ctx, pool, opts.apiKey, opts.apiKeyPepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	if opts.jwtSecret != "" {
		if err := printTokens(opts.jwtSecret, opts.tokenTTL); err != nil {
			return errors.Wrap(err, "issue demo tokens")
		}
	}

	return nil
}

func seedCatalog(ctx context.Context, writer product.CatalogWriter, path string) error {
	slog.Info("reading catalog file", slog.String("path", path))

	rc, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	var records []product.ImportRecord
	stats, err := catalog.NewDecoder().Scan(ctx, rc,
		func(rec product.ImportRecord) error {
			records = append(records, rec)
			return nil
		},
		func(line int, err error) {
			slog.Warn("skipping invalid catalog line", slog.Int("line", line), slog.String("error", err.Error()))
		},
	)
	if err != nil {
		return errors.Wrap(err, "read catalog")
	}

	if err := writer.Upsert(ctx, records); err != nil {
		return errors.Wrap(err, "upsert catalog")
	}

	slog.Info("upserted products", slog.Int("count", stats.Records), slog.Int("invalid_lines", stats.Invalid))
	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	for _, u := range demoUsers {
		id := seedID(u.email)
		if _, err := pool.Exec(ctx, upsertUserSQL, id, u.email, u.firstName, u.lastName, u.phone, u.active); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.email)
		}

		slog.Info("upserted user",
			slog.String("id", id.String()),
			slog.String("email", u.email),
			slog.Bool("active", u.active),
		)
	}
	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	id := seedID("admin-api-key")
	keyHash := auth.HashKey([]byte(pepper), apiKey)
	if _, err := pool.Exec(ctx, upsertAPIKeySQL, id, keyHash, "Default admin key", []string{auth.ScopeAdmin}); err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}

	slog.Info("upserted API key", slog.String("id", id.String()), slog.String("name", "Default admin key"))
	return nil
}

func printTokens(secret string, ttl time.Duration) error {
	now := time.Now()
	for _, u := range demoUsers {
		if !u.active {
			continue
		}
		token, err := handler.IssueToken([]byte(secret), seedID(u.email), ttl, now)
		if err != nil {
			return err
		}
		slog.Info("demo token", slog.String("email", u.email), slog.String("token", token))
	}
	return nil
}
