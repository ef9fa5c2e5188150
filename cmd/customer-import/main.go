// Command customer-import loads legacy customers from gzip-compressed CSV
// files (phone,name,address). Files are processed in name order and the first
// row seen for a phone wins, both within the import and against customers
// already stored.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/tailor-orders/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		cfg         importConfig
	)
	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&cfg.expectedRows, "expected-rows", 1_000_000, "expected rows per file, sizes the bloom filters")
	flag.IntVar(&cfg.workers, "workers", 8, "concurrent database writers")
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

	if err := run(ctx, dataDir, databaseURL, cfg); err != nil {
		slog.Error("customer import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("customer import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, cfg importConfig) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list input files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz files in %s", dataDir)
	}
	sort.Strings(files)

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	stats, err := importFiles(ctx, files, postgres.NewCustomerRepository(pool), cfg)
	if err != nil {
		return err
	}
	slog.Info("import summary",
		slog.Int("files", len(files)),
		slog.Int64("rows", stats.rows),
		slog.Int64("written", stats.written),
		slog.Int64("duplicates", stats.duplicates),
		slog.Int64("invalid", stats.invalid),
	)
	return nil
}
