package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/tailor-orders/internal/domain/customer"
)

const (
	bloomFPR      = 0.001
	progressEvery = 100_000
)

type importConfig struct {
	expectedRows uint
	workers      int
}

type upserter interface {
	Upsert(ctx context.Context, c customer.Customer) (*customer.Customer, error)
}

type importStats struct {
	rows       int64
	written    int64
	duplicates int64
	invalid    int64
}

type record struct {
	customer.Customer
	valid bool
}

// importFiles runs three passes:
//  1. per file, concurrently: build a bloom filter of phones and note phones
//     that may repeat inside the file;
//  2. per file, concurrently: note phones that may also appear in another file;
//  3. files in order: upsert rows, checking only the noted phones exactly.
//
// Only possible repeats are held in memory, never the full phone set.
func importFiles(ctx context.Context, files []string, repo upserter, cfg importConfig) (importStats, error) {
	if cfg.expectedRows == 0 {
		cfg.expectedRows = 1_000_000
	}
	if cfg.workers <= 0 {
		cfg.workers = 1
	}

	filters := make([]*bloom.BloomFilter, len(files))
	candidates := make([]map[string]struct{}, len(files))

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			f := bloom.NewWithEstimates(cfg.expectedRows, bloomFPR)
			seen := make(map[string]struct{})
			err := streamFile(gctx, path, func(r record) {
				if !r.valid {
					return
				}
				if f.TestAndAddString(r.Phone) {
					seen[r.Phone] = struct{}{}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "pass 1 %s", path)
			}
			filters[i], candidates[i] = f, seen
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return importStats{}, err
	}

	slog.Info("pass 2: finding phones shared between files")
	g, gctx = errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			err := streamFile(gctx, path, func(r record) {
				if !r.valid {
					return
				}
				for j, f := range filters {
					if j != i && f.TestString(r.Phone) {
						candidates[i][r.Phone] = struct{}{}
						return
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "pass 2 %s", path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return importStats{}, err
	}

	shared := make(map[string]bool)
	for _, c := range candidates {
		for phone := range c {
			shared[phone] = false
		}
	}
	slog.Info("possible repeats", slog.Int("phones", len(shared)))

	return writeRows(ctx, files, repo, cfg.workers, shared)
}

// writeRows streams files in order and upserts the first row of every phone.
// shared holds phones that may repeat; its value records whether the phone
// was already written.
func writeRows(ctx context.Context, files []string, repo upserter, workers int, shared map[string]bool) (importStats, error) {
	var (
		stats   importStats
		written atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, path := range files {
		slog.Info("pass 3: writing", slog.String("file", path))
		err := streamFile(gctx, path, func(r record) {
			stats.rows++
			if stats.rows%progressEvery == 0 {
				slog.Info("write progress", slog.Int64("rows", stats.rows))
			}
			if !r.valid {
				stats.invalid++
				return
			}
			if done, ok := shared[r.Phone]; ok {
				if done {
					stats.duplicates++
					return
				}
				shared[r.Phone] = true
			}
			c := r.Customer
			g.Go(func() error {
				if _, err := repo.Upsert(gctx, c); err != nil {
					return errors.Wrapf(err, "upsert %s", c.Phone)
				}
				written.Add(1)
				return nil
			})
		})
		if err != nil {
			_ = g.Wait()
			return stats, errors.Wrapf(err, "pass 3 %s", path)
		}
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	stats.written = written.Load()
	return stats, nil
}

// streamFile decodes a gzip'd CSV file and calls fn for every data row. A
// leading header row starting with "phone" is skipped.
func streamFile(ctx context.Context, path string, fn func(record)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	r.TrimLeadingSpace = true

	for line := 0; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if line == 0 && len(fields) > 0 && strings.EqualFold(strings.TrimSpace(fields[0]), "phone") {
			continue
		}
		fn(parseRecord(fields))
	}
}

func parseRecord(fields []string) record {
	field := func(i int) string {
		if i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}
	rec := record{Customer: customer.Customer{Phone: field(0), Name: field(1), Address: field(2)}}
	rec.valid = customer.ValidPhone(rec.Phone) && rec.Name != ""
	return rec
}
