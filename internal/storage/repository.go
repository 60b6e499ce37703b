package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"cuipo/internal/catalog"
	"cuipo/internal/core"
	"cuipo/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists the reference catalog. It stores only reference
// tables, never fetched upstream data.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

var _ catalog.Source = (*SQLiteRepository)(nil)

// ErrEmptyCatalog is returned by Load when nothing was imported yet.
var ErrEmptyCatalog = errors.New("catalog store is empty")

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger = log.OrDiscard(logger).WithComponent(log.ComponentCatalog)
	logger.Debug("Catalog store ready", "path", dbPath, "schema_version", version)
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements catalog.Source.
func (r *SQLiteRepository) Load(ctx context.Context) (catalog.Tables, error) {
	entities, err := r.queries.ListEntities(ctx)
	if err != nil {
		return catalog.Tables{}, fmt.Errorf("list entities: %w", err)
	}
	periods, err := r.queries.ListPeriods(ctx)
	if err != nil {
		return catalog.Tables{}, fmt.Errorf("list periods: %w", err)
	}
	accounts, err := r.queries.ListAccounts(ctx)
	if err != nil {
		return catalog.Tables{}, fmt.Errorf("list accounts: %w", err)
	}
	index, err := r.queries.ListPriceIndex(ctx)
	if err != nil {
		return catalog.Tables{}, fmt.Errorf("list price index: %w", err)
	}
	if len(entities) == 0 && len(periods) == 0 {
		return catalog.Tables{}, ErrEmptyCatalog
	}

	var t catalog.Tables
	for _, e := range entities {
		pop := core.Missing
		if e.Population.Valid {
			pop = core.Some(e.Population.Float64)
		}
		t.Entities = append(t.Entities, core.Entity{
			Code: e.Code, Name: e.Name, Department: e.Department,
			Population: pop, Category: e.Category, Level: core.Level(e.Level),
		})
	}
	for _, p := range periods {
		t.Periods = append(t.Periods, core.Period{Code: p.Code, Label: p.Label})
	}
	for _, a := range accounts {
		t.Accounts = append(t.Accounts, core.Account{Code: a.Code, Name: a.Name})
	}
	if len(index) > 0 {
		t.PriceIndex = make(map[int]float64, len(index))
		for _, i := range index {
			t.PriceIndex[int(i.Year)] = i.Value
		}
	}
	return t, nil
}

// Save validates t and replaces the stored catalog with it in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, source string, t catalog.Tables) error {
	if _, err := catalog.New(t); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.ClearCatalog(ctx); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	for i, e := range t.Entities {
		pop := sql.NullFloat64{}
		if v, ok := e.Population.Get(); ok {
			pop = sql.NullFloat64{Float64: v, Valid: true}
		}
		if err := q.InsertEntity(ctx, EntityRow{
			Code: e.Code, Name: e.Name, Department: e.Department, Population: pop,
			Category: e.Category, Level: string(e.Level), Position: int64(i),
		}); err != nil {
			return fmt.Errorf("insert entity %s: %w", e.Code, err)
		}
	}
	for i, p := range t.Periods {
		if err := q.InsertPeriod(ctx, PeriodRow{Code: p.Code, Label: p.Label, Position: int64(i)}); err != nil {
			return fmt.Errorf("insert period %s: %w", p.Code, err)
		}
	}
	for i, a := range t.Accounts {
		if err := q.InsertAccount(ctx, AccountRow{Position: int64(i), Code: a.Code, Name: a.Name}); err != nil {
			return fmt.Errorf("insert account %s: %w", a.Code, err)
		}
	}
	years := make([]int, 0, len(t.PriceIndex))
	for y := range t.PriceIndex {
		years = append(years, y)
	}
	sort.Ints(years)
	for _, y := range years {
		if err := q.UpsertPriceIndex(ctx, PriceIndexRow{Year: int64(y), Value: t.PriceIndex[y]}); err != nil {
			return fmt.Errorf("upsert price index %d: %w", y, err)
		}
	}
	imp, err := q.RecordImport(ctx, ImportRow{
		Source:   source,
		Entities: int64(len(t.Entities)),
		Periods:  int64(len(t.Periods)),
		Accounts: int64(len(t.Accounts)),
	})
	if err != nil {
		return fmt.Errorf("record import: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.InfoContext(ctx, "Catalog saved to SQLite",
		log.FieldOperation, log.OpImport,
		"import_id", imp.ID,
		"source", source,
		log.FieldCount, len(t.Entities))
	return nil
}

// LastImport describes the most recent Save.
type LastImport struct {
	Source     string
	Entities   int
	ImportedAt time.Time
}

// LatestImport returns the most recent import, or ErrEmptyCatalog.
func (r *SQLiteRepository) LatestImport(ctx context.Context) (LastImport, error) {
	row, err := r.queries.LatestImport(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return LastImport{}, ErrEmptyCatalog
	}
	if err != nil {
		return LastImport{}, fmt.Errorf("latest import: %w", err)
	}
	return LastImport{Source: row.Source, Entities: int(row.Entities), ImportedAt: parseTimestamp(row.ImportedAt)}, nil
}

// parseTimestamp accepts both SQLite's CURRENT_TIMESTAMP text and the RFC 3339
// form the driver produces for DATETIME columns.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
