package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type EntityRow struct {
	Code       string
	Name       string
	Department string
	Population sql.NullFloat64
	Category   string
	Level      string
	Position   int64
}

type PeriodRow struct {
	Code     string
	Label    string
	Position int64
}

type AccountRow struct {
	Position int64
	Code     string
	Name     string
}

type PriceIndexRow struct {
	Year  int64
	Value float64
}

type ImportRow struct {
	ID         int64
	Source     string
	Entities   int64
	Periods    int64
	Accounts   int64
	ImportedAt string
}

var clearCatalog = []string{
	`DELETE FROM entities`,
	`DELETE FROM periods`,
	`DELETE FROM accounts`,
	`DELETE FROM price_index`,
}

func (q *Queries) ClearCatalog(ctx context.Context) error {
	for _, stmt := range clearCatalog {
		if _, err := q.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const insertEntity = `INSERT INTO entities (code, name, department, population, category, level, position)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertEntity(ctx context.Context, arg EntityRow) error {
	_, err := q.db.ExecContext(ctx, insertEntity,
		arg.Code, arg.Name, arg.Department, arg.Population, arg.Category, arg.Level, arg.Position)
	return err
}

const listEntities = `SELECT code, name, department, population, category, level, position
FROM entities ORDER BY position`

func (q *Queries) ListEntities(ctx context.Context) ([]EntityRow, error) {
	rows, err := q.db.QueryContext(ctx, listEntities)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EntityRow
	for rows.Next() {
		var i EntityRow
		if err := rows.Scan(&i.Code, &i.Name, &i.Department, &i.Population, &i.Category, &i.Level, &i.Position); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertPeriod = `INSERT INTO periods (code, label, position) VALUES (?, ?, ?)`

func (q *Queries) InsertPeriod(ctx context.Context, arg PeriodRow) error {
	_, err := q.db.ExecContext(ctx, insertPeriod, arg.Code, arg.Label, arg.Position)
	return err
}

const listPeriods = `SELECT code, label, position FROM periods ORDER BY position`

func (q *Queries) ListPeriods(ctx context.Context) ([]PeriodRow, error) {
	rows, err := q.db.QueryContext(ctx, listPeriods)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PeriodRow
	for rows.Next() {
		var i PeriodRow
		if err := rows.Scan(&i.Code, &i.Label, &i.Position); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertAccount = `INSERT INTO accounts (position, code, name) VALUES (?, ?, ?)`

func (q *Queries) InsertAccount(ctx context.Context, arg AccountRow) error {
	_, err := q.db.ExecContext(ctx, insertAccount, arg.Position, arg.Code, arg.Name)
	return err
}

const listAccounts = `SELECT position, code, name FROM accounts ORDER BY position`

func (q *Queries) ListAccounts(ctx context.Context) ([]AccountRow, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccountRow
	for rows.Next() {
		var i AccountRow
		if err := rows.Scan(&i.Position, &i.Code, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertPriceIndex = `INSERT INTO price_index (year, value) VALUES (?, ?)
ON CONFLICT(year) DO UPDATE SET value = excluded.value`

func (q *Queries) UpsertPriceIndex(ctx context.Context, arg PriceIndexRow) error {
	_, err := q.db.ExecContext(ctx, upsertPriceIndex, arg.Year, arg.Value)
	return err
}

const listPriceIndex = `SELECT year, value FROM price_index ORDER BY year`

func (q *Queries) ListPriceIndex(ctx context.Context) ([]PriceIndexRow, error) {
	rows, err := q.db.QueryContext(ctx, listPriceIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PriceIndexRow
	for rows.Next() {
		var i PriceIndexRow
		if err := rows.Scan(&i.Year, &i.Value); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const recordImport = `INSERT INTO catalog_imports (source, entities, periods, accounts) VALUES (?, ?, ?, ?)
RETURNING id, source, entities, periods, accounts, imported_at`

func (q *Queries) RecordImport(ctx context.Context, arg ImportRow) (ImportRow, error) {
	row := q.db.QueryRowContext(ctx, recordImport, arg.Source, arg.Entities, arg.Periods, arg.Accounts)
	var i ImportRow
	err := row.Scan(&i.ID, &i.Source, &i.Entities, &i.Periods, &i.Accounts, &i.ImportedAt)
	return i, err
}

const latestImport = `SELECT id, source, entities, periods, accounts, imported_at
FROM catalog_imports ORDER BY id DESC LIMIT 1`

func (q *Queries) LatestImport(ctx context.Context) (ImportRow, error) {
	row := q.db.QueryRowContext(ctx, latestImport)
	var i ImportRow
	err := row.Scan(&i.ID, &i.Source, &i.Entities, &i.Periods, &i.Accounts, &i.ImportedAt)
	return i, err
}
