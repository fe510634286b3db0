// Package store reads pipeline inputs from and writes pipeline outputs to a
// DuckDB database. Every write replaces its table.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/signalsfoundry/uct-pipeline/internal/logging"
	"github.com/signalsfoundry/uct-pipeline/model"
)

// ErrTableNotFound is returned when an input table does not exist.
var ErrTableNotFound = errors.New("table not found")

// Tables names the input and output tables.
type Tables struct {
	Observations string `yaml:"observations"`
	Conjunctions string `yaml:"conjunctions"`
	References   string `yaml:"references"`

	Final       string `yaml:"final"`
	Tracks      string `yaml:"tracks"`
	Events      string `yaml:"events"`
	Simulated   string `yaml:"simulated"`
	Downsampled string `yaml:"downsampled"`
	Regimes     string `yaml:"regimes"`
	Quality     string `yaml:"quality"`
}

// DefaultTables returns the conventional table names.
func DefaultTables() Tables {
	return Tables{
		Observations: "observations",
		Conjunctions: "conjunction",
		References:   "reference_tle",
		Final:        "observations_final",
		Tracks:       "tracks",
		Events:       "events",
		Simulated:    "observations_simulated",
		Downsampled:  "observations_downsampled",
		Regimes:      "satellite_regimes",
		Quality:      "observations_quality",
	}
}

func (t Tables) withDefaults() Tables {
	d := DefaultTables()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&t.Observations, d.Observations)
	fill(&t.Conjunctions, d.Conjunctions)
	fill(&t.References, d.References)
	fill(&t.Final, d.Final)
	fill(&t.Tracks, d.Tracks)
	fill(&t.Events, d.Events)
	fill(&t.Simulated, d.Simulated)
	fill(&t.Downsampled, d.Downsampled)
	fill(&t.Regimes, d.Regimes)
	fill(&t.Quality, d.Quality)
	return t
}

// Store is a single-writer batch sink over a DuckDB database.
type Store struct {
	db     *sql.DB
	tables Tables
	log    logging.Logger
}

// Open opens the DuckDB database at path. An empty path opens an in-memory
// database.
func Open(path string, tables Tables, log logging.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb %q: %w", path, err)
	}
	return New(db, tables, log), nil
}

// New wraps an existing database handle.
func New(db *sql.DB, tables Tables, log logging.Logger) *Store {
	return &Store{db: db, tables: tables.withDefaults(), log: logging.OrNoop(log)}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Tables returns the effective table names.
func (s *Store) Tables() Tables { return s.tables }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Columns returns the lower-cased column names of table. It returns
// ErrTableNotFound when the table does not exist.
func (s *Store) Columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns WHERE lower(table_name) = lower(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		cols[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}
	return cols, nil
}

// Require checks that table has every column in required. A missing table
// is ErrTableNotFound; missing columns are a *model.MissingDataError.
func (s *Store) Require(ctx context.Context, table string, required []string) (map[string]bool, error) {
	cols, err := s.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, c := range required {
		if !cols[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &model.MissingDataError{Table: table, Columns: missing}
	}
	return cols, nil
}

// project builds a select list of want, substituting NULL for any optional
// column absent from cols.
func project(cols map[string]bool, want []string) string {
	parts := make([]string, len(want))
	for i, c := range want {
		if cols[c] {
			parts[i] = quote(c)
		} else {
			parts[i] = "NULL AS " + quote(c)
		}
	}
	return strings.Join(parts, ", ")
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// replace drops and recreates table with ddl, then inserts n rows through a
// prepared statement inside one transaction.
func (s *Store) replace(ctx context.Context, table, ddl, insert string, n int, args func(i int) []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(table)); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quote(table), ddl)); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	if n > 0 {
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s %s", quote(table), insert))
		if err != nil {
			return fmt.Errorf("prepare insert into %s: %w", table, err)
		}
		defer stmt.Close()
		for i := 0; i < n; i++ {
			if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
				return fmt.Errorf("insert into %s row %d: %w", table, i, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", table, err)
	}
	s.log.Info(ctx, "table written", logging.String("table", table), logging.Int("rows", n))
	return nil
}
