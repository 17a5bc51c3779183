package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"retailetl/internal/domain"
)

// ── Relational Sink ─────────────────────────────────────────
// Writes cleaned record sets into staging tables, one table per
// dataset, rebuilt from scratch on every run.

// Supported relational drivers. The names double as database/sql
// driver names.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Relational is a staging-table writer over a SQL database.
type Relational struct {
	db     *sql.DB
	driver string
}

// OpenRelational connects to the configured SQL database and
// verifies the connection with a ping.
func OpenRelational(ctx context.Context, cfg RelationalConfig) (*Relational, error) {
	var dsn string
	switch cfg.Driver {
	case DriverPostgres:
		dsn = postgresDSN(cfg)
	case DriverMySQL:
		dsn = mysqlDSN(cfg)
	default:
		return nil, &ConnectionError{Sink: cfg.Driver, Err: fmt.Errorf("unsupported relational driver: %q", cfg.Driver)}
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, &ConnectionError{Sink: cfg.Driver, Err: fmt.Errorf("open: %w", err)}
	}
	// Small pool; the batch writes serially.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &ConnectionError{Sink: cfg.Driver, Err: err}
	}

	r := &Relational{db: db, driver: cfg.Driver}
	log.Printf("[%s] connected to %s/%s", r.tag(), cfg.Host, cfg.Database)
	return r, nil
}

// Replace rebuilds the staging table from the record set: drop,
// create from the inferred field types, insert every record.
// Failures come back as *WriteError.
func (r *Relational) Replace(ctx context.Context, table string, rs *domain.RecordSet) error {
	if err := r.replace(ctx, table, rs); err != nil {
		return &WriteError{Sink: r.driver, Target: table, Err: err}
	}
	log.Printf("[%s] replaced %s (%d rows)", r.tag(), table, rs.Len())
	return nil
}

func (r *Relational) replace(ctx context.Context, table string, rs *domain.RecordSet) error {
	// MySQL autocommits DDL; the insert batch still runs atomically after it.
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, dropStmt(r.driver, table)); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createStmt(r.driver, table, rs)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	if rs.Len() > 0 {
		names := rs.FieldNames()
		stmt, err := tx.PrepareContext(ctx, insertStmt(r.driver, table, names))
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		args := make([]any, len(names))
		for i, rec := range rs.Records {
			for j, name := range names {
				args[j] = rec[name]
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("insert row %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Relational) Close() error { return r.db.Close() }

func (r *Relational) tag() string { return strings.ToUpper(r.driver) }

// ── Statement builders ──────────────────────────────────────

func dropStmt(driver, table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(driver, table))
}

func createStmt(driver, table string, rs *domain.RecordSet) string {
	cols := make([]string, len(rs.Fields))
	for i, f := range rs.Fields {
		cols[i] = fmt.Sprintf("%s %s", quoteIdent(driver, f.Name), sqlType(f, rs.Records))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(driver, table), strings.Join(cols, ", "))
}

func insertStmt(driver, table string, names []string) string {
	cols := make([]string, len(names))
	ph := make([]string, len(names))
	for i, name := range names {
		cols[i] = quoteIdent(driver, name)
		if driver == DriverMySQL {
			ph[i] = "?"
		} else {
			ph[i] = fmt.Sprintf("$%d", i+1)
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(driver, table), strings.Join(cols, ", "), strings.Join(ph, ", "))
}

func quoteIdent(driver, ident string) string {
	if driver == DriverMySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return pq.QuoteIdentifier(ident)
}

// sqlType maps an inferred column to a type shared by Postgres and
// MySQL. A number column whose values are all whole numbers becomes
// BIGINT; anything fractional stays DOUBLE PRECISION.
func sqlType(f domain.Field, records []domain.Record) string {
	switch f.Type {
	case domain.FieldNumber:
		if integralColumn(f.Name, records) {
			return "BIGINT"
		}
		return "DOUBLE PRECISION"
	case domain.FieldBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func integralColumn(name string, records []domain.Record) bool {
	for _, rec := range records {
		switch v := rec[name].(type) {
		case nil:
		case int, int64:
		case float64:
			// Values beyond the exact float64 integer range stay floats.
			if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// ── DSN builders ────────────────────────────────────────────

func postgresDSN(cfg RelationalConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port, cfg.User, cfg.Password, cfg.Database, sslMode,
	)
}

func mysqlDSN(cfg RelationalConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database,
	)
}
