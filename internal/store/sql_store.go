package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperengineering/grmsync/internal/clock"
	"github.com/hyperengineering/grmsync/internal/predicate"
	"github.com/hyperengineering/grmsync/internal/record"
	"github.com/oklog/ulid/v2"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements EntityStore and AuthorizationStore on database/sql.
// A SQLStore handed to a WithTx callback is bound to that transaction.
type SQLStore struct {
	db      *sql.DB
	conn    DBTX
	dialect Dialect
	clock   clock.Clock
	inTx    bool
}

// Option configures a SQLStore.
type Option func(*SQLStore)

// WithClock sets the time source used to stamp rows.
func WithClock(c clock.Clock) Option {
	return func(s *SQLStore) {
		if c != nil {
			s.clock = c
		}
	}
}

func newSQLStore(db *sql.DB, d Dialect, opts ...Option) *SQLStore {
	s := &SQLStore{
		db:      db,
		conn:    db,
		dialect: d,
		clock:   clock.Real{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// entityTables are the tables created by the entity migrations.
var entityTables = map[string]struct{}{
	"issue":                 {},
	"administrative_region": {},
	"project":               {},
	"user_account":          {},
	"issue_category":        {},
	"issue_type":            {},
	"issue_status":          {},
}

// EntityTables returns the sorted names of the entity tables the schema
// provides.
func EntityTables() []string {
	out := make([]string, 0, len(entityTables))
	for name := range entityTables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func checkTable(table string) error {
	if _, ok := entityTables[table]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	return nil
}

// Dialect returns the SQL dialect of the store.
func (s *SQLStore) Dialect() Dialect { return s.dialect }

// Close closes the database. Closing a transaction-bound store is a no-op.
func (s *SQLStore) Close() error {
	if s.inTx {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn inside one transaction, committing when fn returns nil and
// rolling back on error or panic. Panics are rethrown. Calls nested inside a
// transaction join it.
func (s *SQLStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx EntityStore) error) error {
	return s.withTx(ctx, func(ctx context.Context, tx *SQLStore) error {
		return fn(ctx, tx)
	})
}

func (s *SQLStore) withTx(ctx context.Context, fn func(ctx context.Context, tx *SQLStore) error) (err error) {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	txStore := &SQLStore{
		db:      s.db,
		conn:    tx,
		dialect: s.dialect,
		clock:   s.clock,
		inTx:    true,
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit transaction: %w", cerr)
		}
	}()

	return fn(ctx, txStore)
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.conn.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.conn.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

const entityColumns = "t.id, t.project, t.administrative_region, t.body, t.created_at, t.updated_at"

// Exists reports whether a live row with id exists.
func (s *SQLStore) Exists(ctx context.Context, table, id string) (bool, error) {
	if err := checkTable(table); err != nil {
		return false, err
	}

	var one int
	err := s.queryRow(ctx,
		"SELECT 1 FROM "+table+" WHERE id = ? AND deleted_at IS NULL", id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s %s: %w", table, id, err)
	}
	return true, nil
}

// Get returns the live row with id, or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, table, id string) (record.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	row := s.queryRow(ctx,
		"SELECT "+entityColumns+" FROM "+table+" t WHERE t.id = ? AND t.deleted_at IS NULL", id)
	rec, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", table, id, err)
	}
	return rec, nil
}

// Query returns live rows matching filter, ordered by creation time then id.
func (s *SQLStore) Query(ctx context.Context, table string, filter predicate.Predicate) ([]record.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if err := predicate.Validate(filter); err != nil {
		return nil, err
	}

	f, err := compileFilter(filter)
	if err != nil {
		return nil, err
	}

	q := "SELECT " + entityColumns + " FROM " + table + " t" + f.joins +
		" WHERE t.deleted_at IS NULL AND " + f.where +
		" ORDER BY t.created_at, t.id"

	rows, err := s.query(ctx, q, f.args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		rec, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

// Insert creates a row stamped with the store clock. A soft-deleted row with
// the same id is revived and its tombstones are dropped; a live row yields
// ErrAlreadyExists.
func (s *SQLStore) Insert(ctx context.Context, table string, rec record.Record) error {
	if err := checkTable(table); err != nil {
		return err
	}
	id, ok := rec.ID()
	if !ok {
		return ErrMissingID
	}

	project, region, body, err := splitRecord(rec)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", table, id, err)
	}
	now := toMicros(s.clock.Now())

	return s.withTx(ctx, func(ctx context.Context, tx *SQLStore) error {
		res, err := tx.exec(ctx, fmt.Sprintf(`INSERT INTO %[1]s (id, project, administrative_region, body, created_at, updated_at, deleted_at)
VALUES (?, ?, ?, ?, ?, ?, NULL)
ON CONFLICT (id) DO UPDATE SET
    project = excluded.project,
    administrative_region = excluded.administrative_region,
    body = excluded.body,
    created_at = excluded.created_at,
    updated_at = excluded.updated_at,
    deleted_at = NULL
WHERE %[1]s.deleted_at IS NOT NULL`, table),
			id, project, region, body, now, now)
		if err != nil {
			return fmt.Errorf("insert %s %s: %w", table, id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert %s %s: %w", table, id, err)
		}
		if n == 0 {
			return ErrAlreadyExists
		}

		if _, err := tx.exec(ctx,
			"DELETE FROM tombstone WHERE table_name = ? AND entity_id = ?", table, id); err != nil {
			return fmt.Errorf("clear tombstones %s %s: %w", table, id, err)
		}
		return nil
	})
}

// Update merges fields into the live row with id. The identifier and the
// store-managed timestamps in fields are ignored.
func (s *SQLStore) Update(ctx context.Context, table, id string, fields record.Record) error {
	existing, err := s.Get(ctx, table, id)
	if err != nil {
		return err
	}

	merged := existing.Clone()
	for k, v := range fields {
		switch k {
		case record.IDField, record.CreatedAtField, record.UpdatedAtField:
			continue
		}
		merged[k] = v
	}

	project, region, body, err := splitRecord(merged)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", table, id, err)
	}

	res, err := s.exec(ctx,
		"UPDATE "+table+" SET project = ?, administrative_region = ?, body = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		project, region, body, toMicros(s.clock.Now()), id)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", table, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks the live row with id deleted and writes a tombstone in
// the same transaction.
func (s *SQLStore) SoftDelete(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	now := toMicros(s.clock.Now())

	return s.withTx(ctx, func(ctx context.Context, tx *SQLStore) error {
		res, err := tx.exec(ctx,
			"UPDATE "+table+" SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
			now, now, id)
		if err != nil {
			return fmt.Errorf("delete %s %s: %w", table, id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete %s %s: %w", table, id, err)
		}
		if n == 0 {
			return ErrNotFound
		}

		if _, err := tx.exec(ctx,
			"INSERT INTO tombstone (id, table_name, entity_id, deleted_at) VALUES (?, ?, ?, ?)",
			ulid.Make().String(), table, id, now); err != nil {
			return fmt.Errorf("write tombstone %s %s: %w", table, id, err)
		}
		return nil
	})
}

// ListTombstones returns ids deleted from table strictly after since, oldest
// first. An id deleted more than once appears once per deletion.
func (s *SQLStore) ListTombstones(ctx context.Context, table string, since time.Time) ([]string, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	rows, err := s.query(ctx,
		"SELECT entity_id FROM tombstone WHERE table_name = ? AND deleted_at > ? ORDER BY deleted_at, entity_id",
		table, toMicros(since))
	if err != nil {
		return nil, fmt.Errorf("list tombstones %s: %w", table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tombstone: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// splitRecord separates the promoted filter columns from the JSON body.
// Non-string project or region values stay in the body and never match a
// column filter.
func splitRecord(rec record.Record) (project, region sql.NullString, body string, err error) {
	rest := make(map[string]any, len(rec))
	for k, v := range rec {
		switch k {
		case record.IDField, record.CreatedAtField, record.UpdatedAtField, "deleted_at":
			continue
		case record.ProjectField:
			if str, ok := v.(string); ok {
				project = sql.NullString{String: str, Valid: true}
				continue
			}
		case record.RegionField:
			if str, ok := v.(string); ok {
				region = sql.NullString{String: str, Valid: true}
				continue
			}
		}
		if v == nil && (k == record.ProjectField || k == record.RegionField) {
			continue
		}
		rest[k] = v
	}

	data, err := json.Marshal(rest)
	if err != nil {
		return project, region, "", err
	}
	return project, region, string(data), nil
}

// scanEntity scans a row selected with entityColumns into a Record.
func scanEntity(scanner interface{ Scan(...any) error }) (record.Record, error) {
	var (
		id                 string
		project, region    sql.NullString
		body               string
		createdAt, updated int64
	)
	if err := scanner.Scan(&id, &project, &region, &body, &createdAt, &updated); err != nil {
		return nil, err
	}

	rec, err := decodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("decode body of %s: %w", id, err)
	}
	rec[record.IDField] = id
	if project.Valid {
		rec[record.ProjectField] = project.String
	}
	if region.Valid {
		rec[record.RegionField] = region.String
	}
	rec[record.CreatedAtField] = fromMicros(createdAt)
	rec[record.UpdatedAtField] = fromMicros(updated)
	return rec, nil
}

// decodeBody parses the JSON body, keeping numbers as json.Number and
// turning stored date fields back into time values.
func decodeBody(body string) (record.Record, error) {
	rec := record.Record{}
	if body == "" {
		return rec, nil
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}

	for k, v := range rec {
		if !record.IsDateField(k) {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		rec[k] = t.UTC()
	}
	return rec, nil
}
