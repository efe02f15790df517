package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hyperengineering/grmsync/internal/clock"
	"github.com/hyperengineering/grmsync/internal/predicate"
	"github.com/hyperengineering/grmsync/internal/record"
)

func newSQLMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock, *clock.Stub) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	clk := clock.NewStub(testEpoch)
	return newSQLStore(db, Postgres, WithClock(clk)), mock, clk
}

var entityRowColumns = []string{"id", "project", "administrative_region", "body", "created_at", "updated_at"}

func TestPostgres_Query_RebindsPlaceholders(t *testing.T) {
	s, mock, _ := newSQLMockStore(t)
	since := testEpoch.Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT t.id, t.project, t.administrative_region, t.body, t.created_at, t.updated_at FROM issue t"+
			" WHERE t.deleted_at IS NULL AND (t.project IN ($1, $2) AND t.created_at > $3)"+
			" ORDER BY t.created_at, t.id")).
		WithArgs("P1", "P2", since.UnixMicro()).
		WillReturnRows(sqlmock.NewRows(entityRowColumns).
			AddRow("i1", "P1", "R1", `{"title":"Leak"}`, testEpoch.UnixMicro(), testEpoch.UnixMicro()))

	got, err := s.Query(context.Background(), "issue", predicate.And{Predicates: []predicate.Predicate{
		predicate.In{Field: record.ProjectField, Values: []string{"P1", "P2"}},
		predicate.Compare{Field: record.CreatedAtField, Op: predicate.GT, Value: since},
	}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0]["title"] != "Leak" || got[0].String(record.RegionField) != "R1" {
		t.Errorf("rows = %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgres_Query_JoinExists(t *testing.T) {
	s, mock, _ := newSQLMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM issue_category t INNER JOIN issue_category_project j1 ON j1.issue_category_id = t.id AND j1.project_id IN ($1)" +
			" WHERE t.deleted_at IS NULL AND 1 = 1 ORDER BY")).
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows(entityRowColumns))

	_, err := s.Query(context.Background(), "issue_category", predicate.JoinExists{
		Table:     "issue_category_project",
		JoinField: "issue_category_id",
		Field:     "project_id",
		Values:    []string{"P1"},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgres_SoftDelete_WritesTombstoneInTransaction(t *testing.T) {
	s, mock, clk := newSQLMockStore(t)
	now := clk.Now().UnixMicro()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE issue SET deleted_at = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL")).
		WithArgs(now, now, "i1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO tombstone (id, table_name, entity_id, deleted_at) VALUES ($1, $2, $3, $4)")).
		WithArgs(sqlmock.AnyArg(), "issue", "i1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.SoftDelete(context.Background(), "issue", "i1"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgres_SoftDelete_MissingRowRollsBack(t *testing.T) {
	s, mock, _ := newSQLMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE issue SET deleted_at")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.SoftDelete(context.Background(), "issue", "gone")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgres_WithTx_RollsBackOnError(t *testing.T) {
	s, mock, _ := newSQLMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM issue WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs("i1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(ctx context.Context, tx EntityStore) error {
		if ok, err := tx.Exists(ctx, "issue", "i1"); err != nil || ok {
			t.Errorf("Exists = %v, %v", ok, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgres_UserRoles(t *testing.T) {
	s, mock, _ := newSQLMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM user_role WHERE user_id = $1 ORDER BY role")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))

	roles, err := s.UserRoles(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UserRoles: %v", err)
	}
	if !equalStrings(roles, []string{"admin"}) {
		t.Errorf("roles = %v", roles)
	}
}
