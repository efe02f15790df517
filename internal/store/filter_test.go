package store

import (
	"errors"
	"testing"
	"time"

	"github.com/hyperengineering/grmsync/internal/predicate"
	"github.com/hyperengineering/grmsync/internal/record"
)

func TestCompileFilter(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filter    predicate.Predicate
		wantJoins string
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "nil",
			wantWhere: "1 = 1",
		},
		{
			name:      "empty in",
			filter:    predicate.In{Field: record.ProjectField},
			wantWhere: "1 = 0",
		},
		{
			name:      "id equals",
			filter:    predicate.Equals{Field: record.IDField, Value: "u1"},
			wantWhere: "t.id = ?",
			wantArgs:  []any{"u1"},
		},
		{
			name: "scope and time",
			filter: predicate.And{Predicates: []predicate.Predicate{
				predicate.In{Field: record.ProjectField, Values: []string{"P1", "P2"}},
				predicate.Compare{Field: record.UpdatedAtField, Op: predicate.GT, Value: since},
			}},
			wantWhere: "(t.project IN (?, ?) AND t.updated_at > ?)",
			wantArgs:  []any{"P1", "P2", since.UnixMicro()},
		},
		{
			name: "join args precede where args",
			filter: predicate.And{Predicates: []predicate.Predicate{
				predicate.Compare{Field: record.CreatedAtField, Op: predicate.GT, Value: since},
				predicate.JoinExists{Table: "issue_category_project", JoinField: "issue_category_id", Field: "project_id", Values: []string{"P1"}},
			}},
			wantJoins: " INNER JOIN issue_category_project j1 ON j1.issue_category_id = t.id AND j1.project_id IN (?)",
			wantWhere: "(t.created_at > ? AND 1 = 1)",
			wantArgs:  []any{"P1", since.UnixMicro()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := compileFilter(tt.filter)
			if err != nil {
				t.Fatalf("compileFilter: %v", err)
			}
			if f.joins != tt.wantJoins {
				t.Errorf("joins = %q, want %q", f.joins, tt.wantJoins)
			}
			if f.where != tt.wantWhere {
				t.Errorf("where = %q, want %q", f.where, tt.wantWhere)
			}
			if len(f.args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", f.args, tt.wantArgs)
			}
			for i := range f.args {
				if f.args[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %v, want %v", i, f.args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestCompileFilter_RejectsBadJoinIdentifier(t *testing.T) {
	_, err := compileFilter(predicate.JoinExists{
		Table:     "assoc; DROP TABLE issue",
		JoinField: "entity_id",
		Field:     "project_id",
		Values:    []string{"P1"},
	})
	if !errors.Is(err, predicate.ErrInvalid) {
		t.Errorf("err = %v, want predicate.ErrInvalid", err)
	}
}
