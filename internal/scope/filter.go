package scope

import (
	"fmt"

	"github.com/hyperengineering/grmsync/internal/predicate"
	"github.com/hyperengineering/grmsync/internal/record"
	"github.com/hyperengineering/grmsync/internal/tables"
)

// BuildFilter returns the predicate restricting rows of t to the scope.
//
// A nil predicate means the table is unrestricted. This is the case for
// lookup tables and for any rule this function does not know, so a new
// sensitive table must get an explicit rule before it is registered.
//
// Tables flagged RequiresScope return ErrNoAccess when the scope holds no
// project. Other tables compile an empty scope into a predicate matching no
// rows.
func BuildFilter(t tables.Table, s Scope, userID string) (predicate.Predicate, error) {
	if t.RequiresScope && len(s.Projects) == 0 {
		return nil, fmt.Errorf("%s: %w", t.Wire, ErrNoAccess)
	}

	projects := predicate.In{Field: record.ProjectField, Values: s.Projects}

	switch t.Scope {
	case tables.ScopeNone:
		return nil, nil

	case tables.ScopeProjectRegion:
		// Direct assignment only, no descendant expansion.
		if s.AllRegions {
			return projects, nil
		}
		return predicate.AllOf(projects, predicate.In{Field: record.RegionField, Values: s.Regions}), nil

	case tables.ScopeRegion:
		if s.AllRegions {
			return projects, nil
		}
		return predicate.AllOf(predicate.In{Field: record.IDField, Values: s.Regions}, projects), nil

	case tables.ScopeProject:
		return predicate.In{Field: record.IDField, Values: s.Projects}, nil

	case tables.ScopeSelf:
		return predicate.Equals{Field: record.IDField, Value: userID}, nil

	case tables.ScopeProjectJoin:
		return predicate.JoinExists{
			Table:     t.Join.Table,
			JoinField: t.Join.JoinField,
			Field:     t.Join.Field,
			Values:    s.Projects,
		}, nil

	default:
		return nil, nil
	}
}

// Authorize checks that a record submitted by the scope's user may be
// written to t.
func Authorize(t tables.Table, s Scope, rec record.Record) error {
	id, _ := rec.ID()
	project := rec.String(record.ProjectField)

	var ok bool
	switch t.Scope {
	case tables.ScopeNone:
		ok = true
	case tables.ScopeProjectRegion:
		ok = s.HasProject(project) && s.HasRegion(rec.String(record.RegionField))
	case tables.ScopeRegion:
		ok = s.HasProject(project) && s.HasRegion(id)
	case tables.ScopeProject:
		ok = s.HasProject(id)
	case tables.ScopeSelf:
		ok = id != "" && id == s.UserID
	case tables.ScopeProjectJoin:
		// The project link lives outside the record and cannot be checked.
		ok = false
	}

	if !ok {
		return fmt.Errorf("%s %s: %w", t.Wire, id, ErrUnauthorized)
	}
	return nil
}
