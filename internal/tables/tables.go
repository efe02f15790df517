// Package tables holds the registry of synchronized entity tables: the
// mapping between the name a client uses on the wire and the name of the
// table in the store, plus the visibility rule applied to each.
package tables

import (
	"errors"
	"fmt"
	"sort"
)

// ScopeRule selects how rows of a table are restricted to a caller's scope.
type ScopeRule int

const (
	// ScopeNone leaves the table unrestricted (lookup tables).
	ScopeNone ScopeRule = iota
	// ScopeProjectRegion restricts by project and administrative region columns.
	ScopeProjectRegion
	// ScopeRegion restricts region rows by their own id and their project.
	ScopeRegion
	// ScopeProject restricts project rows by their own id.
	ScopeProject
	// ScopeSelf restricts to the caller's own row.
	ScopeSelf
	// ScopeProjectJoin restricts through an association table holding the
	// project reference.
	ScopeProjectJoin
)

func (r ScopeRule) String() string {
	switch r {
	case ScopeNone:
		return "none"
	case ScopeProjectRegion:
		return "project_region"
	case ScopeRegion:
		return "region"
	case ScopeProject:
		return "project"
	case ScopeSelf:
		return "self"
	case ScopeProjectJoin:
		return "project_join"
	default:
		return fmt.Sprintf("ScopeRule(%d)", int(r))
	}
}

// JoinSpec names the association table used by ScopeProjectJoin.
// JoinField references the entity id, Field holds the project id.
type JoinSpec struct {
	Table     string
	JoinField string
	Field     string
}

// Table describes one synchronized entity table.
type Table struct {
	Wire      string
	Canonical string
	Scope     ScopeRule
	Join      *JoinSpec

	// Authoritative tables are managed centrally; clients may never delete
	// their rows.
	Authoritative bool

	// RequiresScope tables treat an empty project scope as a configuration
	// error rather than an empty result.
	RequiresScope bool
}

var (
	ErrDuplicateTable = errors.New("duplicate table name")
	ErrInvalidTable   = errors.New("invalid table definition")
)

// Registry is an immutable, bijective mapping between wire and canonical
// table names.
type Registry struct {
	byWire      map[string]Table
	byCanonical map[string]Table
	ordered     []Table
}

// NewRegistry validates the definitions and builds a Registry.
func NewRegistry(defs ...Table) (*Registry, error) {
	r := &Registry{
		byWire:      make(map[string]Table, len(defs)),
		byCanonical: make(map[string]Table, len(defs)),
	}

	for _, t := range defs {
		if t.Wire == "" || t.Canonical == "" {
			return nil, fmt.Errorf("%w: wire and canonical names are required", ErrInvalidTable)
		}
		if t.Scope == ScopeProjectJoin {
			if t.Join == nil || t.Join.Table == "" || t.Join.JoinField == "" || t.Join.Field == "" {
				return nil, fmt.Errorf("%w: %s: project join rule needs a join spec", ErrInvalidTable, t.Wire)
			}
		}
		if _, ok := r.byWire[t.Wire]; ok {
			return nil, fmt.Errorf("%w: wire %q", ErrDuplicateTable, t.Wire)
		}
		if _, ok := r.byCanonical[t.Canonical]; ok {
			return nil, fmt.Errorf("%w: canonical %q", ErrDuplicateTable, t.Canonical)
		}
		if t.Join != nil {
			j := *t.Join
			t.Join = &j
		}
		r.byWire[t.Wire] = t
		r.byCanonical[t.Canonical] = t
		r.ordered = append(r.ordered, t)
	}

	sort.Slice(r.ordered, func(i, j int) bool {
		return r.ordered[i].Wire < r.ordered[j].Wire
	})
	return r, nil
}

// ByWire looks up a table by its client-facing name.
func (r *Registry) ByWire(name string) (Table, bool) {
	t, ok := r.byWire[name]
	return t, ok
}

// ByCanonical looks up a table by its store name.
func (r *Registry) ByCanonical(name string) (Table, bool) {
	t, ok := r.byCanonical[name]
	return t, ok
}

// All returns every table ordered by wire name. The slice is a copy.
func (r *Registry) All() []Table {
	out := make([]Table, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// WireNames returns the sorted wire names.
func (r *Registry) WireNames() []string {
	out := make([]string, len(r.ordered))
	for i, t := range r.ordered {
		out[i] = t.Wire
	}
	return out
}

// Len returns the number of registered tables.
func (r *Registry) Len() int { return len(r.ordered) }

// Wire names of the default tables.
const (
	Issues                = "issues"
	AdministrativeRegions = "administrative_regions"
	Projects              = "projects"
	Users                 = "users"
	IssueCategories       = "issue_categories"
	IssueTypes            = "issue_types"
	IssueStatuses         = "issue_statuses"
)

// IssueCategoryProject is the association table linking categories to
// projects.
const IssueCategoryProject = "issue_category_project"

// Definitions returns the grievance-management table set.
func Definitions() []Table {
	return []Table{
		{Wire: Issues, Canonical: "issue", Scope: ScopeProjectRegion, RequiresScope: true},
		{Wire: AdministrativeRegions, Canonical: "administrative_region", Scope: ScopeRegion, Authoritative: true},
		{Wire: Projects, Canonical: "project", Scope: ScopeProject, Authoritative: true},
		{Wire: Users, Canonical: "user_account", Scope: ScopeSelf, Authoritative: true},
		{
			Wire:      IssueCategories,
			Canonical: "issue_category",
			Scope:     ScopeProjectJoin,
			Join: &JoinSpec{
				Table:     IssueCategoryProject,
				JoinField: "issue_category_id",
				Field:     "project_id",
			},
			Authoritative: true,
			RequiresScope: true,
		},
		{Wire: IssueTypes, Canonical: "issue_type", Scope: ScopeNone, Authoritative: true},
		{Wire: IssueStatuses, Canonical: "issue_status", Scope: ScopeNone, Authoritative: true},
	}
}

// Default returns a registry of Definitions. It panics if the built-in
// definitions are inconsistent.
func Default() *Registry {
	r, err := NewRegistry(Definitions()...)
	if err != nil {
		panic("tables: invalid built-in definitions: " + err.Error())
	}
	return r
}
