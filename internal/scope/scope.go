// Package scope resolves which projects and administrative regions a user
// may see and turns that scope into per-table row filters.
package scope

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hyperengineering/grmsync/internal/store"
)

var (
	// ErrNoAccess is returned for tables that require a project scope when
	// the caller has none. It means "no access configured", which is
	// different from "no matching data".
	ErrNoAccess = errors.New("no access configured")

	// ErrUnauthorized is returned when a record lies outside the scope.
	ErrUnauthorized = errors.New("record outside caller scope")
)

// Scope is the visibility of one user, computed fresh per request.
type Scope struct {
	UserID   string
	Projects []string
	Regions  []string

	// AllRegions lifts the region restriction (super role).
	AllRegions bool
}

// HasProject reports whether project is in scope.
func (s Scope) HasProject(project string) bool {
	return contains(s.Projects, project)
}

// HasRegion reports whether region is in scope.
func (s Scope) HasRegion(region string) bool {
	return s.AllRegions || contains(s.Regions, region)
}

// Source is the authorization data the resolver reads.
type Source interface {
	UserRoles(ctx context.Context, userID string) ([]string, error)
	UserAssignments(ctx context.Context, userID string) ([]store.Assignment, error)
	ActiveProjects(ctx context.Context) ([]string, error)
}

// Resolver computes scopes. It holds no per-user state, so assignment
// changes take effect on the next request.
type Resolver struct {
	src       Source
	superRole string
}

// NewResolver creates a Resolver. Users holding superRole see every active
// project with no region restriction. An empty superRole disables it.
func NewResolver(src Source, superRole string) *Resolver {
	return &Resolver{src: src, superRole: superRole}
}

// Resolve computes the scope of userID. A user without active, activated
// assignments gets empty project and region sets.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Scope, error) {
	sc := Scope{UserID: userID, Projects: []string{}, Regions: []string{}}

	active, err := r.src.ActiveProjects(ctx)
	if err != nil {
		return Scope{}, fmt.Errorf("load active projects: %w", err)
	}

	if r.superRole != "" {
		roles, err := r.src.UserRoles(ctx, userID)
		if err != nil {
			return Scope{}, fmt.Errorf("load roles: %w", err)
		}
		if contains(roles, r.superRole) {
			sc.Projects = distinctSorted(active)
			sc.AllRegions = true
			return sc, nil
		}
	}

	assignments, err := r.src.UserAssignments(ctx, userID)
	if err != nil {
		return Scope{}, fmt.Errorf("load assignments: %w", err)
	}

	activeSet := make(map[string]struct{}, len(active))
	for _, p := range active {
		activeSet[p] = struct{}{}
	}

	var projects, regions []string
	for _, a := range assignments {
		if !a.Active || !a.Activated {
			continue
		}
		if _, ok := activeSet[a.Project]; !ok {
			continue
		}
		projects = append(projects, a.Project)
		if a.Region != "" {
			regions = append(regions, a.Region)
		}
	}

	sc.Projects = distinctSorted(projects)
	sc.Regions = distinctSorted(regions)
	return sc, nil
}

func distinctSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
