package scope

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxRegionDepth bounds ancestor walks. Administrative hierarchies
// are a handful of levels deep.
const DefaultMaxRegionDepth = 32

var (
	ErrRegionCycle   = errors.New("administrative region hierarchy has a cycle")
	ErrRegionTooDeep = errors.New("administrative region hierarchy too deep")
)

// ParentFunc returns the parent of a region, or "" for a root.
type ParentFunc func(ctx context.Context, regionID string) (string, error)

// RegionAncestors walks from regionID to its root and returns the ancestors,
// nearest first. The walk tracks visited regions and stops after maxDepth
// steps; a non-positive maxDepth uses DefaultMaxRegionDepth.
func RegionAncestors(ctx context.Context, parentOf ParentFunc, regionID string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxRegionDepth
	}

	visited := map[string]struct{}{regionID: {}}
	var ancestors []string

	current := regionID
	for depth := 0; ; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parent, err := parentOf(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("parent of %s: %w", current, err)
		}
		if parent == "" {
			return ancestors, nil
		}
		if _, seen := visited[parent]; seen {
			return nil, fmt.Errorf("%w: %s revisited", ErrRegionCycle, parent)
		}
		if depth >= maxDepth {
			return nil, fmt.Errorf("%w: more than %d levels above %s", ErrRegionTooDeep, maxDepth, regionID)
		}
		visited[parent] = struct{}{}
		ancestors = append(ancestors, parent)
		current = parent
	}
}

// WithinRegion reports whether regionID is one of allowed or descends from
// one of them.
func WithinRegion(ctx context.Context, parentOf ParentFunc, regionID string, allowed []string) (bool, error) {
	if contains(allowed, regionID) {
		return true, nil
	}
	ancestors, err := RegionAncestors(ctx, parentOf, regionID, 0)
	if err != nil {
		return false, err
	}
	for _, a := range ancestors {
		if contains(allowed, a) {
			return true, nil
		}
	}
	return false, nil
}
