package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/grmsync/internal/predicate"
	"github.com/hyperengineering/grmsync/internal/record"
	"github.com/hyperengineering/grmsync/internal/scope"
	"github.com/hyperengineering/grmsync/internal/tables"
)

// Pull computes the changes visible to userID since lastPulledAt (epoch
// milliseconds, 0 for a full resync) across every registered table.
//
// A failing table is logged and reported with empty lists. Scope
// resolution, cancellation and checkpoint failures fail the whole pull. The
// returned checkpoint is taken after every table has been read and stays
// below the start of any push that was in flight while the tables were
// read, so rows such a push commits later are returned by the next pull.
func (e *Engine) Pull(ctx context.Context, userID string, lastPulledAt int64) (*PullResponse, error) {
	if lastPulledAt < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCheckpoint, lastPulledAt)
	}

	ctx, cancel := withTimeout(ctx, e.pullTimeout)
	defer cancel()
	start := time.Now()

	read := e.checkpoints.BeginRead()
	defer e.checkpoints.CancelRead(read)

	sc, err := e.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve scope for %s: %w", userID, err)
	}

	var since time.Time
	if lastPulledAt > 0 {
		since = time.UnixMilli(lastPulledAt).UTC()
	}

	changes := make(Changes, e.registry.Len())
	total := 0
	for _, t := range e.registry.All() {
		tc, err := e.pullTable(ctx, t, sc, since)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("pull %s: %w", t.Wire, ctxErr)
			}
			if errors.Is(err, scope.ErrNoAccess) {
				slog.Warn("no access configured",
					"component", "sync",
					"action", "pull",
					"user_id", userID,
					"table", t.Wire,
				)
			} else {
				slog.Error("pull table failed",
					"component", "sync",
					"action", "pull",
					"user_id", userID,
					"table", t.Wire,
					"error", err,
				)
			}
			tc = emptyTableChanges()
		}
		total += len(tc.Created) + len(tc.Updated) + len(tc.Deleted)
		changes[t.Wire] = tc
	}

	ts, err := e.checkpoints.EndRead(ctx, read)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	slog.Info("pull served",
		"component", "sync",
		"action", "pull",
		"user_id", userID,
		"last_pulled_at", lastPulledAt,
		"timestamp", ts,
		"records", total,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &PullResponse{Changes: changes, Timestamp: ts}, nil
}

func (e *Engine) pullTable(ctx context.Context, t tables.Table, sc scope.Scope, since time.Time) (TableChanges, error) {
	filter, err := scope.BuildFilter(t, sc, sc.UserID)
	if err != nil {
		return TableChanges{}, err
	}

	created, err := e.store.Query(ctx, t.Canonical, predicate.AllOf(filter,
		predicate.Compare{Field: record.CreatedAtField, Op: predicate.GT, Value: since},
	))
	if err != nil {
		return TableChanges{}, fmt.Errorf("created since: %w", err)
	}

	updated, err := e.store.Query(ctx, t.Canonical, predicate.AllOf(filter,
		predicate.Compare{Field: record.CreatedAtField, Op: predicate.LTE, Value: since},
		predicate.Compare{Field: record.UpdatedAtField, Op: predicate.GT, Value: since},
	))
	if err != nil {
		return TableChanges{}, fmt.Errorf("updated since: %w", err)
	}

	deleted, err := e.store.ListTombstones(ctx, t.Canonical, since)
	if err != nil {
		return TableChanges{}, fmt.Errorf("deleted since: %w", err)
	}

	return classify(created, updated, deleted), nil
}

// classify transcodes the three query results into disjoint lists. Each id
// appears once: deleted wins over created, created over updated.
func classify(created, updated []record.Record, deleted []string) TableChanges {
	tc := emptyTableChanges()

	gone := make(map[string]struct{}, len(deleted))
	for _, id := range deleted {
		if _, dup := gone[id]; dup {
			continue
		}
		gone[id] = struct{}{}
		tc.Deleted = append(tc.Deleted, id)
	}

	seen := make(map[string]struct{}, len(created)+len(updated))
	add := func(list []WireRecord, recs []record.Record) []WireRecord {
		for _, rec := range recs {
			id, ok := rec.ID()
			if !ok {
				continue
			}
			if _, dead := gone[id]; dead {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			list = append(list, ToWire(rec))
		}
		return list
	}
	tc.Created = add(tc.Created, created)
	tc.Updated = add(tc.Updated, updated)
	return tc
}
