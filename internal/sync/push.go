package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hyperengineering/grmsync/internal/scope"
	"github.com/hyperengineering/grmsync/internal/store"
	"github.com/hyperengineering/grmsync/internal/tables"
	"github.com/hyperengineering/grmsync/internal/validation"
)

// Push applies a client change batch for userID in one transaction.
//
// Per table, creates run before updates and updates before deletes. Changes
// outside the push policy, and changes to unknown tables, are discarded. A
// create that hits an existing record updates it, and an update of a
// missing record creates it. Deletes that are invalid, missing or out of
// scope are skipped. Any rejected create or update rolls the whole batch
// back and is reported in a *RejectedError.
func (e *Engine) Push(ctx context.Context, userID string, req PushRequest) error {
	if n := req.Changes.Count(); n > e.maxPushRecords {
		return fmt.Errorf("%w: %d records, limit %d", ErrBatchTooLarge, n, e.maxPushRecords)
	}

	ctx, cancel := withTimeout(ctx, e.pushTimeout)
	defer cancel()
	start := time.Now()

	sc, err := e.resolver.Resolve(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve scope for %s: %w", userID, err)
	}

	wires := make([]string, 0, len(req.Changes))
	for wire := range req.Changes {
		wires = append(wires, wire)
	}
	sort.Strings(wires)

	done, err := e.checkpoints.BeginWrite(ctx)
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	defer done()

	var applied int
	err = e.store.WithTx(ctx, func(ctx context.Context, tx store.EntityStore) error {
		var rejections []Rejection
		for _, wire := range wires {
			tc := req.Changes[wire]
			t, ok := e.registry.ByWire(wire)
			if !ok {
				slog.Warn("push to unknown table discarded",
					"component", "sync",
					"action", "push",
					"user_id", userID,
					"table", wire,
					"records", len(tc.Created)+len(tc.Updated)+len(tc.Deleted),
				)
				continue
			}

			p := tablePush{tx: tx, table: t, scope: sc, userID: userID}
			if err := e.applyTable(ctx, &p, tc); err != nil {
				return err
			}
			rejections = append(rejections, p.rejections...)
			applied += p.applied
		}
		if len(rejections) > 0 {
			return &RejectedError{Rejections: rejections}
		}
		return nil
	})
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, ErrRejected) {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "push failed",
			"component", "sync",
			"action", "push",
			"user_id", userID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return fmt.Errorf("%w: %w", ctxErr, err)
		}
		return err
	}

	slog.Info("push applied",
		"component", "sync",
		"action", "push",
		"user_id", userID,
		"applied", applied,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// tablePush carries the per-table state of one push.
type tablePush struct {
	tx         store.EntityStore
	table      tables.Table
	scope      scope.Scope
	userID     string
	rejections []Rejection
	applied    int
}

func (p *tablePush) reject(op Operation, id, code, message string) {
	p.rejections = append(p.rejections, Rejection{
		Table:     p.table.Wire,
		ID:        id,
		Operation: string(op),
		Code:      code,
		Message:   message,
	})
}

func (e *Engine) applyTable(ctx context.Context, p *tablePush, tc TableChanges) error {
	discarded := map[Operation]int{}

	if e.policy.Allows(p.table.Wire, OpCreate) {
		for _, w := range tc.Created {
			if err := e.upsert(ctx, p, OpCreate, w); err != nil {
				return err
			}
		}
	} else {
		discarded[OpCreate] = len(tc.Created)
	}

	if e.policy.Allows(p.table.Wire, OpUpdate) {
		for _, w := range tc.Updated {
			if err := e.upsert(ctx, p, OpUpdate, w); err != nil {
				return err
			}
		}
	} else {
		discarded[OpUpdate] = len(tc.Updated)
	}

	if e.policy.Allows(p.table.Wire, OpDelete) {
		for _, id := range tc.Deleted {
			if err := e.remove(ctx, p, id); err != nil {
				return err
			}
		}
	} else {
		discarded[OpDelete] = len(tc.Deleted)
	}

	if n := discarded[OpCreate] + discarded[OpUpdate] + discarded[OpDelete]; n > 0 {
		slog.Info("push changes outside policy discarded",
			"component", "sync",
			"action", "push",
			"user_id", p.userID,
			"table", p.table.Wire,
			"created", discarded[OpCreate],
			"updated", discarded[OpUpdate],
			"deleted", discarded[OpDelete],
		)
	}
	return nil
}

// upsert applies one create or update. Rejections are recorded on p; the
// returned error is reserved for store failures.
func (e *Engine) upsert(ctx context.Context, p *tablePush, op Operation, w WireRecord) error {
	rawID := w[WireIDField]
	idText, _ := rawID.(string)
	if errs := validation.ValidateRecordID(WireIDField, rawID); len(errs) > 0 {
		p.reject(op, idText, CodeValidation, joinValidation(errs))
		return nil
	}

	rec, err := FromWire(w)
	if err != nil {
		p.reject(op, idText, CodeValidation, err.Error())
		return nil
	}
	if err := scope.Authorize(p.table, p.scope, rec); err != nil {
		p.reject(op, idText, CodeUnauthorized, "record outside caller scope")
		return nil
	}

	existing, err := p.tx.Get(ctx, p.table.Canonical, idText)
	if errors.Is(err, store.ErrNotFound) {
		if err := p.tx.Insert(ctx, p.table.Canonical, rec); err != nil {
			return fmt.Errorf("%s %s %s: %w", op, p.table.Wire, idText, err)
		}
		p.applied++
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s %s %s: %w", op, p.table.Wire, idText, err)
	}

	// The stored record must be in scope too, or a client could take over
	// a record by resubmitting it with its own project.
	if err := scope.Authorize(p.table, p.scope, existing); err != nil {
		p.reject(op, idText, CodeUnauthorized, "record outside caller scope")
		return nil
	}
	if err := p.tx.Update(ctx, p.table.Canonical, idText, rec); err != nil {
		return fmt.Errorf("%s %s %s: %w", op, p.table.Wire, idText, err)
	}
	p.applied++
	return nil
}

// remove soft-deletes one record. Invalid, missing and out-of-scope
// targets are logged and skipped.
func (e *Engine) remove(ctx context.Context, p *tablePush, id string) error {
	skip := func(reason string) error {
		slog.Warn("push delete skipped",
			"component", "sync",
			"action", "push",
			"user_id", p.userID,
			"table", p.table.Wire,
			"id", id,
			"reason", reason,
		)
		return nil
	}

	if errs := validation.ValidateRecordID(WireIDField, id); len(errs) > 0 {
		return skip(joinValidation(errs))
	}

	existing, err := p.tx.Get(ctx, p.table.Canonical, id)
	if errors.Is(err, store.ErrNotFound) {
		return skip("not found")
	}
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", p.table.Wire, id, err)
	}
	if err := scope.Authorize(p.table, p.scope, existing); err != nil {
		return skip("outside caller scope")
	}

	if err := p.tx.SoftDelete(ctx, p.table.Canonical, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", p.table.Wire, id, err)
	}
	p.applied++
	return nil
}

func joinValidation(errs []validation.ValidationError) string {
	msgs := make([]string, len(errs))
	for i := range errs {
		msgs[i] = errs[i].Error()
	}
	return strings.Join(msgs, "; ")
}
