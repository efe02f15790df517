package sync

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperengineering/grmsync/internal/tables"
)

// Operation is a push mutation kind.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Operations lists every valid Operation.
var Operations = []string{string(OpCreate), string(OpUpdate), string(OpDelete)}

// DefaultPushPolicy accepts issue creation only.
func DefaultPushPolicy() map[string][]string {
	return map[string][]string{tables.Issues: {string(OpCreate)}}
}

// PushPolicy is the set of table/operation pairs a push may apply.
// Everything else is discarded.
type PushPolicy struct {
	allowed map[string]map[Operation]bool
}

// NewPushPolicy builds a policy from a map of wire table name to operation
// names. Unknown tables or operations, and deletes on authoritative
// tables, are rejected.
func NewPushPolicy(reg *tables.Registry, cfg map[string][]string) (*PushPolicy, error) {
	p := &PushPolicy{allowed: make(map[string]map[Operation]bool, len(cfg))}
	for wire, ops := range cfg {
		t, ok := reg.ByWire(wire)
		if !ok {
			return nil, fmt.Errorf("%w: unknown table %q (known: %s)",
				ErrInvalidPolicy, wire, strings.Join(reg.WireNames(), ", "))
		}
		set := make(map[Operation]bool, len(ops))
		for _, name := range ops {
			op := Operation(name)
			switch op {
			case OpCreate, OpUpdate:
			case OpDelete:
				if t.Authoritative {
					return nil, fmt.Errorf("%w: delete not allowed on authoritative table %q", ErrInvalidPolicy, wire)
				}
			default:
				return nil, fmt.Errorf("%w: unknown operation %q for %q", ErrInvalidPolicy, name, wire)
			}
			set[op] = true
		}
		p.allowed[wire] = set
	}
	return p, nil
}

// Allows reports whether op may be applied to the wire table.
func (p *PushPolicy) Allows(wire string, op Operation) bool {
	return p.allowed[wire][op]
}

// String renders the policy as "table:op,op" pairs in table order.
func (p *PushPolicy) String() string {
	names := make([]string, 0, len(p.allowed))
	for wire := range p.allowed {
		names = append(names, wire)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, wire := range names {
		var ops []string
		for _, op := range []Operation{OpCreate, OpUpdate, OpDelete} {
			if p.allowed[wire][op] {
				ops = append(ops, string(op))
			}
		}
		parts = append(parts, wire+":"+strings.Join(ops, ","))
	}
	return strings.Join(parts, " ")
}
