// Package predicate is the row-filter vocabulary shared by the scope filter
// builder and the entity store.
//
// Predicate is a sealed interface: only the variants in this package
// implement it, so store compilers can switch over them exhaustively.
// A nil Predicate means "no restriction".
package predicate

import (
	"errors"
	"fmt"
)

// Predicate is a filter condition over the rows of one entity table.
type Predicate interface {
	predicateNode()
}

// Op is a comparison operator for Compare.
type Op string

const (
	GT  Op = ">"
	GTE Op = ">="
	LT  Op = "<"
	LTE Op = "<="
)

// Equals matches rows whose Field equals Value.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// In matches rows whose Field is one of Values.
// An empty Values set matches no rows.
type In struct {
	Field  string
	Values []string
}

func (In) predicateNode() {}

// Compare matches rows where Field Op Value holds. Value is usually a
// time.Time for the creation and modification timestamps.
type Compare struct {
	Field string
	Op    Op
	Value any
}

func (Compare) predicateNode() {}

// JoinExists matches rows that have at least one row in the association
// table Table whose JoinField references the row identifier and whose Field
// is one of Values.
//
// Stores may implement this with an inner join, in which case a row can be
// returned once per matching association row. Callers deduplicate.
type JoinExists struct {
	Table     string
	JoinField string
	Field     string
	Values    []string
}

func (JoinExists) predicateNode() {}

// And matches rows that satisfy every predicate. Empty And matches all rows.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// AllOf builds an And, dropping nil members. A single remaining member is
// returned unwrapped.
func AllOf(preds ...Predicate) Predicate {
	kept := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}

// ErrInvalid is returned by Validate for malformed predicates.
var ErrInvalid = errors.New("invalid predicate")

// Validate checks that every node in p is a known variant with the fields a
// store needs to compile it.
func Validate(p Predicate) error {
	switch v := p.(type) {
	case nil:
		return nil
	case Equals:
		return requireField("equals", v.Field)
	case In:
		return requireField("in", v.Field)
	case Compare:
		if err := requireField("compare", v.Field); err != nil {
			return err
		}
		switch v.Op {
		case GT, GTE, LT, LTE:
			return nil
		default:
			return fmt.Errorf("%w: compare operator %q", ErrInvalid, v.Op)
		}
	case JoinExists:
		if v.Table == "" || v.JoinField == "" || v.Field == "" {
			return fmt.Errorf("%w: join-exists needs table, join field and field", ErrInvalid)
		}
		return nil
	case And:
		for _, sub := range v.Predicates {
			if err := Validate(sub); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown predicate type %T", ErrInvalid, p)
	}
}

func requireField(kind, field string) error {
	if field == "" {
		return fmt.Errorf("%w: %s without field", ErrInvalid, kind)
	}
	return nil
}
