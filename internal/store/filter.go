package store

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hyperengineering/grmsync/internal/predicate"
	"github.com/hyperengineering/grmsync/internal/record"
)

// sqlFilter is a compiled predicate. Join arguments precede where arguments
// because joins precede WHERE in the statement text.
type sqlFilter struct {
	joins string
	where string
	args  []any
}

type filterCompiler struct {
	joins     []string
	joinArgs  []any
	whereArgs []any
	aliases   int
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// filterColumns maps filterable record fields to entity columns.
var filterColumns = map[string]string{
	record.IDField:        "t.id",
	record.ProjectField:   "t.project",
	record.RegionField:    "t.administrative_region",
	record.CreatedAtField: "t.created_at",
	record.UpdatedAtField: "t.updated_at",
}

func compileFilter(p predicate.Predicate) (sqlFilter, error) {
	c := &filterCompiler{}
	where, err := c.compile(p)
	if err != nil {
		return sqlFilter{}, err
	}

	var joins string
	if len(c.joins) > 0 {
		joins = " " + strings.Join(c.joins, " ")
	}
	return sqlFilter{
		joins: joins,
		where: where,
		args:  append(c.joinArgs, c.whereArgs...),
	}, nil
}

func (c *filterCompiler) compile(p predicate.Predicate) (string, error) {
	switch v := p.(type) {
	case nil:
		return "1 = 1", nil

	case predicate.Equals:
		col, err := column(v.Field)
		if err != nil {
			return "", err
		}
		c.whereArgs = append(c.whereArgs, sqlValue(v.Value))
		return col + " = ?", nil

	case predicate.In:
		col, err := column(v.Field)
		if err != nil {
			return "", err
		}
		if len(v.Values) == 0 {
			return "1 = 0", nil
		}
		for _, val := range v.Values {
			c.whereArgs = append(c.whereArgs, val)
		}
		return fmt.Sprintf("%s IN (%s)", col, placeholders(len(v.Values))), nil

	case predicate.Compare:
		col, err := column(v.Field)
		if err != nil {
			return "", err
		}
		c.whereArgs = append(c.whereArgs, sqlValue(v.Value))
		return fmt.Sprintf("%s %s ?", col, v.Op), nil

	case predicate.JoinExists:
		for _, ident := range []string{v.Table, v.JoinField, v.Field} {
			if !identPattern.MatchString(ident) {
				return "", fmt.Errorf("%w: invalid identifier %q", predicate.ErrInvalid, ident)
			}
		}
		if len(v.Values) == 0 {
			return "1 = 0", nil
		}
		c.aliases++
		alias := fmt.Sprintf("j%d", c.aliases)
		c.joins = append(c.joins, fmt.Sprintf(
			"INNER JOIN %s %s ON %s.%s = t.id AND %s.%s IN (%s)",
			v.Table, alias, alias, v.JoinField, alias, v.Field, placeholders(len(v.Values))))
		for _, val := range v.Values {
			c.joinArgs = append(c.joinArgs, val)
		}
		return "1 = 1", nil

	case predicate.And:
		if len(v.Predicates) == 0 {
			return "1 = 1", nil
		}
		parts := make([]string, 0, len(v.Predicates))
		for _, sub := range v.Predicates {
			part, err := c.compile(sub)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil

	default:
		return "", fmt.Errorf("%w: unknown predicate type %T", predicate.ErrInvalid, p)
	}
}

func column(field string) (string, error) {
	col, ok := filterColumns[field]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnfilterableField, field)
	}
	return col, nil
}

// sqlValue converts time values to the stored microsecond representation.
func sqlValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return toMicros(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return toMicros(*t)
	default:
		return v
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
