package sync

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hyperengineering/grmsync/internal/record"
)

const (
	// WireIDField is the identifier field name on the wire.
	WireIDField = "id"

	// bookkeepingPrefix marks server-internal fields.
	bookkeepingPrefix = "__"
)

// reservedClientFields are maintained by the client database and never
// emitted by the server.
var reservedClientFields = []string{"_status", "_changed"}

func isReservedClientField(name string) bool {
	for _, f := range reservedClientFields {
		if name == f {
			return true
		}
	}
	return false
}

// ToWire converts a canonical record to its wire form.
func ToWire(rec record.Record) WireRecord {
	out := make(WireRecord, len(rec))
	for k, v := range rec {
		switch {
		case strings.HasPrefix(k, bookkeepingPrefix), isReservedClientField(k):
			continue
		case k == WireIDField:
			// Would collide with the renamed identifier.
			continue
		case k == record.IDField:
			out[WireIDField] = v
		case record.IsDateField(k):
			out[k] = toMillis(v)
		default:
			out[k] = v
		}
	}
	return out
}

func toMillis(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UnixMilli()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UnixMilli()
	default:
		return v
	}
}

// FromWire converts a wire record to canonical form. Date fields must be
// null or integer milliseconds. A client-supplied "_id" is ignored; the
// identifier comes from "id".
func FromWire(w WireRecord) (record.Record, error) {
	out := make(record.Record, len(w))
	for k, v := range w {
		switch {
		case strings.HasPrefix(k, bookkeepingPrefix), isReservedClientField(k):
			continue
		case k == record.IDField:
			continue
		case k == WireIDField:
			out[record.IDField] = v
		case record.IsDateField(k):
			t, err := fromMillis(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			if t == nil {
				out[k] = nil
			} else {
				out[k] = *t
			}
		default:
			out[k] = v
		}
	}
	return out, nil
}

func fromMillis(v any) (*time.Time, error) {
	var ms int64
	switch n := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil || f != math.Trunc(f) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidDate, n.String())
			}
			i = int64(f)
		}
		ms = i
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDate, n)
		}
		ms = int64(n)
	case int64:
		ms = n
	case int:
		ms = int64(n)
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidDate, v)
	}
	t := time.UnixMilli(ms).UTC()
	return &t, nil
}
