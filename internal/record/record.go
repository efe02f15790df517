// Package record defines the canonical in-store representation of a synced
// entity and the field conventions shared by the store and the transcoder.
package record

import "time"

// Canonical field names.
const (
	IDField        = "_id"
	CreatedAtField = "created_at"
	UpdatedAtField = "updated_at"
	ProjectField   = "project"
	RegionField    = "administrative_region"
)

// DateFields lists the domain fields that hold date/time values, in addition
// to CreatedAtField and UpdatedAtField.
var DateFields = []string{
	"intake_date",
	"issue_date",
	"resolution_date",
	"escalation_date",
	"reject_date",
	"published_date",
	"last_login",
}

var dateFieldSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(DateFields)+2)
	m[CreatedAtField] = struct{}{}
	m[UpdatedAtField] = struct{}{}
	for _, f := range DateFields {
		m[f] = struct{}{}
	}
	return m
}()

// IsDateField reports whether name holds a date/time value.
func IsDateField(name string) bool {
	_, ok := dateFieldSet[name]
	return ok
}

// Record is a canonical entity keyed by IDField. Date fields hold time.Time
// (or nil); every other field is an opaque domain value.
type Record map[string]any

// ID returns the record identifier. The second result is false when the
// identifier is missing, not a string, or empty.
func (r Record) ID() (string, bool) {
	id, ok := r[IDField].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// String returns the field as a string, or "" if absent or not a string.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Time returns the field as a time, handling both value and pointer forms.
func (r Record) Time(field string) (time.Time, bool) {
	switch v := r[field].(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	default:
		return time.Time{}, false
	}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
