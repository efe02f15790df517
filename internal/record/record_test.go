package record

import (
	"testing"
	"time"
)

func TestIsDateField(t *testing.T) {
	for _, f := range append([]string{CreatedAtField, UpdatedAtField}, DateFields...) {
		if !IsDateField(f) {
			t.Errorf("IsDateField(%q) = false", f)
		}
	}
	for _, f := range []string{IDField, "title", "project", "intake"} {
		if IsDateField(f) {
			t.Errorf("IsDateField(%q) = true", f)
		}
	}
}

func TestRecord_ID(t *testing.T) {
	tests := []struct {
		name   string
		rec    Record
		wantID string
		wantOK bool
	}{
		{"present", Record{IDField: "abc"}, "abc", true},
		{"missing", Record{"title": "x"}, "", false},
		{"empty", Record{IDField: ""}, "", false},
		{"not a string", Record{IDField: 42}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := tt.rec.ID()
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("ID() = %q, %v; want %q, %v", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestRecord_Time(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var nilTime *time.Time

	rec := Record{"a": ts, "b": &ts, "c": nilTime, "d": "2024-03-01"}

	if got, ok := rec.Time("a"); !ok || !got.Equal(ts) {
		t.Errorf("Time(a) = %v, %v", got, ok)
	}
	if got, ok := rec.Time("b"); !ok || !got.Equal(ts) {
		t.Errorf("Time(b) = %v, %v", got, ok)
	}
	if _, ok := rec.Time("c"); ok {
		t.Error("Time(c) ok for nil pointer")
	}
	if _, ok := rec.Time("d"); ok {
		t.Error("Time(d) ok for string")
	}
}

func TestRecord_CloneIsShallowCopy(t *testing.T) {
	orig := Record{IDField: "a", "title": "x"}
	c := orig.Clone()
	c["title"] = "y"

	if orig["title"] != "x" {
		t.Error("Clone shares map with original")
	}
}
