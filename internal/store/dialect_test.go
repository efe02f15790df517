package store

import (
	"errors"
	"testing"
)

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT 1 FROM t WHERE a = ? AND b IN (?, ?)"

	if got := SQLite.rebind(q); got != q {
		t.Errorf("SQLite.rebind changed query: %q", got)
	}

	want := "SELECT 1 FROM t WHERE a = $1 AND b IN ($2, $3)"
	if got := Postgres.rebind(q); got != want {
		t.Errorf("Postgres.rebind = %q, want %q", got, want)
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in   string
		want Dialect
	}{
		{"", SQLite},
		{"sqlite", SQLite},
		{"SQLite3", SQLite},
		{"postgres", Postgres},
		{"pgx", Postgres},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		if err != nil {
			t.Errorf("ParseDialect(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDialect(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseDialect("mysql"); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("ParseDialect(mysql) err = %v, want ErrUnknownDriver", err)
	}
}
