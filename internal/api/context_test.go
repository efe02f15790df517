package api

import (
	"context"
	"errors"
	"testing"
)

func TestUserIDFromContext(t *testing.T) {
	ctx := WithUserID(context.Background(), "u1")
	got, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("UserIDFromContext() error = %v", err)
	}
	if got != "u1" {
		t.Errorf("UserIDFromContext() = %q, want u1", got)
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); !errors.Is(err, ErrNoUserInContext) {
		t.Errorf("error = %v, want ErrNoUserInContext", err)
	}
	if _, err := UserIDFromContext(WithUserID(context.Background(), "")); !errors.Is(err, ErrNoUserInContext) {
		t.Errorf("empty id error = %v, want ErrNoUserInContext", err)
	}
}
