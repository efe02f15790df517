package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/grmsync/internal/auth"
	"github.com/hyperengineering/grmsync/internal/config"
	"github.com/hyperengineering/grmsync/internal/record"
	"github.com/hyperengineering/grmsync/internal/store"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T, dbPath string) *config.Config {
	t.Helper()
	setupEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Database.Path = dbPath
	cfg.Server.Port = freePort(t)
	cfg.Server.ShutdownTimeout = config.Duration(5 * time.Second)
	return cfg
}

// startServer runs serve in the background until the test ends.
func startServer(t *testing.T, cfg *config.Config) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve returned %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("serve did not stop")
		}
	})

	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/api/v1/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return base
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("server did not become healthy")
	return ""
}

func TestServe_GracefulShutdown(t *testing.T) {
	cfg := testConfig(t, t.TempDir()+"/serve.db")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg) }()

	addr := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", cfg.Server.Port)
	var healthy bool
	for i := 0; i < 250 && !healthy; i++ {
		if resp, err := http.Get(addr); err == nil {
			resp.Body.Close()
			healthy = resp.StatusCode == http.StatusOK
		}
		if !healthy {
			time.Sleep(20 * time.Millisecond)
		}
	}
	if !healthy {
		cancel()
		t.Fatal("server did not become healthy")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve = %v, want nil after cancel", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_InvalidPushPolicy(t *testing.T) {
	cfg := testConfig(t, t.TempDir()+"/serve.db")
	cfg.Sync.PushPolicy = map[string][]string{"grievances": {"create"}}

	err := serve(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "push policy") {
		t.Errorf("err = %v, want push policy error", err)
	}
}

func TestPull_AgainstRunningServer(t *testing.T) {
	db := t.TempDir() + "/pull.db"
	cfg := testConfig(t, db)

	st, err := store.NewSQLiteStore(db)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := st.Insert(ctx, "project", record.Record{"_id": "P1", "active": true}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.AddAssignment(ctx, store.Assignment{UserID: "u1", Project: "P1", Region: "R1", Active: true, Activated: true}); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"i1", "i2"} {
		if err := st.Insert(ctx, "issue", record.Record{"_id": id, "project": "P1", "administrative_region": "R1"}); err != nil {
			t.Fatal(err)
		}
	}
	st.Close()

	base := startServer(t, cfg)
	token, err := auth.GenerateToken("u1", []byte(testJWTSecret), time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	stdout, _, err := executeCmd(t, "", "pull", "--server", base, "--token", token)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	var issuesLine string
	for _, line := range strings.Split(stdout, "\n") {
		if strings.HasPrefix(line, "issues ") {
			issuesLine = line
		}
	}
	if fields := strings.Fields(issuesLine); len(fields) != 4 || fields[1] != "2" {
		t.Errorf("issues line = %q, want 2 created", issuesLine)
	}
	if !strings.Contains(stdout, "Checkpoint: ") {
		t.Errorf("stdout = %q, want checkpoint", stdout)
	}
}

func TestPull_BadToken(t *testing.T) {
	cfg := testConfig(t, t.TempDir()+"/pull.db")
	base := startServer(t, cfg)

	_, _, err := executeCmd(t, "", "pull", "--server", base, "--token", "garbage")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v, want 401", err)
	}
}
