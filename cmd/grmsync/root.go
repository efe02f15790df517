package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hyperengineering/grmsync/internal/api"
	"github.com/hyperengineering/grmsync/internal/config"
	"github.com/hyperengineering/grmsync/internal/logging"
	"github.com/hyperengineering/grmsync/internal/scope"
	"github.com/hyperengineering/grmsync/internal/store"
	"github.com/hyperengineering/grmsync/internal/sync"
	"github.com/hyperengineering/grmsync/internal/tables"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

// devSecret signs tokens when GRMSYNC_DEV_MODE is on and no secret is set.
const devSecret = "grmsync-dev-secret"

var rootCmd = &cobra.Command{
	Use:           "grmsync",
	Short:         "grmsync - grievance sync server",
	Long:          "Serves incremental pull/push sync for offline grievance clients. Subcommands administer assignments, roles and tokens.",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbOverride, "db", "",
		"Database path (sqlite) or DSN (postgres); overrides config")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(assignmentCmd)
	rootCmd.AddCommand(roleCmd)
	rootCmd.AddCommand(categoryCmd)
	rootCmd.AddCommand(regionCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(pullCmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, logCloser := logging.New(cfg.Log, os.Stdout)
	defer logCloser.Close()
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	return serve(ctx, cfg)
}

// serve runs the HTTP server until ctx is canceled or the listener fails.
func serve(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.Target())
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("store close error", "error", err)
		}
	}()
	slog.Info("store initialized", "driver", cfg.Database.Driver)

	engine, err := newEngine(cfg, st)
	if err != nil {
		return err
	}

	handler := api.NewHandler(engine, st, signingSecret(cfg), Version, cfg.Server.MaxBodyBytes)
	router := api.NewRouter(handler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "address", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			serveErr <- err
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()

	// Drains in-flight pushes before the store closes.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

// newEngine wires the sync engine from configuration.
func newEngine(cfg *config.Config, st *store.SQLStore) (*sync.Engine, error) {
	reg := tables.Default()
	if err := checkSchema(reg); err != nil {
		return nil, err
	}
	policy, err := sync.NewPushPolicy(reg, cfg.Sync.PushPolicy)
	if err != nil {
		return nil, fmt.Errorf("push policy: %w", err)
	}
	slog.Info("push policy loaded", "policy", policy.String())

	return sync.NewEngine(st, scope.NewResolver(st, cfg.Sync.SuperRole),
		sync.WithRegistry(reg),
		sync.WithPushPolicy(policy),
		sync.WithPullTimeout(cfg.Sync.PullTimeout.Std()),
		sync.WithPushTimeout(cfg.Sync.PushTimeout.Std()),
		sync.WithMaxPushRecords(cfg.Sync.MaxPushRecords),
	), nil
}

// checkSchema fails when a synced table has no store table. Store tables
// outside the registry are only reported.
func checkSchema(reg *tables.Registry) error {
	present := make(map[string]bool)
	for _, name := range store.EntityTables() {
		present[name] = true
		if _, ok := reg.ByCanonical(name); !ok {
			slog.Warn("store table not synced", "table", name)
		}
	}
	for _, t := range reg.All() {
		if !present[t.Canonical] {
			return fmt.Errorf("table %s (%s) has no store table", t.Wire, t.Canonical)
		}
	}
	return nil
}

func signingSecret(cfg *config.Config) []byte {
	if cfg.Auth.JWTSecret == "" {
		slog.Warn("no JWT secret configured, using development secret")
		return []byte(devSecret)
	}
	return []byte(cfg.Auth.JWTSecret)
}
