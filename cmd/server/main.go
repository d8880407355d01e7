package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/recklessbear/rbsite/internal/api"
	"github.com/recklessbear/rbsite/internal/config"
	"github.com/recklessbear/rbsite/internal/db"
	"github.com/recklessbear/rbsite/internal/logger"
	"github.com/recklessbear/rbsite/internal/middleware"
	"github.com/recklessbear/rbsite/internal/services"
	"github.com/recklessbear/rbsite/internal/tracking"
)

func main() {
	root := &cobra.Command{
		Use:           "rbsite",
		Short:         "RecklessBear site backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			if cfg.Database.SQLitePath == "" {
				return fmt.Errorf("RBSITE_DATABASE_SQLITE_PATH is required to migrate")
			}
			sqlDB, err := openSQLite(cfg.Database.SQLitePath)
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			return db.RunMigrations(sqlDB, cfg.Database.MigrationsDir)
		},
	})

	root.AddCommand(newHuntCommand())

	root.AddCommand(&cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for RBSITE_ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", filepath.ToSlash(path))
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return sqlDB, nil
}

func runServe() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var store services.ParticipantStore
	if cfg.Database.SQLitePath != "" {
		sqlDB, err := openSQLite(cfg.Database.SQLitePath)
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		if err := db.RunMigrations(sqlDB, cfg.Database.MigrationsDir); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		sqliteStore, err := db.NewSQLiteStore(sqlDB, log)
		if err != nil {
			return fmt.Errorf("init sqlite store: %w", err)
		}
		store = sqliteStore
		log.Info("using sqlite record store", zap.String("path", cfg.Database.SQLitePath))
	} else {
		log.Warn("no sqlite path configured, using in-memory record store")
	}

	authmw := middleware.NewAuth(cfg.JWT.Secret)
	var authSvc *services.AuthService
	if cfg.Admin.Email != "" && cfg.Admin.PasswordHash != "" {
		authSvc = services.NewAuthService(services.AdminCredentials{
			Email:        cfg.Admin.Email,
			PasswordHash: cfg.Admin.PasswordHash,
		}, authmw.SignToken)
	} else {
		log.Warn("admin credentials not configured, admin endpoints disabled")
	}

	var tracker *tracking.Client
	if cfg.Tracking.LookupURL != "" {
		tracker, err = tracking.NewClient(tracking.ClientConfig{BaseURL: cfg.Tracking.LookupURL})
		if err != nil {
			return err
		}
	} else {
		log.Warn("order tracking lookup url not configured")
	}

	mux := http.NewServeMux()
	api.NewRouter(api.Options{
		Store:   store,
		Auth:    authSvc,
		AuthMW:  authmw,
		Tracker: tracker,
		Log:     log,
	}).Register(mux)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "name": "RBSite API"})
	})

	// Serve the built SPA when a static dir is configured (fullstack
	// image); API-only otherwise.
	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	handler := middleware.RequestLogging(log, middleware.NoStore(middleware.CORS(mux)))

	log.Info("server listening", zap.String("addr", cfg.Addr))
	return http.ListenAndServe(cfg.Addr, handler)
}
