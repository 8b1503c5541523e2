// ABOUTME: Entry point for hbx, the bridge management client and fake server.
// ABOUTME: Wires config, logging and every CLI command, and builds the fake server.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/2389/hbx/internal/admin"
	"github.com/2389/hbx/internal/auth"
	"github.com/2389/hbx/internal/config"
	"github.com/2389/hbx/internal/logging"
	"github.com/2389/hbx/internal/metrics"
	"github.com/2389/hbx/internal/seed"
	"github.com/2389/hbx/internal/store"
	"github.com/2389/hbx/services/core"
	_ "github.com/2389/hbx/services/accounts" // Register accounts service
	_ "github.com/2389/hbx/services/bridges"  // Register bridges service
	_ "github.com/2389/hbx/services/platform" // Register platform service
	_ "github.com/2389/hbx/services/plugins"  // Register plugins service
)

var (
	configPath string
	serverURL  string
	port       string
	dbPath     string
	seedCount  int

	cfg *config.Config
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hbx",
		Short: "hbx - bridge management client and fake management server",
		Long: `hbx talks to a bridge management server: it lists the installed plugin
roster, follows child bridge status, resets pairings, manages users and
tails the server log.

It also ships a fake management server with SQLite persistence, seeded
with realistic plugins and child bridges, for development and testing.

Quick Start:
  hbx reset         # Create and seed the fake server database
  hbx serve         # Start the fake server on port 8581
  hbx plugins       # Show the ranked plugin roster
  hbx bridges -w    # Follow child bridge status`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if serverURL != "" {
				loaded.Client.URL = serverURL
			}
			cfg = loaded
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/hbx/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "Management server URL (overrides config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the fake management server",
		Long: `Start the fake management server.

The server provides:
  • REST API under /api (login, plugins, pairings, users, platform tools)
  • WebSocket namespaces under /ws (child-bridges, log)
  • Admin UI at http://localhost:PORT/admin
  • Prometheus metrics at http://localhost:PORT/metrics
  • Health check at http://localhost:PORT/healthz

Environment Variables:
  HBX_PORT          Server port (default: 8581)
  HBX_DB_PATH       Database path
  HBX_JWT_SECRET    Token signing secret
  OPENAI_API_KEY    Enable AI-generated plugin catalogs when seeding`,
		RunE: runServe,
	}
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().StringVarP(&dbPath, "db", "d", "", "Database path")

	seedCmd := &cobra.Command{
		Use:   "seed [service]",
		Short: "Seed the database with test data",
		Long: `Seed the database with a plugin catalog for all services or a specific one.

AI-Powered Generation:
  Set OPENAI_API_KEY to have the catalog invented by a model.
  Falls back to a static catalog if no API key is provided.

Available Services:
  accounts, bridges, platform, plugins

Note: seeding is additive. Use 'hbx reset' to clear data before reseeding.`,
		RunE: runSeed,
		Args: cobra.MaximumNArgs(1),
	}
	seedCmd.Flags().StringVarP(&dbPath, "db", "d", "", "Database path")
	seedCmd.Flags().IntVarP(&seedCount, "plugins", "n", 18, "Number of plugins to generate")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the database (wipe and reseed)",
		Long: `Delete the database file and create a fresh one with new test data.

Warning: This permanently deletes all data in the database!`,
		RunE: runReset,
	}
	resetCmd.Flags().StringVarP(&dbPath, "db", "d", "", "Database path")
	resetCmd.Flags().IntVarP(&seedCount, "plugins", "n", 18, "Number of plugins to generate")

	rootCmd.AddCommand(serveCmd, seedCmd, resetCmd)
	addClientCommands(rootCmd)
	return rootCmd
}

// validateAndCleanDBPath validates and cleans a database path.
// Handles Unix/Linux, macOS, and Windows paths (including UNC and drive letters).
func validateAndCleanDBPath(path string) (string, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return "", fmt.Errorf("database path cannot be empty, '.', or '/'")
	}
	cleanPath = filepath.Clean(cleanPath)

	if cleanPath == "." || cleanPath == "/" {
		return "", fmt.Errorf("database path cannot be empty, '.', or '/'")
	}

	// Windows: reject bare drive letters (e.g., "C:", "D:")
	if runtime.GOOS == "windows" && len(cleanPath) == 2 && cleanPath[1] == ':' {
		return "", fmt.Errorf("database path cannot be a bare drive letter")
	}

	if strings.Contains(cleanPath, "..") {
		return "", fmt.Errorf("database path cannot contain '..'")
	}

	badPatterns := []string{
		".git",
		".svn",
		"node_modules",
		".env",
		"credentials",
		"secret",
	}
	lowerPath := strings.ToLower(cleanPath)
	for _, pattern := range badPatterns {
		if strings.Contains(lowerPath, pattern) {
			return "", fmt.Errorf("database path cannot contain '%s' directory", pattern)
		}
	}

	return cleanPath, nil
}

// resolveDBPath picks the flag, then the config, then the default location.
func resolveDBPath() (string, error) {
	path := dbPath
	if path == "" && cfg != nil {
		path = cfg.Server.DBPath
	}
	if path == "" {
		path = getDefaultDBPath()
	}
	return validateAndCleanDBPath(path)
}

func runServe(cmd *cobra.Command, args []string) error {
	path, err := resolveDBPath()
	if err != nil {
		return err
	}
	if port == "" {
		port = cfg.Server.Port
	}

	srv, err := newServer(cfg, path)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{
		Addr:              ":" + port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	log.Info().Str("addr", httpSrv.Addr).Str("db", path).Msg("hbx server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// server is the assembled fake management server.
type server struct {
	http.Handler
	store *store.Store
}

// Close stops service background work and closes the database.
func (s *server) Close() error {
	closeServices()
	return s.store.Close()
}

func newServer(c *config.Config, dbPath string) (*server, error) {
	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	authSvc, err := auth.NewService(c.Server.JWTSecret, c.Server.TokenExpiry())
	if err != nil {
		s.Close()
		return nil, err
	}
	m := metrics.New()

	if err := core.InitAll(core.Deps{
		DB:      s.DB(),
		Store:   s,
		Auth:    authSvc,
		Metrics: m,
		Server:  c.Server,
	}); err != nil {
		s.Close()
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware(s, m))
	r.Use(authSvc.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		for _, svc := range core.All() {
			svc.RegisterRoutes(r)
		}
	})

	for _, svc := range core.All() {
		sp, ok := svc.(core.SocketProvider)
		if !ok {
			continue
		}
		for _, ns := range sp.Namespaces() {
			r.Handle("/ws/"+ns.Namespace(), ns)
		}
	}

	admin.NewHandlers(s).RegisterRoutes(r)

	return &server{Handler: r, store: s}, nil
}

func closeServices() {
	for _, svc := range core.All() {
		if c, ok := svc.(core.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Str("service", svc.Name()).Msg("failed to stop service")
			}
		}
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	path, err := resolveDBPath()
	if err != nil {
		return err
	}

	var filter string
	if len(args) > 0 {
		filter = args[0]
	}
	return seedDatabase(cmd.Context(), path, filter)
}

func runReset(cmd *cobra.Command, args []string) error {
	path, err := resolveDBPath()
	if err != nil {
		return err
	}

	// Remove existing database - ignore if file doesn't exist
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing database: %w", err)
		}
	}
	return seedDatabase(cmd.Context(), path, "")
}

func seedDatabase(ctx context.Context, path, filter string) error {
	srv, err := newServer(cfg, path)
	if err != nil {
		return err
	}
	defer srv.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	catalog, err := seed.NewGenerator().Generate(ctx, seedCount)
	if err != nil {
		return err
	}
	return seedServices(ctx, catalog, filter)
}

func seedServices(ctx context.Context, catalog *seed.Catalog, filter string) error {
	if filter != "" {
		if _, ok := core.Get(filter); !ok {
			return fmt.Errorf("service '%s' not found (available: %s)", filter, strings.Join(core.Names(), ", "))
		}
	}

	total := 0
	for _, svc := range core.All() {
		if filter != "" && svc.Name() != filter {
			continue
		}
		data, err := svc.Seed(ctx, catalog)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				log.Warn().Str("service", svc.Name()).Msg("database already contains seed data, use 'hbx reset' to reseed")
				continue
			}
			return fmt.Errorf("failed to seed %s: %w", svc.Name(), err)
		}
		for _, n := range data.Records {
			total += n
		}
		log.Info().Str("service", svc.Name()).Msg(data.Summary)
	}

	log.Info().Int("records", total).Msg("seeding complete")
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getDefaultDBPath returns the default database path following XDG Base Directory spec
// Priority: HBX_DB_PATH env var > ./hbx.db > XDG_DATA_HOME/hbx/hbx.db
func getDefaultDBPath() string {
	if envPath := strings.TrimSpace(getEnv("HBX_DB_PATH", "")); envPath != "" {
		envPath = filepath.Clean(envPath)
		if envPath != "." {
			return envPath
		}
		log.Warn().Msg("HBX_DB_PATH is invalid (empty or '.'), using default path")
	}

	cwdPath := "./hbx.db"
	if _, err := os.Stat(cwdPath); err == nil {
		return cwdPath
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil || homeDir == "" || homeDir == "/" {
			log.Warn().Err(err).Str("home", homeDir).Msg("could not determine home directory, using ./hbx.db")
			return cwdPath
		}

		// Windows: %LOCALAPPDATA% or ~/AppData/Local
		// Unix/Linux/macOS: ~/.local/share (XDG spec)
		if runtime.GOOS == "windows" {
			dataHome = os.Getenv("LOCALAPPDATA")
			if dataHome == "" {
				dataHome = filepath.Join(homeDir, "AppData", "Local")
			}
		} else {
			dataHome = filepath.Join(homeDir, ".local", "share")
		}
	}

	dataDir := filepath.Join(dataHome, "hbx")
	xdgDBPath := filepath.Join(dataDir, "hbx.db")

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Warn().Err(err).Str("dir", dataDir).Msg("could not create data directory, using ./hbx.db")
		return cwdPath
	}

	testFile := filepath.Join(dataDir, ".write-test")
	f, err := os.Create(testFile)
	if err != nil {
		log.Warn().Err(err).Str("dir", dataDir).Msg("cannot write to data directory, using ./hbx.db")
		return cwdPath
	}
	f.Close()
	os.Remove(testFile)

	log.Debug().Str("path", xdgDBPath).Msg("using database location")
	return xdgDBPath
}
