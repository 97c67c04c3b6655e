package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coreconfig "github.com/devilmonastery/sessionshare/internal/config"
	"github.com/devilmonastery/sessionshare/internal/domain/services"
	"github.com/devilmonastery/sessionshare/internal/infrastructure/storage"
	"github.com/devilmonastery/sessionshare/internal/pkg/idgen"
	"github.com/devilmonastery/sessionshare/internal/pkg/logger"
	"github.com/devilmonastery/sessionshare/web/internal/config"
	"github.com/devilmonastery/sessionshare/web/internal/handlers"
	"github.com/devilmonastery/sessionshare/web/internal/middleware"
	"github.com/devilmonastery/sessionshare/web/internal/session"
)

// setupWebLogging configures the global logger for the web service
func setupWebLogging(cfg config.LoggingConfig) error {
	loggerCfg := logger.Config{
		Level:         logger.ParseLevel(cfg.Level),
		LogFile:       cfg.File,
		LogToStderr:   true,
		AlsoLogStderr: cfg.File != "",
		Format:        cfg.Format,
	}

	globalLogger, err := logger.SetupLogger(loggerCfg)
	if err != nil {
		return err
	}

	// Set as default logger so all slog.Info/Warn/Error calls use our configured logger
	slog.SetDefault(globalLogger)

	return nil
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging (must be done before any logging calls)
	if err = setupWebLogging(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to setup logging: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("web service stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.WebServerConfig) error {
	log := slog.Default().With("component", "web")
	log.Info("starting sessionshare web service", slog.String("version", handlers.Version))

	if err := idgen.Initialize(cfg.Snowflake.NodeID); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := storage.Open(ctx, &cfg.Config, storage.Options{})
	if err != nil {
		return err
	}
	defer backend.Close()
	repos := backend.Repos

	settings := coreconfig.NewSettingsStore(repos.Settings, cfg.SessionSharing)
	if _, err := settings.Reload(ctx); err != nil {
		// Not fatal: the gate passes everything through until settings are fixed
		log.Warn("session sharing not ready", slog.Any("error", err))
	}
	go reloadOnHangup(ctx, settings, log)

	accounts := services.NewAccountService(repos.Users, repos.Audit)
	resolver := services.NewIdentityResolver(repos.Identities, repos.Users, accounts, repos.Audit)
	pipeline := services.NewSessionSharing(settings, resolver)

	sessionSecret, err := loadSessionSecret(cfg.Session.Secret, log)
	if err != nil {
		return err
	}
	sessionPath := cfg.RelativePath()
	if sessionPath == "" {
		sessionPath = "/"
	}
	sessionMgr := session.NewManager(sessionSecret, sessionPath, cfg.Session.Secure)

	blacklist, err := cfg.BlacklistPattern()
	if err != nil {
		return err
	}

	gate := middleware.NewSessionGate(middleware.GateOptions{
		Sessions:     sessionMgr,
		Pipeline:     pipeline,
		Users:        accounts,
		Blacklist:    blacklist,
		BaseURL:      cfg.Server.BaseURL,
		RelativePath: cfg.RelativePath(),
		Logger:       log,
	})

	h := handlers.New(sessionMgr, pipeline, repos.Audit, backend, cfg.RelativePath()+"/", log)
	router := createRouter(h, gate, cfg.RelativePath())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("address", addr), slog.String("store", backend.Name))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// reloadOnHangup re-reads persisted settings on SIGHUP
func reloadOnHangup(ctx context.Context, settings *coreconfig.SettingsStore, log *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			log.Info("reloading session sharing settings")
			if _, err := settings.Reload(ctx); err != nil {
				log.Warn("settings reload", slog.Any("error", err))
			}
		}
	}
}

// loadSessionSecret picks the cookie signing key: env var > config file > random
func loadSessionSecret(configured string, log *slog.Logger) ([]byte, error) {
	if envSecret := os.Getenv("SESSION_SECRET"); envSecret != "" {
		secret, err := base64.StdEncoding.DecodeString(envSecret)
		if err == nil {
			log.Info("using session secret (sessions will persist across restarts)", slog.String("source", "environment variable"))
			return secret, nil
		}
		log.Warn("failed to decode SESSION_SECRET env var, trying config", slog.Any("error", err))
	}

	if configured != "" {
		secret, err := base64.StdEncoding.DecodeString(configured)
		if err == nil {
			log.Info("using session secret (sessions will persist across restarts)", slog.String("source", "config file"))
			return secret, nil
		}
		log.Warn("failed to decode session secret from config", slog.Any("error", err))
	}

	log.Warn("no session secret configured, generating random one (sessions won't persist)")
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	return secret, nil
}

// createRouter sets up the HTTP router with all routes and middleware.
// Operational endpoints sit outside the session gate.
func createRouter(h *handlers.Handler, gate *middleware.SessionGate, relativePath string) http.Handler {
	forum := mux.NewRouter()
	forum.Use(middleware.RouteLabel)
	base := forum
	if relativePath != "" {
		base = forum.PathPrefix(relativePath).Subrouter()
	}
	base.Handle("/api/me", middleware.RequireUser(http.HandlerFunc(h.Me))).Methods("GET")
	base.HandleFunc("/logout", h.Logout).Methods("GET", "POST")

	router := mux.NewRouter()
	router.Use(middleware.RouteLabel)
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.HandleFunc("/version", h.VersionInfo).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.PathPrefix("/").Handler(gate.Handler(middleware.CaptureUser(forum)))

	// Wrap router with logging middleware
	return middleware.LogRequest(router)
}
