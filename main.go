// Command followspot is the main entrypoint for the followed-channels sync
// service. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Starts the sync scheduler that polls Twitch and reconciles the
//     followed-channel snapshot, plus the token validator.
//   - Exposes an HTTP server with the panel API, /healthz, /status, /metrics
//     and a Server-Sent Events stream of sync notifications.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/followspot/followspot/bus"
	"github.com/followspot/followspot/config"
	"github.com/followspot/followspot/db"
	"github.com/followspot/followspot/follows"
	"github.com/followspot/followspot/oauth"
	"github.com/followspot/followspot/prefs"
	"github.com/followspot/followspot/rpc"
	"github.com/followspot/followspot/server"
	"github.com/followspot/followspot/telemetry"
	"github.com/followspot/followspot/twitchapi"
)

// storedTokenSource reads the current access token from the credential store
// on every request, so a re-login takes effect without restarting.
type storedTokenSource struct {
	creds *db.CredentialStore
}

func (s *storedTokenSource) Token(ctx context.Context) (string, error) {
	return s.creds.GetToken(ctx)
}

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateAPIReady(); err != nil {
		slog.Warn("twitch api not fully configured", slog.Any("err", err))
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("followspot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Migrations: versioned files when present, embedded SQL otherwise.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores
	creds := &db.CredentialStore{DB: database}
	snapshots := &db.SnapshotStore{DB: database}
	kv := &db.KVStore{DB: database}

	// Helix client backed by the stored credential
	client := &twitchapi.Client{
		TokenSource: &storedTokenSource{creds: creds},
		ClientID:    cfg.TwitchClientID,
		APIBaseURL:  cfg.APIBaseURL,
		AuthBaseURL: cfg.AuthBaseURL,
		HTTPClient:  &http.Client{Timeout: cfg.HTTPTimeout},
	}

	// Preferences
	preferences := prefs.New(kv)
	if err := preferences.MigrateLegacy(ctx); err != nil {
		slog.Warn("preference migration failed", slog.Any("err", err))
	}

	// Event bus, scheduler, command dispatcher
	events := bus.New()
	scheduler := follows.NewScheduler(client, creds, snapshots, events, cfg.PollInterval)
	broker := rpc.NewBroker(16)
	dispatcher := &rpc.Dispatcher{Broker: broker, Service: scheduler}
	go dispatcher.Run(ctx)

	// Periodic token validation (implicit-grant tokens cannot be refreshed)
	oauth.StartValidator(ctx, client, creds, cfg.ValidateInterval)

	// Sync scheduler
	go scheduler.Run(ctx)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (panel API, health, status, metrics, events)
	handlers := server.NewHandlers(database, broker, scheduler, events, preferences, cfg)
	go func() {
		if err := server.Start(ctx, handlers, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
	broker.Close()
}
