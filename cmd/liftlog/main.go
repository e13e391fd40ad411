package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"tailscale.com/tsnet"

	"github.com/claude/liftlog/internal/artifact"
	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/events"
	"github.com/claude/liftlog/internal/export"
	"github.com/claude/liftlog/internal/ingest/textlog"
	"github.com/claude/liftlog/internal/line"
	liftmcp "github.com/claude/liftlog/internal/mcp"
	"github.com/claude/liftlog/internal/processor"
	"github.com/claude/liftlog/internal/secrets"
	"github.com/claude/liftlog/internal/server"
	"github.com/claude/liftlog/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (empty for env only)")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	// A missing .env is normal in deployed environments.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		slog.Error("invalid server config", "error", err)
		os.Exit(1)
	}

	log := cfg.Log.NewLogger(os.Stdout)
	log.Info("liftlog starting", "version", Version)

	loc, err := cfg.Store.Location()
	if err != nil {
		log.Error("invalid time zone", "error", err)
		os.Exit(1)
	}

	// Run migrations
	target := cfg.Store.Target()
	if err := storage.Migrate(cfg.Store.Driver, target); err != nil {
		log.Error("migration failed", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied", "driver", cfg.Store.Driver)

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	ctx := context.Background()

	// Resolve LINE credentials (inline values win over Secret Manager)
	resolver := secrets.NewResolver(cfg.Secrets.ProjectID, log)
	accessToken, err := resolver.Resolve(ctx, cfg.Line.ChannelAccessToken, cfg.Line.AccessTokenSecret)
	if err != nil {
		log.Error("failed to resolve LINE access token", "error", err)
		os.Exit(1)
	}
	channelSecret, err := resolver.Resolve(ctx, cfg.Line.ChannelSecret, cfg.Line.ChannelSecretSecret)
	if err != nil {
		log.Error("failed to resolve LINE channel secret", "error", err)
		os.Exit(1)
	}
	if channelSecret == "" {
		log.Warn("no LINE channel secret configured: webhook signatures are not verified")
	}

	// Connect training log
	store, err := storage.Open(ctx, cfg.Store.Driver, target, storage.Options{
		Location:    loc,
		LockTimeout: cfg.Store.LockTimeout,
	})
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("store connected", "driver", cfg.Store.Driver, "time_zone", loc.String())

	// Export artifact backend
	var artifacts artifact.Store
	var localFiles server.ArtifactFiles
	switch cfg.Export.Backend {
	case "gcs":
		gcs, err := artifact.NewGCS(ctx, cfg.Export.Bucket, cfg.Export.Prefix, cfg.Export.CredentialsFile)
		if err != nil {
			log.Error("failed to create storage client", "error", err)
			os.Exit(1)
		}
		defer gcs.Close()
		artifacts = gcs
	default:
		local, err := artifact.NewLocal(cfg.Export.Dir, cfg.Export.PublicBaseURL)
		if err != nil {
			log.Error("failed to prepare export dir", "error", err)
			os.Exit(1)
		}
		artifacts = local
		localFiles = local
	}
	log.Info("export backend ready", "backend", cfg.Export.Backend)

	// Optional event notifications
	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		nc, err := events.NewClient(ctx, cfg.NATS.URL, cfg.NATS.Token, log)
		if err != nil {
			log.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		publisher = nc
	}

	exporter := export.NewExporter(store, artifacts, loc, cfg.Export.FileName, log)
	proc := processor.New(
		store,
		textlog.NewProvider(store, loc, log),
		exporter,
		line.NewClient(accessToken, log),
		publisher,
		log,
	)

	mcpHandler := liftmcp.NewHTTPHandler(liftmcp.New(store, Version, log))

	srv := server.New(server.Deps{
		Events:    proc,
		Exports:   exporter,
		Artifacts: localFiles,
		MCP:       mcpHandler,
		Location:  loc,
	}, channelSecret, cfg.Auth.APIKey, log)

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		if cfg.Tailscale.Funnel {
			// The LINE platform must reach the webhook from the public internet.
			listener, err = tsServer.ListenFunnel("tcp", ":443")
		} else {
			listener, err = tsServer.Listen("tcp", ":80")
		}
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname, "funnel", cfg.Tailscale.Funnel)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr)
	}

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
