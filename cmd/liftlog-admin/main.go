package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/joho/godotenv"

	"github.com/claude/liftlog/internal/artifact"
	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/export"
	"github.com/claude/liftlog/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (empty for env only)")
	doExport := flag.Bool("export", false, "publish the JSON export and print its URL")
	allow := flag.String("allow", "", "add a sender ID to the allowlist")
	revoke := flag.String("revoke", "", "remove a sender ID from the allowlist")
	list := flag.Bool("list", false, "print the allowlisted sender IDs")
	flag.Parse()

	if !*doExport && *allow == "" && *revoke == "" && !*list {
		fmt.Fprintf(os.Stderr, "Usage: liftlog-admin -config config.yaml [-export] [-allow ID] [-revoke ID] [-list]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := cfg.Log.NewLogger(os.Stderr)

	loc, err := cfg.Store.Location()
	if err != nil {
		log.Error("invalid time zone", "error", err)
		os.Exit(1)
	}

	target := cfg.Store.Target()
	if err := storage.Migrate(cfg.Store.Driver, target); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.Store.Driver, target, storage.Options{
		Location:    loc,
		LockTimeout: cfg.Store.LockTimeout,
	})
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *allow != "" {
		if err := store.AddAllowedSender(ctx, *allow); err != nil {
			log.Error("allow failed", "sender", *allow, "error", err)
			os.Exit(1)
		}
		log.Info("sender allowed", "sender", *allow)
	}

	if *revoke != "" {
		removed, err := store.RemoveAllowedSender(ctx, *revoke)
		if err != nil {
			log.Error("revoke failed", "sender", *revoke, "error", err)
			os.Exit(1)
		}
		if !removed {
			log.Warn("sender was not allowlisted", "sender", *revoke)
		} else {
			log.Info("sender revoked", "sender", *revoke)
		}
	}

	if *list {
		allowed, err := store.AllowedSenders(ctx)
		if err != nil {
			log.Error("list failed", "error", err)
			os.Exit(1)
		}
		ids := make([]string, 0, len(allowed))
		for id := range allowed {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Println(id)
		}
	}

	if *doExport {
		artifacts, closeFn, err := openArtifacts(ctx, cfg.Export)
		if err != nil {
			log.Error("failed to open export backend", "error", err)
			os.Exit(1)
		}
		defer closeFn()

		result, err := export.NewExporter(store, artifacts, loc, cfg.Export.FileName, log).Export(ctx)
		if err != nil {
			log.Error("export failed", "error", err)
			os.Exit(1)
		}
		log.Info("export complete", "entries", result.Entries, "sets", result.Sets)
		fmt.Println(result.URL)
	}
}

func openArtifacts(ctx context.Context, cfg config.ExportConfig) (artifact.Store, func(), error) {
	if cfg.Backend == "gcs" {
		gcs, err := artifact.NewGCS(ctx, cfg.Bucket, cfg.Prefix, cfg.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return gcs, func() { gcs.Close() }, nil
	}
	local, err := artifact.NewLocal(cfg.Dir, cfg.PublicBaseURL)
	if err != nil {
		return nil, nil, err
	}
	return local, func() {}, nil
}
