package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/filestore-backup-manager/internal/backup"
	"github.com/Chapsvision-dev/filestore-backup-manager/internal/config"
	"github.com/Chapsvision-dev/filestore-backup-manager/internal/logx"
	"github.com/Chapsvision-dev/filestore-backup-manager/internal/provider"
	"github.com/Chapsvision-dev/filestore-backup-manager/internal/server"
	"github.com/Chapsvision-dev/filestore-backup-manager/internal/version"

	_ "github.com/Chapsvision-dev/filestore-backup-manager/internal/provider/azure"
	_ "github.com/Chapsvision-dev/filestore-backup-manager/internal/provider/gcp"
)

// Test seams — overridden in unit tests. Keep signatures in sync with packages.
var (
	loadConfig  func() (config.Config, error)                                  = config.Load
	newProvider func(name string, cfg config.Config) (provider.Provider, error) = provider.New
	serve       func(s *server.Server, ctx context.Context, addr string) error  = (*server.Server).Run
	exit        func(int)                                                       = os.Exit
)

const usage = `
Usage:
  manager serve
  manager create  [instance] [fileShare]
  manager list    [instance]
  manager sweep   [retentionDays]
  manager version | --version | -v
  manager help    | --help    | -h

Notes:
  - You can also set env vars:
      SOURCE_INSTANCE_NAME, SOURCE_FILE_SHARE_NAME, RETENTION_DAYS
  - Provider is selected with BACKUP_PROVIDER (default: gcp).
  - GCP: GCP_PROJECT_ID, FILESTORE_SOURCE_ZONE, FILESTORE_BACKUP_REGION, GCP_AUTH_METHOD (adc|keyfile|token)
  - serve listens on HTTP_ADDR (default :$PORT or :8080)
`

// main wires CLI -> config -> provider -> lifecycle manager -> action.
// Exit codes: 0 success, 1 runtime error, 2 usage error.
func main() {
	_ = godotenv.Load() // best-effort
	logx.InitFromEnv()

	args := os.Args[1:]
	if len(args) < 1 {
		fmt.Print(usage)
		exit(2)
		return
	}
	action := strings.ToLower(args[0])

	// Handle version command
	if action == "version" || action == "--version" || action == "-v" {
		fmt.Printf("%s %s\n", version.Product, version.Info())
		exit(0)
		return
	}

	// Handle help command
	if action == "help" || action == "--help" || action == "-h" {
		fmt.Print(usage)
		exit(0)
		return
	}

	switch action {
	case "serve", "create", "list", "sweep":
	default:
		fmt.Print(usage)
		exit(2)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("config error")
		exit(1)
		return
	}

	// Build provider from config.
	p, err := newProvider(cfg.Provider, cfg)
	if err != nil {
		log.Error().Err(err).Str("provider", cfg.Provider).Msg("provider init error")
		exit(1)
		return
	}
	mgr := backup.NewManager(p, backup.WithTimeout(cfg.RequestTimeout))

	ctx := withSignals(context.Background())
	start := time.Now()

	switch action {
	case "serve":
		if err := serve(server.New(mgr), ctx, cfg.HTTPAddr); err != nil {
			log.Error().Err(err).Str("action", "serve").Str("addr", cfg.HTTPAddr).Msg("server failed")
			exit(1)
			return
		}

	case "create":
		instance := pickArgOrEnv(2, "SOURCE_INSTANCE_NAME", "")
		share := pickArgOrEnv(3, "SOURCE_FILE_SHARE_NAME", "")
		id, err := mgr.Create(ctx, backup.CreateRequest{SourceInstance: instance, SourceFileShare: share})
		if err != nil {
			log.Error().Err(err).Str("action", "create").Str("instance", instance).Msg("create failed")
			exit(codeFor(err))
			return
		}
		fmt.Printf("Backup created successfully: %s\n", id)
		log.Info().Str("action", "create").Str("provider", cfg.Provider).Str("backup_id", id).
			Dur("elapsed_ms", time.Since(start)).Msg("create OK")

	case "list":
		instance := pickArgOrEnv(2, "SOURCE_INSTANCE_NAME", "")
		recs, err := mgr.List(ctx, instance)
		if err != nil {
			log.Error().Err(err).Str("action", "list").Str("instance", instance).Msg("list failed")
			exit(codeFor(err))
			return
		}
		if recs == nil {
			recs = []backup.Record{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(recs)

	case "sweep":
		raw := pickArgOrEnv(2, "RETENTION_DAYS", "")
		days, err := strconv.Atoi(raw)
		if err != nil {
			log.Error().Str("action", "sweep").Str("retention_days", raw).Msg("retention days must be an integer")
			fmt.Print(usage)
			exit(2)
			return
		}
		res, err := mgr.DeleteExpired(ctx, days)
		if err != nil {
			log.Error().Err(err).Str("action", "sweep").Int("deleted", res.Count()).Msg("sweep failed")
			exit(codeFor(err))
			return
		}
		fmt.Printf("Backup deletion triggered successfully. deleted=%d scanned=%d\n", res.Count(), res.Scanned)
	}
	exit(0)
}

// codeFor maps argument errors to the usage exit code.
func codeFor(err error) int {
	if backup.IsInvalidArgument(err) {
		return 2
	}
	return 1
}

func pickArgOrEnv(idx int, env string, def string) string {
	if len(os.Args) > idx && os.Args[idx] != "" {
		return os.Args[idx]
	}
	if v, ok := os.LookupEnv(env); ok && v != "" {
		return v
	}
	return def
}

func withSignals(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()
	return ctx
}
