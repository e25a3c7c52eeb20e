package main

import (
	"context"
	"flag"
	"time"

	"github.com/2beens/engblog/internal/blog"
	"github.com/2beens/engblog/internal/config"
	"github.com/2beens/engblog/internal/db"
	"github.com/2beens/engblog/internal/logging"
	"github.com/2beens/engblog/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// Rewrites blog rows saved before the status column existed, so that status,
// is_published and published_at agree again.
func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development | ddev | dockerdev ]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	dryRun := flag.Bool("dry-run", false, "only report what would change")
	timeout := flag.Duration("timeout", 5*time.Minute, "give up after this long")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg, err := config.Load(ctx, *env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}

	if err := logging.Setup(logging.LoggerSetupParams{
		LogLevel:    cfg.LogLevel,
		Environment: cfg.Environment,
	}); err != nil {
		log.Fatalf("logging setup: %s", err)
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:     cfg.PostgresHost,
		DBPort:     cfg.PostgresPort,
		DBName:     cfg.PostgresDBName,
		DBUser:     cfg.PostgresUser,
		DBPassword: cfg.Secrets.PostgresPassword,
	})
	if err != nil {
		log.Fatalf("new db pool: %s", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatalf("ping db: %s", err)
	}

	service := blog.NewService(blog.ServiceParams{
		Repo:    blog.NewRepo(dbPool),
		Metrics: metrics.NewManager("engblog", "legacy_backfill", prometheus.NewRegistry()),
	})

	if *dryRun {
		log.Warnln("dry run, nothing will be written")
	}

	report, err := service.ReconcileLegacy(ctx, *dryRun)
	log.Infof(
		"legacy backfill: scanned %d, published %d, drafts %d",
		report.Scanned, report.Published, report.Drafts,
	)
	if err != nil {
		log.Fatalf("reconcile legacy posts: %s", err)
	}
}
