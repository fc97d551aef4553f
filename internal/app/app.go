package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/simgraph/internal/data/db"
	"github.com/yungbote/simgraph/internal/data/graph"
	"github.com/yungbote/simgraph/internal/data/repos/runs"
	"github.com/yungbote/simgraph/internal/dataset"
	types "github.com/yungbote/simgraph/internal/domain"
	httpserver "github.com/yungbote/simgraph/internal/http"
	httpH "github.com/yungbote/simgraph/internal/http/handlers"
	"github.com/yungbote/simgraph/internal/observability"
	"github.com/yungbote/simgraph/internal/pipeline"
	"github.com/yungbote/simgraph/internal/pkg/dbctx"
	"github.com/yungbote/simgraph/internal/platform/logger"
	"github.com/yungbote/simgraph/internal/platform/neo4jdb"
	"github.com/yungbote/simgraph/internal/platform/redislock"
)

// Version is stamped at build time.
var Version = "dev"

type App struct {
	Log     *logger.Logger
	Cfg     Config
	DB      *gorm.DB
	Neo4j   *neo4jdb.Client
	Graph   *graph.SimilarityGraph
	Runs    runs.IngestRunRepo
	Metrics *observability.Metrics

	otelShutdown func(context.Context) error
}

func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	shutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "simgraph",
		Environment: cfg.Env,
		Version:     Version,
	})

	ledger, err := db.Open(cfg.Ledger.DSN, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	client, err := neo4jdb.New(cfg.Neo4j, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	g, err := graph.NewSimilarityGraph(client, cfg.Dataset.ClusterColumns, log)
	if err != nil {
		_ = client.Close(ctx)
		log.Sync()
		return nil, err
	}

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           ledger,
		Neo4j:        client,
		Graph:        g,
		Runs:         runs.NewIngestRunRepo(ledger, log),
		Metrics:      observability.Init(),
		otelShutdown: shutdown,
	}, nil
}

type IngestOptions struct {
	Resume     bool
	ExportPath string
}

// Ingest runs the pipeline once against the configured dataset and store.
func (a *App) Ingest(ctx context.Context, opts IngestOptions) (pipeline.Result, error) {
	locker, err := redislock.New(ctx, a.Cfg.Redis.Addr, a.Log)
	if err != nil {
		return pipeline.Result{}, err
	}
	defer locker.Close()

	runner := pipeline.NewRunner(dataset.NewOpener(a.Log), a.Graph, a.Runs, locker, a.Metrics, a.Log)
	runner.Backoff = a.Cfg.Ingest.Backoff
	runner.Workers = a.Cfg.Similarity.Workers
	runner.MaxEntities = a.Cfg.Similarity.MaxEntities
	runner.LockTTL = a.Cfg.Redis.LockTTL

	return runner.Run(ctx, pipeline.Options{
		Dataset:    a.Cfg.Dataset.Location,
		Schema:     a.Cfg.Schema(),
		Threshold:  a.Cfg.Similarity.Threshold,
		BatchSize:  a.Cfg.Ingest.BatchSize,
		Resume:     opts.Resume,
		ExportPath: opts.ExportPath,
	})
}

// Serve runs the read API until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	srv := httpserver.NewServer(a.Cfg.HTTP.Addr, httpserver.RouterConfig{
		Log:            a.Log,
		Metrics:        a.Metrics,
		ServiceName:    "simgraph",
		AllowedOrigins: a.Cfg.HTTP.AllowedOrigins,
		HealthHandler:  httpH.NewHealthHandler(a.Graph),
		GraphHandler:   httpH.NewGraphHandler(a.Log, a.Graph),
		RunsHandler:    httpH.NewRunsHandler(a.Log, a.Runs),
	})
	return srv.Run(ctx)
}

func (a *App) ListRuns(ctx context.Context, limit int) ([]*types.IngestRun, error) {
	return a.Runs.ListRecent(dbctx.Context{Ctx: ctx}, limit)
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Neo4j != nil {
		if err := a.Neo4j.Close(ctx); err != nil {
			a.Log.Warn("neo4j close failed", "error", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	a.Log.Sync()
}
