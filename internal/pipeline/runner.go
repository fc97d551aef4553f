package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/yungbote/simgraph/internal/data/repos/runs"
	"github.com/yungbote/simgraph/internal/dataset"
	types "github.com/yungbote/simgraph/internal/domain"
	"github.com/yungbote/simgraph/internal/gate"
	"github.com/yungbote/simgraph/internal/ingest"
	"github.com/yungbote/simgraph/internal/observability"
	"github.com/yungbote/simgraph/internal/pkg/dbctx"
	apperrors "github.com/yungbote/simgraph/internal/pkg/errors"
	"github.com/yungbote/simgraph/internal/platform/logger"
	"github.com/yungbote/simgraph/internal/platform/redislock"
	"github.com/yungbote/simgraph/internal/similarity"
)

const (
	DefaultLockKey = "ingest"
	DefaultLockTTL = time.Hour
)

// Graph is the store surface the pipeline needs.
type Graph interface {
	gate.Prober
	gate.FootprintCounter
	ingest.EdgeWriter
	EnsureSchema(ctx context.Context)
	// InvalidateProjections drops derived read-side projections so the next
	// query rebuilds them from the committed edges.
	InvalidateProjections(ctx context.Context)
}

type Options struct {
	Dataset   string
	Schema    dataset.Schema
	Threshold float64
	BatchSize int
	// Resume continues the latest failed run of the same dataset from its
	// next uncommitted batch, even though the store is already populated.
	Resume bool
	// ExportPath, when set, receives the edge set as CSV before ingestion.
	ExportPath string
}

type Result struct {
	RunID            uuid.UUID
	Fingerprint      string
	Skipped          bool
	Resumed          bool
	Occupancy        gate.Occupancy
	Footprint        int64
	Entities         int
	Pairs            int
	StartBatch       int
	BatchesTotal     int
	BatchesCommitted int
	EdgesCommitted   int
}

// Runner executes one ingestion run end to end. Runs is optional; without
// a ledger there is no resume.
type Runner struct {
	Opener  *dataset.Opener
	Graph   Graph
	Runs    runs.IngestRunRepo
	Locker  redislock.Locker
	Metrics *observability.Metrics

	Backoff     time.Duration
	Workers     int
	MaxEntities int
	LockKey     string
	LockTTL     time.Duration
	// LockRefresh is the lease heartbeat period; <=0 means LockTTL/3.
	LockRefresh time.Duration
	// NewReadiness overrides the readiness gate, for tests.
	NewReadiness func(p gate.Prober) *gate.Readiness

	log *logger.Logger
}

func NewRunner(opener *dataset.Opener, graph Graph, ledger runs.IngestRunRepo, locker redislock.Locker, metrics *observability.Metrics, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	if locker == nil {
		locker = redislock.Noop{}
	}
	return &Runner{
		Opener:  opener,
		Graph:   graph,
		Runs:    ledger,
		Locker:  locker,
		Metrics: metrics,
		Backoff: gate.DefaultBackoff,
		LockKey: DefaultLockKey,
		LockTTL: DefaultLockTTL,
		log:     log.With("service", "PipelineRunner"),
	}
}

func (r *Runner) Run(ctx context.Context, opts Options) (res Result, err error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.run", attribute.String("dataset", opts.Dataset))
	defer func() {
		observability.EndSpan(span, err)
		switch {
		case err != nil:
			r.Metrics.IncRun(types.IngestRunFailed)
		case res.Skipped:
			r.Metrics.IncRun(types.IngestRunSkipped)
		default:
			r.Metrics.IncRun(types.IngestRunSucceeded)
		}
	}()

	if math.IsNaN(opts.Threshold) || opts.Threshold < -1 || opts.Threshold > 1 {
		return res, fmt.Errorf("threshold %v outside [-1,1]: %w", opts.Threshold, apperrors.ErrInvalidInput)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = ingest.DefaultBatchSize
	}

	// Dataset errors are fatal and surface before the store is touched.
	var ds *dataset.Dataset
	if err := r.stage(ctx, "load", func(ctx context.Context) error {
		var lerr error
		ds, lerr = dataset.Load(ctx, r.Opener, opts.Dataset, opts.Schema)
		return lerr
	}); err != nil {
		return res, err
	}
	res.Entities = len(ds.Entities)
	res.Fingerprint = Fingerprint(ds.Fingerprint, opts.Threshold, opts.Schema.ClusterColumns)
	log := r.log.With("fingerprint", res.Fingerprint[:12], "dataset", opts.Dataset)
	log.Info("dataset loaded", "entities", res.Entities)

	readiness := r.readiness()
	if err := r.stage(ctx, "readiness", readiness.WaitReady); err != nil {
		return res, err
	}

	// The lock covers the idempotency check through the last batch; the
	// unbounded readiness wait stays outside it.
	lease, err := r.Locker.Acquire(ctx, r.LockKey, r.lockTTL())
	if err != nil {
		return res, err
	}
	ctx, stopHeartbeat := r.holdLease(ctx, lease, log)
	defer func() {
		stopHeartbeat()
		if cause := context.Cause(ctx); err != nil && errors.Is(cause, apperrors.ErrLockLost) && !errors.Is(err, apperrors.ErrLockLost) {
			err = fmt.Errorf("%w: %w", cause, err)
		}
		if rerr := lease.Release(context.WithoutCancel(ctx)); rerr != nil {
			log.Warn("run lock release failed", "error", rerr)
		}
	}()

	occ, footprint, err := gate.CheckIdempotency(ctx, r.Graph)
	if err != nil {
		return res, err
	}
	res.Occupancy, res.Footprint = occ, footprint

	// An empty store always starts from batch 0, whatever the ledger says.
	var prior *types.IngestRun
	if opts.Resume && occ == gate.OccupancyPopulated {
		prior, err = r.resumable(ctx, res.Fingerprint)
		if err != nil {
			return res, err
		}
	}
	if occ == gate.OccupancyPopulated && prior == nil {
		log.Info("store already populated; skipping ingestion", "footprint", footprint)
		res.Skipped = true
		run := r.newRun(res.Fingerprint, opts, types.IngestRunSkipped)
		now := time.Now().UTC()
		run.FinishedAt = &now
		if err := r.createRun(ctx, run); err != nil {
			return res, err
		}
		res.RunID = run.ID
		return res, nil
	}

	var edges []types.SimilarityEdge
	if err := r.stage(ctx, "similarity", func(ctx context.Context) error {
		var berr error
		edges, res.Pairs, berr = r.buildEdges(ctx, ds, opts)
		return berr
	}); err != nil {
		return res, err
	}
	r.Metrics.SetDatasetShape(res.Entities, res.Pairs)
	log.Info("similarity edges built", "pairs", res.Pairs, "threshold", opts.Threshold)

	if opts.ExportPath != "" {
		if err := r.stage(ctx, "export", func(context.Context) error {
			return ExportEdges(r.Opener.FS, opts.ExportPath, edges)
		}); err != nil {
			return res, err
		}
		log.Info("edges exported", "path", opts.ExportPath)
	}

	batchSize := opts.BatchSize
	var run *types.IngestRun
	if prior != nil {
		run = prior
		if prior.BatchSize > 0 {
			batchSize = prior.BatchSize
		}
		res.Resumed = true
		res.StartBatch = prior.NextBatch
		log.Info("resuming failed run", "run_id", prior.ID, "next_batch", prior.NextBatch)
		r.updateRun(ctx, run.ID, map[string]interface{}{"status": types.IngestRunRunning, "error": ""})
	} else {
		run = r.newRun(res.Fingerprint, opts, types.IngestRunRunning)
		if err := r.createRun(ctx, run); err != nil {
			return res, err
		}
	}
	res.RunID = run.ID
	batches := (len(edges) + batchSize - 1) / batchSize
	r.updateRun(ctx, run.ID, map[string]interface{}{
		"entities":      res.Entities,
		"edges_total":   len(edges),
		"batches_total": batches,
	})

	r.Graph.EnsureSchema(ctx)

	engine := ingest.NewEngine(r.instrumentedWriter(), r.log)
	ir, ierr := engine.Ingest(ctx, edges, ingest.Options{
		BatchSize:  batchSize,
		StartBatch: res.StartBatch,
		OnCommitted: func(ctx context.Context, p ingest.Progress) error {
			committed := (p.Batch + 1) * batchSize
			if committed > len(edges) {
				committed = len(edges)
			}
			r.updateRun(ctx, run.ID, map[string]interface{}{
				"next_batch":      p.Batch + 1,
				"edges_committed": committed,
			})
			if err := lease.Refresh(ctx, r.lockTTL()); err != nil {
				if errors.Is(err, apperrors.ErrLockLost) {
					return err
				}
				log.Warn("run lock refresh failed", "batch", p.Batch, "error", err)
			}
			return nil
		},
	})
	res.BatchesTotal = ir.BatchesTotal
	res.BatchesCommitted = ir.BatchesCommitted
	res.EdgesCommitted = ir.EdgesCommitted
	if ir.BatchesCommitted > 0 {
		r.Graph.InvalidateProjections(context.WithoutCancel(ctx))
	}

	now := time.Now().UTC()
	if ierr != nil {
		r.updateRun(ctx, run.ID, map[string]interface{}{
			"status":      types.IngestRunFailed,
			"error":       ierr.Error(),
			"finished_at": now,
		})
		var be *ingest.BatchError
		if errors.As(ierr, &be) {
			log.Error("ingestion failed", "batch", be.Index, "size", be.Size, "error", be.Err)
		}
		return res, ierr
	}
	r.updateRun(ctx, run.ID, map[string]interface{}{
		"status":      types.IngestRunSucceeded,
		"next_batch":  ir.BatchesTotal,
		"finished_at": now,
	})
	log.Info("ingestion complete", "batches", ir.BatchesTotal, "edges_committed", ir.EdgesCommitted)
	return res, nil
}

func (r *Runner) lockTTL() time.Duration {
	if r.LockTTL <= 0 {
		return DefaultLockTTL
	}
	return r.LockTTL
}

// holdLease refreshes lease in the background until stop is called. Losing
// ownership cancels the returned context with ErrLockLost as its cause.
func (r *Runner) holdLease(ctx context.Context, lease redislock.Lease, log *logger.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	every := r.LockRefresh
	if every <= 0 {
		every = r.lockTTL() / 3
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				err := lease.Refresh(ctx, r.lockTTL())
				if err == nil {
					continue
				}
				if errors.Is(err, apperrors.ErrLockLost) {
					log.Error("run lock lost; aborting run", "error", err)
					cancel(err)
					return
				}
				log.Warn("run lock refresh failed", "error", err)
			}
		}
	}()
	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			close(done)
			cancel(nil)
		})
	}
}

func (r *Runner) buildEdges(ctx context.Context, ds *dataset.Dataset, opts Options) ([]types.SimilarityEdge, int, error) {
	if err := similarity.AssignAll(ds.Entities, opts.Schema.ClusterColumns); err != nil {
		return nil, 0, err
	}
	m, err := similarity.CosineMatrix(ctx, ds.Vectors(), similarity.MatrixOptions{
		Workers:     r.Workers,
		MaxEntities: r.MaxEntities,
	})
	if err != nil {
		return nil, 0, err
	}
	pairs := similarity.ExtractPairs(m, opts.Threshold)
	edges, err := similarity.BuildEdges(ds.Entities, m, pairs)
	if err != nil {
		return nil, 0, err
	}
	return edges, len(pairs), nil
}

func (r *Runner) readiness() *gate.Readiness {
	var rd *gate.Readiness
	if r.NewReadiness != nil {
		rd = r.NewReadiness(r.Graph)
	} else {
		rd = gate.NewReadiness(r.Graph, r.Backoff, r.log)
	}
	prev := rd.OnTransition
	rd.OnTransition = func(from, to gate.State) {
		switch to {
		case gate.StateReady:
			r.Metrics.IncReadinessProbe(true)
		case gate.StateUnavailable:
			r.Metrics.IncReadinessProbe(false)
		}
		if prev != nil {
			prev(from, to)
		}
	}
	return rd
}

func (r *Runner) resumable(ctx context.Context, fingerprint string) (*types.IngestRun, error) {
	if r.Runs == nil {
		return nil, nil
	}
	prior, err := r.Runs.GetLatestByFingerprint(dbctx.Context{Ctx: ctx}, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("run ledger lookup: %w", err)
	}
	if prior == nil || prior.Status != types.IngestRunFailed {
		return nil, nil
	}
	return prior, nil
}

func (r *Runner) newRun(fingerprint string, opts Options, status string) *types.IngestRun {
	labels, _ := json.Marshal(opts.Schema.ClusterColumns)
	return &types.IngestRun{
		ID:            uuid.New(),
		Fingerprint:   fingerprint,
		Source:        opts.Dataset,
		Threshold:     opts.Threshold,
		BatchSize:     opts.BatchSize,
		Status:        status,
		ClusterLabels: datatypes.JSON(labels),
		StartedAt:     time.Now().UTC(),
	}
}

func (r *Runner) createRun(ctx context.Context, run *types.IngestRun) error {
	if r.Runs == nil {
		return nil
	}
	if _, err := r.Runs.Create(dbctx.Context{Ctx: ctx}, run); err != nil {
		return fmt.Errorf("run ledger create: %w", err)
	}
	return nil
}

// updateRun is best-effort: batches are MERGE-idempotent, so a stale
// next_batch only causes committed batches to be rewritten on resume.
func (r *Runner) updateRun(ctx context.Context, id uuid.UUID, updates map[string]interface{}) {
	if r.Runs == nil {
		return
	}
	if err := r.Runs.UpdateFields(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, id, updates); err != nil {
		r.log.Warn("run ledger update failed", "run_id", id, "error", err)
	}
}

func (r *Runner) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := observability.StartSpan(ctx, "pipeline."+name)
	start := time.Now()
	err := fn(ctx)
	r.Metrics.ObserveStage(name, time.Since(start))
	observability.EndSpan(span, err)
	return err
}

func (r *Runner) instrumentedWriter() ingest.EdgeWriter {
	return writerFunc(func(ctx context.Context, edges []types.SimilarityEdge) error {
		ctx, span := observability.StartSpan(ctx, "pipeline.batch", attribute.Int("size", len(edges)))
		start := time.Now()
		err := r.Graph.WriteBatch(ctx, edges)
		r.Metrics.ObserveBatch(len(edges), time.Since(start), err)
		observability.EndSpan(span, err)
		return err
	})
}

type writerFunc func(ctx context.Context, edges []types.SimilarityEdge) error

func (f writerFunc) WriteBatch(ctx context.Context, edges []types.SimilarityEdge) error {
	return f(ctx, edges)
}

// Fingerprint identifies a run's inputs: the raw dataset digest, the
// threshold and the ordered cluster columns.
func Fingerprint(datasetDigest string, threshold float64, clusters []string) string {
	h := sha256.New()
	h.Write([]byte(datasetDigest))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(threshold, 'g', -1, 64)))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(clusters, ",")))
	return hex.EncodeToString(h.Sum(nil))
}
