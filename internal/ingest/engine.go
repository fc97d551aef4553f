package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	types "github.com/yungbote/simgraph/internal/domain"
	apperrors "github.com/yungbote/simgraph/internal/pkg/errors"
	"github.com/yungbote/simgraph/internal/platform/logger"
)

const DefaultBatchSize = 5000

// EdgeWriter commits one batch as a single transaction: every edge in the
// batch is persisted or none is.
type EdgeWriter interface {
	WriteBatch(ctx context.Context, edges []types.SimilarityEdge) error
}

// BatchError identifies the batch whose transaction failed. Batches before
// Index are committed; Index and later are not. Cancellation is not a
// BatchError.
type BatchError struct {
	Index  int
	Offset int
	Size   int
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (offset %d, size %d): %v", e.Index, e.Offset, e.Size, e.Err)
}

func (e *BatchError) Unwrap() []error { return []error{apperrors.ErrStoreWrite, e.Err} }

// Partition splits edges into contiguous chunks of at most size, keeping
// order. The chunks alias edges.
func Partition(edges []types.SimilarityEdge, size int) [][]types.SimilarityEdge {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if len(edges) == 0 {
		return nil
	}
	out := make([][]types.SimilarityEdge, 0, (len(edges)+size-1)/size)
	for start := 0; start < len(edges); start += size {
		end := start + size
		if end > len(edges) {
			end = len(edges)
		}
		out = append(out, edges[start:end:end])
	}
	return out
}

type Progress struct {
	Batch          int
	BatchesTotal   int
	EdgesCommitted int
	Duration       time.Duration
}

type Options struct {
	BatchSize int
	// StartBatch skips batches below this index, for resuming after a
	// failure at a known batch boundary.
	StartBatch int
	// OnCommitted runs after each successful commit. A returned error stops
	// ingestion; the batch itself stays committed.
	OnCommitted func(ctx context.Context, p Progress) error
}

type Result struct {
	BatchesTotal     int
	BatchesCommitted int
	EdgesCommitted   int
}

// Engine commits batches strictly in sequence. It holds no state between
// Ingest calls.
type Engine struct {
	writer EdgeWriter
	log    *logger.Logger
}

func NewEngine(writer EdgeWriter, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{writer: writer, log: log.With("component", "IngestEngine")}
}

func (e *Engine) Ingest(ctx context.Context, edges []types.SimilarityEdge, opts Options) (Result, error) {
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := Partition(edges, size)
	res := Result{BatchesTotal: len(batches)}
	if opts.StartBatch < 0 || (opts.StartBatch > len(batches) && len(batches) > 0) {
		return res, fmt.Errorf("ingest: start batch %d out of range [0,%d]: %w", opts.StartBatch, len(batches), apperrors.ErrInvalidInput)
	}
	for i := opts.StartBatch; i < len(batches); i++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("ingest: interrupted before batch %d: %w", i, err)
		}
		start := time.Now()
		if err := e.writer.WriteBatch(ctx, batches[i]); err != nil {
			if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
				return res, fmt.Errorf("ingest: interrupted during batch %d: %w", i, err)
			}
			e.log.Error("batch commit failed", "batch", i, "size", len(batches[i]), "error", err)
			return res, &BatchError{Index: i, Offset: i * size, Size: len(batches[i]), Err: err}
		}
		res.BatchesCommitted++
		res.EdgesCommitted += len(batches[i])
		dur := time.Since(start)
		e.log.Info("batch committed", "batch", i, "of", len(batches), "size", len(batches[i]), "duration_ms", dur.Milliseconds())
		if opts.OnCommitted != nil {
			p := Progress{Batch: i, BatchesTotal: len(batches), EdgesCommitted: res.EdgesCommitted, Duration: dur}
			if err := opts.OnCommitted(ctx, p); err != nil {
				return res, fmt.Errorf("ingest: progress hook after batch %d: %w", i, err)
			}
		}
	}
	return res, nil
}
