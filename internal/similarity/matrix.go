package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

const DefaultMaxEntities = 20000

var (
	ErrDimensionMismatch = errors.New("score vectors differ in length")
	ErrMatrixTooLarge    = errors.New("entity count exceeds similarity matrix bound")
	ErrNoClusters        = errors.New("no cluster labels configured")
)

// Matrix is a dense, symmetric n×n similarity matrix in row-major order.
type Matrix struct {
	n    int
	data []float64
}

func NewMatrix(n int) *Matrix {
	return &Matrix{n: n, data: make([]float64, n*n)}
}

func (m *Matrix) N() int { return m.n }

func (m *Matrix) At(i, j int) float64 { return m.data[i*m.n+j] }

func (m *Matrix) Set(i, j int, v float64) { m.data[i*m.n+j] = v }

type MatrixOptions struct {
	// Workers bounds the goroutines computing row blocks. <=0 uses GOMAXPROCS.
	Workers int
	// MaxEntities caps n so n² cells stay within memory. <=0 uses DefaultMaxEntities.
	MaxEntities int
}

// CosineMatrix computes pairwise cosine similarity over vectors. A pair where
// either vector has zero norm has similarity 0. Only the upper triangle is
// computed; the lower triangle is mirrored from it.
func CosineMatrix(ctx context.Context, vectors [][]float64, opts MatrixOptions) (*Matrix, error) {
	n := len(vectors)
	maxN := opts.MaxEntities
	if maxN <= 0 {
		maxN = DefaultMaxEntities
	}
	if n > maxN {
		return nil, fmt.Errorf("cosine matrix: n=%d max=%d: %w", n, maxN, ErrMatrixTooLarge)
	}
	if n == 0 {
		return NewMatrix(0), nil
	}
	k := len(vectors[0])
	for i, v := range vectors {
		if len(v) != k {
			return nil, fmt.Errorf("cosine matrix: row %d has %d values, want %d: %w", i, len(v), k, ErrDimensionMismatch)
		}
	}

	norms := make([]float64, n)
	for i, v := range vectors {
		norms[i] = math.Sqrt(dot(v, v))
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	m := NewMatrix(n)

	// Rows are handed out round-robin so the shrinking upper-triangle work
	// per row is spread evenly. Each worker writes only cells (i, j>=i) of
	// its own rows and their mirrors (j, i), which no other worker touches.
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers && w < n; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < n; i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				for j := i; j < n; j++ {
					s := cosine(vectors[i], vectors[j], norms[i], norms[j])
					m.Set(i, j, s)
					m.Set(j, i, s)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("cosine matrix: %w", err)
	}
	return m, nil
}

func cosine(a, b []float64, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot(a, b) / (na * nb)
	// rounding can push identical vectors a hair past 1
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
