package similarity

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	types "github.com/yungbote/simgraph/internal/domain"
)

func TestAssign(t *testing.T) {
	cases := []struct {
		name     string
		scores   []float64
		label    int
		strength float64
	}{
		{"single", []float64{0.4}, 0, 0.4},
		{"max in middle", []float64{0.1, 0.7, 0.2}, 1, 0.7},
		{"tie resolves low", []float64{0.5, 0.5, 0.1}, 0, 0.5},
		{"tie later", []float64{0.1, 0.6, 0.6}, 1, 0.6},
		{"negative", []float64{-0.3, -0.1, -0.2}, 1, -0.1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				label, strength := Assign(tc.scores)
				if label != tc.label || strength != tc.strength {
					t.Fatalf("Assign(%v): want=(%d,%v) got=(%d,%v)", tc.scores, tc.label, tc.strength, label, strength)
				}
			}
		})
	}
}

func TestAssignEmptyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on empty vector")
		}
	}()
	Assign(nil)
}

func TestAssignAllDimensionMismatch(t *testing.T) {
	entities := []types.Entity{{ID: "a", Scores: []float64{1, 2, 3}}}
	err := AssignAll(entities, []string{"c0", "c1"})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("want ErrDimensionMismatch, got=%v", err)
	}
}

func TestCosineMatrixZeroVector(t *testing.T) {
	m, err := CosineMatrix(context.Background(), [][]float64{{0, 0}, {1, 0}, {2, 0}}, MatrixOptions{})
	if err != nil {
		t.Fatalf("CosineMatrix: %v", err)
	}
	for j := 0; j < 3; j++ {
		if m.At(0, j) != 0 || m.At(j, 0) != 0 {
			t.Fatalf("zero row: want 0 at (0,%d), got=%v/%v", j, m.At(0, j), m.At(j, 0))
		}
	}
	if got := m.At(1, 2); math.Abs(got-1) > 1e-12 {
		t.Fatalf("parallel vectors: want=1 got=%v", got)
	}
}

func TestCosineMatrixSymmetricAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vectors := randomVectors(rng, 57, 6)
	for _, workers := range []int{1, 3, 16} {
		m, err := CosineMatrix(context.Background(), vectors, MatrixOptions{Workers: workers})
		if err != nil {
			t.Fatalf("CosineMatrix(workers=%d): %v", workers, err)
		}
		for i := 0; i < m.N(); i++ {
			for j := 0; j < m.N(); j++ {
				if m.At(i, j) != m.At(j, i) {
					t.Fatalf("workers=%d asymmetric at (%d,%d)", workers, i, j)
				}
				if v := m.At(i, j); v < -1 || v > 1 {
					t.Fatalf("workers=%d out of range at (%d,%d): %v", workers, i, j, v)
				}
			}
		}
	}
}

func TestCosineMatrixBounds(t *testing.T) {
	_, err := CosineMatrix(context.Background(), [][]float64{{1}, {1}, {1}}, MatrixOptions{MaxEntities: 2})
	if !errors.Is(err, ErrMatrixTooLarge) {
		t.Fatalf("want ErrMatrixTooLarge, got=%v", err)
	}
	_, err = CosineMatrix(context.Background(), [][]float64{{1, 2}, {1}}, MatrixOptions{})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("want ErrDimensionMismatch, got=%v", err)
	}
}

func TestCosineMatrixCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := CosineMatrix(ctx, [][]float64{{1}, {2}}, MatrixOptions{Workers: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got=%v", err)
	}
}

func TestExtractPairsNoSelfOrDuplicate(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	m, err := CosineMatrix(context.Background(), randomVectors(rng, 40, 3), MatrixOptions{})
	if err != nil {
		t.Fatalf("CosineMatrix: %v", err)
	}
	for _, threshold := range []float64{-1, 0, 0.5, 0.9, 0.99} {
		seen := map[[2]int]bool{}
		for _, p := range ExtractPairs(m, threshold) {
			if p.I == p.J {
				t.Fatalf("threshold=%v self pair %v", threshold, p)
			}
			if p.I > p.J {
				t.Fatalf("threshold=%v unordered pair %v", threshold, p)
			}
			if seen[[2]int{p.I, p.J}] || seen[[2]int{p.J, p.I}] {
				t.Fatalf("threshold=%v duplicate pair %v", threshold, p)
			}
			seen[[2]int{p.I, p.J}] = true
		}
	}
}

func TestExtractPairsMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	m, err := CosineMatrix(context.Background(), randomVectors(rng, 30, 4), MatrixOptions{})
	if err != nil {
		t.Fatalf("CosineMatrix: %v", err)
	}
	thresholds := []float64{0, 0.3, 0.6, 0.8, 0.95, 1}
	for a := 0; a < len(thresholds); a++ {
		for b := a; b < len(thresholds); b++ {
			low := map[types.RelationPair]bool{}
			for _, p := range ExtractPairs(m, thresholds[a]) {
				low[p] = true
			}
			for _, p := range ExtractPairs(m, thresholds[b]) {
				if !low[p] {
					t.Fatalf("pair %v at t=%v missing from t=%v", p, thresholds[b], thresholds[a])
				}
			}
		}
	}
}

func TestExtractPairsInclusiveAndEmpty(t *testing.T) {
	m := NewMatrix(3)
	m.Set(0, 1, 0.5)
	m.Set(1, 0, 0.5)
	m.Set(1, 2, 0.7)
	m.Set(2, 1, 0.7)
	got := ExtractPairs(m, 0.5)
	if len(got) != 2 || got[0] != (types.RelationPair{I: 0, J: 1}) || got[1] != (types.RelationPair{I: 1, J: 2}) {
		t.Fatalf("inclusive threshold: got=%v", got)
	}
	if got := ExtractPairs(m, 0.71); len(got) != 0 {
		t.Fatalf("threshold above max: want empty, got=%v", got)
	}
}

func TestBuildEdgesRejectsMisalignedInput(t *testing.T) {
	m := NewMatrix(2)
	if _, err := BuildEdges([]types.Entity{{ID: "a"}}, m, nil); err == nil {
		t.Fatalf("expected error for row count mismatch")
	}
	entities := []types.Entity{{ID: "a"}, {ID: "b"}}
	if _, err := BuildEdges(entities, m, []types.RelationPair{{I: 1, J: 1}}); err == nil {
		t.Fatalf("expected error for self pair")
	}
	if _, err := BuildEdges(entities, m, []types.RelationPair{{I: 0, J: 2}}); err == nil {
		t.Fatalf("expected error for out of range pair")
	}
}

func TestFourEntityScenario(t *testing.T) {
	entities := []types.Entity{
		{ID: "job-0", Scores: []float64{0.9, 0.1}},
		{ID: "job-1", Scores: []float64{0.8, 0.2}},
		{ID: "job-2", Scores: []float64{0.1, 0.9}},
		{ID: "job-3", Scores: []float64{0.2, 0.8}},
	}
	if err := AssignAll(entities, []string{"clusterA", "clusterB"}); err != nil {
		t.Fatalf("AssignAll: %v", err)
	}
	wantLabels := []string{"clusterA", "clusterA", "clusterB", "clusterB"}
	for i, e := range entities {
		if e.Cluster != wantLabels[i] {
			t.Fatalf("entity %d label: want=%q got=%q", i, wantLabels[i], e.Cluster)
		}
	}

	vectors := make([][]float64, len(entities))
	for i, e := range entities {
		vectors[i] = e.Scores
	}
	m, err := CosineMatrix(context.Background(), vectors, MatrixOptions{Workers: 2})
	if err != nil {
		t.Fatalf("CosineMatrix: %v", err)
	}
	for _, cross := range [][2]int{{0, 2}, {0, 3}, {1, 2}, {1, 3}} {
		if v := m.At(cross[0], cross[1]); v >= 0.5 {
			t.Fatalf("cross pair %v: want <0.5 got=%v", cross, v)
		}
	}

	pairs := ExtractPairs(m, 0.95)
	edges, err := BuildEdges(entities, m, pairs)
	if err != nil {
		t.Fatalf("BuildEdges: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("edges: want=2 got=%d (%v)", len(edges), edges)
	}
	wantWeight := 0.74 / math.Sqrt(0.82*0.68)
	want := []types.SimilarityEdge{
		{SourceID: "job-0", TargetID: "job-1", SourceCluster: "clusterA", TargetCluster: "clusterA", SourceStrength: 0.9, TargetStrength: 0.8},
		{SourceID: "job-2", TargetID: "job-3", SourceCluster: "clusterB", TargetCluster: "clusterB", SourceStrength: 0.9, TargetStrength: 0.8},
	}
	for i, e := range edges {
		if math.Abs(e.Weight-wantWeight) > 1e-9 {
			t.Fatalf("edge %d weight: want=%v got=%v", i, wantWeight, e.Weight)
		}
		if e.Weight != m.At(pairs[i].I, pairs[i].J) {
			t.Fatalf("edge %d weight not copied from matrix", i)
		}
		e.Weight = 0
		if e != want[i] {
			t.Fatalf("edge %d: want=%+v got=%+v", i, want[i], e)
		}
	}
}

func randomVectors(rng *rand.Rand, n, k int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		v := make([]float64, k)
		for j := range v {
			v[j] = rng.Float64()
		}
		out[i] = v
	}
	return out
}
