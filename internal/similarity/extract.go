package similarity

import types "github.com/yungbote/simgraph/internal/domain"

const DefaultThreshold = 0.99

// ExtractPairs returns every (i, j) with i < j and m(i, j) >= threshold in
// row-major order. The diagonal and lower triangle are never read, so each
// unordered pair is emitted at most once and self-pairs never are.
func ExtractPairs(m *Matrix, threshold float64) []types.RelationPair {
	var out []types.RelationPair
	n := m.N()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if m.At(i, j) >= threshold {
				out = append(out, types.RelationPair{I: i, J: j})
			}
		}
	}
	return out
}
