package similarity

import (
	"fmt"

	types "github.com/yungbote/simgraph/internal/domain"
)

// BuildEdges joins pairs back to entities. entities must be in the same row
// order that built m; the weight is copied from m unmodified.
func BuildEdges(entities []types.Entity, m *Matrix, pairs []types.RelationPair) ([]types.SimilarityEdge, error) {
	if m.N() != len(entities) {
		return nil, fmt.Errorf("build edges: matrix has %d rows for %d entities", m.N(), len(entities))
	}
	out := make([]types.SimilarityEdge, 0, len(pairs))
	for _, p := range pairs {
		if p.I < 0 || p.J >= len(entities) || p.I >= p.J {
			return nil, fmt.Errorf("build edges: invalid pair (%d, %d) for %d entities", p.I, p.J, len(entities))
		}
		src, dst := entities[p.I], entities[p.J]
		out = append(out, types.SimilarityEdge{
			SourceID:       src.ID,
			TargetID:       dst.ID,
			SourceCluster:  src.Cluster,
			TargetCluster:  dst.Cluster,
			SourceStrength: src.Strength,
			TargetStrength: dst.Strength,
			Weight:         m.At(p.I, p.J),
		})
	}
	return out, nil
}
