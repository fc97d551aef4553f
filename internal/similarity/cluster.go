package similarity

import (
	"fmt"

	types "github.com/yungbote/simgraph/internal/domain"
)

// Assign returns the index of the largest score and the score itself. Ties
// resolve to the lowest index. scores must be non-empty.
func Assign(scores []float64) (int, float64) {
	if len(scores) == 0 {
		panic("similarity: Assign called with empty score vector")
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best, scores[best]
}

// AssignAll derives Cluster and Strength for every entity in place, naming
// clusters from labels. Each score vector must have len(labels) entries.
func AssignAll(entities []types.Entity, labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("assign clusters: %w", ErrNoClusters)
	}
	for i := range entities {
		if len(entities[i].Scores) != len(labels) {
			return fmt.Errorf("assign clusters: row %d has %d scores, want %d: %w",
				i, len(entities[i].Scores), len(labels), ErrDimensionMismatch)
		}
		idx, strength := Assign(entities[i].Scores)
		entities[i].Cluster = labels[idx]
		entities[i].Strength = strength
	}
	return nil
}
