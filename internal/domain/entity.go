package domain

// Entity is one input row: an identifier plus one affinity score per known
// cluster. Cluster and Strength are derived once from Scores and never
// change afterwards.
type Entity struct {
	ID       string    `json:"id"`
	Scores   []float64 `json:"scores"`
	Cluster  string    `json:"cluster"`
	Strength float64   `json:"membership_score"`
}

// RelationPair is an unordered entity pair referenced by row index.
// I < J always holds.
type RelationPair struct {
	I int
	J int
}

// SimilarityEdge is the unit of persistence: both endpoints with their
// cluster and membership strength, and the similarity weight.
type SimilarityEdge struct {
	SourceID       string  `json:"source_id"`
	TargetID       string  `json:"target_id"`
	SourceCluster  string  `json:"source_cluster"`
	TargetCluster  string  `json:"target_cluster"`
	SourceStrength float64 `json:"source_membership_score"`
	TargetStrength float64 `json:"target_membership_score"`
	Weight         float64 `json:"weight"`
}

// GraphNode is a node read back from the store.
type GraphNode struct {
	ID              string  `json:"JobId"`
	Cluster         string  `json:"cluster,omitempty"`
	MembershipScore float64 `json:"membershipScore"`
}

// GraphPath is an ordered node sequence returned by a path query.
type GraphPath struct {
	Nodes     []GraphNode `json:"nodes"`
	TotalCost float64     `json:"total_cost"`
}
