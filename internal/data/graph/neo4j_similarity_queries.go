package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/yungbote/simgraph/internal/domain"
	apperrors "github.com/yungbote/simgraph/internal/pkg/errors"
)

// DefaultProjection is the GDS catalog name used for weighted path queries.
const DefaultProjection = "simGraph"

// TopNodes returns the n members of cluster with the highest membership score.
func (g *SimilarityGraph) TopNodes(ctx context.Context, cluster string, n int) ([]types.GraphNode, error) {
	label, err := g.quoteLabel(cluster)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("top nodes: n must be positive: %w", apperrors.ErrInvalidInput)
	}
	cypher := `
MATCH (node:` + EntityLabel + `:` + label + `)
RETURN node.` + IDProperty + ` AS id, node.` + ScoreProperty + ` AS score
ORDER BY score DESC
LIMIT $n
`
	out, err := g.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"n": int64(n)})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		nodes := make([]types.GraphNode, 0, len(records))
		for _, rec := range records {
			id, _, _ := neo4j.GetRecordValue[string](rec, "id")
			score, _, _ := neo4j.GetRecordValue[float64](rec, "score")
			nodes = append(nodes, types.GraphNode{ID: id, Cluster: cluster, MembershipScore: score})
		}
		return nodes, nil
	})
	if err != nil {
		return nil, fmt.Errorf("top nodes: %w", err)
	}
	return out.([]types.GraphNode), nil
}

const pathNodesProjection = `[x IN pathNodes | {id: x.` + IDProperty + `, score: x.` + ScoreProperty + `, labels: labels(x)}]`

// ShortestPathByHops returns the path with the fewest relationships between
// two entities, or ErrNotFound when they are not connected.
func (g *SimilarityGraph) ShortestPathByHops(ctx context.Context, sourceID, targetID string) (*types.GraphPath, error) {
	if err := distinctEndpoints(sourceID, targetID); err != nil {
		return nil, err
	}
	cypher := `
MATCH (s:` + EntityLabel + ` {` + IDProperty + `: $source}), (t:` + EntityLabel + ` {` + IDProperty + `: $target})
MATCH p = shortestPath((s)-[:` + RelationshipType + `*]-(t))
WITH p, nodes(p) AS pathNodes
RETURN ` + pathNodesProjection + ` AS nodes, toFloat(length(p)) AS cost
`
	return g.singlePath(ctx, cypher, map[string]any{"source": sourceID, "target": targetID})
}

// ShortestPathByWeight runs GDS Dijkstra over the projected graph using the
// relationship weight as cost. The projection is created on first use.
func (g *SimilarityGraph) ShortestPathByWeight(ctx context.Context, sourceID, targetID string) (*types.GraphPath, error) {
	if err := distinctEndpoints(sourceID, targetID); err != nil {
		return nil, err
	}
	if err := g.ProjectGraph(ctx, DefaultProjection); err != nil {
		return nil, err
	}
	cypher := `
MATCH (s:` + EntityLabel + ` {` + IDProperty + `: $source}), (t:` + EntityLabel + ` {` + IDProperty + `: $target})
CALL gds.shortestPath.dijkstra.stream($graph, {
    sourceNode: s,
    targetNode: t,
    relationshipWeightProperty: '` + WeightProperty + `'
})
YIELD totalCost, nodeIds
WITH totalCost, [nodeId IN nodeIds | gds.util.asNode(nodeId)] AS pathNodes
RETURN ` + pathNodesProjection + ` AS nodes, totalCost AS cost
`
	return g.singlePath(ctx, cypher, map[string]any{"source": sourceID, "target": targetID, "graph": DefaultProjection})
}

// ProjectGraph registers the undirected weighted projection in the GDS
// catalog unless one with that name already exists.
func (g *SimilarityGraph) ProjectGraph(ctx context.Context, name string) error {
	exists, err := g.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `CALL gds.graph.exists($name) YIELD exists RETURN exists`, map[string]any{"name": name})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		ok, _, err := neo4j.GetRecordValue[bool](rec, "exists")
		return ok, err
	})
	if err != nil {
		return fmt.Errorf("graph exists: %w", err)
	}
	if exists.(bool) {
		return nil
	}
	err = g.client.Run(ctx, `
CALL gds.graph.project($name, '`+EntityLabel+`', {
    `+RelationshipType+`: {orientation: 'UNDIRECTED', properties: '`+WeightProperty+`'}
})
YIELD graphName, nodeCount, relationshipCount
RETURN graphName, nodeCount, relationshipCount
`, map[string]any{"name": name})
	if err != nil {
		return fmt.Errorf("project graph: %w", err)
	}
	g.log.Info("graph projected", "graph", name)
	return nil
}

// DropProjection removes name from the GDS catalog; a missing projection is
// not an error.
func (g *SimilarityGraph) DropProjection(ctx context.Context, name string) error {
	err := g.client.Run(ctx, `CALL gds.graph.drop($name, false) YIELD graphName RETURN graphName`, map[string]any{"name": name})
	if err != nil {
		return fmt.Errorf("drop projection: %w", err)
	}
	return nil
}

// InvalidateProjections drops the weighted-path projection after edges were
// written, so the next Dijkstra query projects the current graph.
// Best-effort: stores without GDS only log a warning.
func (g *SimilarityGraph) InvalidateProjections(ctx context.Context) {
	if err := g.DropProjection(ctx, DefaultProjection); err != nil {
		g.log.Warn("graph projection drop failed (continuing)", "graph", DefaultProjection, "error", err)
		return
	}
	g.log.Info("graph projection dropped", "graph", DefaultProjection)
}

// distinctEndpoints rejects a path request from an entity to itself.
func distinctEndpoints(sourceID, targetID string) error {
	if sourceID == targetID {
		return fmt.Errorf("shortest path: source and target are both %q: %w", sourceID, apperrors.ErrInvalidInput)
	}
	return nil
}

func (g *SimilarityGraph) singlePath(ctx context.Context, cypher string, params map[string]any) (*types.GraphPath, error) {
	out, err := g.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return (*types.GraphPath)(nil), nil
		}
		raw, _ := records[0].Get("nodes")
		cost, _, _ := neo4j.GetRecordValue[float64](records[0], "cost")
		return &types.GraphPath{Nodes: decodePathNodes(raw), TotalCost: cost}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("shortest path: %w", err)
	}
	path := out.(*types.GraphPath)
	if path == nil {
		return nil, apperrors.ErrNotFound
	}
	return path, nil
}

func decodePathNodes(raw any) []types.GraphNode {
	items, _ := raw.([]any)
	out := make([]types.GraphNode, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		n := types.GraphNode{}
		n.ID, _ = m["id"].(string)
		n.MembershipScore, _ = m["score"].(float64)
		if labels, ok := m["labels"].([]any); ok {
			for _, l := range labels {
				if s, _ := l.(string); s != "" && s != EntityLabel {
					n.Cluster = s
					break
				}
			}
		}
		out = append(out, n)
	}
	return out
}
