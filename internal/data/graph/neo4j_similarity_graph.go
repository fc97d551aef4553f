package graph

import (
	"context"
	"fmt"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/yungbote/simgraph/internal/domain"
	apperrors "github.com/yungbote/simgraph/internal/pkg/errors"
	"github.com/yungbote/simgraph/internal/platform/logger"
	"github.com/yungbote/simgraph/internal/platform/neo4jdb"
)

const (
	// EntityLabel is carried by every ingested node in addition to its
	// cluster label. It scopes the footprint count and the id constraint.
	EntityLabel      = "SimilarityEntity"
	RelationshipType = "IS_SIMILAR_TO"
	IDProperty       = "JobId"
	ScoreProperty    = "membershipScore"
	WeightProperty   = "weight"
)

var labelRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SimilarityGraph reads and writes the similarity graph. Cluster labels
// are the only values spliced into Cypher; they must belong to the set the
// graph was configured with and be plain identifiers.
type SimilarityGraph struct {
	client *neo4jdb.Client
	labels map[string]struct{}
	log    *logger.Logger
}

func NewSimilarityGraph(client *neo4jdb.Client, clusterLabels []string, log *logger.Logger) (*SimilarityGraph, error) {
	if client == nil || client.Driver == nil {
		return nil, fmt.Errorf("similarity graph: neo4j client required")
	}
	if log == nil {
		log = logger.Nop()
	}
	set := make(map[string]struct{}, len(clusterLabels))
	for _, l := range clusterLabels {
		if !labelRe.MatchString(l) || l == EntityLabel {
			return nil, fmt.Errorf("similarity graph: invalid cluster label %q: %w", l, apperrors.ErrInvalidInput)
		}
		set[l] = struct{}{}
	}
	return &SimilarityGraph{
		client: client,
		labels: set,
		log:    log.With("repo", "SimilarityGraph"),
	}, nil
}

// HasCluster reports whether label is one of the configured clusters.
func (g *SimilarityGraph) HasCluster(label string) bool {
	_, ok := g.labels[label]
	return ok
}

func (g *SimilarityGraph) quoteLabel(label string) (string, error) {
	if !g.HasCluster(label) {
		return "", fmt.Errorf("unknown cluster label %q: %w", label, apperrors.ErrInvalidInput)
	}
	return "`" + label + "`", nil
}

// Ping issues a trivial read. Any failure is reported as store unavailable.
func (g *SimilarityGraph) Ping(ctx context.Context) error {
	_, err := g.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `RETURN 1 AS ok`, nil)
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// CountFootprint counts nodes written by this pipeline.
func (g *SimilarityGraph) CountFootprint(ctx context.Context) (int64, error) {
	out, err := g.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n:`+EntityLabel+`) RETURN count(n) AS c`, nil)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		c, _, err := neo4j.GetRecordValue[int64](rec, "c")
		return c, err
	})
	if err != nil {
		return 0, fmt.Errorf("count footprint: %w", err)
	}
	return out.(int64), nil
}

// EnsureSchema creates the id uniqueness constraint (best-effort; may fail
// for restricted users).
func (g *SimilarityGraph) EnsureSchema(ctx context.Context) {
	stmt := `CREATE CONSTRAINT similarity_entity_id IF NOT EXISTS FOR (n:` + EntityLabel + `) REQUIRE n.` + IDProperty + ` IS UNIQUE`
	if err := g.client.Run(ctx, stmt, nil); err != nil {
		g.log.Warn("neo4j schema init failed (continuing)", "error", err)
	}
}

type labelPair struct{ src, dst string }

// WriteBatch upserts both endpoint nodes and the undirected weighted
// relationship of every edge inside one transaction. Rows are grouped by
// (source, target) cluster so each statement has static labels; the group
// statements share the transaction, so the batch is all-or-nothing.
func (g *SimilarityGraph) WriteBatch(ctx context.Context, edges []types.SimilarityEdge) error {
	if len(edges) == 0 {
		return nil
	}
	var order []labelPair
	groups := map[labelPair][]map[string]any{}
	for _, e := range edges {
		key := labelPair{e.SourceCluster, e.TargetCluster}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], map[string]any{
			"source_id":    e.SourceID,
			"target_id":    e.TargetID,
			"source_score": e.SourceStrength,
			"target_score": e.TargetStrength,
			"weight":       e.Weight,
		})
	}

	stmts := make([]string, 0, len(order))
	for _, key := range order {
		src, err := g.quoteLabel(key.src)
		if err != nil {
			return err
		}
		dst, err := g.quoteLabel(key.dst)
		if err != nil {
			return err
		}
		stmts = append(stmts, upsertEdgesCypher(src, dst))
	}

	_, err := g.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for i, key := range order {
			res, err := tx.Run(ctx, stmts[i], map[string]any{"rows": groups[key]})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func upsertEdgesCypher(srcLabel, dstLabel string) string {
	return `
UNWIND $rows AS r
MERGE (a:` + EntityLabel + ` {` + IDProperty + `: r.source_id})
SET a:` + srcLabel + `, a.` + ScoreProperty + ` = r.source_score
MERGE (b:` + EntityLabel + ` {` + IDProperty + `: r.target_id})
SET b:` + dstLabel + `, b.` + ScoreProperty + ` = r.target_score
MERGE (a)-[e:` + RelationshipType + `]-(b)
SET e.` + WeightProperty + ` = r.weight
`
}
