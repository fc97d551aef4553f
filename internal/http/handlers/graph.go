package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/simgraph/internal/domain"
	"github.com/yungbote/simgraph/internal/http/response"
	apperrors "github.com/yungbote/simgraph/internal/pkg/errors"
	"github.com/yungbote/simgraph/internal/platform/ctxutil"
	"github.com/yungbote/simgraph/internal/platform/logger"
)

const maxTopN = 1000

// GraphReader is the read side of the similarity graph.
type GraphReader interface {
	TopNodes(ctx context.Context, cluster string, n int) ([]types.GraphNode, error)
	ShortestPathByHops(ctx context.Context, sourceID, targetID string) (*types.GraphPath, error)
	ShortestPathByWeight(ctx context.Context, sourceID, targetID string) (*types.GraphPath, error)
}

type GraphHandler struct {
	log   *logger.Logger
	graph GraphReader
}

func NewGraphHandler(log *logger.Logger, graph GraphReader) *GraphHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GraphHandler{log: log.With("handler", "GraphHandler"), graph: graph}
}

// GET /api/top_n?cluster=c3&n=10
func (h *GraphHandler) TopN(c *gin.Context) {
	cluster := strings.TrimSpace(c.Query("cluster"))
	if cluster == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_cluster", nil)
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(c.Query("n")))
	if err != nil || n <= 0 || n > maxTopN {
		response.RespondError(c, http.StatusBadRequest, "invalid_n", fmt.Errorf("n must be an integer in [1,%d]", maxTopN))
		return
	}
	nodes, err := h.graph.TopNodes(c.Request.Context(), cluster, n)
	if err != nil {
		h.fail(c, "top_n_failed", err, "cluster", cluster, "n", n)
		return
	}
	response.RespondOK(c, nodes)
}

// GET /api/find_shortest/path_weight?JobId1=a&JobId2=b
func (h *GraphHandler) ShortestPathWeight(c *gin.Context) {
	h.shortestPath(c, "path_weight_failed", h.graph.ShortestPathByWeight)
}

// GET /api/find_shortest/num_nodes?JobId1=a&JobId2=b
func (h *GraphHandler) ShortestPathHops(c *gin.Context) {
	h.shortestPath(c, "num_nodes_failed", h.graph.ShortestPathByHops)
}

func (h *GraphHandler) shortestPath(c *gin.Context, code string, find func(context.Context, string, string) (*types.GraphPath, error)) {
	source := strings.TrimSpace(c.Query("JobId1"))
	target := strings.TrimSpace(c.Query("JobId2"))
	if source == "" || target == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_job_id", fmt.Errorf("JobId1 and JobId2 are required: %w", apperrors.ErrInvalidInput))
		return
	}
	if source == target {
		response.RespondError(c, http.StatusBadRequest, "same_job_id", fmt.Errorf("JobId1 and JobId2 must differ: %w", apperrors.ErrInvalidInput))
		return
	}
	path, err := find(c.Request.Context(), source, target)
	if err != nil {
		h.fail(c, code, err, "source", source, "target", target)
		return
	}
	response.RespondOK(c, path)
}

func (h *GraphHandler) fail(c *gin.Context, code string, err error, kv ...interface{}) {
	kv = append(kv, "error", err)
	kv = append(kv, ctxutil.LogFields(c.Request.Context())...)
	h.log.Warn("graph query failed", kv...)
	response.RespondAPIError(c, err, code)
}
