package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/simgraph/internal/data/repos/runs"
	"github.com/yungbote/simgraph/internal/http/response"
	"github.com/yungbote/simgraph/internal/pkg/dbctx"
	"github.com/yungbote/simgraph/internal/platform/logger"
)

type RunsHandler struct {
	log  *logger.Logger
	runs runs.IngestRunRepo
}

func NewRunsHandler(log *logger.Logger, repo runs.IngestRunRepo) *RunsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RunsHandler{log: log.With("handler", "RunsHandler"), runs: repo}
}

// GET /api/runs?limit=20
func (h *RunsHandler) List(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = n
	}
	list, err := h.runs.ListRecent(dbctx.Context{Ctx: c.Request.Context()}, limit)
	if err != nil {
		h.log.Error("list runs failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "load_runs_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"runs": list})
}
