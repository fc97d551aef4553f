package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/simgraph/internal/domain"
	httpH "github.com/yungbote/simgraph/internal/http/handlers"
	"github.com/yungbote/simgraph/internal/http/response"
	"github.com/yungbote/simgraph/internal/observability"
	apperrors "github.com/yungbote/simgraph/internal/pkg/errors"
)

type fakeReader struct {
	lastCluster string
	lastN       int
	pathErr     error
	pathCalls   int
}

func (f *fakeReader) TopNodes(_ context.Context, cluster string, n int) ([]types.GraphNode, error) {
	f.lastCluster, f.lastN = cluster, n
	if cluster == "nope" {
		return nil, fmt.Errorf("unknown cluster label %q: %w", cluster, apperrors.ErrInvalidInput)
	}
	return []types.GraphNode{{ID: "job-0", Cluster: cluster, MembershipScore: 0.9}}, nil
}

func (f *fakeReader) ShortestPathByHops(_ context.Context, s, t string) (*types.GraphPath, error) {
	f.pathCalls++
	if f.pathErr != nil {
		return nil, f.pathErr
	}
	return &types.GraphPath{Nodes: []types.GraphNode{{ID: s}, {ID: t}}, TotalCost: 1}, nil
}

func (f *fakeReader) ShortestPathByWeight(_ context.Context, s, t string) (*types.GraphPath, error) {
	f.pathCalls++
	if f.pathErr != nil {
		return nil, f.pathErr
	}
	return &types.GraphPath{Nodes: []types.GraphNode{{ID: s}, {ID: "mid"}, {ID: t}}, TotalCost: 1.98}, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestRouter(reader *fakeReader, ping error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{
		Metrics:       observability.New(),
		HealthHandler: httpH.NewHealthHandler(fakePinger{err: ping}),
		GraphHandler:  httpH.NewGraphHandler(nil, reader),
	})
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestTopN(t *testing.T) {
	reader := &fakeReader{}
	r := newTestRouter(reader, nil)

	rec := get(r, "/api/top_n?cluster=c3&n=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var nodes []types.GraphNode
	if err := json.Unmarshal(rec.Body.Bytes(), &nodes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != "job-0" || reader.lastCluster != "c3" || reader.lastN != 5 {
		t.Fatalf("nodes=%+v cluster=%s n=%d", nodes, reader.lastCluster, reader.lastN)
	}
	if !strings.Contains(rec.Body.String(), `"JobId":"job-0"`) {
		t.Fatalf("body should use JobId key: %s", rec.Body.String())
	}
}

func TestTopNValidation(t *testing.T) {
	r := newTestRouter(&fakeReader{}, nil)
	cases := []struct {
		target string
		status int
		code   string
	}{
		{"/api/top_n?n=5", http.StatusBadRequest, "missing_cluster"},
		{"/api/top_n?cluster=c0&n=zero", http.StatusBadRequest, "invalid_n"},
		{"/api/top_n?cluster=c0&n=0", http.StatusBadRequest, "invalid_n"},
		{"/api/top_n?cluster=nope&n=3", http.StatusBadRequest, "invalid_input"},
	}
	for _, tc := range cases {
		rec := get(r, tc.target)
		if rec.Code != tc.status {
			t.Fatalf("%s: status want=%d got=%d", tc.target, tc.status, rec.Code)
		}
		var env response.ErrorEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s: decode: %v", tc.target, err)
		}
		if env.Error.Code != tc.code {
			t.Fatalf("%s: code want=%s got=%s", tc.target, tc.code, env.Error.Code)
		}
	}
}

func TestShortestPaths(t *testing.T) {
	r := newTestRouter(&fakeReader{}, nil)

	rec := get(r, "/api/find_shortest/path_weight?JobId1=a&JobId2=b")
	if rec.Code != http.StatusOK {
		t.Fatalf("path_weight: status=%d", rec.Code)
	}
	var path types.GraphPath
	if err := json.Unmarshal(rec.Body.Bytes(), &path); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(path.Nodes) != 3 || path.Nodes[0].ID != "a" || path.Nodes[2].ID != "b" {
		t.Fatalf("path: %+v", path)
	}

	if rec := get(r, "/api/find_shortest/num_nodes?JobId1=a"); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing JobId2: status=%d", rec.Code)
	}
}

func TestShortestPathSameEndpointIsBadRequest(t *testing.T) {
	reader := &fakeReader{}
	r := newTestRouter(reader, nil)
	for _, target := range []string{
		"/api/find_shortest/num_nodes?JobId1=a&JobId2=a",
		"/api/find_shortest/path_weight?JobId1=a&JobId2=%20a",
	} {
		rec := get(r, target)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status want=%d got=%d", target, http.StatusBadRequest, rec.Code)
		}
		var env response.ErrorEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s: decode: %v", target, err)
		}
		if env.Error.Code != "same_job_id" {
			t.Fatalf("%s: code want=same_job_id got=%s", target, env.Error.Code)
		}
	}
	if reader.pathCalls != 0 {
		t.Fatalf("store queried for same endpoint: calls=%d", reader.pathCalls)
	}
}

func TestShortestPathErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperrors.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: dial", apperrors.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := newTestRouter(&fakeReader{pathErr: tc.err}, nil)
		rec := get(r, "/api/find_shortest/num_nodes?JobId1=a&JobId2=b")
		if rec.Code != tc.status {
			t.Fatalf("%v: status want=%d got=%d", tc.err, tc.status, rec.Code)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(&fakeReader{}, nil)
	if rec := get(r, "/healthcheck"); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: %d %q", rec.Code, rec.Body.String())
	}
	if rec := get(r, "/readyz"); rec.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rec.Code)
	}
	_ = get(r, "/api/top_n?cluster=c0&n=1")
	rec := get(r, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `simgraph_api_requests_total{method="GET",route="/api/top_n",status="200"} 1`) {
		t.Fatalf("metrics body missing api counter:\n%s", rec.Body.String())
	}

	down := newTestRouter(&fakeReader{}, apperrors.ErrStoreUnavailable)
	if rec := get(down, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz down: %d", rec.Code)
	}
}
