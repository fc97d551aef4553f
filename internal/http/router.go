package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/simgraph/internal/http/handlers"
	httpMW "github.com/yungbote/simgraph/internal/http/middleware"
	"github.com/yungbote/simgraph/internal/observability"
	"github.com/yungbote/simgraph/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string

	HealthHandler *httpH.HealthHandler
	GraphHandler  *httpH.GraphHandler
	RunsHandler   *httpH.RunsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "simgraph"
	}
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		if cfg.GraphHandler != nil {
			api.GET("/top_n", cfg.GraphHandler.TopN)
			api.GET("/find_shortest/path_weight", cfg.GraphHandler.ShortestPathWeight)
			api.GET("/find_shortest/num_nodes", cfg.GraphHandler.ShortestPathHops)
		}
		if cfg.RunsHandler != nil {
			api.GET("/runs", cfg.RunsHandler.List)
		}
	}

	return r
}
