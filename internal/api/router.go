package api

import (
	"github.com/gin-gonic/gin"

	"github.com/gasopt/optimizer/config"
	"github.com/gasopt/optimizer/internal/api/handler"
	"github.com/gasopt/optimizer/internal/api/middleware"
)

// Router assembles the orchestrator's gin engine, grounded on the teacher's
// internal/api/router.go group structure.
type Router struct {
	analyzeHandler *handler.AnalyzeHandler
	cors           config.CORSConfig
}

func NewRouter(analyzeHandler *handler.AnalyzeHandler, cors config.CORSConfig) *Router {
	return &Router{analyzeHandler: analyzeHandler, cors: cors}
}

func (r *Router) Setup() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cors))

	jobs := engine.Group("/api/analyze/jobs")
	{
		jobs.POST("", r.analyzeHandler.Create)
		jobs.GET("/:id", r.analyzeHandler.Get)
		jobs.POST("/:id/cancel", r.analyzeHandler.Cancel)
		jobs.GET("/:id/events", r.analyzeHandler.Events)
		jobs.POST("/:id/proof-payload", r.analyzeHandler.ProofPayload)
		jobs.POST("/:id/mint-proof", r.analyzeHandler.MintProof)
	}

	return engine
}
