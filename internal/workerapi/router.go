package workerapi

import (
	"github.com/gin-gonic/gin"

	"github.com/gasopt/optimizer/config"
	"github.com/gasopt/optimizer/internal/api/middleware"
	"github.com/gasopt/optimizer/internal/workerapi/handler"
)

// Router assembles the worker's gin engine, grounded on the teacher's
// internal/api/router.go group structure.
type Router struct {
	jobsHandler *handler.JobsHandler
	cors        config.CORSConfig
}

func NewRouter(jobsHandler *handler.JobsHandler, cors config.CORSConfig) *Router {
	return &Router{jobsHandler: jobsHandler, cors: cors}
}

func (r *Router) Setup() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cors))

	jobs := engine.Group("/jobs")
	{
		jobs.GET("/health", r.jobsHandler.Health)
		jobs.POST("/analyze", r.jobsHandler.Analyze)
		jobs.GET("/:id", r.jobsHandler.Get)
		jobs.POST("/:id/cancel", r.jobsHandler.Cancel)
		jobs.POST("/:id/retry", r.jobsHandler.Retry)
	}

	return engine
}
