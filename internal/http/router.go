// Package http assembles the gin engine: job-scoped RPC routes (spec.md
// §6) behind bearer auth, plus the public health check.
package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/domainscout/core/internal/http/handlers"
	httpMW "github.com/domainscout/core/internal/http/middleware"
)

type RouterConfig struct {
	Auth   *httpMW.Auth
	Job    *httpH.JobHandler
	Global *httpH.GlobalHandler
	Health *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.CORS())

	if cfg.Health != nil {
		r.GET("/healthz", cfg.Health.HealthCheck)
	}

	api := r.Group("/api")
	protected := api.Group("/")
	if cfg.Auth != nil {
		protected.Use(cfg.Auth.RequireAuth())
	}

	if cfg.Global != nil {
		protected.POST("/search", cfg.Global.Search)
		protected.GET("/jobs/list", cfg.Global.List)
		protected.GET("/jobs/recent", cfg.Global.Recent)
		protected.POST("/backfill", cfg.Global.Backfill)
	}

	if cfg.Job != nil {
		jobs := protected.Group("/jobs/:id")
		jobs.GET("/status", cfg.Job.Status)
		jobs.GET("/results", cfg.Job.Results)
		jobs.GET("/followup", cfg.Job.Followup)
		jobs.POST("/resume", cfg.Job.Resume)
		jobs.POST("/cancel", cfg.Job.Cancel)
		jobs.GET("/stream", cfg.Job.Stream)
		protected.POST("/jobs/start", cfg.Job.Start)
	}

	return r
}
