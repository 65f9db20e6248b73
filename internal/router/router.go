package router

import (
	"github.com/gin-gonic/gin"

	"dealscope/internal/handler"
	"dealscope/internal/middleware"
)

// Options holds the router settings that come from configuration.
type Options struct {
	AllowedOrigins []string
	MaxUploadBytes int64
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	analysisH *handler.AnalysisHandler,
	healthH *handler.HealthHandler,
	opts Options,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(opts.AllowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	analyses := v1.Group("/analyses")
	analyses.POST("", middleware.BodyLimit(opts.MaxUploadBytes), analysisH.Create)
	analyses.GET("", analysisH.List)
	analyses.GET("/:id", analysisH.GetByID)
	analyses.POST("/:id/questions", analysisH.AskQuestion)
	analyses.GET("/:id/archive-url", analysisH.ArchiveURL)
	analyses.GET("/:id/export/csv", analysisH.ExportCSV)

	return r
}
