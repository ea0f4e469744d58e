// Package router registers the QA service routes.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/campus-qa/internal/rag/handler"
)

// Features toggles optional route groups.
type Features struct {
	Feedback bool
	Ingest   bool
	// Admin guards the ingest and cache routes. nil leaves them open.
	Admin gin.HandlerFunc
}

// Register mounts the /v1/qa routes. device identifies the caller for the
// usage gate and may be nil.
func Register(engine *gin.Engine, h *handler.QAHandler, device gin.HandlerFunc, features Features) {
	qa := engine.Group("/v1/qa")

	metered := qa.Group("")
	if device != nil {
		metered.Use(device)
	}
	metered.POST("/ask", h.Ask)
	metered.GET("/usage", h.Usage)

	qa.GET("/stats", h.Stats)

	if features.Feedback {
		qa.POST("/feedback", h.SubmitFeedback)
		qa.GET("/feedback", h.ListFeedback)
		qa.GET("/feedback/stats", h.FeedbackStats)
	}

	if features.Ingest {
		admin := qa.Group("")
		if features.Admin != nil {
			admin.Use(features.Admin)
		} else {
			logger.Warn("Admin routes are served without authentication")
		}
		admin.POST("/ingest", h.Ingest)
		admin.DELETE("/cache", h.ClearCache)
	}

	logger.Infow("QA routes registered",
		"feedback", features.Feedback,
		"ingest", features.Ingest,
		"admin_auth", features.Admin != nil,
	)
}
