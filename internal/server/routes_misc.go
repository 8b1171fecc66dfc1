package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":   "gtranslate-go",
		"upstream":  s.cfg.GeminiBaseURL,
		"model":     s.cfg.GeminiModel,
		"store":     s.store.Available(),
		"endpoints": []string{"/translate/<authKey>", "/v1/*", "/v1beta/*", "/providers/gemini/*", "/health", "/metrics"},
	})
}
