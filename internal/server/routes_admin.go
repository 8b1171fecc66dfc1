package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"sync"

	"gtranslate-go/internal/credential"
	apperrors "gtranslate-go/internal/errors"
	"gtranslate-go/internal/logging"
	"gtranslate-go/internal/middleware"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const probeConcurrency = 4

func (s *Server) requireManagementKey(c *gin.Context) {
	supplied := c.GetHeader("x-management-key")
	if supplied == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(s.cfg.ManagementKey)) != 1 {
		s.renderError(c, apperrors.InvalidAuth(), middleware.GetRequestID(c))
		c.Abort()
		return
	}
	c.Next()
}

// handleKeyProbe checks every key in the Gemini set against the upstream and
// evicts the dead ones.
func (s *Server) handleKeyProbe(c *gin.Context) {
	rid := middleware.GetRequestID(c)
	ctx := c.Request.Context()

	keys, err := s.store.Members(ctx, string(credential.GeminiKeys))
	if err != nil {
		s.renderError(c, apperrors.Internal("credential set could not be loaded"), rid)
		return
	}

	endpoint := fmt.Sprintf("%s/%s/models/%s:generateContent",
		s.cfg.GeminiBaseURL, s.cfg.GeminiAPIVersion, s.cfg.GeminiModel)

	var mu sync.Mutex
	var invalid []string
	sem := make(chan struct{}, probeConcurrency)
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		sem <- struct{}{}
		go func(k string) {
			defer wg.Done()
			defer func() { <-sem }()
			if credential.ProbeKey(ctx, s.probeHTTP, endpoint, k) == credential.ProbeInvalid {
				mu.Lock()
				invalid = append(invalid, k)
				mu.Unlock()
			}
		}(key)
	}
	wg.Wait()

	for _, k := range invalid {
		s.pool.Evict(ctx, credential.GeminiKeys, k)
		log.WithField("key", logging.RedactKey(k)).Info("probe evicted invalid key")
	}

	c.JSON(http.StatusOK, gin.H{
		"checked":    len(keys),
		"evicted":    len(invalid),
		"request_id": rid,
	})
}
