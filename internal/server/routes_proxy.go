package server

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"gtranslate-go/internal/credential"
	apperrors "gtranslate-go/internal/errors"
	"gtranslate-go/internal/middleware"
	"gtranslate-go/internal/upstream"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Headers that must not be forwarded verbatim in either direction.
var hopHeaders = map[string]struct{}{
	"Connection":        {},
	"Keep-Alive":        {},
	"Transfer-Encoding": {},
	"Upgrade":           {},
	"Host":              {},
	"Content-Length":    {},
	"Authorization":     {},
	"X-Goog-Api-Key":    {},
}

// handlePassthrough forwards the request to the upstream verbatim, injecting
// a pool credential and running the call through the retry executor.
func (s *Server) handlePassthrough(c *gin.Context) {
	rid := middleware.GetRequestID(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.renderError(c, apperrors.BadRequest("request body could not be read"), rid)
		return
	}

	upstreamPath := c.Request.URL.Path
	if provider := c.Param("provider"); provider != "" {
		upstreamPath = c.Param("path")
	}
	target := s.cfg.GeminiBaseURL + upstreamPath
	if q := c.Request.URL.RawQuery; q != "" {
		target += "?" + q
	}

	method := c.Request.Method
	inHeader := c.Request.Header

	resp, execErr := s.executor.Execute(c.Request.Context(), upstream.Options{
		GetCredential: func(ctx context.Context) (string, error) {
			return s.pool.Next(ctx, credential.GeminiKeys)
		},
		EvictCredential: func(ctx context.Context, cred string) {
			s.pool.Evict(ctx, credential.GeminiKeys, cred)
		},
		BuildRequest: func(ctx context.Context, cred string) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			for name, values := range inHeader {
				if _, skip := hopHeaders[http.CanonicalHeaderKey(name)]; skip {
					continue
				}
				for _, v := range values {
					req.Header.Add(name, v)
				}
			}
			req.Header.Set("x-goog-api-key", cred)
			return req, nil
		},
		MaxAttempts: s.cfg.MaxRetries,
		RequestID:   rid,
	})
	if execErr != nil || resp == nil {
		log.WithError(execErr).WithField("request_id", rid).Error("passthrough exhausted")
		s.renderError(c, apperrors.Internal(""), rid)
		return
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.Data(resp.StatusCode, ct, resp.Body)
}

func (s *Server) renderError(c *gin.Context, apiErr *apperrors.APIError, rid string) {
	c.JSON(apiErr.HTTPStatus, errorResponse{Error: apiErr.Err, Message: apiErr.Message, RequestID: rid})
}
