package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"gtranslate-go/internal/auth"
	"gtranslate-go/internal/constants"
	"gtranslate-go/internal/dedup"
	apperrors "gtranslate-go/internal/errors"
	"gtranslate-go/internal/middleware"
	"gtranslate-go/internal/transcache"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type translateRequest struct {
	SourceLang string          `json:"source_lang"`
	TargetLang string          `json:"target_lang"`
	TextList   json.RawMessage `json:"text_list"`
}

type translateResponse struct {
	Translations []transcache.Record `json:"translations"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// handleTranslate buffers the body once, coalesces identical concurrent
// requests, and renders the shared result. The X-Request-ID header stays
// per-caller even when the body is shared.
func (s *Server) handleTranslate(c *gin.Context) {
	rid := middleware.GetRequestID(c)
	body, readErr := io.ReadAll(c.Request.Body)

	fp := dedup.Fingerprint(c.Request.Method, c.Request.URL, body, readErr)
	res, shared := s.coalescer.Do(fp, func() *dedup.Result {
		return s.processTranslate(c.Request.Method, c.Request.URL.Path, c.Request.Header, body, rid)
	})
	if shared {
		log.WithField("request_id", rid).Debug("request served from in-flight duplicate")
	}
	c.Data(res.Status, res.ContentType, res.Body)
}

// processTranslate runs the full pipeline: auth, validation, batch
// translation. It deliberately detaches from the client context so a
// disconnecting caller does not cancel work other joiners are waiting on.
func (s *Server) processTranslate(method, path string, header http.Header, body []byte, rid string) *dedup.Result {
	ctx := context.Background()

	key := auth.ExtractKey(method, path, header)
	if key == "" {
		return errResult(apperrors.MissingAuth(), rid)
	}
	if !s.pool.ValidateAuth(ctx, key) {
		return errResult(apperrors.InvalidAuth(), rid)
	}

	var req translateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return errResult(apperrors.BadRequest("request body must be JSON"), rid)
	}
	if len(req.TextList) == 0 {
		return errResult(apperrors.BadRequest("text_list is required and must be an array"), rid)
	}
	var texts []string
	if err := json.Unmarshal(req.TextList, &texts); err != nil {
		return errResult(apperrors.BadRequest("text_list is required and must be an array"), rid)
	}
	if req.TargetLang == "" {
		return errResult(apperrors.BadRequest("target_lang is required"), rid)
	}
	if len(texts) > constants.MaxBatchSize {
		return errResult(apperrors.BadRequest("Maximum batch size is 100 texts"), rid)
	}

	records, err := s.engine.TranslateBatch(ctx, texts, req.TargetLang, req.SourceLang)
	if err != nil {
		log.WithError(err).WithField("request_id", rid).Error("translation batch failed")
		return errResult(apperrors.Internal(""), rid)
	}

	payload, err := json.Marshal(translateResponse{Translations: records})
	if err != nil {
		return errResult(apperrors.Internal(""), rid)
	}
	return &dedup.Result{Status: http.StatusOK, ContentType: "application/json", Body: payload}
}

func errResult(apiErr *apperrors.APIError, rid string) *dedup.Result {
	payload, _ := json.Marshal(errorResponse{Error: apiErr.Err, Message: apiErr.Message, RequestID: rid})
	return &dedup.Result{Status: apiErr.HTTPStatus, ContentType: "application/json", Body: payload}
}
