package translate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gtranslate-go/internal/credential"
	"gtranslate-go/internal/monitoring"
	"gtranslate-go/internal/transcache"
	"gtranslate-go/internal/upstream"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	log "github.com/sirupsen/logrus"
)

const candidatePath = "candidates.0.content.parts.0.text"

// translateText drives one text through the retry executor using the
// translation credential pool. A non-nil error means the upstream was never
// reached at all (no credentials, circuit open throughout, or total network
// failure); responses that merely fail to parse degrade to a failure record.
func (e *Engine) translateText(ctx context.Context, text, target, source string) (transcache.Record, error) {
	payload := e.buildPayload(text, target, source)

	resp, err := e.runner.Execute(ctx, upstream.Options{
		GetCredential: func(ctx context.Context) (string, error) {
			return e.pool.Next(ctx, credential.TranslateKeys)
		},
		EvictCredential: func(ctx context.Context, cred string) {
			e.pool.Evict(ctx, credential.TranslateKeys, cred)
		},
		BuildRequest: func(ctx context.Context, cred string) (*http.Request, error) {
			return e.buildRequest(ctx, cred, payload)
		},
		Validate:    validateGenerateContent,
		MaxAttempts: e.settings.MaxAttempts,
	})
	if err != nil {
		log.WithError(err).Debug("translation attempt exhausted without a response")
		monitoring.TranslationsTotal.WithLabelValues("error").Inc()
		return failureRecord(text), err
	}
	if resp == nil {
		monitoring.TranslationsTotal.WithLabelValues("error").Inc()
		return failureRecord(text), errors.New("upstream produced no response")
	}
	if !resp.OK() {
		monitoring.TranslationsTotal.WithLabelValues("failed").Inc()
		return failureRecord(text), nil
	}

	translated := strings.TrimSpace(gjson.GetBytes(resp.Body, candidatePath).String())
	if translated == "" {
		monitoring.TranslationsTotal.WithLabelValues("failed").Inc()
		return failureRecord(text), nil
	}
	monitoring.TranslationsTotal.WithLabelValues("ok").Inc()
	return transcache.Record{DetectedSourceLang: sourceOrAuto(source), Text: translated}, nil
}

func (e *Engine) buildPayload(text, target, source string) []byte {
	var prompt string
	if source == "" || source == "auto" {
		prompt = fmt.Sprintf("Translate to %s: %q", target, text)
	} else {
		prompt = fmt.Sprintf("Translate from %s to %s: %q", source, target, text)
	}
	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "contents.0.parts.0.text", prompt)
	body, _ = sjson.SetBytes(body, "system_instruction.parts.0.text", e.settings.SystemInstruction)
	return body
}

func (e *Engine) buildRequest(ctx context.Context, cred string, payload []byte) (*http.Request, error) {
	url := fmt.Sprintf("%s/%s/models/%s:generateContent?key=%s",
		e.settings.BaseURL, e.settings.APIVersion, e.settings.Model, cred)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// validateGenerateContent accepts only responses carrying a candidate text,
// so malformed 200s keep the retry loop going.
func validateGenerateContent(r *upstream.Response) bool {
	if r == nil || !r.OK() {
		return false
	}
	return gjson.GetBytes(r.Body, candidatePath).Exists()
}

func failureRecord(text string) transcache.Record {
	return transcache.Record{DetectedSourceLang: "unknown", Text: text}
}

func sourceOrAuto(source string) string {
	if source == "" {
		return "auto"
	}
	return source
}
