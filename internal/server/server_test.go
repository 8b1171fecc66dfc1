package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gtranslate-go/internal/breaker"
	"gtranslate-go/internal/concurrency"
	"gtranslate-go/internal/config"
	"gtranslate-go/internal/constants"
	"gtranslate-go/internal/credential"
	"gtranslate-go/internal/dedup"
	"gtranslate-go/internal/kvstore"
	"gtranslate-go/internal/transcache"
	"gtranslate-go/internal/translate"
	"gtranslate-go/internal/upstream"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

const upstreamHappyBody = `{"candidates":[{"content":{"parts":[{"text":" Hola "}]}}]}`

type gateway struct {
	router http.Handler
	store  *kvstore.RedisStore
	cache  *transcache.Cache
	cfg    *config.Config
}

func newGateway(t *testing.T, upstreamURL string) *gateway {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(mr.Close)
	rs := kvstore.NewRedisStore(mr.Addr(), "", 0, "")
	t.Cleanup(func() { _ = rs.Close() })

	cfg := &config.Config{
		Port:                     "0",
		LogLevel:                 "none",
		RedisAddr:                mr.Addr(),
		MaxRetries:               3,
		CacheDurationSec:         60,
		TranslationCacheTTLSec:   3600,
		KeyCacheSize:             100,
		RequestTimeoutMS:         2000,
		ParallelTranslationLimit: 4,
		RequestDedupTTLMS:        100,
		GeminiModel:              "gemini-2.0-flash",
		GeminiBaseURL:            upstreamURL,
		GeminiAPIVersion:         "v1beta",
		SystemInstruction:        "test instruction",
		CircuitFailureThreshold:  2,
		CircuitSuccessThreshold:  2,
		CircuitTimeoutSec:        60,
	}

	pool := credential.NewPool(rs, cfg.CredentialCacheTTL())
	cache := transcache.New(rs, cfg.TranslationCacheTTL(), cfg.KeyCacheSize)
	breakers := breaker.NewRegistry(breaker.Settings{
		FailureThreshold: cfg.CircuitFailureThreshold,
		SuccessThreshold: cfg.CircuitSuccessThreshold,
		Timeout:          cfg.CircuitTimeout(),
	})
	executor := upstream.NewExecutor(&http.Client{}, breakers, cfg.RequestTimeout())
	sem := concurrency.NewSemaphore(cfg.ParallelTranslationLimit)
	engine := translate.NewEngine(translate.Settings{
		Model:             cfg.GeminiModel,
		BaseURL:           cfg.GeminiBaseURL,
		APIVersion:        cfg.GeminiAPIVersion,
		SystemInstruction: cfg.SystemInstruction,
		MaxAttempts:       cfg.MaxRetries,
	}, cache, pool, executor, sem)
	coalescer := dedup.NewCoalescer(cfg.RequestDedupTTL())

	return &gateway{
		router: New(cfg, rs, pool, engine, executor, coalescer).Router(),
		store:  rs,
		cache:  cache,
		cfg:    cfg,
	}
}

func (g *gateway) seed(t *testing.T, set string, values ...string) {
	t.Helper()
	ctx := context.Background()
	for _, v := range values {
		require.NoError(t, g.store.AddMember(ctx, set, v))
	}
}

func (g *gateway) post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	return w
}

type translationsBody struct {
	Translations []transcache.Record `json:"translations"`
}

func TestHappyPathSingleText(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(upstreamHappyBody))
	}))
	t.Cleanup(srv.Close)

	g := newGateway(t, srv.URL)
	g.seed(t, constants.AuthSecretSet, "GOODKEY")
	g.seed(t, constants.TranslateKeySet, "TK1")

	w := g.post("/translate/GOODKEY", `{"target_lang":"es","text_list":["Hello"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var body translationsBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, []transcache.Record{{DetectedSourceLang: "auto", Text: "Hola"}}, body.Translations)

	// The translation cache gained one entry.
	require.Eventually(t, func() bool {
		_, ok := g.cache.Get(context.Background(), "Hello", "", "es")
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestMissingAuthReturns401(t *testing.T) {
	t.Parallel()
	g := newGateway(t, "http://unused.invalid")

	w := g.post("/translate/", `{"target_lang":"es","text_list":["Hello"]}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "Missing authentication", body["error"])
}

func TestInvalidAuthReturns401(t *testing.T) {
	t.Parallel()
	g := newGateway(t, "http://unused.invalid")
	g.seed(t, constants.AuthSecretSet, "GOODKEY")

	w := g.post("/translate/WRONGKEY", `{"target_lang":"es","text_list":["Hello"]}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "Invalid client authentication key", body["error"])
}

func TestRequestValidation(t *testing.T) {
	t.Parallel()
	g := newGateway(t, "http://unused.invalid")
	g.seed(t, constants.AuthSecretSet, "GOODKEY")

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing text_list", `{"target_lang":"es"}`, "text_list is required and must be an array"},
		{"non-array text_list", `{"target_lang":"es","text_list":"Hello"}`, "text_list is required and must be an array"},
		{"missing target_lang", `{"text_list":["Hello"]}`, "target_lang is required"},
	}
	for _, tc := range cases {
		w := g.post("/translate/GOODKEY", tc.body)
		require.Equal(t, http.StatusBadRequest, w.Code, tc.name)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Equal(t, tc.want, body["message"], tc.name)
	}
}

func TestBatchSizeLimit(t *testing.T) {
	t.Parallel()
	g := newGateway(t, "http://unused.invalid")
	g.seed(t, constants.AuthSecretSet, "GOODKEY")

	texts := make([]string, 101)
	for i := range texts {
		texts[i] = "x"
	}
	payload, _ := json.Marshal(map[string]any{"target_lang": "es", "text_list": texts})

	w := g.post("/translate/GOODKEY", string(payload))
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "Maximum batch size is 100 texts", body["message"])
}

func TestInvalidCredentialRotation(t *testing.T) {
	t.Parallel()
	// Whichever key the pool tries first is rejected with 403; the rotation
	// must evict it and succeed with the other one.
	var badKey atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		badKey.CompareAndSwap(nil, key)
		if badKey.Load() == key {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(upstreamHappyBody))
	}))
	t.Cleanup(srv.Close)

	g := newGateway(t, srv.URL)
	g.seed(t, constants.AuthSecretSet, "GOODKEY")
	g.seed(t, constants.TranslateKeySet, "A", "B")

	w := g.post("/translate/GOODKEY", `{"target_lang":"es","text_list":["Hello"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body translationsBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "Hola", body.Translations[0].Text)

	rejected, _ := badKey.Load().(string)
	require.NotEmpty(t, rejected)
	ok, err := g.store.IsMember(context.Background(), constants.TranslateKeySet, rejected)
	require.NoError(t, err)
	require.False(t, ok, "rejected key must be removed from the store")
}

func TestBatchWithDuplicatesAndCache(t *testing.T) {
	t.Parallel()
	var upstreamCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&upstreamCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"chien"}]}}]}`))
	}))
	t.Cleanup(srv.Close)

	g := newGateway(t, srv.URL)
	g.seed(t, constants.AuthSecretSet, "GOODKEY")
	g.seed(t, constants.TranslateKeySet, "TK1")
	g.cache.Put(context.Background(), "cat", "", "fr", transcache.Record{DetectedSourceLang: "auto", Text: "chat"})

	w := g.post("/translate/GOODKEY", `{"target_lang":"fr","text_list":["cat","cat","dog"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body translationsBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, []transcache.Record{
		{DetectedSourceLang: "auto", Text: "chat"},
		{DetectedSourceLang: "auto", Text: "chat"},
		{DetectedSourceLang: "auto", Text: "chien"},
	}, body.Translations)
	require.EqualValues(t, 1, atomic.LoadInt32(&upstreamCalls), "upstream is called once for the single miss")
}

func TestCoalescedDuplicateSubmissions(t *testing.T) {
	t.Parallel()
	var upstreamCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&upstreamCalls, 1)
		time.Sleep(50 * time.Millisecond) // keep the first request in flight
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(upstreamHappyBody))
	}))
	t.Cleanup(srv.Close)

	g := newGateway(t, srv.URL)
	g.seed(t, constants.AuthSecretSet, "GOODKEY")
	g.seed(t, constants.TranslateKeySet, "TK1")

	const body = `{"target_lang":"es","text_list":["Hello"]}`
	responses := make([]*httptest.ResponseRecorder, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i] = g.post("/translate/GOODKEY", body)
		}(i)
	}
	wg.Wait()

	require.Equal(t, http.StatusOK, responses[0].Code)
	require.Equal(t, http.StatusOK, responses[1].Code)
	require.Equal(t, responses[0].Body.Bytes(), responses[1].Body.Bytes(),
		"coalesced requests must observe byte-equal bodies")
	require.EqualValues(t, 1, atomic.LoadInt32(&upstreamCalls),
		"the upstream is called once per unique input")
}

func TestCircuitOpenYieldsInternalError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // upstream is unreachable: every attempt is a transport error

	g := newGateway(t, srv.URL)
	g.seed(t, constants.AuthSecretSet, "GOODKEY")
	g.seed(t, constants.TranslateKeySet, "A", "B", "C")

	w := g.post("/translate/GOODKEY", `{"target_lang":"es","text_list":["Hello"]}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "An internal error occurred", body["error"])
	require.NotEmpty(t, body["request_id"])
}

func TestNoCredentialsYieldsInternalError(t *testing.T) {
	t.Parallel()
	g := newGateway(t, "http://unused.invalid")
	g.seed(t, constants.AuthSecretSet, "GOODKEY")
	// TRANSLATE_KEY_SET left empty.

	w := g.post("/translate/GOODKEY", `{"target_lang":"es","text_list":["Hello"]}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "An internal error occurred", body["error"])
}

func TestPassthroughInjectsCredential(t *testing.T) {
	t.Parallel()
	var gotPath, gotKey, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("x-goog-api-key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"gemini-2.0-flash"}]}`))
	}))
	t.Cleanup(srv.Close)

	g := newGateway(t, srv.URL)
	g.seed(t, constants.GeminiKeySet, "GK1")

	req := httptest.NewRequest(http.MethodGet, "/v1beta/models?pageSize=5", nil)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "/v1beta/models", gotPath)
	require.Equal(t, "pageSize=5", gotQuery)
	require.Equal(t, "GK1", gotKey)
	require.Contains(t, w.Body.String(), "gemini-2.0-flash")
}

func TestProviderPassthroughStripsPrefix(t *testing.T) {
	t.Parallel()
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	g := newGateway(t, srv.URL)
	g.seed(t, constants.GeminiKeySet, "GK1")

	req := httptest.NewRequest(http.MethodGet, "/providers/gemini/v1beta/models", nil)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "/v1beta/models", gotPath)
}

func TestHealthAndRoot(t *testing.T) {
	t.Parallel()
	g := newGateway(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	require.Equal(t, "healthy", health["status"])
	require.NotEmpty(t, health["timestamp"])

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	w = httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "gtranslate-go")
}
