// Package translate implements the batch translation engine: dedup, cache
// probe, bounded fan-out through the retry executor, and order-preserving
// assembly.
package translate

import (
	"context"
	"sync"
	"time"

	"gtranslate-go/internal/concurrency"
	"gtranslate-go/internal/credential"
	"gtranslate-go/internal/transcache"
	"gtranslate-go/internal/upstream"
)

// Runner abstracts the retry executor so the engine can be exercised
// without a network.
type Runner interface {
	Execute(ctx context.Context, opts upstream.Options) (*upstream.Response, error)
}

// Settings fix the upstream addressing and prompt for an Engine.
type Settings struct {
	Model             string
	BaseURL           string
	APIVersion        string
	SystemInstruction string
	MaxAttempts       int
}

type Engine struct {
	settings Settings
	cache    *transcache.Cache
	pool     *credential.Pool
	runner   Runner
	sem      *concurrency.Semaphore
}

func NewEngine(settings Settings, cache *transcache.Cache, pool *credential.Pool, runner Runner, sem *concurrency.Semaphore) *Engine {
	return &Engine{settings: settings, cache: cache, pool: pool, runner: runner, sem: sem}
}

// TranslateBatch translates textList into target, returning one record per
// input in input order. Duplicate inputs are translated once. Individual
// failures never fail the batch: the failed slot carries the original text
// and detected_source_lang "unknown". The error is non-nil only when the
// upstream could not be reached at all (no credentials, open circuit,
// total network failure), which affects every text equally.
func (e *Engine) TranslateBatch(ctx context.Context, texts []string, target, source string) ([]transcache.Record, error) {
	results := make([]transcache.Record, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	// Dedup preserving first occurrence; remember every position per text.
	unique := make([]string, 0, len(texts))
	positions := make(map[string][]int, len(texts))
	for i, t := range texts {
		if _, seen := positions[t]; !seen {
			unique = append(unique, t)
		}
		positions[t] = append(positions[t], i)
	}

	translations := e.cache.GetMultiple(ctx, unique, source, target)

	var misses []string
	for _, t := range unique {
		if _, ok := translations[t]; !ok {
			misses = append(misses, t)
		}
	}

	if len(misses) > 0 {
		fresh, err := e.translateMisses(ctx, misses, target, source)
		if err != nil {
			return nil, err
		}
		succeeded := make(map[string]transcache.Record, len(fresh))
		for text, rec := range fresh {
			translations[text] = rec
			if rec.DetectedSourceLang != "unknown" {
				succeeded[text] = rec
			}
		}
		e.writeBack(succeeded, source, target)
	}

	for text, idxs := range positions {
		rec := translations[text]
		for _, i := range idxs {
			results[i] = rec
		}
	}
	return results, nil
}

// translateMisses fans the texts out under the semaphore and collects every
// result.
func (e *Engine) translateMisses(ctx context.Context, misses []string, target, source string) (map[string]transcache.Record, error) {
	fresh := make(map[string]transcache.Record, len(misses))
	var firstErr error
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, t := range misses {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			var rec transcache.Record
			var err error
			if err = e.sem.Acquire(ctx); err == nil {
				rec, err = e.translateText(ctx, text, target, source)
				e.sem.Release()
			}
			mu.Lock()
			fresh[text] = rec
			if err != nil && firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}(t)
	}
	wg.Wait()
	return fresh, firstErr
}

// writeBack persists new translations without blocking the response.
func (e *Engine) writeBack(records map[string]transcache.Record, source, target string) {
	if len(records) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		e.cache.PutMultiple(ctx, records, source, target)
	}()
}
