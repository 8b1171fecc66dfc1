// Package transcache reads and writes prior translations in the shared
// store, addressed by content.
package transcache

import (
	"context"
	"encoding/json"
	"time"

	"gtranslate-go/internal/constants"
	"gtranslate-go/internal/kvstore"
	"gtranslate-go/internal/monitoring"
	log "github.com/sirupsen/logrus"
)

// Record is one cached translation.
type Record struct {
	DetectedSourceLang string `json:"detected_source_lang"`
	Text               string `json:"text"`
}

// Cache is batch-aware: multi-text reads use one MGET and multi-text writes
// one pipeline. When the store is unavailable reads come back empty and
// writes are dropped; the translation engine keeps working.
type Cache struct {
	store kvstore.Store
	ttl   time.Duration
	memo  *keyMemo
}

func New(store kvstore.Store, ttl time.Duration, keyCacheSize int) *Cache {
	if ttl <= 0 {
		ttl = constants.DefaultTranslationCacheTTL
	}
	return &Cache{store: store, ttl: ttl, memo: newKeyMemo(keyCacheSize)}
}

// Get returns the cached translation for one text, if present.
func (c *Cache) Get(ctx context.Context, text, source, target string) (Record, bool) {
	raw, ok, err := c.store.Get(ctx, c.memo.key(text, source, target))
	if err != nil || !ok {
		if err != nil && err != kvstore.ErrUnavailable {
			log.WithError(err).Debug("translation cache read failed")
		}
		monitoring.TranslationCacheMisses.Inc()
		return Record{}, false
	}
	var rec Record
	if json.Unmarshal([]byte(raw), &rec) != nil {
		monitoring.TranslationCacheMisses.Inc()
		return Record{}, false
	}
	monitoring.TranslationCacheHits.Inc()
	return rec, true
}

// GetMultiple returns the cached translations for the given texts, keyed by
// text. Texts with no usable entry are simply absent from the result.
func (c *Cache) GetMultiple(ctx context.Context, texts []string, source, target string) map[string]Record {
	out := make(map[string]Record, len(texts))
	if len(texts) == 0 {
		return out
	}
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.memo.key(t, source, target)
	}
	raw, err := c.store.MGet(ctx, keys)
	if err != nil {
		if err != kvstore.ErrUnavailable {
			log.WithError(err).Debug("translation cache batch read failed")
		}
		monitoring.TranslationCacheMisses.Add(float64(len(texts)))
		return out
	}
	for i, v := range raw {
		if v == nil {
			monitoring.TranslationCacheMisses.Inc()
			continue
		}
		var rec Record
		if json.Unmarshal([]byte(*v), &rec) != nil {
			monitoring.TranslationCacheMisses.Inc()
			continue
		}
		monitoring.TranslationCacheHits.Inc()
		out[texts[i]] = rec
	}
	return out
}

// Put stores one translation.
func (c *Cache) Put(ctx context.Context, text, source, target string, rec Record) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.store.SetWithTTL(ctx, c.memo.key(text, source, target), string(payload), c.ttl); err != nil && err != kvstore.ErrUnavailable {
		log.WithError(err).Debug("translation cache write failed")
	}
}

// PutMultiple stores a batch of translations in one pipeline.
func (c *Cache) PutMultiple(ctx context.Context, records map[string]Record, source, target string) {
	if len(records) == 0 {
		return
	}
	entries := make([]kvstore.Entry, 0, len(records))
	for text, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		entries = append(entries, kvstore.Entry{Key: c.memo.key(text, source, target), Value: string(payload)})
	}
	if err := c.store.MSetWithTTL(ctx, entries, c.ttl); err != nil && err != kvstore.ErrUnavailable {
		log.WithError(err).Debug("translation cache batch write failed")
	}
}
