package constants

import "time"

// 缓存相关常量
const (
	DefaultCredentialCacheTTL  = 600 * time.Second
	DefaultTranslationCacheTTL = 86400 * time.Second
	DefaultKeyCacheSize        = 1000

	// Identifiers shorter than this are base64-encoded verbatim; longer ones
	// are SHA-1 hashed. The boundary is part of the cache key format.
	CacheKeyInlineLimit = 100

	TranslationKeyPrefix = "translation:"
)

// Redis key names. These are shared with the operator tooling and must not
// change.
const (
	GeminiKeySet       = "GEMINI_API_KEY_SET"
	TranslateKeySet    = "TRANSLATE_KEY_SET"
	AuthSecretSet      = "AUTH_SECRET_SET"
	AuthExpirationHash = "AUTH_SECRET_EXPIRATION_HASH"

	GeminiKeyIndex    = "GEMINI_API_KEY_INDEX"
	TranslateKeyIndex = "TRANSLATE_KEY_INDEX"
)
