package credential

import (
	"fmt"

	"gtranslate-go/internal/constants"
)

// Set names a rotating credential set in the shared store.
type Set string

const (
	GeminiKeys    Set = constants.GeminiKeySet
	TranslateKeys Set = constants.TranslateKeySet
	AuthSecrets   Set = constants.AuthSecretSet
)

// CounterKey returns the store key persisting the round-robin counter for
// the set, or "" for sets that are not selected from.
func (s Set) CounterKey() string {
	switch s {
	case GeminiKeys:
		return constants.GeminiKeyIndex
	case TranslateKeys:
		return constants.TranslateKeyIndex
	default:
		return ""
	}
}

// NoCredentialsError reports that a set loaded empty.
type NoCredentialsError struct {
	Set Set
}

func (e *NoCredentialsError) Error() string {
	return fmt.Sprintf("no credentials available in set %s", e.Set)
}
