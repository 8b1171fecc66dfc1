package credential

import (
	"context"
	"strconv"
	"time"

	"gtranslate-go/internal/constants"
	log "github.com/sirupsen/logrus"
)

// ValidateAuth reports whether the secret authorizes a client. Membership is
// answered from the cached AuthSecrets set, falling back to a remote lookup
// on miss; when the store is unavailable the answer is always false.
func (p *Pool) ValidateAuth(ctx context.Context, secret string) bool {
	if secret == "" {
		return false
	}

	found := false
	if values, err := p.load(ctx, AuthSecrets); err == nil {
		for _, v := range values {
			if v == secret {
				found = true
				break
			}
		}
	}

	if !found {
		ok, err := p.store.IsMember(ctx, constants.AuthSecretSet, secret)
		if err != nil || !ok {
			return false
		}
		found = true
		// Warm the in-memory set so repeat callers skip the remote lookup.
		p.mu.Lock()
		if e := p.entries[AuthSecrets]; e != nil && len(e.values) > 0 {
			e.values = append(e.values, secret)
		}
		p.mu.Unlock()
	}

	return !p.authExpired(ctx, secret)
}

// authExpired consults the expiration hash maintained by the operator
// tooling. A missing entry means the secret does not expire; an unreadable
// hash does not revoke an already-confirmed member.
func (p *Pool) authExpired(ctx context.Context, secret string) bool {
	val, ok, err := p.store.HGet(ctx, constants.AuthExpirationHash, secret)
	if err != nil || !ok {
		return false
	}
	ts, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// Malformed timestamps are treated as expired, matching the
		// operator sweep.
		return true
	}
	return time.Now().Unix() > ts
}

// PruneExpiredAuths removes expired secrets from both the set and the
// expiration hash. Returns the number of secrets removed.
func (p *Pool) PruneExpiredAuths(ctx context.Context) (int, error) {
	all, err := p.store.HGetAll(ctx, constants.AuthExpirationHash)
	if err != nil {
		return 0, err
	}
	now := time.Now().Unix()
	var expired []string
	for secret, raw := range all {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ts < now {
			expired = append(expired, secret)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	for _, secret := range expired {
		if err := p.store.RemoveMember(ctx, constants.AuthSecretSet, secret); err != nil {
			return 0, err
		}
	}
	if err := p.store.HDel(ctx, constants.AuthExpirationHash, expired...); err != nil {
		return len(expired), err
	}
	p.Invalidate(AuthSecrets)
	log.WithField("count", len(expired)).Info("pruned expired auth secrets")
	return len(expired), nil
}
