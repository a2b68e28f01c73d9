// Package auth abstracts the external identity provider. The service only
// needs the signed-in principal; sign-in flows and token issuance stay with
// the provider.
package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/circolo-dev/fantacircolo/internal/domain/model"
)

// Verifier resolves a bearer token to a signed-in principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (model.Principal, error)
}

// StaticVerifier is a Verifier backed by a fixed token table, for local runs
// and tests. Entries come from config as "uid:email:displayName".
type StaticVerifier struct {
	mu     sync.RWMutex
	tokens map[string]model.Principal
}

// NewStaticVerifier builds a verifier from the configured token table.
// Malformed entries are skipped.
func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	v := &StaticVerifier{tokens: make(map[string]model.Principal)}
	for token, entry := range tokens {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		p := model.Principal{UID: parts[0], Email: parts[1]}
		if len(parts) == 3 {
			p.DisplayName = parts[2]
		}
		v.tokens[token] = p
	}
	return v
}

// Register binds a token to a principal. Used by tests and the seeding CLI.
func (v *StaticVerifier) Register(token string, p model.Principal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[token] = p
}

// Verify resolves a bearer token.
func (v *StaticVerifier) Verify(_ context.Context, token string) (model.Principal, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	p, ok := v.tokens[token]
	if !ok {
		return model.Principal{}, ErrInvalidToken
	}
	return p, nil
}
