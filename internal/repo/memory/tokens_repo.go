package memory

import (
	"context"

	"github.com/geocoder89/absencehub/internal/domain/token"
	"github.com/google/uuid"
)

type tokenRow = token.Token

type TokensRepo struct {
	s *Store
}

func (r *TokensRepo) Create(_ context.Context, t *token.Token) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t.ID = uuid.NewString()
	r.s.tokens[t.ID] = *t
	return nil
}

func (r *TokensRepo) FindActive(_ context.Context, hash string, typ token.Type) (token.Token, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, t := range r.s.tokens {
		if t.TokenHash == hash && t.Type == typ && !t.Blacklisted {
			return t, nil
		}
	}
	return token.Token{}, token.ErrNotFound
}

func (r *TokensRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tokens[id]; !ok {
		return token.ErrNotFound
	}
	delete(r.s.tokens, id)
	return nil
}

func (r *TokensRepo) DeleteAllOfType(_ context.Context, userID string, typ token.Type) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, t := range r.s.tokens {
		if t.UserID == userID && t.Type == typ {
			delete(r.s.tokens, id)
			n++
		}
	}
	return n, nil
}

// Blacklist flags a stored token. Only tests use it today.
func (r *TokensRepo) Blacklist(id string) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if t, ok := r.s.tokens[id]; ok {
		t.Blacklisted = true
		r.s.tokens[id] = t
	}
}
