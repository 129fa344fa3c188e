package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/absencehub/internal/domain/token"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type TokensRepo struct {
	db *DB
}

func (r *TokensRepo) Create(ctx context.Context, t *token.Token) error {
	t.ID = uuid.NewString()

	return r.db.observe("tokens.create", func() error {
		_, err := r.db.q(ctx).Exec(ctx,
			`INSERT INTO tokens (id, token_hash, user_id, type, expires_at, blacklisted, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			t.ID, t.TokenHash, t.UserID, string(t.Type), t.ExpiresAt, t.Blacklisted, t.CreatedAt,
		)
		return err
	})
}

// FindActive locks the row when called inside a transaction so two
// concurrent consumers of the same token serialize.
func (r *TokensRepo) FindActive(ctx context.Context, hash string, typ token.Type) (token.Token, error) {
	query := `
		SELECT id, token_hash, user_id, type, expires_at, blacklisted, created_at
		FROM tokens
		WHERE token_hash = $1 AND type = $2 AND blacklisted = false`
	if inTx(ctx) {
		query += ` FOR UPDATE`
	}

	var t token.Token
	err := r.db.observe("tokens.find_active", func() error {
		return r.db.q(ctx).QueryRow(ctx, query, hash, string(typ)).Scan(
			&t.ID,
			&t.TokenHash,
			&t.UserID,
			&t.Type,
			&t.ExpiresAt,
			&t.Blacklisted,
			&t.CreatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return token.Token{}, token.ErrNotFound
		}
		return token.Token{}, err
	}
	return t, nil
}

func (r *TokensRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return token.ErrNotFound
	}

	var affected int64
	err := r.db.observe("tokens.delete", func() error {
		tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM tokens WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return token.ErrNotFound
	}
	return nil
}

func (r *TokensRepo) DeleteAllOfType(ctx context.Context, userID string, typ token.Type) (int64, error) {
	if !validID(userID) {
		return 0, nil
	}

	var affected int64
	err := r.db.observe("tokens.delete_all_of_type", func() error {
		tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM tokens WHERE user_id = $1 AND type = $2`, userID, string(typ))
		affected = tag.RowsAffected()
		return err
	})
	return affected, err
}
