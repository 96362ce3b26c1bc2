package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvalidToken = errors.New("invalid or expired verification token")

// TokenTTL is the lifetime of a verification link.
const TokenTTL = 24 * time.Hour

type TokenRepository struct {
	db *pgxpool.Pool
}

func NewTokenRepository(db *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{db: db}
}

// Issue replaces any live token for the account with a fresh one. The
// delete and insert share a transaction so concurrent resends leave exactly
// one winner's token live.
func (r *TokenRepository) Issue(ctx context.Context, accountID uuid.UUID) (string, time.Time, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}
	expiresAt := time.Now().Add(TokenTTL)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", time.Time{}, err
	}
	defer tx.Rollback(ctx)

	// Lock the account row first. Under read committed, two reissues that
	// only contend on the token row can each commit a token: the loser's
	// DELETE resumes after the winner commits but its snapshot cannot see
	// the winner's insert. Serializing on the account keeps exactly one
	// token live.
	var locked uuid.UUID
	if err := tx.QueryRow(ctx,
		`SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, ErrAccountNotFound
		}
		return "", time.Time{}, err
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM verification_tokens WHERE account_id = $1`, accountID); err != nil {
		return "", time.Time{}, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO verification_tokens (account_id, token, expires_at) VALUES ($1, $2, $3)`,
		accountID, token, expiresAt); err != nil {
		return "", time.Time{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// Redeem consumes the token and returns the owning account. Unknown,
// already-consumed, and expired tokens all fail the same way. Expiry is
// exclusive: a token at exactly its expiry instant is invalid.
func (r *TokenRepository) Redeem(ctx context.Context, token string) (uuid.UUID, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback(ctx)

	var accountID uuid.UUID
	var expiresAt time.Time
	err = tx.QueryRow(ctx,
		`SELECT account_id, expires_at FROM verification_tokens WHERE token = $1 FOR UPDATE`,
		token).Scan(&accountID, &expiresAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrInvalidToken
		}
		return uuid.Nil, err
	}

	if !TokenValidAt(expiresAt, time.Now()) {
		return uuid.Nil, ErrInvalidToken
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM verification_tokens WHERE token = $1`, token); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}

	return accountID, nil
}

// DeleteExpired is housekeeping for tokens that were never redeemed.
func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx,
		`DELETE FROM verification_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}

// GenerateToken returns 32 bytes of crypto/rand entropy, hex encoded.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// TokenValidAt reports whether a token expiring at expiresAt is still
// redeemable at now.
func TokenValidAt(expiresAt, now time.Time) bool {
	return now.Before(expiresAt)
}
