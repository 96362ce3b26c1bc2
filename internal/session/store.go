// Package session holds the server side of a cookie session: an opaque id
// handed to the browser, mapped in Redis to the authenticated account.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNoSession = errors.New("no such session")

const keyPrefix = "session:"

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Create mints a fresh session id for the account. Callers establishing a
// session on login must destroy the previous id first so a privilege change
// never reuses an identifier.
func (s *Store) Create(ctx context.Context, accountID uuid.UUID) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	id := hex.EncodeToString(b)

	if err := s.client.Set(ctx, keyPrefix+id, accountID.String(), s.ttl).Err(); err != nil {
		return "", err
	}

	return id, nil
}

func (s *Store) Get(ctx context.Context, id string) (uuid.UUID, error) {
	if id == "" {
		return uuid.Nil, ErrNoSession
	}

	val, err := s.client.Get(ctx, keyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, ErrNoSession
		}
		return uuid.Nil, err
	}

	accountID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, ErrNoSession
	}

	return accountID, nil
}

// Destroy is idempotent; destroying an unknown session succeeds.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, keyPrefix+id).Err()
}
