// Package redisstore keeps session tokens in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"tasktracker/internal/domain/errors"
	"tasktracker/internal/domain/models"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "tasktracker:"
	claimAttempts = 5
)

// releaseUserKey deletes the user->token mapping only while it still points
// at the given token.
var releaseUserKey = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// revokeSession removes the token key and, in the same step, the user key
// when it still points at that token. Returns the number of token keys removed.
var revokeSession = redis.NewScript(`
local removed = redis.call("DEL", KEYS[1])
if removed == 1 and redis.call("GET", KEYS[2]) == ARGV[1] then
	redis.call("DEL", KEYS[2])
end
return removed
`)

type record struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore maps token -> session and user -> token. The user key is
// claimed with SETNX so each user owns at most one token.
type SessionStore struct {
	client *redis.Client
	prefix string
}

func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		log.Println("[ERROR] failed to connect to redis:", err)
		return nil, err
	}
	log.Println("[SUCCESS] redis connection established:", addr)
	return client, nil
}

func NewSessionStore(client *redis.Client, prefix string) *SessionStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SessionStore{client: client, prefix: prefix}
}

func (s *SessionStore) Close() error {
	return s.client.Close()
}

func (s *SessionStore) tokenKey(token string) string { return s.prefix + "session:" + token }

func (s *SessionStore) userKey(userID string) string { return s.prefix + "user-session:" + userID }

func (s *SessionStore) GetOrCreateSession(ctx context.Context, userID, token string, now time.Time) (*models.Session, error) {
	data, err := json.Marshal(record{UserID: userID, CreatedAt: now})
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}

	for attempt := 0; attempt < claimAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 5 * time.Millisecond)
		}
		// the token key goes first so a claimed user key never dangles
		if err := s.client.Set(ctx, s.tokenKey(token), data, 0).Err(); err != nil {
			log.Println("[ERROR] failed to write session:", err)
			return nil, err
		}
		won, err := s.client.SetNX(ctx, s.userKey(userID), token, 0).Result()
		if err != nil {
			log.Println("[ERROR] failed to claim session:", err)
			return nil, err
		}
		if won {
			return &models.Session{Token: token, UserID: userID, CreatedAt: now}, nil
		}

		if err := s.client.Del(ctx, s.tokenKey(token)).Err(); err != nil {
			log.Println("[WARN] failed to drop unused session token:", err)
		}
		existing, err := s.client.Get(ctx, s.userKey(userID)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			log.Println("[ERROR] failed to read session owner:", err)
			return nil, err
		}
		session, err := s.GetSession(ctx, existing)
		if errors.Is(err, errors.ErrSessionNotFound) {
			// user key outlived its token; drop it so the next claim can win
			if err := releaseUserKey.Run(ctx, s.client, []string{s.userKey(userID)}, existing).Err(); err != nil {
				log.Println("[ERROR] failed to release stale user session:", err)
				return nil, err
			}
			log.Println("[WARN] released stale session mapping for user:", userID)
			continue
		}
		return session, err
	}
	return nil, fmt.Errorf("session for user %s kept changing", userID)
}

func (s *SessionStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	data, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.ErrSessionNotFound
		}
		log.Println("[ERROR] failed to read session:", err)
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &models.Session{Token: token, UserID: rec.UserID, CreatedAt: rec.CreatedAt}, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, token string) error {
	session, err := s.GetSession(ctx, token)
	if err != nil {
		return err
	}

	keys := []string{s.tokenKey(token), s.userKey(session.UserID)}
	removed, err := revokeSession.Run(ctx, s.client, keys, token).Int64()
	if err != nil {
		log.Println("[ERROR] failed to delete session:", err)
		return err
	}
	if removed == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}
