// Package tokenstore holds the single bearer-credential slot. Login and
// signup write it, logout clears it, every outgoing request reads it.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/crmconsole/internal/config"
)

// SlotName is the fixed name of the credential slot.
const SlotName = "token"

// Store is a persistent key-value slot holding one bearer credential. Get
// returns "" when the slot is empty.
type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Open builds the store selected by cfg.Store.
func Open(cfg config.SessionConfig) (Store, error) {
	switch cfg.Store {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		return NewRedisStore(client, cfg.KeyPrefix), nil
	case "file", "":
		path := cfg.FilePath
		if path == "" {
			var err error
			if path, err = DefaultFilePath(); err != nil {
				return nil, err
			}
		}
		return NewFileStore(path), nil
	default:
		return nil, fmt.Errorf("tokenstore: unknown store %q", cfg.Store)
	}
}

// --- MemoryStore ---

// MemoryStore keeps the credential in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore creates an empty in-memory slot.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get implements Store.
func (s *MemoryStore) Get(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(context.Context) error {
	return s.Set(context.Background(), "")
}

// --- FileStore ---

// FileStore keeps the credential in a 0600 file. Used by the CLI so a login
// survives across invocations.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// DefaultFilePath returns <user config dir>/crmconsole/token.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("tokenstore: locating config dir: %w", err)
	}
	return filepath.Join(dir, "crmconsole", SlotName), nil
}

// NewFileStore creates a file-backed slot at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get implements Store.
func (s *FileStore) Get(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tokenstore: reading %s: %w", s.path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Set implements Store.
func (s *FileStore) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("tokenstore: creating %s: %w", filepath.Dir(s.path), err)
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("tokenstore: writing %s: %w", s.path, err)
	}
	return nil
}

// Clear implements Store.
func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("tokenstore: removing %s: %w", s.path, err)
	}
	return nil
}

// --- RedisStore ---

// RedisStore keeps the credential under a fixed Redis key. The key expires
// with the token's exp claim when one can be read.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

// NewRedisStore creates a Redis-backed slot at <prefix>token.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, key: prefix + SlotName}
}

// Key returns the Redis key of the slot.
func (s *RedisStore) Key() string {
	return s.key
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get %q: %w", s.key, err)
	}
	return v, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, token string) error {
	var ttl time.Duration
	if exp, ok := ExpiresAt(token); ok {
		ttl = time.Until(exp)
		if ttl <= 0 {
			return s.Clear(ctx)
		}
	}
	if err := s.client.Set(ctx, s.key, token, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", s.key, err)
	}
	return nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", s.key, err)
	}
	return nil
}

// HealthCheck pings Redis.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// ExpiresAt reads the exp claim of a JWT without verifying its signature.
// Verification belongs to the CRM API; the console only uses exp to warn
// about a stale session.
func ExpiresAt(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether token carries an exp claim in the past.
func Expired(token string, now time.Time) bool {
	exp, ok := ExpiresAt(token)
	return ok && !now.Before(exp)
}
