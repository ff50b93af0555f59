package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"highlight-reel-pipeline/config"
)

// SeenStore remembers video IDs already used in a published reel
type SeenStore interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, ids ...string) error
}

// NewSeenStore returns the configured store, or nil when disabled
func NewSeenStore(ctx context.Context, cfg config.SeenStoreConfig, redisPassword string) (SeenStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case "redis":
		s, err := NewRedisStore(ctx, cfg.RedisAddr, redisPassword, cfg.RedisDB, cfg.RedisKey)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return NewFileStore(cfg.File), nil
	}
}

// FileStore keeps used IDs as a JSON array on disk
type FileStore struct {
	path string
	mu   sync.Mutex
	ids  map[string]bool
}

// NewFileStore loads path; a missing or unreadable file starts empty
func NewFileStore(path string) *FileStore {
	s := &FileStore{path: path, ids: make(map[string]bool)}
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return s
	}
	for _, id := range ids {
		s.ids[id] = true
	}
	return s
}

func (s *FileStore) Seen(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[id], nil
}

func (s *FileStore) Mark(_ context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.ids[id] = true
	}
	all := make([]string, 0, len(s.ids))
	for id := range s.ids {
		all = append(all, id)
	}
	sort.Strings(all)
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0644)
}

// setCommands is the part of *redis.Client the store uses
type setCommands interface {
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Close() error
}

// RedisStore keeps used IDs in a Redis set
type RedisStore struct {
	client setCommands
	key    string
}

// NewRedisStore connects and pings the server
func NewRedisStore(ctx context.Context, addr, password string, db int, key string) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address is empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisStore{client: client, key: key}, nil
}

func (s *RedisStore) Seen(ctx context.Context, id string) (bool, error) {
	return s.client.SIsMember(ctx, s.key, id).Result()
}

func (s *RedisStore) Mark(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return s.client.SAdd(ctx, s.key, members...).Err()
}

// Close releases the connection pool
func (s *RedisStore) Close() error {
	return s.client.Close()
}
