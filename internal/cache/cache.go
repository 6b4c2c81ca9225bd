// Package cache keeps resolved descriptor batches under short-lived
// references so a deliver call can refer back to an earlier resolve
// without re-scraping the platform. Entries expire on their own; this
// is transient request plumbing, not a content library.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tecchey18-jpg/downloading-website/internal/config"
	"github.com/tecchey18-jpg/downloading-website/pkg/models"
)

// Store is the redis-backed descriptor reference store.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to redis and verifies the connection.
func New(cfg config.CacheConfig) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.RefTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Store{client: client, ttl: ttl}, nil
}

// Close closes the redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Put stores a descriptor batch and returns its reference.
func (s *Store) Put(ctx context.Context, descs []*models.MediaDescriptor) (string, error) {
	data, err := json.Marshal(descs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal descriptors: %w", err)
	}

	ref := uuid.New().String()
	if err := s.client.Set(ctx, refKey(ref), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store descriptors: %w", err)
	}
	return ref, nil
}

// Get retrieves a descriptor batch by reference. A missing or expired
// reference returns (nil, nil).
func (s *Store) Get(ctx context.Context, ref string) ([]*models.MediaDescriptor, error) {
	data, err := s.client.Get(ctx, refKey(ref)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // miss
		}
		return nil, fmt.Errorf("failed to load descriptors: %w", err)
	}

	var descs []*models.MediaDescriptor
	if err := json.Unmarshal(data, &descs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal descriptors: %w", err)
	}
	return descs, nil
}

func refKey(ref string) string {
	return "descriptors:" + ref
}
