package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/0x-stone/zspa/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "zspa:session:"

// Store implements ports.StateStore using Redis.
// Saves use WATCH/MULTI/EXEC so a stale version never overwrites a newer one.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for sessions.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

type versionProbe struct {
	Version int64 `json:"version"`
}

// Save persists the state if the stored version matches state.Version.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.State) error {
	key := s.key(sessionID)
	next := state.Version + 1

	err := s.client.Watch(ctx, func(tx *backend.Tx) error {
		var current int64
		val, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, backend.Nil):
		case err != nil:
			return fmt.Errorf("failed to read current version: %w", err)
		default:
			var probe versionProbe
			if err := json.Unmarshal(val, &probe); err != nil {
				return fmt.Errorf("failed to unmarshal stored state: %w", err)
			}
			current = probe.Version
		}
		if current != state.Version {
			return domain.ErrVersionConflict
		}

		snapshot := *state
		snapshot.Version = next
		data, err := json.Marshal(&snapshot)
		if err != nil {
			return fmt.Errorf("failed to marshal state: %w", err)
		}

		// Score = Now + TTL. If TTL = 0, Score = far future.
		score := float64(time.Now().Add(s.ttl).Unix())
		if s.ttl == 0 {
			score = 4102444800 // 2100-01-01
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: sessionID})
			return nil
		})
		return err
	}, key)

	if errors.Is(err, backend.TxFailedErr) {
		return domain.ErrVersionConflict
	}
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
		return fmt.Errorf("failed to save to redis: %w", err)
	}

	state.Version = next
	return nil
}

// Load retrieves the state from Redis.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if state.Messages == nil {
		state.Messages = domain.NewMessageLog()
	}

	return &state, nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.Pipeline()

	pipe.Del(ctx, s.key(sessionID))
	pipe.ZRem(ctx, s.indexKey(), sessionID)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns active sessions, pruning expired index entries first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())

	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	sessions, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
