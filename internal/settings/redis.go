package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/runbook-hub/runbook-hub/internal/shared"
)

// updateMaxRetries bounds optimistic retries when another process writes
// the same key between our read and write.
const updateMaxRetries = 5

// RedisStore persists settings documents as JSON values in Redis.
type RedisStore struct {
	client *redis.Client

	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

// NewRedisStore constructs a RedisStore on the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, keys: make(map[string]*sync.Mutex)}
}

// Get loads the document stored under key into dest.
func (s *RedisStore) Get(ctx context.Context, project, key string, dest any) error {
	payload, err := s.client.Get(ctx, storageKey(project, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.ErrNotFound
		}
		return storeError("get", key, err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return storeError("decode", key, err)
	}
	return nil
}

// Set replaces the document stored under key.
func (s *RedisStore) Set(ctx context.Context, project, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return storeError("encode", key, err)
	}
	if err := s.client.Set(ctx, storageKey(project, key), payload, 0).Err(); err != nil {
		return storeError("set", key, err)
	}
	return nil
}

// Update runs a read-modify-write cycle on key. Cycles on the same key are
// serialised within the process; cross-process conflicts are detected with
// an optimistic WATCH transaction and retried a bounded number of times.
func (s *RedisStore) Update(ctx context.Context, project, key string, fn UpdateFunc) error {
	if fn == nil {
		return storeError("update", key, errors.New("nil update func"))
	}
	sk := storageKey(project, key)
	lock := s.keyLock(sk)
	lock.Lock()
	defer lock.Unlock()

	var fnErr error
	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, sk).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if errors.Is(err, redis.Nil) {
			raw = nil
		}
		next, err := fn(raw)
		if err != nil {
			fnErr = err
			return err
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sk, payload, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < updateMaxRetries; attempt++ {
		fnErr = nil
		err := s.client.Watch(ctx, txn, sk)
		if err == nil {
			return nil
		}
		if fnErr != nil {
			return fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return storeError("update", key, err)
	}
	return storeError("update", key, errors.New("too many conflicting writes"))
}

func (s *RedisStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.keys[key]
	if !ok {
		lock = &sync.Mutex{}
		s.keys[key] = lock
	}
	return lock
}

func storageKey(project, key string) string {
	return fmt.Sprintf("settings:%s:%s", project, key)
}

func storeError(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %v", shared.ErrStoreUnavailable, op, key, err)
}
