// Package storage provides the durable key/value backends a session is
// persisted to: a JetStream KV bucket, a directory of files, and an
// in-memory map for tests and throwaway sessions.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

// BucketSessions is the default KV bucket for session state.
const BucketSessions = "RYZE_SESSIONS"

// validKVKey mirrors the JetStream KV key charset.
var validKVKey = regexp.MustCompile(`^[-/_=\.a-zA-Z0-9]+$`)

// KVStore keeps session keys in a JetStream KV bucket. Every key is prefixed
// with the session name so several sessions can share one bucket.
type KVStore struct {
	kv      jetstream.KeyValue
	session string
}

// NewKVStore opens (or creates) bucket and scopes keys to session.
func NewKVStore(ctx context.Context, js jetstream.JetStream, bucket, session string) (*KVStore, error) {
	if session == "" {
		session = "default"
	}
	if !validKVKey.MatchString(session) {
		return nil, fmt.Errorf("%w: session %q", ErrInvalidKey, session)
	}

	kv, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		return nil, fmt.Errorf("open %s bucket: %w", bucket, err)
	}
	return &KVStore{kv: kv, session: session}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Ryze %s storage", strings.ToLower(name)),
		History:     5, // Keep last 5 revisions
	})
}

func (s *KVStore) key(key string) (string, error) {
	if !validKVKey.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return s.session + "." + key, nil
}

// Get returns the value for key.
func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	k, err := s.key(key)
	if err != nil {
		return "", false, err
	}

	entry, err := s.kv.Get(ctx, k)
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return string(entry.Value()), true, nil
}

// Set stores value under key.
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	k, err := s.key(key)
	if err != nil {
		return err
	}
	if _, err := s.kv.Put(ctx, k, []byte(value)); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *KVStore) Remove(ctx context.Context, key string) error {
	k, err := s.key(key)
	if err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, k); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}
