// Package session resolves the active tenant identifier from local persisted
// state.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotObject   = errors.New("session entry is not a JSON object")
	ErrEmptyObject = errors.New("session entry has no keys")
	ErrTrailing    = errors.New("session entry has trailing data")
)

// Store is a local key-value store.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
}

// Resolver reads the tenant identifier stored under Key.
type Resolver struct {
	Store Store
	Key   string
}

// Resolve returns the first key of the JSON object stored under r.Key.
// A missing entry, invalid JSON or an empty object yields false.
func (r Resolver) Resolve(ctx context.Context) (string, bool) {
	logger := log.Ctx(ctx).With().Str("session_key", r.Key).Logger()

	if r.Store == nil {
		logger.Error().Msg("Session store not configured")
		return "", false
	}

	raw, found, err := r.Store.Get(ctx, r.Key)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read session store")
		return "", false
	}
	if !found {
		logger.Warn().Msg("No session entry in local store")
		return "", false
	}

	id, err := FirstKey(raw)
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid session entry")
		return "", false
	}
	return id, true
}

// FirstKey returns the first member name of a JSON object in document order.
func FirstKey(raw string) (string, error) {
	dec := json.NewDecoder(strings.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("decode session entry: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return "", ErrNotObject
	}
	if !dec.More() {
		return "", ErrEmptyObject
	}

	tok, err = dec.Token()
	if err != nil {
		return "", fmt.Errorf("decode session entry: %w", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", ErrNotObject
	}

	// The rest of the document must still be valid JSON.
	var rest json.RawMessage
	if err := dec.Decode(&rest); err != nil {
		return "", fmt.Errorf("decode session entry: %w", err)
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return "", fmt.Errorf("decode session entry: %w", err)
		}
		if err := dec.Decode(&rest); err != nil {
			return "", fmt.Errorf("decode session entry: %w", err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return "", fmt.Errorf("decode session entry: %w", err)
	}
	if err := trailing(dec); err != nil {
		return "", err
	}

	return key, nil
}

func trailing(dec *json.Decoder) error {
	if _, err := dec.Token(); err != io.EOF {
		return ErrTrailing
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
