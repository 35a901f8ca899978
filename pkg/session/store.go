package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

// Store persists one session record.
type Store interface {
	GetSessionData(ctx context.Context) (*SessionData, error)
	SetSessionData(ctx context.Context, data *SessionData) error
	DeleteSessionData(ctx context.Context) error
}

// MemoryStore keeps the record as a JSON snapshot, so callers never share
// state with the store.
type MemoryStore struct {
	mu  sync.Mutex
	raw []byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) GetSessionData(context.Context) (*SessionData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raw == nil {
		return NewSessionData(), nil
	}
	return decodeSessionData(m.raw)
}

func (m *MemoryStore) SetSessionData(_ context.Context, data *SessionData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}
	m.mu.Lock()
	m.raw = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) DeleteSessionData(context.Context) error {
	m.mu.Lock()
	m.raw = nil
	m.mu.Unlock()
	return nil
}

// DefaultSessionKey is the pebble key the record is stored under.
const DefaultSessionKey = "walletify/session"

// PebbleStore persists the record in a pebble database on disk.
type PebbleStore struct {
	db  *pebble.DB
	key []byte
}

// OpenPebbleStore opens (or creates) the database in dir.
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open session store %s: %w", dir, err)
	}
	return &PebbleStore{db: db, key: []byte(DefaultSessionKey)}, nil
}

func (p *PebbleStore) GetSessionData(context.Context) (*SessionData, error) {
	val, closer, err := p.db.Get(p.key)
	if errors.Is(err, pebble.ErrNotFound) {
		return NewSessionData(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session data: %w", err)
	}
	defer closer.Close()
	// val is only valid until closer is closed; decoding copies it.
	return decodeSessionData(val)
}

func (p *PebbleStore) SetSessionData(_ context.Context, data *SessionData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}
	if err := p.db.Set(p.key, raw, pebble.Sync); err != nil {
		return fmt.Errorf("write session data: %w", err)
	}
	return nil
}

func (p *PebbleStore) DeleteSessionData(context.Context) error {
	if err := p.db.Delete(p.key, pebble.Sync); err != nil {
		return fmt.Errorf("delete session data: %w", err)
	}
	return nil
}

// Close releases the database.
func (p *PebbleStore) Close() error { return p.db.Close() }
