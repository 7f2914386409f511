// Package profile stores the local user record. Login is local-only:
// no credential is checked, the record just personalizes the client.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mrsagent/agentchat/internal/store/kv"
)

// Key is the fixed kv key holding the serialized record.
const Key = "mr_s_agent_user"

// ErrNotLoggedIn is returned by Get when no record is stored.
var ErrNotLoggedIn = errors.New("profile: not logged in")

// Record is the locally stored user profile.
type Record struct {
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	LoginAt time.Time `json:"login_timestamp"`
}

// Manager reads and writes the record through the kv surface.
type Manager struct {
	kv kv.Store
}

func NewManager(backend kv.Store) *Manager {
	return &Manager{kv: backend}
}

// Login stores a fresh record and returns it.
func (m *Manager) Login(ctx context.Context, name, email string) (*Record, error) {
	rec := &Record{Name: name, Email: email, LoginAt: time.Now()}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if err := m.kv.Set(ctx, Key, string(raw)); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns the stored record, or ErrNotLoggedIn.
func (m *Manager) Get(ctx context.Context) (*Record, error) {
	raw, err := m.kv.Get(ctx, Key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Logout removes the record. Idempotent.
func (m *Manager) Logout(ctx context.Context) error {
	return m.kv.Delete(ctx, Key)
}
