package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/mrsagent/agentchat/internal/store/kv"
)

// ErrNotFound is returned by Load when no session has the given ID.
var ErrNotFound = errors.New("chat: session not found")

// HistoryKey is the fixed kv key holding the serialized session
// collection.
const HistoryKey = "mr_s_agent_chat_history"

// DefaultHistoryLimit caps how many sessions the collection keeps.
const DefaultHistoryLimit = 50

// Store keeps the session collection: an in-memory mirror that is
// authoritative for the running process, persisted best-effort through
// the kv surface. Persistence failures are logged and never roll back
// the mirror.
type Store struct {
	kv    kv.Store
	limit int

	mu       sync.Mutex
	sessions []*Session // most-recently-updated first

	// pmu serializes snapshot+write in persist so an older snapshot
	// can never land after a newer one
	pmu sync.Mutex
}

// NewStore builds a store over backend and loads any persisted
// collection. An absent or undecodable payload starts an empty
// collection.
func NewStore(backend kv.Store, limit int) *Store {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s := &Store{kv: backend, limit: limit}
	s.restore()
	return s
}

func (s *Store) restore() {
	raw, err := s.kv.Get(context.Background(), HistoryKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			log.Printf("[chat.Store] restore failed: %v", err)
		}
		return
	}
	var sessions []*Session
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		log.Printf("[chat.Store] discarding undecodable history: %v", err)
		return
	}
	s.sessions = sessions
	s.sortLocked()
}

// List returns summaries, most-recently-updated first.
func (s *Store) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Summary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, Summary{
			ID:         sess.ID,
			Title:      sess.Title,
			EntryCount: len(sess.Entries),
			UpdatedAt:  sess.UpdatedAt,
		})
	}
	return out
}

// Save upserts by ID. New sessions prepend; the collection is then
// truncated to the cap, evicting the least recently updated.
func (s *Store) Save(sess *Session) {
	cp := sess.clone()
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	replaced := false
	for i, existing := range s.sessions {
		if existing.ID == cp.ID {
			// UpdatedAt never goes backwards
			if cp.UpdatedAt.Before(existing.UpdatedAt) {
				cp.UpdatedAt = existing.UpdatedAt
			}
			s.sessions[i] = cp
			replaced = true
			break
		}
	}
	if !replaced {
		s.sessions = append([]*Session{cp}, s.sessions...)
	}
	s.sortLocked()
	if len(s.sessions) > s.limit {
		s.sessions = s.sessions[:s.limit]
	}
	s.mu.Unlock()

	s.persist()
}

// Load returns a copy of the session or ErrNotFound.
func (s *Store) Load(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess.clone(), nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes the session; deleting an absent ID is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	changed := false
	for i, sess := range s.sessions {
		if sess.ID == id {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			changed = true
			break
		}
	}
	s.mu.Unlock()

	if changed {
		s.persist()
	}
}

func (s *Store) sortLocked() {
	sort.SliceStable(s.sessions, func(i, j int) bool {
		return s.sessions[i].UpdatedAt.After(s.sessions[j].UpdatedAt)
	})
}

// persist writes the whole collection through the kv surface.
// Best-effort: the mirror stays authoritative on failure. The snapshot
// is taken while holding pmu, so later writes always carry
// same-or-newer state.
func (s *Store) persist() {
	s.pmu.Lock()
	defer s.pmu.Unlock()

	s.mu.Lock()
	raw, err := json.Marshal(s.sessions)
	s.mu.Unlock()
	if err != nil {
		log.Printf("[chat.Store] marshal history failed: %v", err)
		return
	}
	if err := s.kv.Set(context.Background(), HistoryKey, string(raw)); err != nil {
		log.Printf("[chat.Store] persist history failed: %v", err)
	}
}
