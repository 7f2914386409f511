// Package chat holds the conversation core: the entry/session data
// model, the persisted session store and the conversation controller
// that drives streaming completions.
package chat

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type EntryKind string

const (
	KindText    EntryKind = "text"
	KindSticker EntryKind = "sticker"
	KindVoice   EntryKind = "voice"
	KindFile    EntryKind = "file"
)

// Entry is a single turn in a conversation.
type Entry struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Kind      EntryKind `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// file attachments; PreviewRef is set for images and falls back
	// to FileRef for everything else
	FileName   string `json:"file_name,omitempty"`
	FileSize   int64  `json:"file_size,omitempty"`
	FileRef    string `json:"file_ref,omitempty"`
	PreviewRef string `json:"preview_ref,omitempty"`

	// voice attachments
	AudioRef   string `json:"audio_ref,omitempty"`
	Transcript string `json:"transcript,omitempty"`

	// derived flags
	ContainsCode bool `json:"contains_code,omitempty"`

	// IsStreaming is true only while an in-flight completion is
	// filling this entry. It is cleared exactly once, on stream
	// completion or failure.
	IsStreaming bool `json:"is_streaming,omitempty"`
}

func newEntry(role Role, kind EntryKind, content string) *Entry {
	return &Entry{
		ID:        uuid.NewString(),
		Role:      role,
		Kind:      kind,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Session is a titled, persisted conversation.
// Entries are kept in insertion order and never reordered.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Entries   []*Entry  `json:"entries"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is what session listings return.
type Summary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	EntryCount int       `json:"entry_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DefaultTitle is the sentinel title of a session before its first
// user entry assigns one.
const DefaultTitle = "New Chat"

// clone returns a deep copy so callers cannot mutate stored state.
func (s *Session) clone() *Session {
	cp := *s
	cp.Entries = make([]*Entry, len(s.Entries))
	for i, e := range s.Entries {
		ec := *e
		cp.Entries[i] = &ec
	}
	return &cp
}
