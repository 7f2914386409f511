package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mrsagent/agentchat/internal/common"
	"github.com/mrsagent/agentchat/internal/llm"
)

// MaxMessageLen is the longest user message accepted, in characters.
// The UI enforces this too; the controller rejects oversized payloads
// defensively.
const MaxMessageLen = 4000

var (
	ErrEmptyMessage   = errors.New("chat: message is empty")
	ErrMessageTooLong = fmt.Errorf("chat: message exceeds %d characters", MaxMessageLen)
)

// Completer is the streaming completion dependency of the controller.
type Completer interface {
	StreamChat(ctx context.Context, messages []llm.Message) (<-chan string, <-chan error)
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithPicker sets the canned-response selector.
func WithPicker(p Picker) Option {
	return func(c *Conversation) { c.pick = p }
}

// WithCannedDelay sets how long canned acknowledgements wait before
// appearing.
func WithCannedDelay(d time.Duration) Option {
	return func(c *Conversation) { c.cannedDelay = d }
}

// WithSaveDebounce sets the quiet period before the active session is
// persisted.
func WithSaveDebounce(d time.Duration) Option {
	return func(c *Conversation) { c.saver = newDebouncer(d) }
}

// Conversation is the controller for the single active session. It
// owns the session's entry list, drives the streaming client for
// assistant replies and persists through the Store.
//
// The controller does not serialize sends: the caller must not start a
// second completion while one is streaming (IsTyping reports this).
type Conversation struct {
	completer   Completer
	store       *Store
	pick        Picker
	cannedDelay time.Duration
	saver       *debouncer

	mu        sync.Mutex
	sessionID string
	title     string
	createdAt time.Time
	entries   []*Entry
	streaming bool
}

func NewConversation(completer Completer, store *Store, opts ...Option) *Conversation {
	c := &Conversation{
		completer:   completer,
		store:       store,
		pick:        defaultPicker,
		cannedDelay: time.Second,
		title:       DefaultTitle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.saver == nil {
		c.saver = newDebouncer(time.Second)
	}
	return c
}

// Entries returns a snapshot of the active session's entries.
func (c *Conversation) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = *e
	}
	return out
}

// Title returns the active session's title.
func (c *Conversation) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}

// SessionID returns the active session's ID, or "" when no entry has
// been appended yet.
func (c *Conversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// IsTyping reports whether a completion is streaming.
func (c *Conversation) IsTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

func validateText(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxMessageLen {
		return ErrMessageTooLong
	}
	return nil
}

// deriveTitle builds a session title from the first user message:
// its leading words, with an ellipsis when more remain.
func deriveTitle(content string) string {
	words := strings.Fields(content)
	if len(words) <= 4 {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:4], " ") + "..."
}

// ensureSessionLocked assigns a session ID and creation time on the
// first entry. Callers hold c.mu.
func (c *Conversation) ensureSessionLocked() {
	if c.sessionID != "" {
		return
	}
	id, err := common.NewULID()
	if err != nil {
		// crypto/rand failing is not recoverable here
		panic(fmt.Sprintf("chat: generate session id: %v", err))
	}
	c.sessionID = id
	c.createdAt = time.Now()
}

// appendLocked appends an entry, assigning the title on the first one.
// Callers hold c.mu.
func (c *Conversation) appendLocked(e *Entry, firstEntryTitle string) {
	if len(c.entries) == 0 && firstEntryTitle != "" {
		c.title = firstEntryTitle
	}
	c.ensureSessionLocked()
	c.entries = append(c.entries, e)
}

// SendText appends a user entry and streams the assistant reply.
// Content deltas are relayed on the first channel in arrival order; at
// most one error arrives on the second; both close when the turn ends.
// Validation failures are returned synchronously and mutate nothing.
func (c *Conversation) SendText(ctx context.Context, content string) (<-chan string, <-chan error, error) {
	if err := validateText(content); err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	c.appendLocked(newEntry(RoleUser, KindText, content), deriveTitle(content))
	c.mu.Unlock()
	c.schedulePersist()

	chunks, errs := c.drive(ctx)
	return chunks, errs, nil
}

// drive appends a streaming assistant entry and runs one completion
// over the current history. Returns the relay channels.
func (c *Conversation) drive(ctx context.Context) (<-chan string, <-chan error) {
	c.mu.Lock()
	assistant := newEntry(RoleAssistant, KindText, "")
	assistant.IsStreaming = true
	request := c.requestLocked()
	c.entries = append(c.entries, assistant)
	c.streaming = true
	c.mu.Unlock()

	out := make(chan string, 16)
	outErrs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(outErrs)

		chunks, errs := c.completer.StreamChat(ctx, request)

		// deltas keep accumulating into the entry even after the
		// consumer goes away; only the relay stops, so the finalize
		// below always runs and the turn returns to idle
		deliver := true
		for delta := range chunks {
			c.mu.Lock()
			assistant.Content += delta
			if !assistant.ContainsCode && strings.Contains(assistant.Content, "```") {
				assistant.ContainsCode = true
			}
			c.mu.Unlock()
			if deliver {
				select {
				case out <- delta:
				case <-ctx.Done():
					deliver = false
				}
			}
		}

		var streamErr error
		select {
		case err := <-errs:
			streamErr = err
		default:
		}

		c.mu.Lock()
		assistant.IsStreaming = false
		c.streaming = false
		if streamErr != nil {
			// partial content stays; the failure becomes its own entry
			c.entries = append(c.entries, newEntry(RoleAssistant, KindText,
				fmt.Sprintf("I apologize, but I ran into an error while processing your request: %v. Please try again.", streamErr)))
		}
		c.mu.Unlock()
		c.schedulePersist()

		if streamErr != nil {
			log.Printf("[chat.Conversation] completion failed: %v", streamErr)
			outErrs <- streamErr
		}
	}()

	return out, outErrs
}

// requestLocked translates the history into a completion request:
// the fixed system instruction, then every entry as a role/content
// pair. Callers hold c.mu.
func (c *Conversation) requestLocked() []llm.Message {
	msgs := make([]llm.Message, 0, len(c.entries)+1)
	msgs = append(msgs, llm.Message{Role: "system", Content: llm.SystemPrompt})
	for _, e := range c.entries {
		msgs = append(msgs, llm.Message{Role: string(e.Role), Content: e.Content})
	}
	return msgs
}

// SendSticker appends a sticker entry and answers with a canned
// acknowledgement after a short delay. No model call.
func (c *Conversation) SendSticker(glyph string) (*Entry, error) {
	if strings.TrimSpace(glyph) == "" {
		return nil, ErrEmptyMessage
	}

	entry := newEntry(RoleUser, KindSticker, glyph)

	c.mu.Lock()
	c.appendLocked(entry, "Sticker conversation "+glyph)
	c.mu.Unlock()
	c.schedulePersist()

	c.appendCannedAfterDelay(stickerReply(c.pick, glyph))

	snapshot := *entry
	return &snapshot, nil
}

// SendVoice appends a voice entry. A non-empty transcript goes through
// the full completion path; otherwise a canned acknowledgement is
// appended and the returned channels are nil.
func (c *Conversation) SendVoice(ctx context.Context, audioRef, transcript string) (<-chan string, <-chan error, error) {
	transcript = strings.TrimSpace(transcript)

	content := transcript
	title := "Voice conversation"
	if transcript != "" {
		if utf8.RuneCountInString(transcript) > MaxMessageLen {
			return nil, nil, ErrMessageTooLong
		}
		title = deriveTitle(transcript)
	} else {
		content = "Voice message"
	}

	entry := newEntry(RoleUser, KindVoice, content)
	entry.AudioRef = audioRef
	entry.Transcript = transcript

	c.mu.Lock()
	c.appendLocked(entry, title)
	c.mu.Unlock()
	c.schedulePersist()

	if transcript == "" {
		c.appendCannedAfterDelay(voiceReply)
		return nil, nil, nil
	}

	chunks, errs := c.drive(ctx)
	return chunks, errs, nil
}

// SendFile appends a file entry with its metadata and always answers
// with a canned acknowledgement. No model call. An empty previewRef
// falls back to the file reference.
func (c *Conversation) SendFile(name string, size int64, ref, previewRef string) (*Entry, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyMessage
	}

	if previewRef == "" {
		previewRef = ref
	}

	entry := newEntry(RoleUser, KindFile, "Shared a file: "+name)
	entry.FileName = name
	entry.FileSize = size
	entry.FileRef = ref
	entry.PreviewRef = previewRef

	c.mu.Lock()
	c.appendLocked(entry, "File: "+name)
	c.mu.Unlock()
	c.schedulePersist()

	c.appendCannedAfterDelay(fileReply(name))

	snapshot := *entry
	return &snapshot, nil
}

func (c *Conversation) appendCannedAfterDelay(content string) {
	sessionID := c.SessionID()
	time.AfterFunc(c.cannedDelay, func() {
		c.mu.Lock()
		// the session may have been cleared or switched meanwhile
		if c.sessionID != sessionID {
			c.mu.Unlock()
			return
		}
		c.entries = append(c.entries, newEntry(RoleAssistant, KindText, content))
		c.mu.Unlock()
		c.schedulePersist()
	})
}

// Clear resets the active session without touching persisted sessions.
func (c *Conversation) Clear() {
	c.saver.Cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.title = DefaultTitle
	c.sessionID = ""
	c.createdAt = time.Time{}
	c.streaming = false
}

// LoadSession replaces the active session with a stored one.
func (c *Conversation) LoadSession(id string) error {
	sess, err := c.store.Load(id)
	if err != nil {
		return err
	}

	c.saver.Cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sess.ID
	c.title = sess.Title
	c.createdAt = sess.CreatedAt
	c.entries = sess.Entries
	c.streaming = false
	return nil
}

// DeleteSession removes a stored session. Deleting the active session
// also clears the conversation.
func (c *Conversation) DeleteSession(id string) {
	c.store.Delete(id)

	if c.SessionID() == id {
		c.Clear()
	}
}

// schedulePersist arms a trailing-edge debounced save of the active
// session; rapid mutations coalesce into one write.
func (c *Conversation) schedulePersist() {
	c.mu.Lock()
	empty := len(c.entries) == 0
	c.mu.Unlock()
	if empty {
		return
	}
	c.saver.Arm(c.persistNow)
}

// persistNow snapshots the active session and saves it.
func (c *Conversation) persistNow() {
	c.mu.Lock()
	if len(c.entries) == 0 || c.sessionID == "" {
		c.mu.Unlock()
		return
	}
	sess := &Session{
		ID:        c.sessionID,
		Title:     c.title,
		Entries:   c.entries,
		CreatedAt: c.createdAt,
		UpdatedAt: time.Now(),
	}
	sess = sess.clone()
	c.mu.Unlock()

	c.store.Save(sess)
}
