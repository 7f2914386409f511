package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mrsagent/agentchat/internal/llm"
)

// fakeCompleter plays back scripted chunks and an optional terminal
// error, recording the request it received.
type fakeCompleter struct {
	chunks []string
	err    error

	mu    sync.Mutex
	calls int
	last  []llm.Message
}

func (f *fakeCompleter) StreamChat(ctx context.Context, messages []llm.Message) (<-chan string, <-chan error) {
	f.mu.Lock()
	f.calls++
	f.last = append([]llm.Message(nil), messages...)
	f.mu.Unlock()

	chunks := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		for _, c := range f.chunks {
			chunks <- c
		}
		if f.err != nil {
			errs <- f.err
		}
	}()
	return chunks, errs
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestConversation(t *testing.T, completer Completer) (*Conversation, *Store) {
	t.Helper()
	store := NewStore(newTestBackend(t), 0)
	conv := NewConversation(completer, store,
		WithSaveDebounce(10*time.Millisecond),
		WithCannedDelay(time.Millisecond),
		WithPicker(func(n int) int { return 0 }),
	)
	return conv, store
}

// drain collects every chunk, then the terminal error state.
func drain(t *testing.T, chunks <-chan string, errs <-chan error) ([]string, error) {
	t.Helper()
	var got []string
	for ch := range chunks {
		got = append(got, ch)
	}
	return got, <-errs
}

func TestSendText_StreamsOneAssistantEntry(t *testing.T) {
	f := &fakeCompleter{chunks: []string{"Hel", "lo ", "world"}}
	conv, _ := newTestConversation(t, f)

	chunks, errs, err := conv.SendText(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	got, streamErr := drain(t, chunks, errs)
	if streamErr != nil {
		t.Fatalf("stream: %v", streamErr)
	}
	if len(got) != 3 || got[0] != "Hel" || got[1] != "lo " || got[2] != "world" {
		t.Fatalf("expected chunks in arrival order, got %v", got)
	}

	entries := conv.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected user + assistant entries, got %d", len(entries))
	}
	if entries[0].Role != RoleUser || entries[0].Content != "Hello" {
		t.Fatalf("unexpected user entry: %+v", entries[0])
	}
	if entries[1].Role != RoleAssistant || entries[1].Content != "Hello world" {
		t.Fatalf("unexpected assistant entry: %+v", entries[1])
	}
	if entries[1].IsStreaming {
		t.Fatalf("IsStreaming must be cleared on completion")
	}
	if conv.IsTyping() {
		t.Fatalf("conversation still marked typing")
	}
}

func TestSendText_RequestShape(t *testing.T) {
	f := &fakeCompleter{chunks: []string{"ok"}}
	conv, _ := newTestConversation(t, f)

	chunks, errs, err := conv.SendText(context.Background(), "What is Go?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, streamErr := drain(t, chunks, errs); streamErr != nil {
		t.Fatalf("stream: %v", streamErr)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.last) != 2 {
		t.Fatalf("expected system + user message, got %d", len(f.last))
	}
	if f.last[0].Role != "system" || f.last[0].Content != llm.SystemPrompt {
		t.Fatalf("expected fixed system instruction first")
	}
	if f.last[1].Role != "user" || f.last[1].Content != "What is Go?" {
		t.Fatalf("unexpected user message: %+v", f.last[1])
	}
}

func TestSendText_HistoryCarriedOnSecondTurn(t *testing.T) {
	f := &fakeCompleter{chunks: []string{"first reply"}}
	conv, _ := newTestConversation(t, f)

	chunks, errs, _ := conv.SendText(context.Background(), "one")
	drain(t, chunks, errs)

	chunks, errs, _ = conv.SendText(context.Background(), "two")
	drain(t, chunks, errs)

	f.mu.Lock()
	defer f.mu.Unlock()
	// system, user "one", assistant "first reply", user "two"
	if len(f.last) != 4 {
		t.Fatalf("expected 4 request messages, got %d", len(f.last))
	}
	if f.last[2].Role != "assistant" || f.last[2].Content != "first reply" {
		t.Fatalf("expected prior assistant turn in history: %+v", f.last[2])
	}
	if f.last[3].Content != "two" {
		t.Fatalf("expected new user content last: %+v", f.last[3])
	}
}

func TestSendText_RejectsInvalidContent(t *testing.T) {
	f := &fakeCompleter{}
	conv, _ := newTestConversation(t, f)

	cases := []struct {
		name    string
		content string
		want    error
	}{
		{"empty", "", ErrEmptyMessage},
		{"whitespace only", "   \n\t ", ErrEmptyMessage},
		{"too long", strings.Repeat("a", MaxMessageLen+1), ErrMessageTooLong},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := conv.SendText(context.Background(), tc.content)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if len(conv.Entries()) != 0 {
		t.Fatalf("validation failures must not append entries")
	}
	if f.callCount() != 0 {
		t.Fatalf("validation failures must not reach the completer")
	}
}

func TestSendText_BoundaryLengthAccepted(t *testing.T) {
	f := &fakeCompleter{chunks: []string{"ok"}}
	conv, _ := newTestConversation(t, f)

	chunks, errs, err := conv.SendText(context.Background(), strings.Repeat("a", MaxMessageLen))
	if err != nil {
		t.Fatalf("expected exactly-max content accepted: %v", err)
	}
	drain(t, chunks, errs)
}

func TestSendText_TitleFromFirstMessage(t *testing.T) {
	f := &fakeCompleter{chunks: []string{"ok"}}
	conv, _ := newTestConversation(t, f)

	chunks, errs, _ := conv.SendText(context.Background(), "Help me write a poem about the sea")
	drain(t, chunks, errs)

	if got := conv.Title(); got != "Help me write a..." {
		t.Fatalf("expected leading words + ellipsis, got %q", got)
	}

	// later turns never retitle
	chunks, errs, _ = conv.SendText(context.Background(), "Another message entirely different words")
	drain(t, chunks, errs)
	if got := conv.Title(); got != "Help me write a..." {
		t.Fatalf("title changed on second turn: %q", got)
	}
}

func TestSendText_ShortTitleHasNoEllipsis(t *testing.T) {
	f := &fakeCompleter{chunks: []string{"ok"}}
	conv, _ := newTestConversation(t, f)

	chunks, errs, _ := conv.SendText(context.Background(), "Hello there")
	drain(t, chunks, errs)

	if got := conv.Title(); got != "Hello there" {
		t.Fatalf("expected full short title, got %q", got)
	}
}

func TestSendText_DetectsCodeFences(t *testing.T) {
	f := &fakeCompleter{chunks: []string{"Use this:\n``", "`go\nfmt.Println(1)\n```"}}
	conv, _ := newTestConversation(t, f)

	chunks, errs, _ := conv.SendText(context.Background(), "show me code")
	drain(t, chunks, errs)

	entries := conv.Entries()
	if !entries[1].ContainsCode {
		t.Fatalf("expected ContainsCode once a fence appears, content %q", entries[1].Content)
	}
}

func TestSendText_StreamFailureKeepsPartialAndAppendsErrorEntry(t *testing.T) {
	f := &fakeCompleter{
		chunks: []string{"par", "tial"},
		err:    &llm.StreamReadError{Err: errors.New("connection reset")},
	}
	conv, _ := newTestConversation(t, f)

	chunks, errs, err := conv.SendText(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	got, streamErr := drain(t, chunks, errs)
	if streamErr == nil {
		t.Fatalf("expected stream error")
	}
	if len(got) != 2 {
		t.Fatalf("expected partial chunks delivered, got %v", got)
	}

	entries := conv.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected user + partial assistant + error entry, got %d", len(entries))
	}
	if entries[1].Content != "partial" {
		t.Fatalf("partial content must be preserved, got %q", entries[1].Content)
	}
	if entries[1].IsStreaming {
		t.Fatalf("failed entry must not stay marked streaming")
	}
	if entries[2].Role != RoleAssistant || !strings.Contains(entries[2].Content, "error") {
		t.Fatalf("expected friendly error entry, got %+v", entries[2])
	}
	if conv.IsTyping() {
		t.Fatalf("conversation still marked typing after failure")
	}
}

func TestSendText_AbandonedConsumerStillFinishesTurn(t *testing.T) {
	// enough chunks to overflow the relay buffer many times over
	script := make([]string, 40)
	for i := range script {
		script[i] = "x"
	}
	f := &fakeCompleter{chunks: script}
	conv, _ := newTestConversation(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the chunk channel is deliberately never read
	_, _, err := conv.SendText(ctx, "Hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	waitFor(t, func() bool { return !conv.IsTyping() })

	entries := conv.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected user + assistant entries, got %d", len(entries))
	}
	if entries[1].IsStreaming {
		t.Fatalf("IsStreaming must be cleared when the consumer is gone")
	}
	if entries[1].Content != strings.Repeat("x", 40) {
		t.Fatalf("expected full content accumulated, got %q", entries[1].Content)
	}

	// the conversation must accept the next send
	chunks, errs, err := conv.SendText(context.Background(), "again")
	if err != nil {
		t.Fatalf("send after abandoned turn: %v", err)
	}
	if _, streamErr := drain(t, chunks, errs); streamErr != nil {
		t.Fatalf("stream after abandoned turn: %v", streamErr)
	}
}

func TestSendSticker_CannedReplyWithoutModelCall(t *testing.T) {
	f := &fakeCompleter{}
	conv, _ := newTestConversation(t, f)

	entry, err := conv.SendSticker("🔥")
	if err != nil {
		t.Fatalf("send sticker: %v", err)
	}
	if entry.Kind != KindSticker || entry.Content != "🔥" {
		t.Fatalf("unexpected sticker entry: %+v", entry)
	}
	if got := conv.Title(); got != "Sticker conversation 🔥" {
		t.Fatalf("unexpected title: %q", got)
	}

	waitFor(t, func() bool { return len(conv.Entries()) == 2 })

	entries := conv.Entries()
	want := fmt.Sprintf(stickerTemplates[0], "🔥")
	if entries[1].Role != RoleAssistant || entries[1].Content != want {
		t.Fatalf("expected canned reply %q, got %+v", want, entries[1])
	}
	if f.callCount() != 0 {
		t.Fatalf("stickers must not contact the model")
	}
}

func TestSendVoice_WithoutTranscript(t *testing.T) {
	f := &fakeCompleter{}
	conv, _ := newTestConversation(t, f)

	chunks, _, err := conv.SendVoice(context.Background(), "blob:audio-1", "")
	if err != nil {
		t.Fatalf("send voice: %v", err)
	}
	if chunks != nil {
		t.Fatalf("expected no stream for transcript-less voice message")
	}
	if got := conv.Title(); got != "Voice conversation" {
		t.Fatalf("unexpected title: %q", got)
	}

	waitFor(t, func() bool { return len(conv.Entries()) == 2 })

	entries := conv.Entries()
	if entries[0].Kind != KindVoice || entries[0].AudioRef != "blob:audio-1" {
		t.Fatalf("unexpected voice entry: %+v", entries[0])
	}
	if entries[1].Content != voiceReply {
		t.Fatalf("expected canned voice reply, got %q", entries[1].Content)
	}
	if f.callCount() != 0 {
		t.Fatalf("transcript-less voice must not contact the model")
	}
}

func TestSendVoice_WithTranscriptStreams(t *testing.T) {
	f := &fakeCompleter{chunks: []string{"reply"}}
	conv, _ := newTestConversation(t, f)

	chunks, errs, err := conv.SendVoice(context.Background(), "blob:audio-2", "What is the weather like today")
	if err != nil {
		t.Fatalf("send voice: %v", err)
	}
	if chunks == nil {
		t.Fatalf("expected a stream when a transcript is present")
	}
	drain(t, chunks, errs)

	if got := conv.Title(); got != "What is the weather..." {
		t.Fatalf("expected title from transcript, got %q", got)
	}
	if f.callCount() != 1 {
		t.Fatalf("expected one completion, got %d", f.callCount())
	}

	entries := conv.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected voice entry + assistant reply, got %d", len(entries))
	}
	if entries[0].Kind != KindVoice || entries[0].Transcript != "What is the weather like today" {
		t.Fatalf("unexpected voice entry: %+v", entries[0])
	}
}

func TestSendFile_AlwaysCanned(t *testing.T) {
	f := &fakeCompleter{}
	conv, _ := newTestConversation(t, f)

	entry, err := conv.SendFile("notes.pdf", 2048, "blob:file-1", "")
	if err != nil {
		t.Fatalf("send file: %v", err)
	}
	if entry.Kind != KindFile || entry.FileName != "notes.pdf" || entry.FileSize != 2048 {
		t.Fatalf("unexpected file entry: %+v", entry)
	}
	// no preview given, the file reference stands in
	if entry.PreviewRef != "blob:file-1" {
		t.Fatalf("expected preview fallback to file ref, got %q", entry.PreviewRef)
	}
	if got := conv.Title(); got != "File: notes.pdf" {
		t.Fatalf("unexpected title: %q", got)
	}

	waitFor(t, func() bool { return len(conv.Entries()) == 2 })

	entries := conv.Entries()
	if !strings.Contains(entries[1].Content, "notes.pdf") {
		t.Fatalf("expected acknowledgement naming the file, got %q", entries[1].Content)
	}
	if f.callCount() != 0 {
		t.Fatalf("files must not contact the model")
	}
}

func TestSendFile_KeepsImagePreview(t *testing.T) {
	f := &fakeCompleter{}
	conv, _ := newTestConversation(t, f)

	entry, err := conv.SendFile("photo.png", 4096, "blob:file-2", "blob:preview-2")
	if err != nil {
		t.Fatalf("send file: %v", err)
	}
	if entry.FileRef != "blob:file-2" || entry.PreviewRef != "blob:preview-2" {
		t.Fatalf("expected distinct preview reference, got %+v", entry)
	}
}

func TestClear_ResetsActiveSessionOnly(t *testing.T) {
	f := &fakeCompleter{chunks: []string{"ok"}}
	conv, store := newTestConversation(t, f)

	chunks, errs, _ := conv.SendText(context.Background(), "Hello")
	drain(t, chunks, errs)

	waitFor(t, func() bool { return len(store.List()) == 1 })

	conv.Clear()

	if len(conv.Entries()) != 0 {
		t.Fatalf("expected no entries after clear")
	}
	if conv.Title() != DefaultTitle {
		t.Fatalf("expected default title after clear, got %q", conv.Title())
	}
	if conv.SessionID() != "" {
		t.Fatalf("expected active pointer cleared")
	}
	if len(store.List()) != 1 {
		t.Fatalf("clear must not delete persisted sessions")
	}
}

func TestDebouncedPersist_CoalescesTurn(t *testing.T) {
	f := &fakeCompleter{chunks: []string{"a", "b", "c"}}
	conv, store := newTestConversation(t, f)

	chunks, errs, _ := conv.SendText(context.Background(), "Hello")
	drain(t, chunks, errs)

	waitFor(t, func() bool { return len(store.List()) == 1 })

	sess, err := store.Load(conv.SessionID())
	if err != nil {
		t.Fatalf("load persisted session: %v", err)
	}
	if len(sess.Entries) != 2 {
		t.Fatalf("expected the persisted snapshot to hold the full turn, got %d entries", len(sess.Entries))
	}
	if sess.Title != "Hello" {
		t.Fatalf("unexpected persisted title: %q", sess.Title)
	}
}

func TestLoadSession_ReplacesActiveConversation(t *testing.T) {
	f := &fakeCompleter{}
	conv, store := newTestConversation(t, f)

	stored := testSession("old", time.Now())
	stored.Title = "Old chat"
	store.Save(stored)

	if err := conv.LoadSession("old"); err != nil {
		t.Fatalf("load session: %v", err)
	}
	if conv.SessionID() != "old" || conv.Title() != "Old chat" {
		t.Fatalf("active session not replaced: id=%q title=%q", conv.SessionID(), conv.Title())
	}
	if len(conv.Entries()) != 1 {
		t.Fatalf("expected stored entries loaded")
	}

	if err := conv.LoadSession("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteSession_ActiveImpliesClear(t *testing.T) {
	f := &fakeCompleter{chunks: []string{"ok"}}
	conv, store := newTestConversation(t, f)

	chunks, errs, _ := conv.SendText(context.Background(), "Hello")
	drain(t, chunks, errs)
	waitFor(t, func() bool { return len(store.List()) == 1 })

	id := conv.SessionID()
	conv.DeleteSession(id)

	if conv.SessionID() != "" || len(conv.Entries()) != 0 {
		t.Fatalf("deleting the active session must clear the conversation")
	}
	if len(store.List()) != 0 {
		t.Fatalf("expected session removed from listings")
	}
}

func TestDeleteSession_InactiveKeepsConversation(t *testing.T) {
	f := &fakeCompleter{chunks: []string{"ok"}}
	conv, store := newTestConversation(t, f)

	store.Save(testSession("other", time.Now()))

	chunks, errs, _ := conv.SendText(context.Background(), "Hello")
	drain(t, chunks, errs)

	conv.DeleteSession("other")

	if len(conv.Entries()) != 2 {
		t.Fatalf("deleting another session must not touch the active one")
	}
}

// waitFor polls cond for up to two seconds.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}
