package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mrsagent/agentchat/internal/chat"
	"github.com/mrsagent/agentchat/internal/common"
)

func failValidation(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		common.Fail(c, http.StatusBadRequest, 10010, "message is empty")
		return true
	case errors.Is(err, chat.ErrMessageTooLong):
		common.Fail(c, http.StatusBadRequest, 10011, "message too long")
		return true
	}
	return false
}

type sendTextReq struct {
	Message string `json:"message" binding:"required"`
}

// SendText streams the assistant reply out as server-sent events:
// `chunk` events with content deltas, `ping` heartbeats, and a
// terminal `done` or `error` event.
func (h *Handler) SendText(c *gin.Context) {
	var req sendTextReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	// one completion at a time: the controller documents this as a
	// caller precondition, so the gateway enforces it
	if h.Conv.IsTyping() {
		common.Fail(c, http.StatusConflict, 40901, "completion already in progress")
		return
	}

	chunks, errs, err := h.Conv.SendText(c.Request.Context(), req.Message)
	if err != nil {
		if !failValidation(c, err) {
			common.Fail(c, http.StatusBadRequest, 10002, "failed to send message")
		}
		return
	}

	h.streamOut(c, chunks, errs)
}

// streamOut relays completion channels as SSE until the turn ends.
func (h *Handler) streamOut(c *gin.Context, chunks <-chan string, errs <-chan error) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return
	}

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		if event != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event)
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	ctx := c.Request.Context()

	for {
		select {
		case ch, ok := <-chunks:
			if !ok {
				// drain a late error, otherwise the stream is done
				select {
				case err := <-errs:
					if err != nil {
						writeJSON("error", gin.H{"type": "error", "message": err.Error()})
						return
					}
				default:
				}
				writeJSON("done", gin.H{
					"type":       "done",
					"session_id": h.Conv.SessionID(),
				})
				return
			}
			writeJSON("chunk", gin.H{"type": "chunk", "delta": ch})

		case <-ticker.C:
			writeJSON("ping", gin.H{"type": "ping", "ts": time.Now().Unix()})

		case err := <-errs:
			if err == nil {
				errs = nil
				continue
			}
			writeJSON("error", gin.H{"type": "error", "message": err.Error()})
			return

		case <-ctx.Done():
			return
		}
	}
}

type sendStickerReq struct {
	Sticker string `json:"sticker" binding:"required"`
}

func (h *Handler) SendSticker(c *gin.Context) {
	var req sendStickerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	entry, err := h.Conv.SendSticker(req.Sticker)
	if err != nil {
		if !failValidation(c, err) {
			common.Fail(c, http.StatusBadRequest, 10002, "failed to send sticker")
		}
		return
	}

	common.OK(c, gin.H{
		"session_id": h.Conv.SessionID(),
		"entry":      entry,
	})
}

type sendVoiceReq struct {
	AudioRef   string `json:"audio_ref"`
	Transcript string `json:"transcript"`
}

// SendVoice streams the assistant reply when a transcript is present;
// otherwise it returns immediately and a canned acknowledgement is
// appended after a short delay.
func (h *Handler) SendVoice(c *gin.Context) {
	var req sendVoiceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if h.Conv.IsTyping() {
		common.Fail(c, http.StatusConflict, 40901, "completion already in progress")
		return
	}

	chunks, errs, err := h.Conv.SendVoice(c.Request.Context(), req.AudioRef, req.Transcript)
	if err != nil {
		if !failValidation(c, err) {
			common.Fail(c, http.StatusBadRequest, 10002, "failed to send voice message")
		}
		return
	}

	if chunks == nil {
		common.OK(c, gin.H{"session_id": h.Conv.SessionID()})
		return
	}

	h.streamOut(c, chunks, errs)
}

type sendFileReq struct {
	Name       string `json:"name" binding:"required"`
	Size       int64  `json:"size"`
	Ref        string `json:"ref"`
	PreviewRef string `json:"preview_ref"`
}

func (h *Handler) SendFile(c *gin.Context) {
	var req sendFileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	entry, err := h.Conv.SendFile(req.Name, req.Size, req.Ref, req.PreviewRef)
	if err != nil {
		if !failValidation(c, err) {
			common.Fail(c, http.StatusBadRequest, 10002, "failed to send file")
		}
		return
	}

	common.OK(c, gin.H{
		"session_id": h.Conv.SessionID(),
		"entry":      entry,
	})
}

func (h *Handler) ListEntries(c *gin.Context) {
	common.OK(c, gin.H{
		"session_id": h.Conv.SessionID(),
		"title":      h.Conv.Title(),
		"is_typing":  h.Conv.IsTyping(),
		"entries":    h.Conv.Entries(),
	})
}

func (h *Handler) ClearChat(c *gin.Context) {
	h.Conv.Clear()
	common.OK(c, nil)
}
