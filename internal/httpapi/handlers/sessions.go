package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mrsagent/agentchat/internal/chat"
	"github.com/mrsagent/agentchat/internal/common"
)

func (h *Handler) ListSessions(c *gin.Context) {
	common.OK(c, gin.H{"sessions": h.Sessions.List()})
}

func (h *Handler) GetSession(c *gin.Context) {
	id := c.Param("session_id")
	sess, err := h.Sessions.Load(id)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{"session": sess})
}

// OpenSession makes a stored session the active conversation.
func (h *Handler) OpenSession(c *gin.Context) {
	id := c.Param("session_id")
	if err := h.Conv.LoadSession(id); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{
		"session_id": h.Conv.SessionID(),
		"title":      h.Conv.Title(),
		"entries":    h.Conv.Entries(),
	})
}

// DeleteSession removes a stored session; deleting the active one also
// clears the conversation.
func (h *Handler) DeleteSession(c *gin.Context) {
	h.Conv.DeleteSession(c.Param("session_id"))
	common.OK(c, nil)
}
