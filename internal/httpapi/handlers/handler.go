package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mrsagent/agentchat/internal/chat"
	"github.com/mrsagent/agentchat/internal/common"
	"github.com/mrsagent/agentchat/internal/config"
	"github.com/mrsagent/agentchat/internal/profile"
)

// Handler carries the dependencies the presentation layer talks to.
type Handler struct {
	Cfg      config.Config
	Conv     *chat.Conversation
	Sessions *chat.Store
	Profile  *profile.Manager
}

func NewHandler(cfg config.Config, conv *chat.Conversation, sessions *chat.Store, prof *profile.Manager) *Handler {
	return &Handler{
		Cfg:      cfg,
		Conv:     conv,
		Sessions: sessions,
		Profile:  prof,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}
