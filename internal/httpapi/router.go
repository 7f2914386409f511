package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mrsagent/agentchat/internal/chat"
	"github.com/mrsagent/agentchat/internal/common"
	"github.com/mrsagent/agentchat/internal/config"
	"github.com/mrsagent/agentchat/internal/httpapi/handlers"
	"github.com/mrsagent/agentchat/internal/httpapi/middleware"
	"github.com/mrsagent/agentchat/internal/profile"
)

// NewRouter wires the gateway the presentation layer calls into.
func NewRouter(cfg config.Config, conv *chat.Conversation, sessions *chat.Store, prof *profile.Manager) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(cfg, conv, sessions, prof)

	r.GET("/ping", h.Ping)

	// local profile (no credential checking; chat routes are not gated)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.GET("/me", h.Me)

	// active conversation
	r.POST("/chat/text", h.SendText)
	r.POST("/chat/sticker", h.SendSticker)
	r.POST("/chat/voice", h.SendVoice)
	r.POST("/chat/file", h.SendFile)
	r.GET("/chat/entries", h.ListEntries)
	r.POST("/chat/clear", h.ClearChat)

	// session history
	r.GET("/chat/sessions", h.ListSessions)
	r.GET("/chat/sessions/:session_id", h.GetSession)
	r.POST("/chat/sessions/:session_id/open", h.OpenSession)
	r.DELETE("/chat/sessions/:session_id", h.DeleteSession)

	return r
}
