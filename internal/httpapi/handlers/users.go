package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mrsagent/agentchat/internal/auth"
	"github.com/mrsagent/agentchat/internal/common"
	"github.com/mrsagent/agentchat/internal/profile"
)

type loginReq struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
}

// Login stores the local profile record and issues a token. No
// credential is verified; login only personalizes the client.
func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	rec, err := h.Profile.Login(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to store profile")
		return
	}

	token, err := auth.SignJWT(rec.Name, rec.Email, h.Cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to sign token")
		return
	}

	common.OK(c, gin.H{
		"token":   token,
		"profile": rec,
	})
}

func (h *Handler) Me(c *gin.Context) {
	header := c.GetHeader("Authorization")
	tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tokenString == "" {
		common.Fail(c, http.StatusUnauthorized, 40101, "missing token")
		return
	}

	claims, err := auth.ParseJWT(tokenString, h.Cfg.JWTSecret)
	if err != nil {
		common.Fail(c, http.StatusUnauthorized, 40102, "invalid token")
		return
	}

	rec, err := h.Profile.Get(c.Request.Context())
	if err != nil && !errors.Is(err, profile.ErrNotLoggedIn) {
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to load profile")
		return
	}

	common.OK(c, gin.H{
		"name":    claims.Name,
		"email":   claims.Email,
		"profile": rec,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.Profile.Logout(c.Request.Context()); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50006, "failed to clear profile")
		return
	}
	common.OK(c, nil)
}
