package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lendingdesk/backoffice/internal/auth"
	"github.com/lendingdesk/backoffice/internal/db"
	"github.com/lendingdesk/backoffice/internal/http/middleware"
)

type AuthService interface {
	Signup(ctx context.Context, in auth.SignupInput, client auth.ClientInfo) (*auth.AuthTokens, error)
	Login(ctx context.Context, email, password string, client auth.ClientInfo) (*auth.AuthTokens, error)
	Refresh(ctx context.Context, refreshToken string, client auth.ClientInfo) (*auth.AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID string) (*db.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

type AuthHandler struct {
	authService AuthService
	cookieCfg   auth.CookieConfig
	accessTTL   time.Duration
	refreshTTL  time.Duration
	// bearer exposes tokens in bodies for non-browser clients
	bearer bool
}

type signupRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"max=200"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func NewAuthHandler(authService AuthService, cookieCfg auth.CookieConfig, accessTTL, refreshTTL time.Duration, bearer bool) *AuthHandler {
	return &AuthHandler{authService: authService, cookieCfg: cookieCfg, accessTTL: accessTTL, refreshTTL: refreshTTL, bearer: bearer}
}

func (h *AuthHandler) refreshToken(c *gin.Context) string {
	if cookie, err := c.Request.Cookie(auth.RefreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if !h.bearer {
		return ""
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&body)
	return body.RefreshToken
}

func clientInfo(c *gin.Context) auth.ClientInfo {
	return auth.ClientInfo{UserAgent: c.GetHeader("User-Agent"), IPAddress: auth.ClientIP(c.Request)}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	tokens, err := h.authService.Signup(c.Request.Context(), auth.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	}, clientInfo(c))
	if err != nil {
		writeError(c, err, "signup_failed")
		return
	}
	auth.SetAuthCookies(c.Writer, h.cookieCfg, tokens, h.accessTTL, h.refreshTTL)
	c.JSON(http.StatusCreated, h.sessionBody(tokens))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	tokens, err := h.authService.Login(c.Request.Context(), req.Email, req.Password, clientInfo(c))
	if err != nil {
		writeError(c, err, "authentication_failed")
		return
	}
	auth.SetAuthCookies(c.Writer, h.cookieCfg, tokens, h.accessTTL, h.refreshTTL)
	c.JSON(http.StatusOK, h.sessionBody(tokens))
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	token := h.refreshToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_refresh_cookie"})
		return
	}
	tokens, err := h.authService.Refresh(c.Request.Context(), token, clientInfo(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh_failed"})
		return
	}
	auth.SetAuthCookies(c.Writer, h.cookieCfg, tokens, h.accessTTL, h.refreshTTL)
	body := gin.H{"ok": true}
	if h.bearer {
		body["access_token"] = tokens.AccessToken
		body["refresh_token"] = tokens.RefreshToken
	}
	c.JSON(http.StatusOK, body)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if token := h.refreshToken(c); token != "" {
		_ = h.authService.Logout(c.Request.Context(), token)
	}
	auth.ClearAuthCookies(c.Writer, h.cookieCfg)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AuthHandler) Me(c *gin.Context) {
	viewer := middleware.Principal(c)
	user, err := h.authService.Me(c.Request.Context(), viewer.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	viewer := middleware.Principal(c)
	if err := h.authService.ChangePassword(c.Request.Context(), viewer.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(c, err, "password_change_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AuthHandler) sessionBody(tokens *auth.AuthTokens) gin.H {
	session := gin.H{"authenticated": true, "id": tokens.SessionID}
	if h.bearer {
		session["access_token"] = tokens.AccessToken
		session["refresh_token"] = tokens.RefreshToken
	}
	return gin.H{"user": tokens.User, "session": session}
}
