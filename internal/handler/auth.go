package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/essaybros/web/internal/service"
	"github.com/essaybros/web/internal/session"
	"github.com/essaybros/web/pkg/logger"
)

// AuthHandler translates the orchestrator's outcomes into the redirect
// statuses the pages understand. No internal error ever reaches the client.
type AuthHandler struct {
	authService *service.AuthService
	sessions    *session.Store
	cookies     session.Cookies
}

func NewAuthHandler(authService *service.AuthService, sessions *session.Store, cookies session.Cookies) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		cookies:     cookies,
	}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	err := h.authService.Signup(c.Request.Context(), email, password)
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, "/login?status=verify-sent")
	case errors.Is(err, service.ErrInvalidInput):
		c.Redirect(http.StatusSeeOther, "/signup?status=invalid")
	case errors.Is(err, service.ErrAccountExists):
		// Already registered; point at login instead of signup.
		c.Redirect(http.StatusSeeOther, "/login?status=account-exists")
	case errors.Is(err, service.ErrEmailDeliveryFailed):
		c.Redirect(http.StatusSeeOther, "/signup?status=email-failed")
	default:
		logger.Error("signup failed", zap.Error(err))
		c.Redirect(http.StatusSeeOther, "/login?status=server-error")
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	accountID, err := h.authService.Login(c.Request.Context(), email, password)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidCredentials):
		c.Redirect(http.StatusSeeOther, "/login?status=invalid-login")
		return
	case errors.Is(err, service.ErrVerificationRequired):
		c.Redirect(http.StatusSeeOther, "/login?status=verify-required")
		return
	default:
		logger.Error("login failed", zap.Error(err))
		c.Redirect(http.StatusSeeOther, "/login?status=server-error")
		return
	}

	ctx := c.Request.Context()

	// Regenerate rather than reuse: the pre-auth session id must never
	// survive the privilege change.
	if old := h.cookies.Read(c); old != "" {
		if err := h.sessions.Destroy(ctx, old); err != nil {
			logger.Error("failed to destroy old session", zap.Error(err))
		}
	}

	sid, err := h.sessions.Create(ctx, accountID)
	if err != nil {
		logger.Error("failed to create session", zap.Error(err))
		c.Redirect(http.StatusSeeOther, "/login?status=server-error")
		return
	}

	h.cookies.Write(c, sid)
	c.Redirect(http.StatusSeeOther, "/course")
}

func (h *AuthHandler) Resend(c *gin.Context) {
	email := c.PostForm("email")

	err := h.authService.Resend(c.Request.Context(), email)
	switch {
	case err == nil:
		// Unknown addresses land here too; existence is not leaked.
		c.Redirect(http.StatusSeeOther, "/login?status=verify-sent")
	case errors.Is(err, service.ErrInvalidInput):
		c.Redirect(http.StatusSeeOther, "/login?status=invalid")
	case errors.Is(err, service.ErrAlreadyVerified):
		c.Redirect(http.StatusSeeOther, "/login?status=already-verified")
	case errors.Is(err, service.ErrEmailDeliveryFailed):
		c.Redirect(http.StatusSeeOther, "/login?status=email-failed")
	default:
		logger.Error("resend failed", zap.Error(err))
		c.Redirect(http.StatusSeeOther, "/login?status=server-error")
	}
}

func (h *AuthHandler) Verify(c *gin.Context) {
	token := c.Query("token")

	err := h.authService.Verify(c.Request.Context(), token)
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, "/login?status=verified")
	case errors.Is(err, service.ErrInvalidToken):
		c.Redirect(http.StatusSeeOther, "/login?status=invalid-token")
	default:
		logger.Error("verify failed", zap.Error(err))
		c.Redirect(http.StatusSeeOther, "/login?status=server-error")
	}
}

// Logout destroys the session unconditionally; it cannot fail from the
// client's point of view.
func (h *AuthHandler) Logout(c *gin.Context) {
	if sid := h.cookies.Read(c); sid != "" {
		if err := h.sessions.Destroy(c.Request.Context(), sid); err != nil {
			logger.Error("failed to destroy session", zap.Error(err))
		}
	}

	h.cookies.Clear(c)
	c.Redirect(http.StatusSeeOther, "/")
}
