package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/essaybros/web/internal/models"
	"github.com/essaybros/web/internal/repository"
	"github.com/essaybros/web/internal/session"
	"github.com/essaybros/web/pkg/logger"
)

// AccountIDKey is where the gate stashes the authenticated account id.
const AccountIDKey = "account_id"

type accountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// Gate is the local-backend access check for protected routes. The
// verification flag is re-read from the store on every request so a verify
// completed in another tab takes effect immediately.
type Gate struct {
	sessions *session.Store
	accounts accountStore
	cookies  session.Cookies
}

func NewGate(sessions *session.Store, accounts accountStore, cookies session.Cookies) *Gate {
	return &Gate{sessions: sessions, accounts: accounts, cookies: cookies}
}

func (g *Gate) RequireVerified() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		sid := g.cookies.Read(c)
		accountID, err := g.sessions.Get(ctx, sid)
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				c.Redirect(http.StatusSeeOther, "/login?status=login-required")
			} else {
				logger.Error("session lookup failed", zap.Error(err))
				c.Redirect(http.StatusSeeOther, "/login?status=server-error")
			}
			c.Abort()
			return
		}

		account, err := g.accounts.GetByID(ctx, accountID)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				c.Redirect(http.StatusSeeOther, "/login?status=verify-required")
			} else {
				logger.Error("account lookup failed", zap.Error(err))
				c.Redirect(http.StatusSeeOther, "/login?status=server-error")
			}
			c.Abort()
			return
		}

		if !account.IsVerified {
			c.Redirect(http.StatusSeeOther, "/login?status=verify-required")
			c.Abort()
			return
		}

		c.Set(AccountIDKey, account.ID)
		c.Next()
	}
}
