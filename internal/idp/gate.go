package idp

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Gate enforces the same contract as the local session gate: no identity →
// login-required, identity without a verified email → verify-required.
type Gate struct {
	verifier *Verifier
}

func NewGate(verifier *Verifier) *Gate {
	return &Gate{verifier: verifier}
}

func (g *Gate) RequireVerified() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(IDTokenCookie)
		if err != nil || tokenString == "" {
			c.Redirect(http.StatusSeeOther, "/login?status=login-required")
			c.Abort()
			return
		}

		claims, err := g.verifier.Verify(tokenString)
		if err != nil {
			c.Redirect(http.StatusSeeOther, "/login?status=login-required")
			c.Abort()
			return
		}

		if !claims.EmailVerified {
			c.Redirect(http.StatusSeeOther, "/login?status=verify-required")
			c.Abort()
			return
		}

		c.Next()
	}
}
