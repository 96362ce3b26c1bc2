package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Cookies writes and reads the session cookie with one fixed policy:
// HttpOnly, SameSite=Lax, Secure only behind TLS-terminating production.
type Cookies struct {
	Name   string
	MaxAge int
	Secure bool
}

func (c Cookies) Read(ctx *gin.Context) string {
	value, err := ctx.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return value
}

func (c Cookies) Write(ctx *gin.Context, id string) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(c.Name, id, c.MaxAge, "/", "", c.Secure, true)
}

func (c Cookies) Clear(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(c.Name, "", -1, "/", "", c.Secure, true)
}
