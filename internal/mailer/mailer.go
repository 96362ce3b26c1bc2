// Package mailer delivers verification email. The transport is chosen once
// at startup from configuration: the ZeptoMail API when a token is present,
// an SMTP relay otherwise.
package mailer

import (
	"context"
	"sync"
	"time"

	"github.com/essaybros/web/internal/config"
)

const (
	verifySubject = "Verify your Essay Bros account"
	sendTimeout   = 10 * time.Second
)

type Mailer interface {
	SendVerification(ctx context.Context, to, verifyURL string) error
}

// New resolves the transport from the config. Selection happens here and
// nowhere else; callers hold the returned handle for the process lifetime.
func New(cfg *config.Config) Mailer {
	if cfg.ZeptoToken != "" {
		return NewZeptoMailer(cfg.ZeptoToken, cfg.ZeptoFromAddr, cfg.ZeptoFromName)
	}

	return &SMTPMailer{
		Host:    cfg.SMTPHost,
		Port:    cfg.SMTPPort,
		User:    cfg.SMTPUser,
		Pass:    cfg.SMTPPass,
		From:    cfg.SMTPFrom,
		Timeout: sendTimeout,
	}
}

var (
	defaultMu     sync.Mutex
	defaultMailer Mailer
)

// Default returns the shared process-wide mailer, creating it on first use.
// It exists for callers without access to the wired dependencies; main still
// injects the handle into the orchestrator explicitly.
func Default(cfg *config.Config) Mailer {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultMailer == nil {
		defaultMailer = New(cfg)
	}
	return defaultMailer
}

func verificationBody(verifyURL string) string {
	return "<p>Welcome to Essay Bros!</p><p>Verify your email: <a href=\"" +
		verifyURL + "\">" + verifyURL + "</a></p>"
}
