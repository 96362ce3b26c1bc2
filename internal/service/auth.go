package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/essaybros/web/internal/models"
	"github.com/essaybros/web/internal/repository"
	"github.com/essaybros/web/pkg/logger"
)

var (
	ErrInvalidInput         = errors.New("invalid email or password")
	ErrAccountExists        = errors.New("account already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrVerificationRequired = errors.New("email verification required")
	ErrInvalidToken         = errors.New("invalid verification token")
	ErrAlreadyVerified      = errors.New("email already verified")
	ErrEmailDeliveryFailed  = errors.New("verification email delivery failed")
)

const (
	minPasswordLength = 8
	bcryptCost        = 12
)

type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
}

type TokenIssuer interface {
	Issue(ctx context.Context, accountID uuid.UUID) (string, time.Time, error)
	Redeem(ctx context.Context, token string) (uuid.UUID, error)
}

type Mailer interface {
	SendVerification(ctx context.Context, to, verifyURL string) error
}

// AuthService ties the credential store, the token issuer, and the mail
// collaborator into the signup/login/resend/verify flows. Session
// establishment belongs to the HTTP layer.
type AuthService struct {
	accounts AccountStore
	tokens   TokenIssuer
	mailer   Mailer
	baseURL  string
}

func NewAuthService(accounts AccountStore, tokens TokenIssuer, mailer Mailer, baseURL string) *AuthService {
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		mailer:   mailer,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Signup creates an unverified account and mails a verification link. If
// delivery fails the account and token stay persisted so Resend can retry.
func (s *AuthService) Signup(ctx context.Context, email, password string) error {
	email = NormalizeEmail(email)
	if email == "" || len(password) < minPasswordLength {
		return ErrInvalidInput
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return ErrAccountExists
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		Email:        email,
		PasswordHash: string(hash),
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			// Loser of a concurrent signup race.
			return ErrAccountExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return s.issueAndSend(ctx, account)
}

// Login checks credentials and verification status and returns the account
// id the session should be bound to. Absent accounts and wrong passwords
// are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (uuid.UUID, error) {
	email = NormalizeEmail(email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return uuid.Nil, ErrInvalidCredentials
		}
		return uuid.Nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return uuid.Nil, ErrInvalidCredentials
	}

	if !account.IsVerified {
		return uuid.Nil, ErrVerificationRequired
	}

	return account.ID, nil
}

// Resend issues a fresh token, superseding any prior one. An unknown email
// reports success so the endpoint cannot be used to probe for accounts.
func (s *AuthService) Resend(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrInvalidInput
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil
		}
		return err
	}

	if account.IsVerified {
		return ErrAlreadyVerified
	}

	return s.issueAndSend(ctx, account)
}

// Verify redeems the token and flips the account to verified. The token is
// consumed before the account mutation; a crash in between leaves the
// account unverified with no live token, recovered by Resend.
func (s *AuthService) Verify(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	accountID, err := s.tokens.Redeem(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidToken) {
			return ErrInvalidToken
		}
		return err
	}

	if err := s.accounts.MarkVerified(ctx, accountID); err != nil {
		return fmt.Errorf("failed to mark account verified: %w", err)
	}

	return nil
}

func (s *AuthService) issueAndSend(ctx context.Context, account *models.Account) error {
	token, _, err := s.tokens.Issue(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("failed to issue verification token: %w", err)
	}

	verifyURL := fmt.Sprintf("%s/verify?token=%s", s.baseURL, token)
	if err := s.mailer.SendVerification(ctx, account.Email, verifyURL); err != nil {
		logger.Error("verification email failed",
			zap.String("email", account.Email),
			zap.Error(err),
		)
		return ErrEmailDeliveryFailed
	}

	return nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
