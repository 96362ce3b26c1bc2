package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/essaybros/web/internal/models"
	"github.com/essaybros/web/internal/repository"
	"github.com/essaybros/web/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.MustInit(logger.Config{Level: "error", Environment: "development", ServiceName: "test"})
	m.Run()
}

// fakeAccounts enforces the same email uniqueness the real store's unique
// constraint does, so race behavior can be exercised in-memory.
type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: make(map[string]*models.Account)}
}

func (f *fakeAccounts) Create(_ context.Context, account *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.accounts[account.Email]; ok {
		return repository.ErrAccountExists
	}

	account.ID = uuid.New()
	account.CreatedAt = time.Now()
	stored := *account
	f.accounts[account.Email] = &stored
	return nil
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[email]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (f *fakeAccounts) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, account := range f.accounts {
		if account.ID == id {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (f *fakeAccounts) MarkVerified(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, account := range f.accounts {
		if account.ID == id {
			account.IsVerified = true
			return nil
		}
	}
	return repository.ErrAccountNotFound
}

type fakeTokenEntry struct {
	accountID uuid.UUID
	expiresAt time.Time
}

type fakeTokens struct {
	mu     sync.Mutex
	tokens map[string]fakeTokenEntry
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{tokens: make(map[string]fakeTokenEntry)}
}

func (f *fakeTokens) Issue(_ context.Context, accountID uuid.UUID) (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for token, entry := range f.tokens {
		if entry.accountID == accountID {
			delete(f.tokens, token)
		}
	}

	token, err := repository.GenerateToken()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := time.Now().Add(repository.TokenTTL)
	f.tokens[token] = fakeTokenEntry{accountID: accountID, expiresAt: expiresAt}
	return token, expiresAt, nil
}

func (f *fakeTokens) Redeem(_ context.Context, token string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.tokens[token]
	if !ok || !repository.TokenValidAt(entry.expiresAt, time.Now()) {
		return uuid.Nil, repository.ErrInvalidToken
	}
	delete(f.tokens, token)
	return entry.accountID, nil
}

func (f *fakeTokens) setExpiry(token string, expiresAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if entry, ok := f.tokens[token]; ok {
		entry.expiresAt = expiresAt
		f.tokens[token] = entry
	}
}

func (f *fakeTokens) live(accountID uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for token, entry := range f.tokens {
		if entry.accountID == accountID {
			out = append(out, token)
		}
	}
	return out
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string // verification URLs, in order
	fail bool
}

func (f *fakeMailer) SendVerification(_ context.Context, to, verifyURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return assert.AnError
	}
	f.sent = append(f.sent, verifyURL)
	return nil
}

func (f *fakeMailer) lastURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type fixture struct {
	svc      *AuthService
	accounts *fakeAccounts
	tokens   *fakeTokens
	mailer   *fakeMailer
}

func newFixture() *fixture {
	accounts := newFakeAccounts()
	tokens := newFakeTokens()
	m := &fakeMailer{}
	return &fixture{
		svc:      NewAuthService(accounts, tokens, m, "http://localhost:8080"),
		accounts: accounts,
		tokens:   tokens,
		mailer:   m,
	}
}

func tokenFromURL(t *testing.T, verifyURL string) string {
	t.Helper()
	u, err := url.Parse(verifyURL)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestSignupThenLoginRequiresVerification(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "a@x.com", "password1"))

	_, err := f.svc.Login(ctx, "a@x.com", "password1")
	assert.ErrorIs(t, err, ErrVerificationRequired)
}

func TestSignupValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Signup(ctx, "", "password1"), ErrInvalidInput)
	assert.ErrorIs(t, f.svc.Signup(ctx, "a@x.com", "short"), ErrInvalidInput)
	assert.Empty(t, f.mailer.sent)
}

func TestSignupDuplicateEmailCaseInsensitive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "a@x.com", "password1"))

	assert.ErrorIs(t, f.svc.Signup(ctx, "a@x.com", "different9"), ErrAccountExists)
	assert.ErrorIs(t, f.svc.Signup(ctx, "  A@X.CoM  ", "another123"), ErrAccountExists)
}

func TestSignupEmailFailureKeepsAccountAndToken(t *testing.T) {
	f := newFixture()
	f.mailer.fail = true
	ctx := context.Background()

	err := f.svc.Signup(ctx, "a@x.com", "password1")
	assert.ErrorIs(t, err, ErrEmailDeliveryFailed)

	account, err := f.accounts.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, f.tokens.live(account.ID), 1)

	// Recovery path: a later resend delivers a fresh token.
	f.mailer.fail = false
	require.NoError(t, f.svc.Resend(ctx, "a@x.com"))
	require.NoError(t, f.svc.Verify(ctx, tokenFromURL(t, f.mailer.lastURL())))

	_, err = f.svc.Login(ctx, "a@x.com", "password1")
	assert.NoError(t, err)
}

func TestLoginWrongPasswordIndistinguishable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "a@x.com", "password1"))

	_, existingErr := f.svc.Login(ctx, "a@x.com", "wrongpassword")
	_, missingErr := f.svc.Login(ctx, "nobody@x.com", "wrongpassword")

	assert.ErrorIs(t, existingErr, ErrInvalidCredentials)
	assert.ErrorIs(t, missingErr, ErrInvalidCredentials)
}

func TestVerifyTokenSingleUse(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "a@x.com", "password1"))
	token := tokenFromURL(t, f.mailer.lastURL())

	require.NoError(t, f.svc.Verify(ctx, token))
	assert.ErrorIs(t, f.svc.Verify(ctx, token), ErrInvalidToken)
}

func TestVerifyUnknownAndEmptyToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Verify(ctx, ""), ErrInvalidToken)
	assert.ErrorIs(t, f.svc.Verify(ctx, "deadbeef"), ErrInvalidToken)
}

func TestVerifyExpiredToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "a@x.com", "password1"))
	token := tokenFromURL(t, f.mailer.lastURL())

	f.tokens.setExpiry(token, time.Now().Add(-time.Minute))
	assert.ErrorIs(t, f.svc.Verify(ctx, token), ErrInvalidToken)

	// The account stays unverified until a fresh link is requested.
	_, err := f.svc.Login(ctx, "a@x.com", "password1")
	assert.ErrorIs(t, err, ErrVerificationRequired)

	require.NoError(t, f.svc.Resend(ctx, "a@x.com"))
	assert.NoError(t, f.svc.Verify(ctx, tokenFromURL(t, f.mailer.lastURL())))
}

func TestVerifyTokenAtExactExpiryInstant(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "a@x.com", "password1"))
	token := tokenFromURL(t, f.mailer.lastURL())

	f.tokens.setExpiry(token, time.Now())
	assert.ErrorIs(t, f.svc.Verify(ctx, token), ErrInvalidToken)
}

func TestResendSupersedesPriorToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "a@x.com", "password1"))
	first := tokenFromURL(t, f.mailer.lastURL())

	require.NoError(t, f.svc.Resend(ctx, "a@x.com"))
	second := tokenFromURL(t, f.mailer.lastURL())
	require.NotEqual(t, first, second)

	assert.ErrorIs(t, f.svc.Verify(ctx, first), ErrInvalidToken)
	assert.NoError(t, f.svc.Verify(ctx, second))
}

func TestResendDoesNotLeakExistence(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assert.NoError(t, f.svc.Resend(ctx, "nobody@x.com"))
	assert.Empty(t, f.mailer.sent)
}

func TestResendAlreadyVerified(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "a@x.com", "password1"))
	require.NoError(t, f.svc.Verify(ctx, tokenFromURL(t, f.mailer.lastURL())))

	assert.ErrorIs(t, f.svc.Resend(ctx, "a@x.com"), ErrAlreadyVerified)

	account, err := f.accounts.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Empty(t, f.tokens.live(account.ID))
}

func TestResendEmptyEmail(t *testing.T) {
	f := newFixture()

	assert.ErrorIs(t, f.svc.Resend(context.Background(), "   "), ErrInvalidInput)
}

func TestFullSignupResendVerifyLoginScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "a@x.com", "password1"))
	t1 := tokenFromURL(t, f.mailer.lastURL())

	require.NoError(t, f.svc.Resend(ctx, "a@x.com"))
	t2 := tokenFromURL(t, f.mailer.lastURL())

	assert.ErrorIs(t, f.svc.Verify(ctx, t1), ErrInvalidToken)
	require.NoError(t, f.svc.Verify(ctx, t2))

	accountID, err := f.svc.Login(ctx, "a@x.com", "password1")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, accountID)
}

func TestConcurrentSignupExactlyOneWinner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const racers = 8
	errs := make(chan error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.svc.Signup(ctx, "a@x.com", "password1")
		}()
	}
	wg.Wait()
	close(errs)

	var ok, exists int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAccountExists):
			exists++
		default:
			t.Fatalf("unexpected signup error: %v", err)
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, racers-1, exists)
}

func TestConcurrentResendLeavesOneLiveToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "a@x.com", "password1"))
	account, err := f.accounts.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	const racers = 8
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.Resend(ctx, "a@x.com"))
		}()
	}
	wg.Wait()

	live := f.tokens.live(account.ID)
	require.Len(t, live, 1)

	// The surviving token is redeemable; everything it superseded is not.
	assert.NoError(t, f.svc.Verify(ctx, live[0]))
}

func TestVerifiedStateIsOneWay(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "a@x.com", "password1"))
	require.NoError(t, f.svc.Verify(ctx, tokenFromURL(t, f.mailer.lastURL())))

	// Nothing in the flows can take the account back to unverified.
	account, err := f.accounts.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NoError(t, f.accounts.MarkVerified(ctx, account.ID))

	account, err = f.accounts.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, account.IsVerified)
}
