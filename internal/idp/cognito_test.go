package idp

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://cognito-idp.us-east-2.amazonaws.com/us-east-2_testpool"
	testClientID = "test-client-id"
	testKid      = "test-key-1"
)

type poolFixture struct {
	key      *rsa.PrivateKey
	verifier *Verifier
}

func newPoolFixture(t *testing.T) *poolFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := jwkSet{Keys: []jwk{{
		Kty: "RSA",
		Kid: testKid,
		N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(jwks))
	}))
	t.Cleanup(srv.Close)

	verifier := NewVerifier("us-east-2", "us-east-2_testpool", testClientID)
	verifier.jwksURL = srv.URL

	return &poolFixture{key: key, verifier: verifier}
}

func (f *poolFixture) sign(t *testing.T, claims Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKid

	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testClientID},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email:         "a@x.com",
		EmailVerified: true,
		TokenUse:      "id",
	}
}

func TestVerifyValidToken(t *testing.T) {
	f := newPoolFixture(t)

	claims, err := f.verifier.Verify(f.sign(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.True(t, claims.EmailVerified)
}

func TestVerifyRejectsExpired(t *testing.T) {
	f := newPoolFixture(t)

	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	_, err := f.verifier.Verify(f.sign(t, claims))
	assert.ErrorIs(t, err, ErrInvalidIDTok)
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	f := newPoolFixture(t)

	claims := validClaims()
	claims.Audience = jwt.ClaimStrings{"someone-elses-client"}

	_, err := f.verifier.Verify(f.sign(t, claims))
	assert.ErrorIs(t, err, ErrInvalidIDTok)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	f := newPoolFixture(t)

	claims := validClaims()
	claims.Issuer = "https://cognito-idp.us-east-2.amazonaws.com/us-east-2_otherpool"

	_, err := f.verifier.Verify(f.sign(t, claims))
	assert.ErrorIs(t, err, ErrInvalidIDTok)
}

func TestVerifyRejectsAccessToken(t *testing.T) {
	f := newPoolFixture(t)

	claims := validClaims()
	claims.TokenUse = "access"

	_, err := f.verifier.Verify(f.sign(t, claims))
	assert.ErrorIs(t, err, ErrInvalidIDTok)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	f := newPoolFixture(t)

	_, err := f.verifier.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidIDTok)
}

func newGateRouter(f *poolFixture) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/course", NewGate(f.verifier).RequireVerified(), func(c *gin.Context) {
		c.String(http.StatusOK, "course")
	})
	return router
}

func getCourse(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/course", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: IDTokenCookie, Value: token})
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGateAllowsVerifiedIdentity(t *testing.T) {
	f := newPoolFixture(t)
	router := newGateRouter(f)

	w := getCourse(router, f.sign(t, validClaims()))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGateRedirectsWithoutToken(t *testing.T) {
	f := newPoolFixture(t)
	router := newGateRouter(f)

	w := getCourse(router, "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?status=login-required", w.Header().Get("Location"))
}

func TestGateRedirectsUnverifiedEmail(t *testing.T) {
	f := newPoolFixture(t)
	router := newGateRouter(f)

	claims := validClaims()
	claims.EmailVerified = false

	w := getCourse(router, f.sign(t, claims))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?status=verify-required", w.Header().Get("Location"))
}
