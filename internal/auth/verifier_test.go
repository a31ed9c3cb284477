package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/slava9999-dev/arbarea-backend/internal/auth"
	"github.com/slava9999-dev/arbarea-backend/internal/common"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, secret string, mutate func(b *jwt.Builder)) string {
	t.Helper()
	b := jwt.NewBuilder().
		Subject("user-42").
		Issuer("arbarea-auth").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour))
	if mutate != nil {
		mutate(b)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(secret)))
	require.NoError(t, err)
	return string(signed)
}

func TestVerifierAcceptsValidToken(t *testing.T) {
	t.Parallel()

	v := auth.Verifier{Secret: []byte(testSecret), Issuer: "arbarea-auth"}
	identity, err := v.Verify(signToken(t, testSecret, func(b *jwt.Builder) {
		b.Claim("email", "buyer@example.com")
	}))
	require.NoError(t, err)
	require.Equal(t, "user-42", identity.UserID)
	require.Equal(t, "buyer@example.com", identity.Email)
}

func TestVerifierRejectsBadSignature(t *testing.T) {
	t.Parallel()

	v := auth.Verifier{Secret: []byte(testSecret)}
	_, err := v.Verify(signToken(t, "some-other-secret", nil))
	require.Error(t, err)
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	v := auth.Verifier{Secret: []byte(testSecret)}
	_, err := v.Verify(signToken(t, testSecret, func(b *jwt.Builder) {
		b.Expiration(time.Now().Add(-time.Minute))
	}))
	require.Error(t, err)
}

func TestVerifierRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	v := auth.Verifier{Secret: []byte(testSecret), Issuer: "arbarea-auth"}
	_, err := v.Verify(signToken(t, testSecret, func(b *jwt.Builder) {
		b.Issuer("someone-else")
	}))
	require.Error(t, err)
}

func TestAuthenticateSetsUserOnValidToken(t *testing.T) {
	t.Parallel()

	v := auth.Verifier{Secret: []byte(testSecret), Issuer: "arbarea-auth"}
	var gotUser string
	var gotOK bool
	h := auth.Authenticate(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotOK = common.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, gotOK)
	require.Equal(t, "user-42", gotUser)
}

func TestAuthenticateDowngradesInvalidTokenToGuest(t *testing.T) {
	t.Parallel()

	v := auth.Verifier{Secret: []byte(testSecret)}
	var gotOK bool
	h := auth.Authenticate(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, gotOK = common.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, header := range []string{"", "Bearer not-a-jwt", "Basic dXNlcjpwYXNz"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.False(t, gotOK)
	}
}
