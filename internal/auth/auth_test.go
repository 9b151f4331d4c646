package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"messenger-service/internal/models"
)

func TestIssueAndVerify(t *testing.T) {
	tokens := NewTokenService("secret", time.Hour)
	raw, err := tokens.Issue(models.User{ID: 42, Email: "a@example.com"})
	require.NoError(t, err)

	claims, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "42", claims.Subject)
}

func TestVerifyRejectsExpired(t *testing.T) {
	tokens := NewTokenService("secret", time.Hour)
	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	raw, err := tokens.Issue(models.User{ID: 1})
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	raw, err := NewTokenService("one", time.Hour).Issue(models.User{ID: 1})
	require.NoError(t, err)

	_, err = NewTokenService("two", time.Hour).Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenService("secret", time.Hour).Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewTokenService("secret", time.Hour).Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseBearer(t *testing.T) {
	token, ok := ParseBearer("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	token, ok = ParseBearer("bearer   xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", token)

	_, ok = ParseBearer("Basic abc")
	assert.False(t, ok)
	_, ok = ParseBearer("Bearer")
	assert.False(t, ok)
}

func TestTokenFromRequest(t *testing.T) {
	header := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
	header.Header.Set("Authorization", "Bearer fromheader")
	token, err := TokenFromRequest(header)
	require.NoError(t, err)
	assert.Equal(t, "fromheader", token)

	query := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
	token, err = TokenFromRequest(query)
	require.NoError(t, err)
	assert.Equal(t, "query", token)

	proto := httptest.NewRequest(http.MethodGet, "/ws", nil)
	proto.Header.Set("Sec-WebSocket-Protocol", "bearer, fromproto")
	token, err = TokenFromRequest(proto)
	require.NoError(t, err)
	assert.Equal(t, "fromproto", token)

	_, err = TokenFromRequest(httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestGoogleExchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":         "g-1",
			"email":       "ada@example.com",
			"name":        "Ada Lovelace",
			"given_name":  "Ada",
			"family_name": "Lovelace",
			"picture":     "https://example.com/a.png",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewGoogleProvider("id", "secret", "http://localhost/callback")
	p.config.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	p.userInfoURL = srv.URL + "/userinfo"

	profile, err := p.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "g-1", profile.GoogleID)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.Equal(t, "Ada", profile.FirstName)
	assert.True(t, p.Configured())
	assert.Contains(t, p.AuthCodeURL("state-1"), "state=state-1")
}

func TestDisplayNameFor(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", DisplayNameFor(models.GoogleProfile{Name: " Ada Lovelace "}))
	assert.Equal(t, "Ada L", DisplayNameFor(models.GoogleProfile{FirstName: "Ada", LastName: "L"}))
	assert.Equal(t, "ada", DisplayNameFor(models.GoogleProfile{Name: "A", Email: "ada@example.com"}))
	assert.Len(t, []rune(DisplayNameFor(models.GoogleProfile{Name: strings.Repeat("a", 80)})), 50)
}

func tokenInfoServer(t *testing.T, aud string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id_token") != "good" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"iss":            "https://accounts.google.com",
			"aud":            aud,
			"sub":            "g-7",
			"email":          "grace@example.com",
			"email_verified": "true",
			"name":           "Grace Hopper",
			"given_name":     "Grace",
			"family_name":    "Hopper",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleVerifyIDToken(t *testing.T) {
	srv := tokenInfoServer(t, "id")
	p := NewGoogleProvider("id", "", "http://localhost/callback")
	p.tokenInfoURL = srv.URL

	profile, err := p.VerifyIDToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "g-7", profile.GoogleID)
	assert.Equal(t, "grace@example.com", profile.Email)
	assert.Equal(t, "Hopper", profile.LastName)

	_, err = p.VerifyIDToken(context.Background(), "forged")
	assert.ErrorIs(t, err, ErrInvalidIDToken)
	_, err = p.VerifyIDToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidIDToken)
}

func TestGoogleVerifyIDTokenRejectsOtherAudience(t *testing.T) {
	srv := tokenInfoServer(t, "someone-else")
	p := NewGoogleProvider("id", "", "http://localhost/callback")
	p.tokenInfoURL = srv.URL

	_, err := p.VerifyIDToken(context.Background(), "good")
	assert.ErrorIs(t, err, ErrInvalidIDToken)
}
