// Package auth issues and verifies bearer credentials and runs the Google
// OAuth login.
package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"messenger-service/internal/models"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the payload of a session token.
type Claims struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, expiry time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// Issue creates a token for the user valid for the configured expiry.
func (t *TokenService) Issue(user models.User) (string, error) {
	now := t.now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks signature, algorithm and expiry and returns the claims.
func (t *TokenService) Verify(raw string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	token, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID <= 0 {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// ParseBearer extracts the token from an "Authorization: Bearer <token>" value.
func ParseBearer(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// TokenFromRequest finds the credential of a websocket handshake: the
// Authorization header, then the token query parameter, then a
// "bearer, <token>" subprotocol pair.
func TokenFromRequest(r *http.Request) (string, error) {
	if token, ok := ParseBearer(r.Header.Get("Authorization")); ok {
		return token, nil
	}
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token, nil
	}
	var protocols []string
	for _, header := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(header, ",") {
			protocols = append(protocols, strings.TrimSpace(p))
		}
	}
	for i := 0; i+1 < len(protocols); i++ {
		if strings.EqualFold(protocols[i], "bearer") && protocols[i+1] != "" {
			return protocols[i+1], nil
		}
	}
	return "", ErrMissingToken
}
