package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"messenger-service/internal/auth"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/services"
	"messenger-service/internal/telemetry"
)

const oauthStateCookie = "oauth_state"

// OAuthProvider is the external identity provider of the login flow.
type OAuthProvider interface {
	Configured() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (models.GoogleProfile, error)
	VerifyIDToken(ctx context.Context, idToken string) (models.GoogleProfile, error)
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(user models.User) (string, error)
}

// AuthHandler serves the OAuth login and session endpoints.
type AuthHandler struct {
	provider  OAuthProvider
	tokens    TokenIssuer
	users     repositories.UserRepository
	profiles  *services.UserService
	audit     *telemetry.AuditEmitter
	clientURL string
	secure    bool
	log       *zap.Logger
}

func NewAuthHandler(provider OAuthProvider, tokens TokenIssuer, users repositories.UserRepository, profiles *services.UserService,
	audit *telemetry.AuditEmitter, clientURL string, secureCookies bool, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		provider:  provider,
		tokens:    tokens,
		users:     users,
		profiles:  profiles,
		audit:     audit,
		clientURL: clientURL,
		secure:    secureCookies,
		log:       log,
	}
}

// GoogleLogin redirects to the consent page.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if !h.provider.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "google login is not configured"})
		return
	}
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 600, "/", "", h.secure, true)
	c.Redirect(http.StatusTemporaryRedirect, h.provider.AuthCodeURL(state))
}

// GoogleCallback completes the login and hands the token to the client app.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	state, err := c.Cookie(oauthStateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		h.fail(c, "oauth state mismatch", nil)
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/", "", h.secure, true)

	code := c.Query("code")
	if code == "" {
		h.fail(c, "missing authorization code", nil)
		return
	}
	profile, err := h.provider.Exchange(c.Request.Context(), code)
	if err != nil {
		h.fail(c, "oauth exchange failed", err)
		return
	}
	user, err := h.users.UpsertGoogleUser(c.Request.Context(), profile, auth.DisplayNameFor(profile))
	if err != nil {
		h.fail(c, "find or create user failed", err)
		return
	}
	token, err := h.tokens.Issue(user)
	if err != nil {
		h.fail(c, "issue token failed", err)
		return
	}

	h.audit.Emit(c.Request.Context(), telemetry.LevelSecurity, "user logged in with google", requestIDFromContext(c), &user.ID)
	c.Redirect(http.StatusTemporaryRedirect, h.clientURL+"/auth/callback?token="+url.QueryEscape(token))
}

type idTokenLoginRequest struct {
	Token string `json:"token" binding:"required"`
}

// GoogleIDTokenLogin signs in with an ID token obtained by the client from Google Sign-In.
func (h *AuthHandler) GoogleIDTokenLogin(c *gin.Context) {
	var req idTokenLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	profile, err := h.provider.VerifyIDToken(ctx, req.Token)
	if err != nil {
		h.log.Warn("google id token rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}
	user, err := h.users.UpsertGoogleUser(ctx, profile, auth.DisplayNameFor(profile))
	if err != nil {
		h.log.Error("find or create user failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}
	token, err := h.tokens.Issue(user)
	if err != nil {
		h.log.Error("issue token failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	h.audit.Emit(ctx, telemetry.LevelSecurity, "user logged in with google", requestIDFromContext(c), &user.ID)
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (h *AuthHandler) fail(c *gin.Context, reason string, err error) {
	h.log.Warn("google login failed", zap.String("reason", reason), zap.Error(err))
	c.Redirect(http.StatusTemporaryRedirect, h.clientURL+"/login?error=auth_failed")
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.profiles.Profile(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.log, err, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout persists the user as offline.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := currentUser(c)
	if err := h.profiles.Logout(c.Request.Context(), userID); err != nil {
		respondError(c, h.log, err, "failed to log out")
		return
	}
	h.audit.Emit(c.Request.Context(), telemetry.LevelSecurity, "user logged out", requestIDFromContext(c), &userID)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
