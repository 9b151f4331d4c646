package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"messenger-service/internal/models"
)

const (
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v3/userinfo"
	googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
)

// ErrInvalidIDToken is returned when Google rejects an ID token or it was minted for another client.
var ErrInvalidIDToken = errors.New("invalid google id token")

var googleIssuers = map[string]bool{"accounts.google.com": true, "https://accounts.google.com": true}

// GoogleProvider runs the authorization code flow against Google.
type GoogleProvider struct {
	config       *oauth2.Config
	userInfoURL  string
	tokenInfoURL string
}

// NewGoogleProvider builds a provider redirecting back to callbackURL.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     endpoints.Google,
		},
		userInfoURL:  googleUserInfoURL,
		tokenInfoURL: googleTokenInfoURL,
	}
}

// Configured reports whether client credentials were supplied.
func (p *GoogleProvider) Configured() bool {
	return p.config.ClientID != "" && p.config.ClientSecret != ""
}

// AuthCodeURL returns the consent page URL carrying state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type googleTokenInfo struct {
	googleUserInfo
	Audience      string `json:"aud"`
	Issuer        string `json:"iss"`
	EmailVerified string `json:"email_verified"`
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// Exchange trades the authorization code for a token and fetches the profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (models.GoogleProfile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return models.GoogleProfile{}, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return models.GoogleProfile{}, err
	}
	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return models.GoogleProfile{}, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.GoogleProfile{}, fmt.Errorf("fetch profile: status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return models.GoogleProfile{}, fmt.Errorf("decode profile: %w", err)
	}
	return profileFrom(info)
}

// VerifyIDToken validates an ID token minted by Google Sign-In for this client.
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, idToken string) (models.GoogleProfile, error) {
	if p.config.ClientID == "" {
		return models.GoogleProfile{}, errors.New("google client id is not configured")
	}
	if idToken == "" {
		return models.GoogleProfile{}, ErrInvalidIDToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.tokenInfoURL+"?id_token="+url.QueryEscape(idToken), nil)
	if err != nil {
		return models.GoogleProfile{}, err
	}
	resp, err := oauth2.NewClient(ctx, nil).Do(req)
	if err != nil {
		return models.GoogleProfile{}, fmt.Errorf("verify id token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.GoogleProfile{}, fmt.Errorf("%w: status %d", ErrInvalidIDToken, resp.StatusCode)
	}

	var info googleTokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return models.GoogleProfile{}, fmt.Errorf("decode token info: %w", err)
	}
	if info.Audience != p.config.ClientID || !googleIssuers[info.Issuer] {
		return models.GoogleProfile{}, ErrInvalidIDToken
	}
	return profileFrom(info.googleUserInfo)
}

func profileFrom(info googleUserInfo) (models.GoogleProfile, error) {
	if info.Sub == "" || info.Email == "" {
		return models.GoogleProfile{}, errors.New("profile is missing id or email")
	}
	return models.GoogleProfile{
		GoogleID:  info.Sub,
		Email:     info.Email,
		Name:      info.Name,
		FirstName: info.GivenName,
		LastName:  info.FamilyName,
		Picture:   info.Picture,
	}, nil
}

// DisplayNameFor picks a display name of 2..50 characters for a new account.
func DisplayNameFor(profile models.GoogleProfile) string {
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = strings.TrimSpace(profile.FirstName + " " + profile.LastName)
	}
	if utf8.RuneCountInString(name) < 2 {
		name, _, _ = strings.Cut(profile.Email, "@")
	}
	if utf8.RuneCountInString(name) < 2 {
		name = "user"
	}
	if utf8.RuneCountInString(name) > 50 {
		name = string([]rune(name)[:50])
	}
	return name
}
