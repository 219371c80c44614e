package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/lightfolio/server/internal/models"
	"github.com/lightfolio/server/internal/observability"
	"github.com/lightfolio/server/internal/repository"
)

// DefaultIMSBaseURL is the production Adobe identity service root.
const DefaultIMSBaseURL = "https://ims-na1.adobelogin.com"

// OAuthScopes are the Lightroom partner scopes requested during
// authorization.
var OAuthScopes = []string{
	"lr_partner_apis",
	"offline_access",
	"AdobeID",
	"openid",
	"lr_partner_rendition_apis",
}

// NewOAuthConfig builds the authorization-code configuration for the Adobe
// IMS endpoints. The token endpoint authenticates with client-secret basic
// auth.
func NewOAuthConfig(imsBaseURL, clientID, clientSecret, redirectURL string) *oauth2.Config {
	imsBaseURL = strings.TrimRight(imsBaseURL, "/")
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       OAuthScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   imsBaseURL + "/ims/authorize/v2",
			TokenURL:  imsBaseURL + "/ims/token/v3",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// AdobeUser is the subset of the IMS userinfo response the service needs.
type AdobeUser struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SessionService owns the singleton host session: code exchange, expiry
// tracking and transparent refresh. Every component that talks to the host
// gets its bearer token from here.
type SessionService struct {
	tokens     repository.TokenRepo
	conf       *oauth2.Config
	imsBaseURL string
	httpClient *http.Client
	now        func() time.Time
}

// NewSessionService creates a SessionService.
func NewSessionService(tokens repository.TokenRepo, conf *oauth2.Config, imsBaseURL string, httpClient *http.Client) *SessionService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &SessionService{
		tokens:     tokens,
		conf:       conf,
		imsBaseURL: strings.TrimRight(imsBaseURL, "/"),
		httpClient: httpClient,
		now:        time.Now,
	}
}

// AuthCodeURL returns the IMS authorization redirect for the given state.
func (s *SessionService) AuthCodeURL(state string) string {
	return s.conf.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token pair.
func (s *SessionService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := s.conf.Exchange(s.contextWithClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

// CreateSession persists a freshly issued token pair, replacing any
// previous session.
func (s *SessionService) CreateSession(ctx context.Context, tok *oauth2.Token) error {
	session := &models.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiration:   tok.Expiry,
	}
	if err := s.tokens.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// AccessToken returns a valid bearer token for the host, refreshing and
// persisting the pair when the stored token has expired. A failed refresh
// propagates as-is; there is no retry.
func (s *SessionService) AccessToken(ctx context.Context) (string, error) {
	session, err := s.tokens.GetSession(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return "", models.ErrNoSession
	}
	if !session.Expired(s.now()) {
		return session.AccessToken, nil
	}

	observability.WithContext(ctx).Info("host access token expired, refreshing")

	stale := &oauth2.Token{
		RefreshToken: session.RefreshToken,
		Expiry:       s.now().Add(-time.Hour),
	}
	fresh, err := s.conf.TokenSource(s.contextWithClient(ctx), stale).Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh host token: %w", err)
	}

	refreshToken := fresh.RefreshToken
	if refreshToken == "" {
		refreshToken = session.RefreshToken
	}
	if err := s.tokens.SaveSession(ctx, &models.Session{
		AccessToken:  fresh.AccessToken,
		RefreshToken: refreshToken,
		Expiration:   fresh.Expiry,
	}); err != nil {
		return "", fmt.Errorf("failed to persist refreshed session: %w", err)
	}
	return fresh.AccessToken, nil
}

// UserInfo fetches the IMS profile of the token's owner.
func (s *SessionService) UserInfo(ctx context.Context, accessToken string) (*AdobeUser, error) {
	reqURL := fmt.Sprintf("%s/ims/userinfo/v2?client_id=%s", s.imsBaseURL, url.QueryEscape(s.conf.ClientID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info request returned status %d", resp.StatusCode)
	}

	var user AdobeUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	return &user, nil
}

// Revoke invalidates an access token, used when the wrong Adobe account
// completes the authorization flow.
func (s *SessionService) Revoke(ctx context.Context, accessToken string) error {
	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.imsBaseURL+"/ims/revoke", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.conf.ClientID, s.conf.ClientSecret)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("revoke request returned status %d", resp.StatusCode)
	}
	return nil
}

// contextWithClient makes the oauth2 transport use our HTTP client.
func (s *SessionService) contextWithClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}
