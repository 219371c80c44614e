package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/lightfolio/server/internal/models"
	"github.com/lightfolio/server/internal/observability"
	"github.com/lightfolio/server/internal/services"
)

// TokenMinter mints identity tokens for the admin UI after a successful
// host authorization.
type TokenMinter interface {
	CustomToken(ctx context.Context, uid string) (string, error)
}

const stateTTL = 10 * time.Minute

// AuthHandler proxies the host's authorization-code flow and reports
// identity status.
type AuthHandler struct {
	session     *services.SessionService
	minter      TokenMinter
	adminUserID string
	adminAppURL string

	mu     sync.Mutex
	states map[string]time.Time
}

// NewAuthHandler creates an AuthHandler. adminUserID is the only host
// account allowed to complete the flow; adminAppURL receives the minted
// identity token.
func NewAuthHandler(session *services.SessionService, minter TokenMinter, adminUserID, adminAppURL string) *AuthHandler {
	return &AuthHandler{
		session:     session,
		minter:      minter,
		adminUserID: adminUserID,
		adminAppURL: adminAppURL,
		states:      make(map[string]time.Time),
	}
}

// Login redirects the browser to the host's authorization endpoint.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	buf := make([]byte, 16)
	rand.Read(buf)
	state := hex.EncodeToString(buf)

	h.mu.Lock()
	h.states[state] = time.Now().Add(stateTTL)
	h.mu.Unlock()

	http.Redirect(w, r, h.session.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the authorization-code flow: exchanges the code,
// rejects any host account other than the configured admin, persists the
// session pair, mints an identity token and hands it to the admin app.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		http.Error(w, "Sign-in error: "+errParam, http.StatusBadRequest)
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "Authorization code not found.", http.StatusBadRequest)
		return
	}
	if !h.consumeState(q.Get("state")) {
		http.Error(w, "Invalid state.", http.StatusBadRequest)
		return
	}

	tok, err := h.session.Exchange(r.Context(), code)
	if err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.session.UserInfo(r.Context(), tok.AccessToken)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if user.Sub != h.adminUserID {
		if err := h.session.Revoke(r.Context(), tok.AccessToken); err != nil {
			observability.WithContext(r.Context()).Errorf("failed to revoke token: %v", err)
		}
		http.Error(w, "Wrong user, please try again", http.StatusNotFound)
		return
	}

	if err := h.session.CreateSession(r.Context(), tok); err != nil {
		respondError(w, r, err)
		return
	}

	identityToken, err := h.minter.CustomToken(r.Context(), user.Sub)
	if err != nil {
		respondError(w, r, err)
		return
	}

	redirect := h.adminAppURL + "/?token=" + url.QueryEscape(identityToken)
	http.Redirect(w, r, redirect, http.StatusFound)
}

// GetAuth reports identity status. It sits behind the identity middleware,
// so reaching it means the bearer token verified.
func (h *AuthHandler) GetAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.AuthStatusResponse{
		IsAuthenticated: true,
		Message:         "User is authenticated.",
	})
}

// consumeState validates and invalidates a state nonce, dropping expired
// entries along the way.
func (h *AuthHandler) consumeState(state string) bool {
	if state == "" {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	for s, deadline := range h.states {
		if deadline.Before(now) {
			delete(h.states, s)
		}
	}

	deadline, ok := h.states[state]
	if !ok || deadline.Before(now) {
		return false
	}
	delete(h.states, state)
	return true
}
