package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightfolio/server/internal/models"
	"github.com/lightfolio/server/internal/services"
)

type fakeMinter struct{}

func (fakeMinter) CustomToken(ctx context.Context, uid string) (string, error) {
	return "minted-" + uid, nil
}

type memTokenRepo struct {
	session *models.Session
}

func (m *memTokenRepo) GetSession(ctx context.Context) (*models.Session, error) {
	return m.session, nil
}

func (m *memTokenRepo) SaveSession(ctx context.Context, session *models.Session) error {
	m.session = session
	return nil
}

// imsFixture fakes the IMS endpoints the callback flow touches: code
// exchange, userinfo and revocation.
func imsFixture(t *testing.T, sub string, revokes *int32) (*AuthHandler, *memTokenRepo) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/ims/token/v3", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "good-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"host-access","refresh_token":"host-refresh","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/ims/userinfo/v2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub":"` + sub + `","name":"Ada","email":"ada@example.com"}`))
	})
	mux.HandleFunc("/ims/revoke", func(w http.ResponseWriter, r *http.Request) {
		if revokes != nil {
			atomic.AddInt32(revokes, 1)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tokens := &memTokenRepo{}
	conf := services.NewOAuthConfig(srv.URL, "client-id", "client-secret", "https://api.example/auth/callback")
	session := services.NewSessionService(tokens, conf, srv.URL, srv.Client())

	return NewAuthHandler(session, fakeMinter{}, "admin-sub", "https://admin.example"), tokens
}

// loginState runs the login redirect and extracts the state nonce from it.
func loginState(t *testing.T, h *AuthHandler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("redirects to the authorization endpoint with scopes", func(t *testing.T) {
		h, _ := imsFixture(t, "admin-sub", nil)

		rec := httptest.NewRecorder()
		h.Login(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

		require.Equal(t, http.StatusFound, rec.Code)
		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/ims/authorize/v2", loc.Path)
		assert.Contains(t, loc.Query().Get("scope"), "lr_partner_apis")
		assert.NotEmpty(t, loc.Query().Get("state"))
	})
}

func TestAuthHandler_Callback(t *testing.T) {
	t.Run("admin completes the flow and gets a minted token", func(t *testing.T) {
		h, tokens := imsFixture(t, "admin-sub", nil)
		state := loginState(t, h)

		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code&state="+state, nil)
		rec := httptest.NewRecorder()
		h.Callback(rec, req)

		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://admin.example/?token=minted-admin-sub", rec.Header().Get("Location"))
		require.NotNil(t, tokens.session)
		assert.Equal(t, "host-access", tokens.session.AccessToken)
		assert.Equal(t, "host-refresh", tokens.session.RefreshToken)
	})

	t.Run("wrong user is revoked and rejected", func(t *testing.T) {
		var revokes int32
		h, tokens := imsFixture(t, "someone-else", &revokes)
		state := loginState(t, h)

		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code&state="+state, nil)
		rec := httptest.NewRecorder()
		h.Callback(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Wrong user")
		assert.Nil(t, tokens.session)
		assert.EqualValues(t, 1, atomic.LoadInt32(&revokes))
	})

	t.Run("missing code is rejected", func(t *testing.T) {
		h, _ := imsFixture(t, "admin-sub", nil)

		rec := httptest.NewRecorder()
		h.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown state is rejected", func(t *testing.T) {
		h, _ := imsFixture(t, "admin-sub", nil)

		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code&state=forged", nil)
		rec := httptest.NewRecorder()
		h.Callback(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("a state nonce cannot be replayed", func(t *testing.T) {
		h, _ := imsFixture(t, "admin-sub", nil)
		state := loginState(t, h)

		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code&state="+state, nil)
		h.Callback(httptest.NewRecorder(), req)

		rec := httptest.NewRecorder()
		h.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code&state="+state, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("provider errors surface as 400", func(t *testing.T) {
		h, _ := imsFixture(t, "admin-sub", nil)

		req := httptest.NewRequest(http.MethodGet, "/auth/callback?error=access_denied", nil)
		rec := httptest.NewRecorder()
		h.Callback(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "access_denied")
	})
}
