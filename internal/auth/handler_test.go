package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrocomice/agroaccess/internal/auth"
	"github.com/agrocomice/agroaccess/internal/profiles"
	"github.com/agrocomice/agroaccess/internal/rbac"
	"github.com/agrocomice/agroaccess/internal/roles"
	"github.com/agrocomice/agroaccess/internal/seed"
	"github.com/agrocomice/agroaccess/internal/shared"
	"github.com/agrocomice/agroaccess/internal/store/memory"
	_ "github.com/agrocomice/agroaccess/testing"
)

type client struct {
	t       *testing.T
	handler http.Handler
	cookie  string
	csrf    string
}

type sessionBody struct {
	Authenticated bool        `json:"authenticated"`
	Role          string      `json:"role"`
	Permissions   rbac.Matrix `json:"permissions"`
	CSRFToken     string      `json:"csrf_token"`
}

func newClient(t *testing.T) (*client, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	_, err := seed.Apply(ctx, seed.Target{Profiles: store.Profiles(), Roles: store.Roles(), Users: store.Users()},
		seed.Options{Password: "123456", HashCost: bcrypt.MinCost})
	require.NoError(t, err)

	roleSvc := roles.NewService(store.Roles(), store.Profiles(), store.Users(), nil, nil)
	profileSvc := profiles.NewService(store.Profiles(), store.Roles(), nil, nil)
	resolver := rbac.NewResolver(roleSvc, profileSvc, nil)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(store.Users(), resolver, logger), sessions, csrf)

	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)

	c := &client{t: t}
	c.handler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sess, err := sessions.Load(req.Context(), req)
		require.NoError(t, err)
		ctx := shared.ContextWithSession(req.Context(), sess)
		r.ServeHTTP(w, req.WithContext(ctx))
		require.NoError(t, sessions.Commit(ctx, w, req, sess))
		c.cookie = sess.ID
	})
	return c, store
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: "test_session", Value: c.cookie})
	}
	res := httptest.NewRecorder()
	c.handler.ServeHTTP(res, req)
	return res
}

func decodeSession(t *testing.T, res *httptest.ResponseRecorder) sessionBody {
	t.Helper()
	var body sessionBody
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return body
}

func TestAnonymousSessionCarriesCSRFToken(t *testing.T) {
	c, _ := newClient(t)

	res := c.do(http.MethodGet, "/auth/session", nil)

	require.Equal(t, http.StatusOK, res.Code)
	body := decodeSession(t, res)
	assert.False(t, body.Authenticated)
	assert.NotEmpty(t, body.CSRFToken)
}

func TestLoginInvalidCredentials(t *testing.T) {
	c, _ := newClient(t)

	res := c.do(http.MethodPost, "/auth/login", map[string]string{"email": "ana@agrocomice.cl", "password": "wrongpass"})

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), "Email o contraseña inválidos")
}

func TestLoginRejectsMalformedEmail(t *testing.T) {
	c, _ := newClient(t)

	res := c.do(http.MethodPost, "/auth/login", map[string]string{"email": "ana", "password": "123456"})

	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLoginStoresResolvedMatrix(t *testing.T) {
	c, _ := newClient(t)
	anonymous := c.do(http.MethodGet, "/auth/session", nil)
	require.Equal(t, http.StatusOK, anonymous.Code)
	before := c.cookie

	res := c.do(http.MethodPost, "/auth/login", map[string]string{"email": "felipe@agrocomice.cl", "password": "123456"})

	require.Equal(t, http.StatusOK, res.Code)
	body := decodeSession(t, res)
	assert.True(t, body.Authenticated)
	assert.Equal(t, "Trabajador", body.Role)
	assert.True(t, body.Permissions.Equal(seed.BasicMatrix()))
	assert.NotEqual(t, before, c.cookie)

	again := decodeSession(t, c.do(http.MethodGet, "/auth/session", nil))
	assert.True(t, again.Authenticated)
	assert.True(t, again.Permissions.Equal(seed.BasicMatrix()))
}

func TestMatrixStaysCachedUntilRefresh(t *testing.T) {
	c, store := newClient(t)
	ctx := context.Background()
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/login", map[string]string{"email": "carlos@agrocomice.cl", "password": "123456"}).Code)

	p, err := store.Profiles().Get(ctx, seed.ProfileBasicAccess)
	require.NoError(t, err)
	require.NoError(t, p.Matrix.Set(rbac.EntityMeters, rbac.ActionView, true))
	_, err = store.Profiles().Update(ctx, p)
	require.NoError(t, err)

	cached := decodeSession(t, c.do(http.MethodGet, "/auth/session", nil))
	assert.False(t, cached.Permissions.Allows(rbac.EntityMeters, rbac.ActionView))

	res := c.do(http.MethodPost, "/auth/session/refresh", nil)
	require.Equal(t, http.StatusOK, res.Code)
	refreshed := decodeSession(t, res)
	assert.True(t, refreshed.Permissions.Allows(rbac.EntityMeters, rbac.ActionView))
}

func TestInactiveUserCannotSignIn(t *testing.T) {
	c, store := newClient(t)
	ctx := context.Background()
	u, err := store.Users().FindByEmail(ctx, "alfonso@agrocomice.cl")
	require.NoError(t, err)
	u.Active = false
	_, err = store.Users().Update(ctx, u)
	require.NoError(t, err)

	res := c.do(http.MethodPost, "/auth/login", map[string]string{"email": "alfonso@agrocomice.cl", "password": "123456"})

	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	c, _ := newClient(t)
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/login", map[string]string{"email": "ana@agrocomice.cl", "password": "123456"}).Code)

	res := c.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, res.Code)

	body := decodeSession(t, c.do(http.MethodGet, "/auth/session", nil))
	assert.False(t, body.Authenticated)

	refresh := c.do(http.MethodPost, "/auth/session/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, refresh.Code)
}

func TestRefreshWithoutSession(t *testing.T) {
	c, _ := newClient(t)

	res := c.do(http.MethodPost, "/auth/session/refresh", nil)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
}
