package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "grid_session", "secret", time.Hour, false), mr
}

func reload(t *testing.T, manager *SessionManager, sess *Session) *Session {
	t.Helper()
	ctx := context.Background()
	rec := httptest.NewRecorder()
	require.NoError(t, manager.Commit(ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	out, err := manager.Load(ctx, req)
	require.NoError(t, err)
	return out
}

func TestLoadWithoutCookieStartsFreshSession(t *testing.T) {
	manager, mr := newManager(t)
	sess, err := manager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Empty(t, mr.Keys())
}

func TestFlashSurvivesRedirect(t *testing.T) {
	manager, _ := newManager(t)
	sess, err := manager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("42")
	sess.AddFlash(FlashMessage{Kind: "danger", Message: "confirmation required"})

	next := reload(t, manager, sess)
	assert.Equal(t, "42", next.User())
	flash := next.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "confirmation required", flash.Message)

	after := reload(t, manager, next)
	assert.Nil(t, after.PopFlash())
}

func TestJSONValues(t *testing.T) {
	manager, mr := newManager(t)
	sess, err := manager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	require.NoError(t, sess.SetJSON("grid.users", map[string]any{"search": "alice"}))
	next := reload(t, manager, sess)

	var bag map[string]any
	ok, err := next.GetJSON("grid.users", &bag)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", bag["search"])

	ok, err = next.GetJSON("grid.roles", &bag)
	require.NoError(t, err)
	assert.False(t, ok)

	next.Set("grid.broken", "{")
	_, err = next.GetJSON("grid.broken", &bag)
	assert.Error(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "session:"))
	assert.True(t, strings.HasSuffix(keys[0], sess.ID))
}

func TestCSRFRoundTrip(t *testing.T) {
	manager, _ := newManager(t)
	csrf := NewCSRFManager("csrf-secret")
	ctx := context.Background()
	sess, err := manager.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	token, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	form := url.Values{CSRFFormField: {token}}
	req := httptest.NewRequest(http.MethodPost, "/grids/users/state", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.NoError(t, csrf.VerifyToken(ctx, sess, TokenFromRequest(req)))

	req = httptest.NewRequest(http.MethodPost, "/grids/users/state", nil)
	req.Header.Set(CSRFHeader, "forged")
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, TokenFromRequest(req)), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, nil, token), ErrCSRFTokenMissing)

	_, err = csrf.EnsureToken(ctx, nil)
	assert.ErrorIs(t, err, ErrSessionMissing)
}

func TestCSRFTokenBoundToSession(t *testing.T) {
	manager, _ := newManager(t)
	csrf := NewCSRFManager("csrf-secret")
	ctx := context.Background()
	first, err := manager.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	second, err := manager.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	token, err := csrf.EnsureToken(ctx, first)
	require.NoError(t, err)

	second.Set(CSRFSessionKey, token)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, second, token), ErrCSRFTokenMismatch)

	fresh, err := csrf.EnsureToken(ctx, second)
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh, "a token signed for another session is replaced")
	assert.NoError(t, csrf.VerifyToken(ctx, second, fresh))

	other := NewCSRFManager("other-secret")
	assert.ErrorIs(t, other.VerifyToken(ctx, second, fresh), ErrCSRFTokenMismatch)
}

func TestSessionContextHelpers(t *testing.T) {
	manager, _ := newManager(t)
	ctx := context.Background()

	_, err := RequireSession(ctx)
	assert.ErrorIs(t, err, ErrSessionMissing)
	assert.Empty(t, CurrentUser(ctx))

	sess, err := manager.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	ctx = ContextWithSession(ctx, sess)
	got, err := RequireSession(ctx)
	require.NoError(t, err)
	assert.Same(t, sess, got)
	assert.Empty(t, CurrentUser(ctx))

	sess.SetUser(" 42 ")
	assert.Equal(t, "42", CurrentUser(ctx))
}
