package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-shop/models"
)

type stubFinder struct {
	user *models.User
}

func (s stubFinder) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	if s.user != nil && s.user.ID == id {
		return s.user, nil
	}
	return nil, models.ErrNotFound
}

func TestCurrentUserAttachesSessionUser(t *testing.T) {
	user := &models.User{ID: primitive.NewObjectID(), Email: "buyer@example.com"}
	session := NewSession([]byte("test-secret"), stubFinder{user: user})

	// Log in once to obtain a session cookie.
	loginRecorder := httptest.NewRecorder()
	loginRequest := httptest.NewRequest(http.MethodPost, "/login", nil)
	require.NoError(t, session.LogIn(loginRecorder, loginRequest, user.ID))
	cookies := loginRecorder.Result().Cookies()
	require.NotEmpty(t, cookies)

	var resolved *models.User
	handler := session.CurrentUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = UserFrom(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, cookie := range cookies {
		r.AddCookie(cookie)
	}
	handler.ServeHTTP(httptest.NewRecorder(), r)

	require.NotNil(t, resolved)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestCurrentUserIgnoresStaleSession(t *testing.T) {
	gone := primitive.NewObjectID()
	session := NewSession([]byte("test-secret"), stubFinder{})

	loginRecorder := httptest.NewRecorder()
	require.NoError(t, session.LogIn(loginRecorder, httptest.NewRequest(http.MethodPost, "/login", nil), gone))

	var resolved *models.User
	handler := session.CurrentUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = UserFrom(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, cookie := range loginRecorder.Result().Cookies() {
		r.AddCookie(cookie)
	}
	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Nil(t, resolved)
}

func TestRequireAuthRedirectsAnonymous(t *testing.T) {
	session := NewSession([]byte("test-secret"), stubFinder{})

	handler := session.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached without a user")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cart", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestRequireAuthPassesAuthenticated(t *testing.T) {
	session := NewSession([]byte("test-secret"), stubFinder{})
	user := &models.User{ID: primitive.NewObjectID()}

	called := false
	handler := session.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	r := httptest.NewRequest(http.MethodGet, "/cart", nil)
	r = r.WithContext(WithUser(r.Context(), user))
	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.True(t, called)
}

func TestFlashIsPoppedOnce(t *testing.T) {
	session := NewSession([]byte("test-secret"), stubFinder{})

	setRecorder := httptest.NewRecorder()
	session.Flash(setRecorder, httptest.NewRequest(http.MethodGet, "/", nil), FlashError, "Your cart is empty.")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, cookie := range setRecorder.Result().Cookies() {
		r.AddCookie(cookie)
	}
	assert.Equal(t, "Your cart is empty.", session.PopFlash(httptest.NewRecorder(), r, FlashError))
	assert.Empty(t, session.PopFlash(httptest.NewRecorder(), r, FlashSuccess))
}
