package middleware

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-shop/models"
)

// Key type for context
type contextKey string

const userContextKey = contextKey("user")

const sessionName = "go-shop-session"

// Flash message keys.
const (
	FlashError   = "error"
	FlashSuccess = "success"
)

// UserFinder loads users for session resolution.
type UserFinder interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Session manages cookie-backed login state and flash messages.
type Session struct {
	store *sessions.CookieStore
	users UserFinder
}

// NewSession creates the session layer with the given cookie secret.
func NewSession(secret []byte, users UserFinder) *Session {
	store := sessions.NewCookieStore(secret)
	store.Options.HttpOnly = true
	return &Session{store: store, users: users}
}

// CurrentUser resolves the session's user id to a full user document and
// attaches it to the request context. Requests without a valid session pass
// through with no user attached.
func (s *Session) CurrentUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := s.store.Get(r, sessionName)
		raw, ok := sess.Values["userID"].(string)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.users.FindByID(r.Context(), id)
		if err != nil {
			// Stale session, e.g. the user was removed.
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireAuth redirects unauthenticated requests to the login page.
func (s *Session) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFrom(r.Context()) == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LogIn records the user id in the session.
func (s *Session) LogIn(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values["userID"] = userID.Hex()
	return sess.Save(r, w)
}

// LogOut destroys the session.
func (s *Session) LogOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, sessionName)
	delete(sess.Values, "userID")
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// Flash queues a one-shot message under the given key.
func (s *Session) Flash(w http.ResponseWriter, r *http.Request, key, message string) {
	sess, _ := s.store.Get(r, sessionName)
	sess.AddFlash(message, key)
	if err := sess.Save(r, w); err != nil {
		log.Printf("save session: %v", err)
	}
}

// PopFlash returns and clears the queued message for the given key.
func (s *Session) PopFlash(w http.ResponseWriter, r *http.Request, key string) string {
	sess, _ := s.store.Get(r, sessionName)
	flashes := sess.Flashes(key)
	if len(flashes) == 0 {
		return ""
	}
	if err := sess.Save(r, w); err != nil {
		log.Printf("save session: %v", err)
	}
	message, _ := flashes[0].(string)
	return message
}

// WithUser returns a context carrying the resolved request user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFrom returns the request's resolved user, nil when unauthenticated.
func UserFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}
