package httpserver

import (
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/charades/internal/platform/config"
)

const (
	sessionName      = "charades-session"
	sessionKeyUserID = "user_id"
	sessionMaxAge    = 30 * 24 * 60 * 60
)

// setupSessionStore reads the cookie session issued by the account service; both sides
// share SESSION_SECRET.
func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// sessionUserID resolves the caller's user id, from the session cookie or, for clients
// that cannot send cookies on the upgrade request, from the encoded cookie value in the
// :token path segment.
func (s *Server) sessionUserID(c echo.Context) (string, bool) {
	if token := c.Param("token"); token != "" {
		values := make(map[any]any)
		if err := securecookie.DecodeMulti(sessionName, token, &values, s.sessionStore.Codecs...); err != nil {
			return "", false
		}
		return userIDFrom(values)
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return "", false
	}
	return userIDFrom(session.Values)
}

func userIDFrom(values map[any]any) (string, bool) {
	userID, ok := values[sessionKeyUserID].(string)
	return userID, ok && userID != ""
}
