package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/poiesic/docsift/core"
)

const (
	// SessionCookie carries the visitor's session ID.
	SessionCookie = "docsift_session"

	flashCookie = "docsift_flash"
	sessionKey  = "session"
)

// withSession loads the visitor's session, creating one when the cookie
// is missing or unknown, and stores it in the echo context.
func (s *Server) withSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var id string
		if cookie, err := c.Cookie(SessionCookie); err == nil {
			id = cookie.Value
		}

		sess, err := s.engine.Sessions().Ensure(c.Request().Context(), id)
		if err != nil {
			return err
		}
		if sess.ID != id || s.ttl > 0 {
			c.SetCookie(s.cookie(SessionCookie, sess.ID, s.ttl))
		}
		c.Set(sessionKey, sess)
		return next(c)
	}
}

func currentSession(c echo.Context) *core.Session {
	sess, _ := c.Get(sessionKey).(*core.Session)
	if sess == nil {
		return &core.Session{}
	}
	return sess
}

func (s *Server) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

type flashKind string

const (
	flashSuccess flashKind = "success"
	flashError   flashKind = "error"
)

// flash is a one-shot message shown on the next page render.
type flash struct {
	Kind    flashKind
	Message string
}

func (s *Server) setFlash(c echo.Context, kind flashKind, message string) {
	value := url.QueryEscape(string(kind) + "|" + message)
	c.SetCookie(s.cookie(flashCookie, value, 0))
}

// popFlash returns the pending flash message, if any, and clears it.
func (s *Server) popFlash(c echo.Context) *flash {
	cookie, err := c.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	c.SetCookie(s.cookie(flashCookie, "", -1))

	value, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return nil
	}
	kind, message, ok := strings.Cut(value, "|")
	if !ok || message == "" {
		return nil
	}
	switch flashKind(kind) {
	case flashSuccess, flashError:
		return &flash{Kind: flashKind(kind), Message: message}
	}
	return nil
}
