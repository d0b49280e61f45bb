package httpserver

import (
	"github.com/gorilla/sessions"
	"github.com/hanzzx311/skyport/internal/domain"
	"github.com/labstack/echo/v4"
)

// Echo context keys.
const (
	ctxKeyLocals  = "locals"
	ctxKeySession = "session"
	ctxKeyUser    = "user"
	ctxKeyUserID  = "userID"
)

// Locals are per-request values exposed to every rendered view.
type Locals map[string]any

func localsOf(c echo.Context) Locals {
	if l, ok := c.Get(ctxKeyLocals).(Locals); ok {
		return l
	}
	l := Locals{}
	c.Set(ctxKeyLocals, l)
	return l
}

func setLocal(c echo.Context, key string, value any) {
	localsOf(c)[key] = value
}

func currentSession(c echo.Context) *sessions.Session {
	s, _ := c.Get(ctxKeySession).(*sessions.Session)
	return s
}

func currentUser(c echo.Context) *domain.User {
	u, _ := c.Get(ctxKeyUser).(*domain.User)
	return u
}
