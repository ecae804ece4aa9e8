package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-desk/library/internal/model"
	"github.com/Astemirdum/library-desk/library/internal/view"
	"github.com/Astemirdum/library-desk/pkg/auth"
)

const (
	userKey     = "user"
	flashCookie = "messages"
	loginURL    = "/login/"
	homeURL     = "/dashboard/"
)

// session resolves the signed session cookie into the current user.
func (h *Handler) session(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(h.sessions.CookieName())
		if err == nil && cookie.Value != "" {
			claims, err := h.sessions.Parse(cookie.Value)
			if err != nil {
				h.clearSession(c)
			} else {
				c.Set(userKey, claims)
			}
		}
		return next(c)
	}
}

func (h *Handler) requireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentUser(c) == nil {
			return c.Redirect(http.StatusFound, loginURL+"?next="+url.QueryEscape(c.Request().URL.RequestURI()))
		}
		return next(c)
	}
}

func (h *Handler) requireAPILogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentUser(c) == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		return next(c)
	}
}

func currentUser(c echo.Context) *auth.Claims {
	claims, _ := c.Get(userKey).(*auth.Claims)
	return claims
}

func (h *Handler) startSession(c echo.Context, user model.User) error {
	token, expires, err := h.sessions.Issue(user.ID, user.Username, time.Now())
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     h.sessions.CookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.sessions.Secure(),
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *Handler) clearSession(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.sessions.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.sessions.Secure(),
		SameSite: http.SameSiteLaxMode,
	})
}

// safeNext accepts only local paths as a post-login target.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return homeURL
	}
	return next
}

// redirect answers with 302 and queues msgs for the next rendered page.
func (h *Handler) redirect(c echo.Context, to string, msgs ...model.Message) error {
	if len(msgs) > 0 {
		value, err := model.EncodeMessages(msgs)
		if err != nil {
			h.log.Warn("encode messages", zap.Error(err))
		} else {
			c.SetCookie(&http.Cookie{
				Name:     flashCookie,
				Value:    value,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
	}
	return c.Redirect(http.StatusFound, to)
}

// takeMessages returns the queued messages once and drops the cookie.
func (h *Handler) takeMessages(c echo.Context) []model.Message {
	cookie, err := c.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	c.SetCookie(&http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	msgs, err := model.DecodeMessages(cookie.Value)
	if err != nil {
		h.log.Debug("decode messages", zap.Error(err))
		return nil
	}
	return msgs
}

func (h *Handler) render(c echo.Context, code int, name string, page view.Page) error {
	page.Messages = append(h.takeMessages(c), page.Messages...)
	if user := currentUser(c); user != nil {
		page.User = user.Username
	}
	if token, ok := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string); ok {
		page.CSRF = token
	}
	return c.Render(code, name, page)
}
