package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-desk/library/internal/errs"
	"github.com/Astemirdum/library-desk/library/internal/model"
	"github.com/Astemirdum/library-desk/library/internal/view"
	"github.com/Astemirdum/library-desk/pkg/validate"
)

func (h *Handler) LoginPage(c echo.Context) error {
	if currentUser(c) != nil {
		return c.Redirect(http.StatusFound, homeURL)
	}
	return h.render(c, http.StatusOK, "login.html", view.Page{
		Title: "Login",
		Form:  model.LoginForm{Next: c.QueryParam("next")},
	})
}

func (h *Handler) Login(c echo.Context) error {
	var form model.LoginForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed form")
	}
	page := view.Page{Title: "Login", Form: model.LoginForm{Username: form.Username, Next: form.Next}}
	if err := c.Validate(&form); err != nil {
		if !errors.As(err, &page.Errors) {
			return h.fail(err)
		}
		return h.render(c, http.StatusOK, "login.html", page)
	}

	user, err := h.librarySvc.Authenticate(c.Request().Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCredentials) {
			page.Messages = []model.Message{model.Error("Invalid username or password")}
			return h.render(c, http.StatusOK, "login.html", page)
		}
		return h.fail(err)
	}
	if err := h.startSession(c, user); err != nil {
		return h.fail(err)
	}
	h.log.Info("login", zap.Int64("user", user.ID))
	return c.Redirect(http.StatusFound, safeNext(form.Next))
}

func (h *Handler) Logout(c echo.Context) error {
	h.clearSession(c)
	return c.Redirect(http.StatusFound, loginURL)
}

func (h *Handler) RegisterPage(c echo.Context) error {
	return h.render(c, http.StatusOK, "register.html", view.Page{
		Title: "Register",
		Form:  model.RegisterForm{MemberType: model.MemberTypeStudent},
	})
}

func (h *Handler) Register(c echo.Context) error {
	var form model.RegisterForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed form")
	}
	page := view.Page{Title: "Register", Form: form}
	if err := c.Validate(&form); err != nil {
		if !errors.As(err, &page.Errors) {
			return h.fail(err)
		}
		return h.render(c, http.StatusOK, "register.html", page)
	}

	if _, err := h.librarySvc.Register(c.Request().Context(), form); err != nil {
		switch {
		case errors.As(err, &page.Errors):
		case errors.Is(err, errs.ErrUsernameTaken):
			page.Errors = validate.FieldErrors{"username": "A user with that username already exists."}
		default:
			return h.fail(err)
		}
		return h.render(c, http.StatusOK, "register.html", page)
	}
	return h.redirect(c, loginURL, model.Success("Registration successful! Please log in."))
}
