package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-desk/library/internal/errs"
	"github.com/Astemirdum/library-desk/library/internal/view"
	_ "github.com/Astemirdum/library-desk/library/swagger"
	"github.com/Astemirdum/library-desk/pkg/auth"
	"github.com/Astemirdum/library-desk/pkg/metrics"
	md "github.com/Astemirdum/library-desk/pkg/middleware"
	"github.com/Astemirdum/library-desk/pkg/validate"
)

type Handler struct {
	librarySvc LibraryService
	covers     CoverStore
	sessions   *auth.Manager
	renderer   echo.Renderer
	log        *zap.Logger
}

func New(librarySvc LibraryService, covers CoverStore, sessions *auth.Manager, log *zap.Logger) *Handler {
	return &Handler{
		librarySvc: librarySvc,
		covers:     covers,
		sessions:   sessions,
		renderer:   view.MustRenderer(),
		log:        log.Named("handler"),
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	const (
		baseRPS = 10
		webRPS  = 50
		apiRPS  = 100
	)
	e.Renderer = h.renderer
	e.Validator = validate.NewCustomValidator()
	e.HTTPErrorHandler = h.errorHandler

	e.Pre(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper:      skipTrailingSlash,
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)))
	e.Use(md.Metrics())

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	base.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	base.GET("/swagger/*", echoSwagger.WrapHandler)
	e.Static("/media", h.covers.Root())

	api := e.Group("/api/v1",
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowMethods: []string{http.MethodGet, http.MethodHead},
		}),
		md.NewRateLimiter(apiRPS),
		h.session,
		h.requireAPILogin,
	)
	api.GET("/books", h.APIListBooks)
	api.GET("/books/:id", h.APIGetBook)
	api.GET("/loans", h.APIListLoans)
	api.GET("/fines", h.APIListFines)
	api.GET("/dashboard", h.APIDashboard)

	web := e.Group("",
		md.NewRateLimiter(webRPS),
		middleware.CSRFWithConfig(middleware.CSRFConfig{
			TokenLookup:    "form:csrf",
			CookiePath:     "/",
			CookieHTTPOnly: true,
			CookieSameSite: http.SameSiteLaxMode,
		}),
		h.session,
	)
	web.GET("/", h.LoginPage)
	web.POST("/", h.Login)
	web.GET("/login/", h.LoginPage)
	web.POST("/login/", h.Login)
	web.GET("/logout/", h.Logout)
	web.POST("/logout/", h.Logout)
	web.GET("/register/", h.RegisterPage)
	web.POST("/register/", h.Register)

	private := web.Group("", h.requireLogin)
	private.GET("/dashboard/", h.Dashboard)

	private.GET("/books/", h.ListBooks)
	private.GET("/add-book/", h.AddBookPage)
	private.POST("/add-book/", h.AddBook)
	private.GET("/edit-book/:id/", h.EditBookPage)
	private.POST("/edit-book/:id/", h.EditBook)
	private.GET("/delete-book/:id/", h.DeleteBookPage)
	private.POST("/delete-book/:id/", h.DeleteBook)

	private.GET("/members/", h.ListMembers)
	private.GET("/delete-member/:id/", h.DeleteMemberPage)
	private.POST("/delete-member/:id/", h.DeleteMember)

	private.GET("/borrow/:book_id/", h.BorrowPage)
	private.POST("/borrow/:book_id/", h.Borrow)
	private.GET("/return/:loan_id/", h.ReturnPage)
	private.POST("/return/:loan_id/", h.Return)
	private.GET("/loans/", h.ListLoans)

	private.GET("/fines/", h.ListFines)
	private.GET("/pay-fine/:fine_id/", h.PayFinePage)
	private.POST("/pay-fine/:fine_id/", h.PayFine)

	return e
}

func skipTrailingSlash(c echo.Context) bool {
	p := c.Request().URL.Path
	for _, prefix := range []string{"/api/", "/manage/", "/metrics", "/swagger/", "/media/"} {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// @Summary Health check
// @Tags manage
// @Success 200 {string} string "OK"
// @Router /manage/health [get]
func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		he = echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
	msg := he.Message
	if he.Code >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err))
		msg = http.StatusText(he.Code)
	}

	switch {
	case c.Request().Method == http.MethodHead:
		err = c.NoContent(he.Code)
	case isAPI(c):
		err = c.JSON(he.Code, echo.Map{"message": msg})
	default:
		err = h.render(c, he.Code, "error.html", view.Page{
			Title: http.StatusText(he.Code),
			Data:  echo.Map{"Code": he.Code, "Message": msg},
		})
	}
	if err != nil {
		h.log.Error("error handler", zap.Error(err))
	}
}

func isAPI(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api/")
}

// fail maps a service error to an HTTP error; unknown ids become 404.
func (h *Handler) fail(err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Not found.").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
}

func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound, "Not found.")
	}
	return id, nil
}

func paging(c echo.Context) (page, size int, err error) {
	if pageParam := c.QueryParam("page"); pageParam != "" {
		if page, err = strconv.Atoi(pageParam); err != nil || page < 0 {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "page is invalid")
		}
	}
	if sizeParam := c.QueryParam("size"); sizeParam != "" {
		if size, err = strconv.Atoi(sizeParam); err != nil || size < 0 {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "size is invalid")
		}
	}
	return page, size, nil
}
