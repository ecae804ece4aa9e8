package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Astemirdum/library-desk/library/internal/view"
)

func (h *Handler) Dashboard(c echo.Context) error {
	stats, err := h.librarySvc.Dashboard(c.Request().Context())
	if err != nil {
		return h.fail(err)
	}
	return h.render(c, http.StatusOK, "dashboard.html", view.Page{Title: "Dashboard", Data: stats})
}

// @Summary List books
// @Tags books
// @Produce json
// @Param page query int false "page number"
// @Param size query int false "page size"
// @Success 200 {object} model.ListBooks
// @Failure 400 {object} echo.HTTPError
// @Failure 401 {object} echo.HTTPError
// @Router /api/v1/books [get]
func (h *Handler) APIListBooks(c echo.Context) error {
	page, size, err := paging(c)
	if err != nil {
		return err
	}
	books, err := h.librarySvc.ListBooks(c.Request().Context(), page, size)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, books)
}

// @Summary Get book
// @Tags books
// @Produce json
// @Param id path int true "book id"
// @Success 200 {object} model.Book
// @Failure 404 {object} echo.HTTPError
// @Router /api/v1/books/{id} [get]
func (h *Handler) APIGetBook(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	book, err := h.librarySvc.GetBook(c.Request().Context(), id)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, book)
}

// @Summary List loans
// @Tags loans
// @Produce json
// @Success 200 {array} model.Loan
// @Router /api/v1/loans [get]
func (h *Handler) APIListLoans(c echo.Context) error {
	loans, err := h.librarySvc.ListLoans(c.Request().Context())
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, loans)
}

// @Summary List fines
// @Tags fines
// @Produce json
// @Success 200 {array} model.Fine
// @Router /api/v1/fines [get]
func (h *Handler) APIListFines(c echo.Context) error {
	fines, err := h.librarySvc.ListFines(c.Request().Context())
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, fines)
}

// @Summary Dashboard counters
// @Tags dashboard
// @Produce json
// @Success 200 {object} model.Dashboard
// @Router /api/v1/dashboard [get]
func (h *Handler) APIDashboard(c echo.Context) error {
	stats, err := h.librarySvc.Dashboard(c.Request().Context())
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, stats)
}
