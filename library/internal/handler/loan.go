package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Astemirdum/library-desk/library/internal/errs"
	"github.com/Astemirdum/library-desk/library/internal/model"
	"github.com/Astemirdum/library-desk/library/internal/view"
	"github.com/Astemirdum/library-desk/pkg/validate"
)

const (
	loansURL = "/loans/"
	finesURL = "/fines/"

	invalidMember = "Select a valid choice. That choice is not one of the available choices."
)

func (h *Handler) BorrowPage(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "book_id")
	if err != nil {
		return err
	}
	book, err := h.librarySvc.GetBook(ctx, id)
	if err != nil {
		return h.fail(err)
	}
	if !book.IsAvailable() {
		return h.redirect(c, booksURL, model.Error("This book is not available for borrowing."))
	}
	members, err := h.librarySvc.ListMembers(ctx)
	if err != nil {
		return h.fail(err)
	}
	return h.render(c, http.StatusOK, "loan_form.html", view.Page{
		Title: "Borrow book",
		Form:  h.librarySvc.NewLoanForm(),
		Data:  echo.Map{"Book": book, "Members": members},
		Today: h.librarySvc.Today(),
	})
}

func (h *Handler) Borrow(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "book_id")
	if err != nil {
		return err
	}
	book, err := h.librarySvc.GetBook(ctx, id)
	if err != nil {
		return h.fail(err)
	}
	if !book.IsAvailable() {
		return h.redirect(c, booksURL, model.Error("This book is not available for borrowing."))
	}

	var form model.LoanForm
	page := view.Page{Title: "Borrow book", Today: h.librarySvc.Today()}
	if err := c.Bind(&form); err != nil {
		page.Errors = validate.FieldErrors{"member": invalidMember}
	} else if err := c.Validate(&form); err != nil && !errors.As(err, &page.Errors) {
		return h.fail(err)
	}
	page.Form = form

	if len(page.Errors) == 0 {
		loan, err := h.librarySvc.Borrow(ctx, book.ID, form)
		switch {
		case err == nil:
			return h.redirect(c, booksURL,
				model.Success(fmt.Sprintf("Book %q borrowed successfully by %s", loan.BookTitle, loan.MemberName)))
		case errors.As(err, &page.Errors):
		case errors.Is(err, errs.ErrMemberNotFound):
			page.Errors = validate.FieldErrors{"member": invalidMember}
		case errors.Is(err, errs.ErrBookUnavailable):
			page.Messages = []model.Message{model.Error("Book is no longer available.")}
		default:
			return h.fail(err)
		}
	}

	members, err := h.librarySvc.ListMembers(ctx)
	if err != nil {
		return h.fail(err)
	}
	page.Data = echo.Map{"Book": book, "Members": members}
	return h.render(c, http.StatusOK, "loan_form.html", page)
}

func (h *Handler) ReturnPage(c echo.Context) error {
	id, err := paramID(c, "loan_id")
	if err != nil {
		return err
	}
	loan, err := h.librarySvc.GetLoan(c.Request().Context(), id)
	if err != nil {
		return h.fail(err)
	}
	if loan.IsReturned() {
		return h.redirect(c, loansURL, model.Error("This loan has already been returned."))
	}
	return h.render(c, http.StatusOK, "return_book.html", view.Page{
		Title: "Return book",
		Data:  loan,
		Today: h.librarySvc.Today(),
	})
}

func (h *Handler) Return(c echo.Context) error {
	id, err := paramID(c, "loan_id")
	if err != nil {
		return err
	}
	res, err := h.librarySvc.ReturnLoan(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrLoanAlreadyReturned) {
			return h.redirect(c, loansURL, model.Error("This loan has already been returned."))
		}
		return h.fail(err)
	}
	if res.Fine != nil {
		return h.redirect(c, loansURL, model.Warning(fmt.Sprintf(
			"Book returned successfully. Fine of ₹%d has been applied for overdue return.", res.Fine.Amount)))
	}
	return h.redirect(c, loansURL, model.Success("Book returned successfully!"))
}

func (h *Handler) ListLoans(c echo.Context) error {
	loans, err := h.librarySvc.ListLoans(c.Request().Context())
	if err != nil {
		return h.fail(err)
	}
	return h.render(c, http.StatusOK, "loan_list.html", view.Page{
		Title: "Loans",
		Data:  loans,
		Today: h.librarySvc.Today(),
	})
}

func (h *Handler) ListFines(c echo.Context) error {
	fines, err := h.librarySvc.ListFines(c.Request().Context())
	if err != nil {
		return h.fail(err)
	}
	return h.render(c, http.StatusOK, "fine_list.html", view.Page{Title: "Fines", Data: fines})
}

func (h *Handler) PayFinePage(c echo.Context) error {
	id, err := paramID(c, "fine_id")
	if err != nil {
		return err
	}
	fine, err := h.librarySvc.GetFine(c.Request().Context(), id)
	if err != nil {
		return h.fail(err)
	}
	if fine.Paid {
		return h.redirect(c, finesURL, model.Info("This fine has already been paid."))
	}
	return h.render(c, http.StatusOK, "pay_fine.html", view.Page{Title: "Pay fine", Data: fine})
}

func (h *Handler) PayFine(c echo.Context) error {
	id, err := paramID(c, "fine_id")
	if err != nil {
		return err
	}
	fine, err := h.librarySvc.PayFine(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrFineAlreadyPaid) {
			return h.redirect(c, finesURL, model.Info("This fine has already been paid."))
		}
		return h.fail(err)
	}
	return h.redirect(c, finesURL, model.Success(fmt.Sprintf("Fine of ₹%d marked as paid.", fine.Amount)))
}
