package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-desk/library/internal/errs"
	"github.com/Astemirdum/library-desk/library/internal/model"
	"github.com/Astemirdum/library-desk/library/internal/upload"
	"github.com/Astemirdum/library-desk/library/internal/view"
	"github.com/Astemirdum/library-desk/pkg/validate"
)

const booksURL = "/books/"

func (h *Handler) ListBooks(c echo.Context) error {
	page, size, err := paging(c)
	if err != nil {
		return err
	}
	books, err := h.librarySvc.ListBooks(c.Request().Context(), page, size)
	if err != nil {
		return h.fail(err)
	}
	return h.render(c, http.StatusOK, "book_list.html", view.Page{Title: "Books", Data: books})
}

func (h *Handler) AddBookPage(c echo.Context) error {
	return h.render(c, http.StatusOK, "book_form.html", view.Page{
		Title: "Add book",
		Form:  model.NewBookForm(),
		Data:  echo.Map{"Edit": false},
	})
}

func (h *Handler) AddBook(c echo.Context) error {
	form, fieldErrs, err := h.bindBookForm(c)
	if err != nil {
		return h.fail(err)
	}
	page := view.Page{Title: "Add book", Form: form, Errors: fieldErrs, Data: echo.Map{"Edit": false}}
	if len(fieldErrs) > 0 {
		return h.render(c, http.StatusOK, "book_form.html", page)
	}

	if _, err := h.librarySvc.CreateBook(c.Request().Context(), form); err != nil {
		h.discardCover(form)
		if errors.Is(err, errs.ErrDuplicateISBN) {
			page.Errors = validate.FieldErrors{"isbn": "Book with this Isbn already exists."}
			return h.render(c, http.StatusOK, "book_form.html", page)
		}
		return h.fail(err)
	}
	return h.redirect(c, booksURL, model.Success("Book added successfully!"))
}

func (h *Handler) EditBookPage(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	book, err := h.librarySvc.GetBook(c.Request().Context(), id)
	if err != nil {
		return h.fail(err)
	}
	return h.render(c, http.StatusOK, "book_form.html", view.Page{
		Title: "Edit book",
		Form:  model.BookFormFrom(book),
		Data:  echo.Map{"Edit": true, "Book": book},
	})
}

func (h *Handler) EditBook(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	book, err := h.librarySvc.GetBook(ctx, id)
	if err != nil {
		return h.fail(err)
	}

	form, fieldErrs, err := h.bindBookForm(c)
	if err != nil {
		return h.fail(err)
	}
	page := view.Page{Title: "Edit book", Form: form, Errors: fieldErrs, Data: echo.Map{"Edit": true, "Book": book}}
	if len(fieldErrs) > 0 {
		return h.render(c, http.StatusOK, "book_form.html", page)
	}

	if _, err := h.librarySvc.UpdateBook(ctx, id, form); err != nil {
		h.discardCover(form)
		switch {
		case errors.As(err, &page.Errors):
		case errors.Is(err, errs.ErrDuplicateISBN):
			page.Errors = validate.FieldErrors{"isbn": "Book with this Isbn already exists."}
		default:
			return h.fail(err)
		}
		return h.render(c, http.StatusOK, "book_form.html", page)
	}
	return h.redirect(c, booksURL, model.Success("Book updated successfully!"))
}

func (h *Handler) DeleteBookPage(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	book, err := h.librarySvc.GetBook(c.Request().Context(), id)
	if err != nil {
		return h.fail(err)
	}
	return h.render(c, http.StatusOK, "delete_book.html", view.Page{Title: "Delete book", Data: book})
}

func (h *Handler) DeleteBook(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.librarySvc.DeleteBook(c.Request().Context(), id); err != nil {
		return h.fail(err)
	}
	return h.redirect(c, booksURL, model.Success("Book deleted successfully!"))
}

// bindBookForm reads the multipart book form. Field problems come back as
// FieldErrors; the cover is stored only when every other field is valid.
func (h *Handler) bindBookForm(c echo.Context) (model.BookForm, validate.FieldErrors, error) {
	var form model.BookForm
	if err := c.Bind(&form); err != nil {
		return form, validate.FieldErrors{"copies_total": "Enter a whole number."}, nil
	}
	var fieldErrs validate.FieldErrors
	if err := c.Validate(&form); err != nil && !errors.As(err, &fieldErrs) {
		return form, nil, err
	}

	fh, err := c.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return form, fieldErrs, nil
	case err != nil:
		return form, fieldErrs, err
	case len(fieldErrs) > 0:
		return form, fieldErrs, nil
	}

	path, err := h.covers.SaveCover(fh)
	switch {
	case errors.Is(err, upload.ErrNotImage):
		return form, validate.FieldErrors{"image": "Upload a valid image. The file you uploaded was either not an image or a corrupted image."}, nil
	case errors.Is(err, upload.ErrTooLarge):
		return form, validate.FieldErrors{"image": "The uploaded file is too large."}, nil
	case err != nil:
		return form, nil, err
	}
	form.Image = path
	return form, nil, nil
}

// discardCover drops a cover uploaded with a form that was not saved.
func (h *Handler) discardCover(form model.BookForm) {
	if form.Image == "" {
		return
	}
	if err := h.covers.RemoveCover(form.Image); err != nil {
		h.log.Warn("discard cover", zap.String("path", form.Image), zap.Error(err))
	}
}
