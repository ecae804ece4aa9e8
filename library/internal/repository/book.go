package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-desk/library/internal/errs"
	"github.com/Astemirdum/library-desk/library/internal/model"
)

var bookColumns = []string{"id", "title", "author", "isbn", "image", "image_url", "copies_total", "copies_available"}

func (r *repository) ListBooks(ctx context.Context, page, size int) (model.ListBooks, error) {
	q := qb.Select(bookColumns...).
		From(string(booksTableName)).
		OrderBy("title", "id")
	if page != 0 && size != 0 {
		q = q.Limit(uint64(size)).Offset(uint64((page - 1) * size))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return model.ListBooks{}, err
	}
	r.log.Debug("ListBooks", zap.String("query", query), zap.Any("args", args))

	books := make([]model.Book, 0)
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return model.ListBooks{}, err
	}

	total, err := r.Count(ctx, booksTableName, false)
	if err != nil {
		return model.ListBooks{}, err
	}

	return model.ListBooks{
		Paging: model.Paging{
			Page:          page,
			PageSize:      size,
			TotalElements: total,
		},
		Items: books,
	}, nil
}

func (r *repository) GetBook(ctx context.Context, id int64) (model.Book, error) {
	return getBook(ctx, r.db, id, false)
}

func getBook(ctx context.Context, q sqlx.QueryerContext, id int64, lock bool) (model.Book, error) {
	sb := qb.Select(bookColumns...).
		From(string(booksTableName)).
		Where(sq.Eq{"id": id})
	if lock {
		sb = sb.Suffix(forUpdate)
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := sqlx.GetContext(ctx, q, &book, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	book.CopiesAvailable = book.CopiesTotal
	query, args, err := qb.Insert(string(booksTableName)).
		Columns("title", "author", "isbn", "image", "image_url", "copies_total", "copies_available").
		Values(book.Title, book.Author, book.ISBN, book.Image, book.ImageURL, book.CopiesTotal, book.CopiesAvailable).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	if err := r.db.GetContext(ctx, &book.ID, query, args...); err != nil {
		if isUniqueViolation(err, "books_isbn_key") {
			return model.Book{}, errs.ErrDuplicateISBN
		}
		return model.Book{}, errors.Wrap(err, "insert book")
	}
	return book, nil
}

// UpdateBook applies the form under a row lock so copies on loan stay consistent.
func (r *repository) UpdateBook(ctx context.Context, id int64, form model.BookForm) (model.Book, error) {
	var book model.Book
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if book, err = getBook(ctx, tx, id, true); err != nil {
			return err
		}
		form.Apply(&book)
		if err := book.SetCopiesTotal(form.CopiesTotal); err != nil {
			return err
		}

		query, args, err := qb.Update(string(booksTableName)).
			Set("title", book.Title).
			Set("author", book.Author).
			Set("isbn", book.ISBN).
			Set("image", book.Image).
			Set("image_url", book.ImageURL).
			Set("copies_total", book.CopiesTotal).
			Set("copies_available", book.CopiesAvailable).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err, "books_isbn_key") {
				return errs.ErrDuplicateISBN
			}
			return errors.Wrap(err, "update book")
		}
		return nil
	})
	if err != nil {
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) DeleteBook(ctx context.Context, id int64) (model.Book, error) {
	query, args, err := qb.Delete(string(booksTableName)).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING id, title, author, isbn, image, image_url, copies_total, copies_available").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := r.db.GetContext(ctx, &book, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, errors.Wrap(err, "delete book")
	}
	return book, nil
}
