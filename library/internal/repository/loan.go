package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-desk/library/internal/errs"
	"github.com/Astemirdum/library-desk/library/internal/model"
)

func loanSelect() sq.SelectBuilder {
	return qb.Select(
		"l.id", "l.book_id", "l.member_id", "l.loan_date", "l.due_date", "l.return_date", "l.status",
		"b.title as book_title",
		memberNameExpr+" as member_name",
	).
		From(string(loansTableName) + " l").
		Join(string(booksTableName) + " b on b.id = l.book_id").
		Join(string(membersTableName) + " m on m.id = l.member_id").
		LeftJoin(string(usersTableName) + " u on u.id = m.user_id")
}

func (r *repository) ListLoans(ctx context.Context) ([]model.Loan, error) {
	query, args, err := loanSelect().OrderBy("l.loan_date DESC", "l.id DESC").ToSql()
	if err != nil {
		return nil, err
	}
	loans := make([]model.Loan, 0)
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *repository) GetLoan(ctx context.Context, id int64) (model.Loan, error) {
	return getLoan(ctx, r.db, id, false)
}

func getLoan(ctx context.Context, q sqlx.QueryerContext, id int64, lock bool) (model.Loan, error) {
	sb := loanSelect().Where(sq.Eq{"l.id": id})
	if lock {
		sb = sb.Suffix(forUpdate + " OF l")
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return model.Loan{}, err
	}

	var loan model.Loan
	if err := sqlx.GetContext(ctx, q, &loan, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, errs.ErrNotFound
		}
		return model.Loan{}, err
	}
	return loan, nil
}

// BorrowBook takes a copy of the book and records the loan atomically.
// Concurrent borrows of the last copy serialize on the book row lock.
func (r *repository) BorrowBook(ctx context.Context, loan model.Loan) (model.Loan, error) {
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		book, err := getBook(ctx, tx, loan.BookID, true)
		if err != nil {
			return err
		}
		member, err := getMember(ctx, tx, loan.MemberID, true)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return errs.ErrMemberNotFound
			}
			return err
		}
		if !book.BorrowCopy() {
			return errs.ErrBookUnavailable
		}

		query, args, err := qb.Update(string(booksTableName)).
			Set("copies_available", book.CopiesAvailable).
			Where(sq.Eq{"id": book.ID}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrap(err, "take copy")
		}

		query, args, err = qb.Insert(string(loansTableName)).
			Columns("book_id", "member_id", "loan_date", "due_date", "status").
			Values(loan.BookID, loan.MemberID, loan.LoanDate, loan.DueDate, model.LoanStatusBorrowed).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &loan.ID, query, args...); err != nil {
			if isForeignKeyViolation(err) {
				return errs.ErrMemberNotFound
			}
			return errors.Wrap(err, "insert loan")
		}

		loan.Status = model.LoanStatusBorrowed
		loan.BookTitle = book.Title
		loan.MemberName = member.DisplayName()
		return nil
	})
	if err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

// ReturnLoan closes a borrowed loan, puts the copy back and issues a fine
// for a late return. A returned loan is rejected with ErrLoanAlreadyReturned.
func (r *repository) ReturnLoan(ctx context.Context, id int64, on time.Time) (model.ReturnResult, error) {
	var res model.ReturnResult
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		loan, err := getLoan(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := loan.MarkReturned(on); err != nil {
			return err
		}

		query, args, err := qb.Update(string(loansTableName)).
			Set("status", loan.Status).
			Set("return_date", loan.ReturnDate).
			Where(sq.Eq{"id": loan.ID}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrap(err, "close loan")
		}

		book, err := getBook(ctx, tx, loan.BookID, true)
		if err != nil {
			return err
		}
		if book.ReturnCopy() {
			query, args, err = qb.Update(string(booksTableName)).
				Set("copies_available", book.CopiesAvailable).
				Where(sq.Eq{"id": book.ID}).
				ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return errors.Wrap(err, "put copy back")
			}
		} else {
			r.log.Warn("returned copy above stock", zap.Int64("book", book.ID), zap.Int64("loan", loan.ID))
		}

		res.Loan = loan
		fine := model.NewFine(loan)
		if fine == nil {
			return nil
		}
		query, args, err = qb.Insert(string(finesTableName)).
			Columns("loan_id", "amount", "paid").
			Values(fine.LoanID, fine.Amount, fine.Paid).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &fine.ID, query, args...); err != nil {
			return errors.Wrap(err, "insert fine")
		}
		res.Fine = fine
		return nil
	})
	if err != nil {
		return model.ReturnResult{}, err
	}
	return res, nil
}
