package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Astemirdum/library-desk/library/internal/errs"
	"github.com/Astemirdum/library-desk/library/internal/model"
)

func fineSelect() sq.SelectBuilder {
	return qb.Select(
		"f.id", "f.loan_id", "f.amount", "f.paid",
		"b.title as book_title",
		memberNameExpr+" as member_name",
	).
		From(string(finesTableName) + " f").
		Join(string(loansTableName) + " l on l.id = f.loan_id").
		Join(string(booksTableName) + " b on b.id = l.book_id").
		Join(string(membersTableName) + " m on m.id = l.member_id").
		LeftJoin(string(usersTableName) + " u on u.id = m.user_id")
}

func (r *repository) ListFines(ctx context.Context) ([]model.Fine, error) {
	query, args, err := fineSelect().OrderBy("f.paid", "f.id DESC").ToSql()
	if err != nil {
		return nil, err
	}
	fines := make([]model.Fine, 0)
	if err := r.db.SelectContext(ctx, &fines, query, args...); err != nil {
		return nil, err
	}
	return fines, nil
}

func (r *repository) GetFine(ctx context.Context, id int64) (model.Fine, error) {
	return getFine(ctx, r.db, id, false)
}

func getFine(ctx context.Context, q sqlx.QueryerContext, id int64, lock bool) (model.Fine, error) {
	sb := fineSelect().Where(sq.Eq{"f.id": id})
	if lock {
		sb = sb.Suffix(forUpdate + " OF f")
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return model.Fine{}, err
	}

	var fine model.Fine
	if err := sqlx.GetContext(ctx, q, &fine, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Fine{}, errs.ErrNotFound
		}
		return model.Fine{}, err
	}
	return fine, nil
}

func (r *repository) PayFine(ctx context.Context, id int64) (model.Fine, error) {
	var fine model.Fine
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if fine, err = getFine(ctx, tx, id, true); err != nil {
			return err
		}
		if err := fine.MarkAsPaid(); err != nil {
			return err
		}
		query, args, err := qb.Update(string(finesTableName)).
			Set("paid", true).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query, args...)
		return errors.Wrap(err, "pay fine")
	})
	if err != nil {
		return model.Fine{}, err
	}
	return fine, nil
}
