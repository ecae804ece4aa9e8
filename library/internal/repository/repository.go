package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-desk/library/internal/model"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

type Repository interface {
	CreateMember(ctx context.Context, user model.User, memberType model.MemberType) (model.Member, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	GetUser(ctx context.Context, id int64) (model.User, error)
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error
	ListMembers(ctx context.Context) ([]model.Member, error)
	GetMember(ctx context.Context, id int64) (model.Member, error)
	DeleteMember(ctx context.Context, id int64) (model.Member, error)

	ListBooks(ctx context.Context, page, size int) (model.ListBooks, error)
	GetBook(ctx context.Context, id int64) (model.Book, error)
	CreateBook(ctx context.Context, book model.Book) (model.Book, error)
	UpdateBook(ctx context.Context, id int64, form model.BookForm) (model.Book, error)
	DeleteBook(ctx context.Context, id int64) (model.Book, error)

	BorrowBook(ctx context.Context, loan model.Loan) (model.Loan, error)
	ReturnLoan(ctx context.Context, id int64, on time.Time) (model.ReturnResult, error)
	ListLoans(ctx context.Context) ([]model.Loan, error)
	GetLoan(ctx context.Context, id int64) (model.Loan, error)

	ListFines(ctx context.Context) ([]model.Fine, error)
	GetFine(ctx context.Context, id int64) (model.Fine, error)
	PayFine(ctx context.Context, id int64) (model.Fine, error)

	Count(ctx context.Context, table Table, unpaidOnly bool) (int, error)
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

type Table string

const (
	usersTableName   Table = `users`
	booksTableName   Table = `books`
	membersTableName Table = `members`
	loansTableName   Table = `loans`
	finesTableName   Table = `fines`
)

// Counted tables for the dashboard.
const (
	Books   = booksTableName
	Members = membersTableName
	Loans   = loansTableName
	Fines   = finesTableName
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const forUpdate = "FOR UPDATE"

// memberNameExpr renders a member like Member.DisplayName does.
const memberNameExpr = `coalesce(nullif(trim(concat_ws(' ', u.first_name, u.last_name)), ''), u.username, 'Unknown')`

func (r *repository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.log.Error("rollback", zap.Error(rbErr))
			}
			return
		}
		err = errors.Wrap(tx.Commit(), "commit")
	}()
	return fn(tx)
}

func (r *repository) Count(ctx context.Context, table Table, unpaidOnly bool) (int, error) {
	q := qb.Select("count(*)").From(string(table))
	if table == finesTableName && unpaidOnly {
		q = q.Where(sq.Eq{"paid": false})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, errors.Wrapf(err, "count %s", table)
	}
	return n, nil
}

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func isUniqueViolation(err error, constraint string) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == constraint
}

func isForeignKeyViolation(err error) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == pgerrcode.ForeignKeyViolation
}
