package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-desk/library/internal/errs"
	"github.com/Astemirdum/library-desk/library/internal/model"
	"github.com/Astemirdum/library-desk/library/internal/repository"
	"github.com/Astemirdum/library-desk/pkg/validate"
)

var (
	bookCols   = []string{"id", "title", "author", "isbn", "image", "image_url", "copies_total", "copies_available"}
	memberCols = []string{"id", "user_id", "member_type", "username", "first_name", "last_name", "email", "active_loans"}
	loanCols   = []string{"id", "book_id", "member_id", "loan_date", "due_date", "return_date", "status", "book_title", "member_name"}
	fineCols   = []string{"id", "loan_id", "amount", "paid", "book_title", "member_name"}
)

const (
	lockBook   = `FROM books WHERE id = $1 FOR UPDATE`
	lockMember = `WHERE m.id = $1 FOR UPDATE OF m`
	lockLoan   = `WHERE l.id = $1 FOR UPDATE OF l`
	lockFine   = `WHERE f.id = $1 FOR UPDATE OF f`
)

func q(s string) string { return regexp.QuoteMeta(s) }

func newRepo(t *testing.T) (repository.Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo, err := repository.NewRepository(sqlx.NewDb(db, "pgx"), zap.NewExample())
	require.NoError(t, err)
	return repo, mock
}

func day(d int) time.Time {
	return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)
}

func TestRepository_BorrowBook(t *testing.T) {
	t.Parallel()
	type mockBehavior func(m sqlmock.Sqlmock)

	tests := []struct {
		name         string
		mockBehavior mockBehavior
		want         model.Loan
		wantErr      error
	}{
		{
			name: "ok",
			mockBehavior: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectQuery(q(lockBook)).WithArgs(1).
					WillReturnRows(sqlmock.NewRows(bookCols).AddRow(1, "Dune", "Herbert", "9780441013593", nil, nil, 1, 1))
				m.ExpectQuery(q(lockMember)).WithArgs(2).
					WillReturnRows(sqlmock.NewRows(memberCols).AddRow(2, 5, "Student", "asmith", "Alice", "Smith", "", 0))
				m.ExpectExec(q(`UPDATE books SET copies_available = $1 WHERE id = $2`)).WithArgs(0, 1).
					WillReturnResult(sqlmock.NewResult(0, 1))
				m.ExpectQuery(q(`INSERT INTO loans`)).
					WithArgs(1, 2, day(1), day(8), "borrowed").
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
				m.ExpectCommit()
			},
			want: model.Loan{
				ID: 10, BookID: 1, MemberID: 2, LoanDate: day(1), DueDate: day(8),
				Status: model.LoanStatusBorrowed, BookTitle: "Dune", MemberName: "Alice Smith",
			},
		},
		{
			name: "no copies left",
			mockBehavior: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectQuery(q(lockBook)).WithArgs(1).
					WillReturnRows(sqlmock.NewRows(bookCols).AddRow(1, "Dune", "Herbert", "9780441013593", nil, nil, 1, 0))
				m.ExpectQuery(q(lockMember)).WithArgs(2).
					WillReturnRows(sqlmock.NewRows(memberCols).AddRow(2, 5, "Student", "asmith", "Alice", "Smith", "", 1))
				m.ExpectRollback()
			},
			wantErr: errs.ErrBookUnavailable,
		},
		{
			name: "book not found",
			mockBehavior: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectQuery(q(lockBook)).WithArgs(1).WillReturnRows(sqlmock.NewRows(bookCols))
				m.ExpectRollback()
			},
			wantErr: errs.ErrNotFound,
		},
		{
			name: "member not found",
			mockBehavior: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectQuery(q(lockBook)).WithArgs(1).
					WillReturnRows(sqlmock.NewRows(bookCols).AddRow(1, "Dune", "Herbert", "9780441013593", nil, nil, 1, 1))
				m.ExpectQuery(q(lockMember)).WithArgs(2).WillReturnRows(sqlmock.NewRows(memberCols))
				m.ExpectRollback()
			},
			wantErr: errs.ErrMemberNotFound,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo, mock := newRepo(t)
			tt.mockBehavior(mock)

			got, err := repo.BorrowBook(context.Background(), model.NewLoan(1, 2, day(1), day(8)))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, got)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_ReturnLoan(t *testing.T) {
	t.Parallel()

	t.Run("late return issues a fine", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(q(lockLoan)).WithArgs(3).
			WillReturnRows(sqlmock.NewRows(loanCols).AddRow(3, 1, 2, day(1), day(8), nil, "borrowed", "Dune", "Alice Smith"))
		mock.ExpectExec(q(`UPDATE loans SET status = $1, return_date = $2 WHERE id = $3`)).
			WithArgs("returned", day(11), 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(q(lockBook)).WithArgs(1).
			WillReturnRows(sqlmock.NewRows(bookCols).AddRow(1, "Dune", "Herbert", "9780441013593", nil, nil, 1, 0))
		mock.ExpectExec(q(`UPDATE books SET copies_available = $1 WHERE id = $2`)).WithArgs(1, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(q(`INSERT INTO fines (loan_id,amount,paid) VALUES ($1,$2,$3) RETURNING id`)).
			WithArgs(3, 15, false).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
		mock.ExpectCommit()

		res, err := repo.ReturnLoan(context.Background(), 3, day(11))
		require.NoError(t, err)
		require.Equal(t, model.LoanStatusReturned, res.Loan.Status)
		require.Equal(t, day(11), *res.Loan.ReturnDate)
		require.NotNil(t, res.Fine)
		require.Equal(t, int64(4), res.Fine.ID)
		require.Equal(t, 15, res.Fine.Amount)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("on time", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(q(lockLoan)).WithArgs(3).
			WillReturnRows(sqlmock.NewRows(loanCols).AddRow(3, 1, 2, day(1), day(8), nil, "borrowed", "Dune", "Alice Smith"))
		mock.ExpectExec(q(`UPDATE loans`)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(q(lockBook)).WithArgs(1).
			WillReturnRows(sqlmock.NewRows(bookCols).AddRow(1, "Dune", "Herbert", "9780441013593", nil, nil, 2, 1))
		mock.ExpectExec(q(`UPDATE books`)).WithArgs(2, 1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		res, err := repo.ReturnLoan(context.Background(), 3, day(8))
		require.NoError(t, err)
		require.Nil(t, res.Fine)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second return is rejected", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(q(lockLoan)).WithArgs(3).
			WillReturnRows(sqlmock.NewRows(loanCols).AddRow(3, 1, 2, day(1), day(8), day(9), "returned", "Dune", "Alice Smith"))
		mock.ExpectRollback()

		_, err := repo.ReturnLoan(context.Background(), 3, day(20))
		require.ErrorIs(t, err, errs.ErrLoanAlreadyReturned)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_DeleteMember(t *testing.T) {
	t.Parallel()

	t.Run("active loans block delete", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(q(lockMember)).WithArgs(2).
			WillReturnRows(sqlmock.NewRows(memberCols).AddRow(2, 5, "Student", "asmith", "Alice", "Smith", "", 2))
		mock.ExpectRollback()

		m, err := repo.DeleteMember(context.Background(), 2)
		var active *errs.ActiveLoansError
		require.ErrorAs(t, err, &active)
		require.Equal(t, 2, active.Count)
		require.Equal(t, "Alice Smith", m.DisplayName())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(q(lockMember)).WithArgs(2).
			WillReturnRows(sqlmock.NewRows(memberCols).AddRow(2, nil, "Teacher", "", "", "", "", 0))
		mock.ExpectExec(q(`DELETE FROM members WHERE id = $1`)).WithArgs(2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		m, err := repo.DeleteMember(context.Background(), 2)
		require.NoError(t, err)
		require.Equal(t, "Unknown", m.DisplayName())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_CreateMember(t *testing.T) {
	t.Parallel()
	user := model.User{Username: "asmith", PasswordHash: "hash", FirstName: "Alice", LastName: "Smith", DateJoined: day(1)}

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(q(`INSERT INTO users`)).
			WithArgs("asmith", "hash", "Alice", "Smith", "", day(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
		mock.ExpectQuery(q(`INSERT INTO members (user_id,member_type) VALUES ($1,$2) RETURNING id`)).
			WithArgs(5, "Teacher").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
		mock.ExpectCommit()

		m, err := repo.CreateMember(context.Background(), user, model.MemberTypeTeacher)
		require.NoError(t, err)
		require.Equal(t, int64(9), m.ID)
		require.Equal(t, int64(5), *m.UserID)
		require.Equal(t, model.MemberTypeTeacher, m.MemberType)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("username taken", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(q(`INSERT INTO users`)).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_username_key"})
		mock.ExpectRollback()

		_, err := repo.CreateMember(context.Background(), user, model.MemberTypeStudent)
		require.ErrorIs(t, err, errs.ErrUsernameTaken)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_Books(t *testing.T) {
	t.Parallel()

	t.Run("create starts fully available", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectQuery(q(`INSERT INTO books`)).
			WithArgs("Dune", "Herbert", "9780441013593", nil, nil, 3, 3).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		b, err := repo.CreateBook(context.Background(), model.Book{Title: "Dune", Author: "Herbert", ISBN: "9780441013593", CopiesTotal: 3})
		require.NoError(t, err)
		require.Equal(t, int64(1), b.ID)
		require.Equal(t, 3, b.CopiesAvailable)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate isbn", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectQuery(q(`INSERT INTO books`)).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "books_isbn_key"})

		_, err := repo.CreateBook(context.Background(), model.Book{Title: "Dune", ISBN: "9780441013593", CopiesTotal: 1})
		require.ErrorIs(t, err, errs.ErrDuplicateISBN)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("edit keeps copies on loan", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q(lockBook)).WithArgs(1).
			WillReturnRows(sqlmock.NewRows(bookCols).AddRow(1, "Dune", "Herbert", "9780441013593", nil, nil, 5, 2))
		mock.ExpectExec(q(`UPDATE books SET title = $1`)).
			WithArgs("Dune Messiah", "Herbert", "9780441013593", nil, nil, 7, 4, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		b, err := repo.UpdateBook(context.Background(), 1, model.BookForm{
			Title: "Dune Messiah", Author: "Herbert", ISBN: "9780441013593", CopiesTotal: 7,
		})
		require.NoError(t, err)
		require.Equal(t, 4, b.CopiesAvailable)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("edit below copies on loan", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q(lockBook)).WithArgs(1).
			WillReturnRows(sqlmock.NewRows(bookCols).AddRow(1, "Dune", "Herbert", "9780441013593", nil, nil, 5, 1))
		mock.ExpectRollback()

		_, err := repo.UpdateBook(context.Background(), 1, model.BookForm{
			Title: "Dune", Author: "Herbert", ISBN: "9780441013593", CopiesTotal: 3,
		})
		var fe validate.FieldErrors
		require.ErrorAs(t, err, &fe)
		require.NotEmpty(t, fe.Get("copies_total"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete missing", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectQuery(q(`DELETE FROM books WHERE id = $1 RETURNING`)).WithArgs(8).
			WillReturnRows(sqlmock.NewRows(bookCols))

		_, err := repo.DeleteBook(context.Background(), 8)
		require.ErrorIs(t, err, errs.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_PayFine(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q(lockFine)).WithArgs(4).
			WillReturnRows(sqlmock.NewRows(fineCols).AddRow(4, 3, 15, false, "Dune", "Alice Smith"))
		mock.ExpectExec(q(`UPDATE fines SET paid = $1 WHERE id = $2`)).WithArgs(true, 4).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		f, err := repo.PayFine(context.Background(), 4)
		require.NoError(t, err)
		require.True(t, f.Paid)
		require.Equal(t, 15, f.Amount)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already paid", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q(lockFine)).WithArgs(4).
			WillReturnRows(sqlmock.NewRows(fineCols).AddRow(4, 3, 15, true, "Dune", "Alice Smith"))
		mock.ExpectRollback()

		_, err := repo.PayFine(context.Background(), 4)
		require.ErrorIs(t, err, errs.ErrFineAlreadyPaid)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_Count(t *testing.T) {
	t.Parallel()
	repo, mock := newRepo(t)
	mock.ExpectQuery(q(`SELECT count(*) FROM fines WHERE paid = $1`)).WithArgs(false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(q(`SELECT count(*) FROM books`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	n, err := repo.Count(context.Background(), repository.Fines, true)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = repo.Count(context.Background(), repository.Books, true)
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListLoans(t *testing.T) {
	t.Parallel()
	repo, mock := newRepo(t)
	mock.ExpectQuery(q(`ORDER BY l.loan_date DESC, l.id DESC`)).
		WillReturnRows(sqlmock.NewRows(loanCols).
			AddRow(7, 2, 2, day(9), day(23), nil, "borrowed", "Emma", "Alice Smith").
			AddRow(5, 1, 3, day(9), day(16), day(12), "returned", "Dune", "Bob Stone").
			AddRow(3, 1, 2, day(1), day(8), nil, "borrowed", "Dune", "Alice Smith"))

	loans, err := repo.ListLoans(context.Background())
	require.NoError(t, err)
	require.Len(t, loans, 3)
	ids := []int64{loans[0].ID, loans[1].ID, loans[2].ID}
	require.Equal(t, []int64{7, 5, 3}, ids)
	require.Equal(t, model.LoanStatusReturned, loans[1].Status)
	require.NotNil(t, loans[1].ReturnDate)
	require.Nil(t, loans[2].ReturnDate)
	require.Equal(t, "Alice Smith", loans[2].MemberName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListMembers(t *testing.T) {
	t.Parallel()
	repo, mock := newRepo(t)
	mock.ExpectQuery(q(`(select count(*) from loans l where l.member_id = m.id and l.status = 'borrowed') as active_loans`) +
		`.*` + q(`ORDER BY m.id`)).
		WillReturnRows(sqlmock.NewRows(memberCols).
			AddRow(1, 5, "Student", "asmith", "Alice", "Smith", "a@example.com", 2).
			AddRow(2, nil, "Teacher", "", "", "", "", 0))

	members, err := repo.ListMembers(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, 2, members[0].ActiveLoans)
	require.Equal(t, "Alice Smith", members[0].DisplayName())
	require.Equal(t, 0, members[1].ActiveLoans)
	require.Nil(t, members[1].UserID)
	require.Equal(t, "Unknown", members[1].DisplayName())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListFines(t *testing.T) {
	t.Parallel()

	t.Run("unpaid first", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectQuery(q(`FROM fines f JOIN loans l on l.id = f.loan_id`) + `.*` + q(`ORDER BY f.paid, f.id DESC`)).
			WillReturnRows(sqlmock.NewRows(fineCols).
				AddRow(6, 5, 10, false, "Emma", "Bob Stone").
				AddRow(4, 3, 15, false, "Dune", "Alice Smith").
				AddRow(2, 1, 5, true, "Dune", "Unknown"))

		fines, err := repo.ListFines(context.Background())
		require.NoError(t, err)
		require.Len(t, fines, 3)
		require.Equal(t, int64(6), fines[0].ID)
		require.Equal(t, 15, fines[1].Amount)
		require.True(t, fines[2].Paid)
		require.Equal(t, "Unknown", fines[2].MemberName)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectQuery(q(`ORDER BY f.paid, f.id DESC`)).
			WillReturnRows(sqlmock.NewRows(fineCols))

		fines, err := repo.ListFines(context.Background())
		require.NoError(t, err)
		require.NotNil(t, fines)
		require.Empty(t, fines)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
