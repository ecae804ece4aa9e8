package handler

import (
	"context"
	"mime/multipart"
	"time"

	"github.com/Astemirdum/library-desk/library/internal/model"
	"github.com/Astemirdum/library-desk/library/internal/service"
	"github.com/Astemirdum/library-desk/library/internal/upload"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LibraryService interface {
	AuthService
	BookService
	MemberService
	LoanService
	FineService

	Dashboard(ctx context.Context) (model.Dashboard, error)
}

type AuthService interface {
	Register(ctx context.Context, form model.RegisterForm) (model.Member, error)
	Authenticate(ctx context.Context, username, password string) (model.User, error)
}

type BookService interface {
	ListBooks(ctx context.Context, page, size int) (model.ListBooks, error)
	GetBook(ctx context.Context, id int64) (model.Book, error)
	CreateBook(ctx context.Context, form model.BookForm) (model.Book, error)
	UpdateBook(ctx context.Context, id int64, form model.BookForm) (model.Book, error)
	DeleteBook(ctx context.Context, id int64) (model.Book, error)
}

type MemberService interface {
	ListMembers(ctx context.Context) ([]model.Member, error)
	GetMember(ctx context.Context, id int64) (model.Member, error)
	DeleteMember(ctx context.Context, id int64) (model.Member, error)
}

type LoanService interface {
	Today() time.Time
	NewLoanForm() model.LoanForm
	Borrow(ctx context.Context, bookID int64, form model.LoanForm) (model.Loan, error)
	ReturnLoan(ctx context.Context, id int64) (model.ReturnResult, error)
	ListLoans(ctx context.Context) ([]model.Loan, error)
	GetLoan(ctx context.Context, id int64) (model.Loan, error)
}

type FineService interface {
	ListFines(ctx context.Context) ([]model.Fine, error)
	GetFine(ctx context.Context, id int64) (model.Fine, error)
	PayFine(ctx context.Context, id int64) (model.Fine, error)
}

// CoverStore keeps uploaded book covers.
type CoverStore interface {
	SaveCover(fh *multipart.FileHeader) (string, error)
	RemoveCover(path string) error
	Root() string
}

var (
	_ LibraryService = (*service.Service)(nil)
	_ CoverStore     = (*upload.Store)(nil)
)
