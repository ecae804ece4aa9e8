package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrBookUnavailable     = errors.New("book is not available for borrowing")
	ErrLoanAlreadyReturned = errors.New("loan has already been returned")
	ErrFineAlreadyPaid     = errors.New("fine has already been paid")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrUsernameTaken       = errors.New("a user with that username already exists")
	ErrDuplicateISBN       = errors.New("book with this isbn already exists")
	ErrMemberNotFound      = errors.New("member not found")
)

// ActiveLoansError blocks deleting a member that still holds borrowed books.
type ActiveLoansError struct {
	Count int
}

func (e *ActiveLoansError) Error() string {
	return fmt.Sprintf("member has %d active loan(s)", e.Count)
}
