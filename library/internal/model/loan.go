package model

import (
	"time"

	"github.com/Astemirdum/library-desk/library/internal/errs"
	"github.com/Astemirdum/library-desk/pkg/validate"
)

type LoanStatus string

const (
	LoanStatusBorrowed LoanStatus = "borrowed"
	LoanStatusReturned LoanStatus = "returned"
)

// FineDailyRate is charged per day a loan is returned after its due date.
const FineDailyRate = 5

// DefaultLoanDays is the due date offered by the borrow form.
const DefaultLoanDays = 7

type Loan struct {
	ID         int64      `json:"id" db:"id"`
	BookID     int64      `json:"bookId" db:"book_id"`
	MemberID   int64      `json:"memberId" db:"member_id"`
	LoanDate   time.Time  `json:"loanDate" db:"loan_date"`
	DueDate    time.Time  `json:"dueDate" db:"due_date"`
	ReturnDate *time.Time `json:"returnDate,omitempty" db:"return_date"`
	Status     LoanStatus `json:"status" db:"status"`

	BookTitle  string `json:"bookTitle" db:"book_title"`
	MemberName string `json:"memberName" db:"member_name"`
}

func NewLoan(bookID, memberID int64, loanDate, dueDate time.Time) Loan {
	return Loan{
		BookID:   bookID,
		MemberID: memberID,
		LoanDate: Today(loanDate),
		DueDate:  Today(dueDate),
		Status:   LoanStatusBorrowed,
	}
}

func (l Loan) Validate() error {
	if !l.DueDate.After(l.LoanDate) {
		return validate.FieldErrors{"due_date": "Due date must be after the loan date."}
	}
	return nil
}

func (l Loan) IsReturned() bool {
	return l.Status == LoanStatusReturned
}

func (l Loan) IsOverdue(today time.Time) bool {
	return !l.IsReturned() && DaysBetween(l.DueDate, today) > 0
}

// MarkReturned closes the loan. A loan can be returned only once.
func (l *Loan) MarkReturned(on time.Time) error {
	if l.IsReturned() {
		return errs.ErrLoanAlreadyReturned
	}
	d := Today(on)
	l.ReturnDate = &d
	l.Status = LoanStatusReturned
	return nil
}

// CalculateFine charges FineDailyRate for every day past the due date.
func (l Loan) CalculateFine() int {
	if l.ReturnDate == nil {
		return 0
	}
	days := DaysBetween(l.DueDate, *l.ReturnDate)
	if days <= 0 {
		return 0
	}
	return days * FineDailyRate
}

type LoanForm struct {
	MemberID int64  `form:"member" validate:"required"`
	DueDate  string `form:"due_date" validate:"required,datetime=2006-01-02"`
}

func NewLoanForm(today time.Time) LoanForm {
	return LoanForm{DueDate: Today(today).AddDate(0, 0, DefaultLoanDays).Format(time.DateOnly)}
}

type ReturnResult struct {
	Loan Loan  `json:"loan"`
	Fine *Fine `json:"fine,omitempty"`
}
