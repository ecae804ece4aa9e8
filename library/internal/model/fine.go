package model

import "github.com/Astemirdum/library-desk/library/internal/errs"

type Fine struct {
	ID     int64 `json:"id" db:"id"`
	LoanID int64 `json:"loanId" db:"loan_id"`
	Amount int   `json:"amount" db:"amount"`
	Paid   bool  `json:"paid" db:"paid"`

	BookTitle  string `json:"bookTitle" db:"book_title"`
	MemberName string `json:"memberName" db:"member_name"`
}

// NewFine returns nil for loans returned on time.
func NewFine(loan Loan) *Fine {
	amount := loan.CalculateFine()
	if amount <= 0 {
		return nil
	}
	return &Fine{
		LoanID:     loan.ID,
		Amount:     amount,
		BookTitle:  loan.BookTitle,
		MemberName: loan.MemberName,
	}
}

func (f *Fine) MarkAsPaid() error {
	if f.Paid {
		return errs.ErrFineAlreadyPaid
	}
	f.Paid = true
	return nil
}
