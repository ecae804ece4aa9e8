package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Astemirdum/library-desk/library/internal/model"
	"github.com/Astemirdum/library-desk/pkg/kafka"
	"github.com/Astemirdum/library-desk/pkg/metrics"
	"github.com/Astemirdum/library-desk/pkg/validate"
)

// NewLoanForm proposes a due date DefaultLoanDays from today.
func (s *Service) NewLoanForm() model.LoanForm {
	return model.NewLoanForm(s.now())
}

// Borrow lends one copy of the book until form.DueDate, which must be after today.
func (s *Service) Borrow(ctx context.Context, bookID int64, form model.LoanForm) (model.Loan, error) {
	due, err := time.Parse(time.DateOnly, form.DueDate)
	if err != nil {
		return model.Loan{}, validate.FieldErrors{"due_date": "Enter a valid date."}
	}
	today := s.Today()
	if !due.After(today) {
		return model.Loan{}, validate.FieldErrors{"due_date": "Due date must be after today."}
	}

	loan := model.NewLoan(bookID, form.MemberID, today, due)
	if err := loan.Validate(); err != nil {
		return model.Loan{}, err
	}
	if loan, err = s.repo.BorrowBook(ctx, loan); err != nil {
		return model.Loan{}, err
	}

	metrics.RecordLoanEvent(string(model.LoanStatusBorrowed))
	s.log.Info("book borrowed",
		zap.Int64("loan", loan.ID),
		zap.Int64("book", loan.BookID),
		zap.Int64("member", loan.MemberID))
	s.publish(ctx, kafka.Event{
		Type:     kafka.EventLoanCreated,
		LoanID:   loan.ID,
		BookID:   loan.BookID,
		MemberID: loan.MemberID,
	})
	return loan, nil
}

// ReturnLoan closes the loan as of today and applies the overdue fine, if any.
func (s *Service) ReturnLoan(ctx context.Context, id int64) (model.ReturnResult, error) {
	res, err := s.repo.ReturnLoan(ctx, id, s.Today())
	if err != nil {
		return model.ReturnResult{}, err
	}

	metrics.RecordLoanEvent(string(model.LoanStatusReturned))
	s.publish(ctx, kafka.Event{
		Type:     kafka.EventLoanReturned,
		LoanID:   res.Loan.ID,
		BookID:   res.Loan.BookID,
		MemberID: res.Loan.MemberID,
	})
	if res.Fine != nil {
		metrics.RecordFine(res.Fine.Amount)
		s.log.Info("fine issued", zap.Int64("loan", res.Loan.ID), zap.Int("amount", res.Fine.Amount))
		s.publish(ctx, kafka.Event{
			Type:     kafka.EventFineIssued,
			LoanID:   res.Loan.ID,
			MemberID: res.Loan.MemberID,
			FineID:   res.Fine.ID,
			Amount:   res.Fine.Amount,
		})
	}
	return res, nil
}

func (s *Service) ListLoans(ctx context.Context) ([]model.Loan, error) {
	return s.repo.ListLoans(ctx)
}

func (s *Service) GetLoan(ctx context.Context, id int64) (model.Loan, error) {
	return s.repo.GetLoan(ctx, id)
}

func (s *Service) ListFines(ctx context.Context) ([]model.Fine, error) {
	return s.repo.ListFines(ctx)
}

func (s *Service) GetFine(ctx context.Context, id int64) (model.Fine, error) {
	return s.repo.GetFine(ctx, id)
}

func (s *Service) PayFine(ctx context.Context, id int64) (model.Fine, error) {
	fine, err := s.repo.PayFine(ctx, id)
	if err != nil {
		return model.Fine{}, err
	}
	s.publish(ctx, kafka.Event{
		Type:   kafka.EventFinePaid,
		LoanID: fine.LoanID,
		FineID: fine.ID,
		Amount: fine.Amount,
	})
	return fine, nil
}
