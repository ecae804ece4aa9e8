package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-desk/library/internal/errs"
	"github.com/Astemirdum/library-desk/library/internal/model"
	"github.com/Astemirdum/library-desk/library/internal/repository"
	repo_mocks "github.com/Astemirdum/library-desk/library/internal/repository/mocks"
	"github.com/Astemirdum/library-desk/library/internal/service"
	"github.com/Astemirdum/library-desk/pkg/auth"
	"github.com/Astemirdum/library-desk/pkg/kafka"
	kafka_mocks "github.com/Astemirdum/library-desk/pkg/kafka/mocks"
	"github.com/Astemirdum/library-desk/pkg/validate"
)

var now = time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC)

func today() time.Time { return model.Today(now) }

func newService(t *testing.T) (*service.Service, *repo_mocks.MockRepository, *kafka_mocks.MockPublisher) {
	t.Helper()
	c := gomock.NewController(t)
	repo := repo_mocks.NewMockRepository(c)
	pub := kafka_mocks.NewMockPublisher(c)
	svc := service.NewService(repo, pub, zap.NewExample(), service.WithClock(func() time.Time { return now }))
	return svc, repo, pub
}

func eventType(want kafka.EventType) gomock.Matcher {
	return eventMatcher(want)
}

type eventMatcher kafka.EventType

func (m eventMatcher) Matches(x interface{}) bool {
	e, ok := x.(kafka.Event)
	return ok && e.Type == kafka.EventType(m) && !e.Timestamp.IsZero()
}

func (m eventMatcher) String() string { return "event " + string(m) }

func TestService_Borrow(t *testing.T) {
	t.Parallel()
	type mockBehavior func(r *repo_mocks.MockRepository, p *kafka_mocks.MockPublisher)

	tests := []struct {
		name         string
		form         model.LoanForm
		mockBehavior mockBehavior
		wantField    string
		wantErr      error
	}{
		{
			name: "ok",
			form: model.LoanForm{MemberID: 2, DueDate: "2024-05-08"},
			mockBehavior: func(r *repo_mocks.MockRepository, p *kafka_mocks.MockPublisher) {
				loan := model.NewLoan(1, 2, today(), today().AddDate(0, 0, 7))
				created := loan
				created.ID = 10
				r.EXPECT().BorrowBook(gomock.Any(), loan).Return(created, nil)
				p.EXPECT().Publish(gomock.Any(), eventType(kafka.EventLoanCreated)).Return(nil)
			},
		},
		{
			name:         "due today",
			form:         model.LoanForm{MemberID: 2, DueDate: "2024-05-01"},
			mockBehavior: func(r *repo_mocks.MockRepository, p *kafka_mocks.MockPublisher) {},
			wantField:    "Due date must be after today.",
		},
		{
			name:         "due in the past",
			form:         model.LoanForm{MemberID: 2, DueDate: "2024-04-01"},
			mockBehavior: func(r *repo_mocks.MockRepository, p *kafka_mocks.MockPublisher) {},
			wantField:    "Due date must be after today.",
		},
		{
			name:         "malformed date",
			form:         model.LoanForm{MemberID: 2, DueDate: "08/05/2024"},
			mockBehavior: func(r *repo_mocks.MockRepository, p *kafka_mocks.MockPublisher) {},
			wantField:    "Enter a valid date.",
		},
		{
			name: "unavailable",
			form: model.LoanForm{MemberID: 2, DueDate: "2024-05-08"},
			mockBehavior: func(r *repo_mocks.MockRepository, p *kafka_mocks.MockPublisher) {
				r.EXPECT().BorrowBook(gomock.Any(), gomock.Any()).Return(model.Loan{}, errs.ErrBookUnavailable)
			},
			wantErr: errs.ErrBookUnavailable,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, repo, pub := newService(t)
			tt.mockBehavior(repo, pub)

			loan, err := svc.Borrow(context.Background(), 1, tt.form)
			switch {
			case tt.wantField != "":
				var fe validate.FieldErrors
				require.ErrorAs(t, err, &fe)
				require.Equal(t, tt.wantField, fe.Get("due_date"))
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
				require.Equal(t, int64(10), loan.ID)
				require.Equal(t, today(), loan.LoanDate)
			}
		})
	}
}

func TestService_ReturnLoan(t *testing.T) {
	t.Parallel()

	t.Run("late return publishes the fine", func(t *testing.T) {
		t.Parallel()
		svc, repo, pub := newService(t)
		ret := today()
		res := model.ReturnResult{
			Loan: model.Loan{ID: 3, BookID: 1, MemberID: 2, DueDate: today().AddDate(0, 0, -3), ReturnDate: &ret, Status: model.LoanStatusReturned},
			Fine: &model.Fine{ID: 4, LoanID: 3, Amount: 15},
		}
		repo.EXPECT().ReturnLoan(gomock.Any(), int64(3), today()).Return(res, nil)
		gomock.InOrder(
			pub.EXPECT().Publish(gomock.Any(), eventType(kafka.EventLoanReturned)).Return(nil),
			pub.EXPECT().Publish(gomock.Any(), eventType(kafka.EventFineIssued)).Return(nil),
		)

		got, err := svc.ReturnLoan(context.Background(), 3)
		require.NoError(t, err)
		require.Equal(t, 15, got.Fine.Amount)
	})

	t.Run("already returned", func(t *testing.T) {
		t.Parallel()
		svc, repo, _ := newService(t)
		repo.EXPECT().ReturnLoan(gomock.Any(), int64(3), today()).Return(model.ReturnResult{}, errs.ErrLoanAlreadyReturned)

		_, err := svc.ReturnLoan(context.Background(), 3)
		require.ErrorIs(t, err, errs.ErrLoanAlreadyReturned)
	})
}

func TestService_Register(t *testing.T) {
	t.Parallel()
	svc, repo, pub := newService(t)

	repo.EXPECT().
		CreateMember(gomock.Any(), gomock.Any(), model.MemberTypeTeacher).
		DoAndReturn(func(_ context.Context, u model.User, mt model.MemberType) (model.Member, error) {
			require.Equal(t, "asmith", u.Username)
			require.Equal(t, "Alice", u.FirstName)
			require.Equal(t, "Van Smith", u.LastName)
			require.True(t, auth.CheckPassword(u.PasswordHash, "s3cret!"))
			require.Equal(t, now, u.DateJoined)
			uid := int64(5)
			return model.Member{ID: 9, UserID: &uid, MemberType: mt, Username: u.Username}, nil
		})
	pub.EXPECT().Publish(gomock.Any(), eventType(kafka.EventMemberRegistered)).Return(nil)

	m, err := svc.Register(context.Background(), model.RegisterForm{
		Username: "asmith", Password: "s3cret!", Name: "Alice Van Smith", MemberType: model.MemberTypeTeacher,
	})
	require.NoError(t, err)
	require.Equal(t, int64(9), m.ID)
	require.Equal(t, model.MemberTypeTeacher, m.MemberType)
}

func TestService_RegisterNameTooLong(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		full string
	}{
		{name: "first name", full: strings.Repeat("a", 151)},
		{name: "last name", full: "Ann " + strings.Repeat("b", 151)},
		{name: "multibyte last name", full: "Ann " + strings.Repeat("ж", 151)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, _, _ := newService(t)

			_, err := svc.Register(context.Background(), model.RegisterForm{
				Username: "asmith", Password: "s3cret!", Name: tt.full, MemberType: model.MemberTypeStudent,
			})

			var fe validate.FieldErrors
			require.ErrorAs(t, err, &fe)
			require.Equal(t, "Ensure each part of the name has at most 150 characters.", fe["name"])
		})
	}

	t.Run("ok. parts at the limit", func(t *testing.T) {
		t.Parallel()
		svc, repo, pub := newService(t)
		full := strings.Repeat("ж", 150) + " " + strings.Repeat("b", 150)
		repo.EXPECT().
			CreateMember(gomock.Any(), gomock.Any(), model.MemberTypeStudent).
			Return(model.Member{ID: 1}, nil)
		pub.EXPECT().Publish(gomock.Any(), eventType(kafka.EventMemberRegistered)).Return(nil)

		_, err := svc.Register(context.Background(), model.RegisterForm{
			Username: "asmith", Password: "s3cret!", Name: full, MemberType: model.MemberTypeStudent,
		})
		require.NoError(t, err)
	})
}

func TestService_Authenticate(t *testing.T) {
	t.Parallel()
	hash, err := auth.HashPassword("s3cret!")
	require.NoError(t, err)
	user := model.User{ID: 5, Username: "asmith", PasswordHash: hash}

	tests := []struct {
		name     string
		password string
		setup    func(r *repo_mocks.MockRepository)
		wantErr  error
	}{
		{
			name:     "ok",
			password: "s3cret!",
			setup: func(r *repo_mocks.MockRepository) {
				r.EXPECT().GetUserByUsername(gomock.Any(), "asmith").Return(user, nil)
				r.EXPECT().TouchLastLogin(gomock.Any(), int64(5), now).Return(nil)
			},
		},
		{
			name:     "wrong password",
			password: "nope",
			setup: func(r *repo_mocks.MockRepository) {
				r.EXPECT().GetUserByUsername(gomock.Any(), "asmith").Return(user, nil)
			},
			wantErr: errs.ErrInvalidCredentials,
		},
		{
			name:     "unknown user",
			password: "s3cret!",
			setup: func(r *repo_mocks.MockRepository) {
				r.EXPECT().GetUserByUsername(gomock.Any(), "asmith").Return(model.User{}, errs.ErrNotFound)
			},
			wantErr: errs.ErrInvalidCredentials,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, repo, _ := newService(t)
			tt.setup(repo)

			got, err := svc.Authenticate(context.Background(), "asmith", tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, int64(5), got.ID)
			require.Equal(t, now, *got.LastLogin)
		})
	}
}

func TestService_PayFine_PublishFailureIsLogged(t *testing.T) {
	t.Parallel()
	svc, repo, pub := newService(t)
	repo.EXPECT().PayFine(gomock.Any(), int64(4)).Return(model.Fine{ID: 4, LoanID: 3, Amount: 15, Paid: true}, nil)
	pub.EXPECT().Publish(gomock.Any(), eventType(kafka.EventFinePaid)).Return(errors.New("broker down"))

	f, err := svc.PayFine(context.Background(), 4)
	require.NoError(t, err)
	require.True(t, f.Paid)
}

func TestService_Dashboard(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		svc, repo, _ := newService(t)
		repo.EXPECT().Count(gomock.Any(), repository.Books, false).Return(12, nil)
		repo.EXPECT().Count(gomock.Any(), repository.Members, false).Return(4, nil)
		repo.EXPECT().Count(gomock.Any(), repository.Loans, false).Return(9, nil)
		repo.EXPECT().Count(gomock.Any(), repository.Fines, false).Return(3, nil)
		repo.EXPECT().Count(gomock.Any(), repository.Fines, true).Return(1, nil)

		d, err := svc.Dashboard(context.Background())
		require.NoError(t, err)
		require.Equal(t, model.Dashboard{TotalBooks: 12, TotalMembers: 4, TotalLoans: 9, TotalFines: 3, UnpaidFines: 1}, d)
	})

	t.Run("count fails", func(t *testing.T) {
		t.Parallel()
		svc, repo, _ := newService(t)
		repo.EXPECT().Count(gomock.Any(), repository.Loans, false).Return(0, errors.New("db down"))
		repo.EXPECT().Count(gomock.Any(), gomock.Any(), gomock.Any()).Return(0, nil).AnyTimes()

		_, err := svc.Dashboard(context.Background())
		require.Error(t, err)
	})
}
