package kafka

import (
	"strconv"
	"time"
)

type EventType string

const (
	EventMemberRegistered EventType = "MEMBER_REGISTERED"
	EventLoanCreated      EventType = "LOAN_CREATED"
	EventLoanReturned     EventType = "LOAN_RETURNED"
	EventFineIssued       EventType = "FINE_ISSUED"
	EventFinePaid         EventType = "FINE_PAID"
)

// Event is the activity record published for every completed library action.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	MemberID  int64     `json:"memberId,omitempty"`
	BookID    int64     `json:"bookId,omitempty"`
	LoanID    int64     `json:"loanId,omitempty"`
	FineID    int64     `json:"fineId,omitempty"`
	Amount    int       `json:"amount,omitempty"`
	Username  string    `json:"username,omitempty"`
}

// Key groups the events of one loan (or one member) on the same partition.
func (e Event) Key() string {
	switch {
	case e.LoanID != 0:
		return "loan-" + strconv.FormatInt(e.LoanID, 10)
	case e.MemberID != 0:
		return "member-" + strconv.FormatInt(e.MemberID, 10)
	default:
		return string(e.Type)
	}
}
