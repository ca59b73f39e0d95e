package ledger

import (
	"time"

	"bookan/pkg/domain"
)

const day = 24 * time.Hour

// NewRecord builds a Requested loan for book, due one loan period after now.
func NewRecord(id string, book domain.BookListing, requesterID string, now time.Time) domain.LoanRecord {
	return domain.LoanRecord{
		ID:          id,
		BookID:      book.ID,
		Book:        book,
		RequesterID: requesterID,
		OwnerID:     book.Owner.ID,
		Status:      domain.LoanRequested,
		RequestedAt: now,
		DueDate:     now.Add(domain.LoanPeriod),
		UpdatedAt:   now,
	}
}

// CanTransition reports whether a loan may move from one status to another.
// Requested -> Active | Rejected, Active -> Completed. Completed and
// Rejected are terminal.
func CanTransition(from, to domain.LoanStatus) bool {
	switch from {
	case domain.LoanRequested:
		return to == domain.LoanActive || to == domain.LoanRejected
	case domain.LoanActive:
		return to == domain.LoanCompleted
	default:
		return false
	}
}

// DaysRemaining returns ceil((due - now) / 1 day). Negative values are the
// number of days overdue.
func DaysRemaining(loan domain.LoanRecord, now time.Time) int {
	d := loan.DueDate.Sub(now)
	days := d / day
	if d%day > 0 {
		days++
	}
	return int(days)
}

// Standing classifies a loan for display.
type Standing string

const (
	StandingCompleted Standing = "completed"
	StandingRejected  Standing = "rejected"
	StandingOverdue   Standing = "overdue"
	StandingDueSoon   Standing = "due-soon"
	StandingOnTime    Standing = "on-time"
)

// DefaultDueSoonDays is the threshold at or below which a loan is due soon.
const DefaultDueSoonDays = 3

// Classify returns the display standing of loan at now.
func Classify(loan domain.LoanRecord, now time.Time, dueSoonDays int) Standing {
	switch loan.Status {
	case domain.LoanCompleted:
		return StandingCompleted
	case domain.LoanRejected:
		return StandingRejected
	}
	remaining := DaysRemaining(loan, now)
	switch {
	case remaining < 0:
		return StandingOverdue
	case remaining <= dueSoonDays:
		return StandingDueSoon
	default:
		return StandingOnTime
	}
}
