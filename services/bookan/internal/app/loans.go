package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookan/internal/util"
	"bookan/pkg/domain"
	"bookan/pkg/events"
	"bookan/pkg/ledger"
)

// Direction tells which side of a loan a principal is on.
type Direction string

const (
	Borrowed Direction = "borrowed"
	Lent     Direction = "lent"
)

// LoanView is a loan as seen by one principal.
type LoanView struct {
	Loan          domain.LoanRecord `json:"loan"`
	Direction     Direction         `json:"direction"`
	DaysRemaining int               `json:"daysRemaining"`
	Standing      ledger.Standing   `json:"standing"`
}

// LoanStats counts the loans a principal takes part in.
type LoanStats struct {
	Active    int `json:"active"`
	Lent      int `json:"lent"`
	Borrowed  int `json:"borrowed"`
	Requested int `json:"requested"`
	Completed int `json:"completed"`
}

// RequestLoan records a Requested loan of bookID by requester, due one loan
// period from now. The listing stays Available until the owner approves.
func (c *Catalog) RequestLoan(ctx context.Context, requester domain.Principal, bookID string) (domain.LoanRecord, error) {
	if requester.ID == "" {
		return domain.LoanRecord{}, ErrUnauthenticated
	}

	c.mu.Lock()
	book, ok := c.books.Get(bookID)
	if !ok {
		c.mu.Unlock()
		return domain.LoanRecord{}, fmt.Errorf("%w: book %s", ErrNotFound, bookID)
	}
	if book.Owner.ID == requester.ID {
		c.mu.Unlock()
		return domain.LoanRecord{}, fmt.Errorf("%w: cannot borrow own book", ErrValidation)
	}
	if book.Status != domain.StatusAvailable {
		c.mu.Unlock()
		return domain.LoanRecord{}, fmt.Errorf("%w: %s is %s", ErrUnavailable, bookID, book.Status)
	}
	if c.loans.HasOpen(bookID, requester.ID) {
		c.mu.Unlock()
		return domain.LoanRecord{}, fmt.Errorf("%w: loan already requested", ErrConflict)
	}
	if !c.limiter.Allow(requester.ID) {
		c.mu.Unlock()
		c.log(ctx).Info("loan request throttled", "principal_id", requester.ID)
		return domain.LoanRecord{}, ErrRateLimited
	}
	rec := ledger.NewRecord(util.NewID(), book, requester.ID, c.now().UTC())
	if err := c.loans.Append(rec); err != nil {
		c.mu.Unlock()
		return domain.LoanRecord{}, fmt.Errorf("append loan: %w", err)
	}
	c.mu.Unlock()

	c.log(ctx).Info("loan requested", "loan_id", rec.ID, "book_id", bookID, "principal_id", requester.ID)
	c.publish(ctx, events.Event{Type: events.LoanRequested, ActorID: requester.ID, SubjectID: rec.ID, Payload: rec})
	return rec, nil
}

// ApproveLoan activates a Requested loan and marks the book Lent.
func (c *Catalog) ApproveLoan(ctx context.Context, owner domain.Principal, loanID string) (domain.LoanRecord, error) {
	return c.advance(ctx, owner, loanID, domain.LoanActive, events.LoanApproved)
}

// RejectLoan declines a Requested loan.
func (c *Catalog) RejectLoan(ctx context.Context, owner domain.Principal, loanID string) (domain.LoanRecord, error) {
	return c.advance(ctx, owner, loanID, domain.LoanRejected, events.LoanRejected)
}

// MarkReturned completes an Active loan and makes the book Available again.
func (c *Catalog) MarkReturned(ctx context.Context, owner domain.Principal, loanID string) (domain.LoanRecord, error) {
	return c.advance(ctx, owner, loanID, domain.LoanCompleted, events.LoanReturned)
}

// CancelRequest lets the requester withdraw a loan that is still Requested.
func (c *Catalog) CancelRequest(ctx context.Context, requester domain.Principal, loanID string) (domain.LoanRecord, error) {
	if requester.ID == "" {
		return domain.LoanRecord{}, ErrUnauthenticated
	}
	c.mu.Lock()
	rec, ok := c.loans.Get(loanID)
	if !ok {
		c.mu.Unlock()
		return domain.LoanRecord{}, fmt.Errorf("%w: loan %s", ErrNotFound, loanID)
	}
	if rec.RequesterID != requester.ID {
		c.mu.Unlock()
		return domain.LoanRecord{}, fmt.Errorf("%w: not the requester", ErrForbidden)
	}
	if rec.Status != domain.LoanRequested {
		c.mu.Unlock()
		return domain.LoanRecord{}, fmt.Errorf("%w: cannot cancel %s loan", ErrInvalidTransition, rec.Status)
	}
	rec, err := c.loans.Transition(loanID, domain.LoanRejected, c.now().UTC())
	c.mu.Unlock()
	if err != nil {
		return domain.LoanRecord{}, translateLedgerErr(err, loanID)
	}
	c.log(ctx).Info("loan request cancelled", "loan_id", loanID, "principal_id", requester.ID)
	c.publish(ctx, events.Event{Type: events.LoanRejected, ActorID: requester.ID, SubjectID: loanID, Payload: rec})
	return rec, nil
}

// advance applies an owner-side transition and keeps the listing status in step.
func (c *Catalog) advance(ctx context.Context, owner domain.Principal, loanID string, to domain.LoanStatus, eventType string) (domain.LoanRecord, error) {
	if owner.ID == "" {
		return domain.LoanRecord{}, ErrUnauthenticated
	}
	c.mu.Lock()
	rec, ok := c.loans.Get(loanID)
	if !ok {
		c.mu.Unlock()
		return domain.LoanRecord{}, fmt.Errorf("%w: loan %s", ErrNotFound, loanID)
	}
	if rec.OwnerID != owner.ID {
		c.mu.Unlock()
		return domain.LoanRecord{}, fmt.Errorf("%w: not the owner", ErrForbidden)
	}
	if !ledger.CanTransition(rec.Status, to) {
		c.mu.Unlock()
		return domain.LoanRecord{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, to)
	}
	if to == domain.LoanActive {
		book, ok := c.books.Get(rec.BookID)
		if !ok {
			c.mu.Unlock()
			return domain.LoanRecord{}, fmt.Errorf("%w: book %s", ErrNotFound, rec.BookID)
		}
		if book.Status != domain.StatusAvailable {
			c.mu.Unlock()
			return domain.LoanRecord{}, fmt.Errorf("%w: %s is %s", ErrUnavailable, book.ID, book.Status)
		}
	}
	rec, err := c.loans.Transition(loanID, to, c.now().UTC())
	if err != nil {
		c.mu.Unlock()
		return domain.LoanRecord{}, translateLedgerErr(err, loanID)
	}
	switch to {
	case domain.LoanActive:
		c.books.SetStatus(rec.BookID, domain.StatusLent)
	case domain.LoanCompleted:
		c.books.SetStatus(rec.BookID, domain.StatusAvailable)
	}
	c.mu.Unlock()

	c.log(ctx).Info("loan status changed", "loan_id", loanID, "status", to, "principal_id", owner.ID)
	c.publish(ctx, events.Event{Type: eventType, ActorID: owner.ID, SubjectID: loanID, Payload: rec})
	return rec, nil
}

func translateLedgerErr(err error, loanID string) error {
	switch {
	case errors.Is(err, ledger.ErrUnknownLoan):
		return fmt.Errorf("%w: loan %s", ErrNotFound, loanID)
	case errors.Is(err, ledger.ErrInvalidTransition):
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	default:
		return err
	}
}

// LedgerLen returns the number of recorded loans.
func (c *Catalog) LedgerLen() int {
	return c.loans.Len()
}

// Loan returns one loan record.
func (c *Catalog) Loan(id string) (domain.LoanRecord, error) {
	rec, ok := c.loans.Get(id)
	if !ok {
		return domain.LoanRecord{}, fmt.Errorf("%w: loan %s", ErrNotFound, id)
	}
	return rec, nil
}

// DaysRemaining returns the whole days left until the loan is due, rounded up.
// Negative values count days overdue.
func (c *Catalog) DaysRemaining(loan domain.LoanRecord, now time.Time) int {
	return ledger.DaysRemaining(loan, now)
}

// Classify returns the display standing of loan at now.
func (c *Catalog) Classify(loan domain.LoanRecord, now time.Time) ledger.Standing {
	return ledger.Classify(loan, now, c.dueSoonDays)
}

// Loans returns the loans principalID borrowed or lent, in request order.
func (c *Catalog) Loans(principalID string) []LoanView {
	now := c.now()
	recs := c.loans.Involving(principalID)
	views := make([]LoanView, 0, len(recs))
	for _, rec := range recs {
		dir := Borrowed
		if rec.OwnerID == principalID {
			dir = Lent
		}
		views = append(views, LoanView{
			Loan:          rec,
			Direction:     dir,
			DaysRemaining: ledger.DaysRemaining(rec, now),
			Standing:      ledger.Classify(rec, now, c.dueSoonDays),
		})
	}
	return views
}

// LoanStats counts the loans of principalID.
func (c *Catalog) LoanStats(principalID string) LoanStats {
	var s LoanStats
	for _, rec := range c.loans.Involving(principalID) {
		switch rec.Status {
		case domain.LoanRequested:
			s.Requested++
		case domain.LoanActive:
			s.Active++
			if rec.OwnerID == principalID {
				s.Lent++
			} else {
				s.Borrowed++
			}
		case domain.LoanCompleted:
			s.Completed++
		}
	}
	return s
}
