package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"bookan/pkg/catalog"
	"bookan/pkg/domain"
	"bookan/pkg/ledger"
)

// Overview is the dashboard state of one principal.
type Overview struct {
	Principal domain.Principal     `json:"principal"`
	Nearby    []domain.BookListing `json:"nearby"`
	MyBooks   catalog.Summary      `json:"myBooks"`
	Loans     LoanStats            `json:"loans"`
	DueSoon   []LoanView           `json:"dueSoon"`
	Unread    int                  `json:"unread"`
}

// Overview gathers the dashboard state of principal.
func (a *App) Overview(ctx context.Context, principal domain.Principal) (Overview, error) {
	if principal.ID == "" {
		return Overview{}, ErrUnauthenticated
	}
	out := Overview{Principal: principal}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out.Nearby = a.Catalog.Nearby(principal.ID)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out.MyBooks = a.Catalog.Summary(principal.ID)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out.Loans = a.Catalog.LoanStats(principal.ID)
		for _, v := range a.Catalog.Loans(principal.ID) {
			if v.Loan.Status == domain.LoanActive && (v.Standing == ledger.StandingDueSoon || v.Standing == ledger.StandingOverdue) {
				out.DueSoon = append(out.DueSoon, v)
			}
		}
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out.Unread = a.Inbox.UnreadCount(principal)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}
