package catalog

import (
	"context"
	"errors"
	"sync"

	"bookan/pkg/domain"
)

// ErrSuperseded is returned by SearchView.Run when a newer run was issued
// before this one resolved. Its results were discarded.
var ErrSuperseded = errors.New("search superseded by a newer query")

// SearchFunc resolves a query to listings.
type SearchFunc func(ctx context.Context, query string) ([]domain.BookListing, error)

// SearchView holds the visible results of the latest issued search. Each run
// cancels the previous one and carries a generation number; only the newest
// generation may update the visible results.
type SearchView struct {
	search SearchFunc

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	loading bool
	query   string
	results []domain.BookListing
}

func NewSearchView(search SearchFunc) *SearchView {
	return &SearchView{search: search}
}

// Run issues query and blocks until it resolves. The returned results are
// visible through Results only when the error is nil.
func (v *SearchView) Run(ctx context.Context, query string) ([]domain.BookListing, error) {
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.gen++
	gen := v.gen
	runCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.loading = true
	v.mu.Unlock()
	defer cancel()

	res, err := v.search(runCtx, query)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return nil, ErrSuperseded
	}
	v.loading = false
	v.cancel = nil
	if err != nil {
		return nil, err
	}
	v.query = query
	v.results = res
	return res, nil
}

// Results returns the query and results of the newest successful run.
func (v *SearchView) Results() (string, []domain.BookListing) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.BookListing, len(v.results))
	copy(out, v.results)
	return v.query, out
}

// Loading reports whether the newest run is still in flight.
func (v *SearchView) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}
