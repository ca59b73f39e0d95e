package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"bookan/internal/ratelimit"
	"bookan/internal/util"
	"bookan/pkg/catalog"
	"bookan/pkg/domain"
	"bookan/pkg/events"
	"bookan/pkg/ledger"
	"bookan/pkg/storage"
)

// Catalog owns the listings and the loan ledger.
type Catalog struct {
	deps
	books       *catalog.Store
	loans       *ledger.Ledger
	objects     storage.ObjectStore
	limiter     ratelimit.Limiter
	latency     time.Duration
	dueSoonDays int

	// mu makes steps that touch both listings and loans atomic.
	mu sync.Mutex
}

// CoverUpload is an image handed over by the capture flow.
type CoverUpload struct {
	Data        io.Reader
	Size        int64
	ContentType string
}

// ListingInput is the data collected when a principal offers a book.
type ListingInput struct {
	ISBN        string           `json:"isbn" validate:"max=32"`
	Title       string           `json:"title" validate:"required,max=300"`
	Author      string           `json:"author" validate:"max=200"`
	Condition   domain.Condition `json:"condition" validate:"omitempty,oneof=New Good Worn"`
	Description string           `json:"description" validate:"max=4000"`
	CoverURL    string           `json:"coverUrl" validate:"omitempty,url"`
	Location    *domain.GeoPoint `json:"location"`
	Cover       *CoverUpload     `json:"-"`
}

// ListAll returns every listing in insertion order.
func (c *Catalog) ListAll() []domain.BookListing {
	return c.books.List()
}

// Get returns one listing.
func (c *Catalog) Get(id string) (domain.BookListing, error) {
	b, ok := c.books.Get(id)
	if !ok {
		return domain.BookListing{}, fmt.Errorf("%w: book %s", ErrNotFound, id)
	}
	return b, nil
}

// AddListing offers a new book owned by owner. The listing starts Available.
func (c *Catalog) AddListing(ctx context.Context, owner domain.Principal, in ListingInput) (domain.BookListing, error) {
	if owner.ID == "" {
		return domain.BookListing{}, ErrUnauthenticated
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.CoverURL = strings.TrimSpace(in.CoverURL)
	if err := c.checkInput(in); err != nil {
		return domain.BookListing{}, err
	}
	if in.Condition == "" {
		in.Condition = domain.ConditionGood
	}

	id := c.newID()
	coverURL := in.CoverURL
	coverKey := ""
	if in.Cover != nil {
		key := "covers/" + id
		if err := c.objects.Put(ctx, key, in.Cover.Data, in.Cover.Size, in.Cover.ContentType); err != nil {
			return domain.BookListing{}, fmt.Errorf("store cover: %w", err)
		}
		coverURL = c.objects.URL(key)
		coverKey = key
	}

	listing := domain.BookListing{
		ID:          id,
		ISBN:        in.ISBN,
		Title:       in.Title,
		Author:      in.Author,
		Condition:   in.Condition,
		Status:      domain.StatusAvailable,
		Description: util.PlainText(in.Description),
		CoverURL:    coverURL,
		Owner: domain.Owner{
			ID:   owner.ID,
			Name: owner.Name,
			Kind: domain.OwnerKindForRole(owner.Role),
		},
		CreatedAt: c.now().UTC(),
	}
	if in.Location != nil {
		listing.Owner.Location = *in.Location
	}
	if err := c.books.Add(listing); err != nil {
		if coverKey != "" {
			if delErr := c.objects.Delete(ctx, coverKey); delErr != nil {
				c.log(ctx).Warn("delete orphaned cover failed", "key", coverKey, "err", delErr)
			}
		}
		if errors.Is(err, catalog.ErrDuplicateID) {
			return domain.BookListing{}, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return domain.BookListing{}, err
	}
	c.log(ctx).Info("listing added", "book_id", listing.ID, "owner_id", owner.ID)
	c.publish(ctx, events.Event{
		Type:      events.ListingAdded,
		ActorID:   owner.ID,
		SubjectID: listing.ID,
		Payload:   listing,
	})
	return listing, nil
}

// Search returns listings whose title or author contains query, ignoring case.
// An empty query returns the whole catalog. The query is not trimmed. The configured latency is waited
// out first and the call stops early when ctx is done.
func (c *Catalog) Search(ctx context.Context, query string) ([]domain.BookListing, error) {
	if c.latency > 0 {
		timer := time.NewTimer(c.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}
	return catalog.Filter(c.books.List(), catalog.Query{Text: query}), nil
}

// NewSearchView returns a view that only keeps the results of the latest search.
func (c *Catalog) NewSearchView() *catalog.SearchView {
	return catalog.NewSearchView(c.Search)
}

// ListMine returns the listings owned by principalID.
func (c *Catalog) ListMine(principalID string) []domain.BookListing {
	return c.books.ListByOwner(principalID)
}

// Nearby returns the listings not owned by principalID.
func (c *Catalog) Nearby(principalID string) []domain.BookListing {
	return catalog.Filter(c.books.List(), catalog.Query{ExcludeOwnerID: principalID})
}

// Query applies q to the whole catalog.
func (c *Catalog) Query(q catalog.Query) []domain.BookListing {
	return catalog.Filter(c.books.List(), q)
}

// Summary counts the listings owned by principalID.
func (c *Catalog) Summary(principalID string) catalog.Summary {
	return catalog.Summarize(c.books.ListByOwner(principalID))
}
