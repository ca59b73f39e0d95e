package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"bookan/pkg/domain"
)

func listing(id, title, author string, status domain.Availability, ownerID string) domain.BookListing {
	return domain.BookListing{
		ID:     id,
		Title:  title,
		Author: author,
		Status: status,
		Owner:  domain.Owner{ID: ownerID},
	}
}

func seeded(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	for _, b := range []domain.BookListing{
		listing("1", "Le Nom de la Rose", "Umberto Eco", domain.StatusAvailable, "2"),
		listing("2", "L'Étranger", "Albert Camus", domain.StatusAvailable, "3"),
		listing("3", "Le Petit Prince", "Antoine de Saint-Exupéry", domain.StatusLent, "4"),
		listing("4", "1984", "George Orwell", domain.StatusAvailable, "me"),
	} {
		if err := s.Add(b); err != nil {
			t.Fatalf("add %s: %v", b.ID, err)
		}
	}
	return s
}

func ids(listings []domain.BookListing) string {
	parts := make([]string, 0, len(listings))
	for _, b := range listings {
		parts = append(parts, b.ID)
	}
	return strings.Join(parts, ",")
}

func TestStoreKeepsInsertionOrderAndRejectsDuplicates(t *testing.T) {
	s := seeded(t)
	if got := ids(s.List()); got != "1,2,3,4" {
		t.Fatalf("unexpected order %s", got)
	}
	if err := s.Add(listing("2", "Other", "Other", domain.StatusAvailable, "x")); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	b, _ := s.Get("2")
	if b.Title != "L'Étranger" {
		t.Fatalf("duplicate add must not replace listing, got %q", b.Title)
	}
	if s.Len() != 4 {
		t.Fatalf("expected 4 listings, got %d", s.Len())
	}
}

func TestStoreListIsSnapshot(t *testing.T) {
	s := seeded(t)
	snap := s.List()
	snap[0].Title = "mutated"
	if b, _ := s.Get("1"); b.Title == "mutated" {
		t.Fatalf("list must return a copy")
	}
}

func TestStoreSetStatusAndListByOwner(t *testing.T) {
	s := seeded(t)
	b, ok := s.SetStatus("4", domain.StatusLent)
	if !ok || b.Status != domain.StatusLent {
		t.Fatalf("set status: %+v ok=%v", b, ok)
	}
	if _, ok := s.SetStatus("nope", domain.StatusLent); ok {
		t.Fatalf("unknown id must report false")
	}
	mine := s.ListByOwner("me")
	if len(mine) != 1 || mine[0].Status != domain.StatusLent {
		t.Fatalf("unexpected owner listings: %+v", mine)
	}
}

func TestFilterTextIsCaseInsensitiveOnTitleOrAuthor(t *testing.T) {
	all := seeded(t).List()
	cases := map[string]string{
		"orwell":   "4",
		"LE ":      "1,3",
		"camus":    "2",
		"zzz":      "",
		"":         "1,2,3,4",
		"   ":      "",
		" 1984":    "",
		"1984 ":    "",
		"étranger": "2",
	}
	for text, want := range cases {
		if got := ids(Filter(all, Query{Text: text})); got != want {
			t.Fatalf("Filter(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestFilterResultsAlwaysMatch(t *testing.T) {
	all := seeded(t).List()
	for _, q := range []string{"e", "o", "pr", "19", "Eco", " ", " 1984", "de "} {
		for _, b := range Filter(all, Query{Text: q}) {
			lq := strings.ToLower(q)
			if !strings.Contains(strings.ToLower(b.Title), lq) && !strings.Contains(strings.ToLower(b.Author), lq) {
				t.Fatalf("listing %s does not match %q", b.ID, q)
			}
		}
	}
}

func TestFilterByStatusAndOwner(t *testing.T) {
	all := seeded(t).List()
	if got := ids(Filter(all, Query{Status: domain.StatusLent})); got != "3" {
		t.Fatalf("lent filter: %s", got)
	}
	if got := ids(Filter(all, Query{OwnerID: "me"})); got != "4" {
		t.Fatalf("owner filter: %s", got)
	}
	if got := ids(Filter(all, Query{ExcludeOwnerID: "me", Status: domain.StatusAvailable})); got != "1,2" {
		t.Fatalf("exclude owner filter: %s", got)
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(seeded(t).List())
	if got != (Summary{Total: 4, Available: 3, Lent: 1}) {
		t.Fatalf("unexpected summary %+v", got)
	}
	if Summarize(nil) != (Summary{}) {
		t.Fatalf("empty summary should be zero")
	}
}

func TestSearchViewDiscardsStaleResults(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	view := NewSearchView(func(ctx context.Context, q string) ([]domain.BookListing, error) {
		if q == "slow" {
			close(started)
			<-release
			return []domain.BookListing{listing("old", "Old", "Old", domain.StatusAvailable, "x")}, nil
		}
		return []domain.BookListing{listing("new", "New", "New", domain.StatusAvailable, "x")}, nil
	})

	slowErr := make(chan error, 1)
	go func() {
		_, err := view.Run(context.Background(), "slow")
		slowErr <- err
	}()
	<-started

	res, err := view.Run(context.Background(), "fast")
	if err != nil {
		t.Fatalf("fast run: %v", err)
	}
	if ids(res) != "new" {
		t.Fatalf("unexpected fast results %s", ids(res))
	}
	close(release)
	if err := <-slowErr; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected slow run to be superseded, got %v", err)
	}

	q, visible := view.Results()
	if q != "fast" || ids(visible) != "new" {
		t.Fatalf("stale results became visible: %q %s", q, ids(visible))
	}
	if view.Loading() {
		t.Fatalf("view should not be loading")
	}
}

func TestSearchViewCancelsPreviousRun(t *testing.T) {
	started := make(chan struct{})
	view := NewSearchView(func(ctx context.Context, q string) ([]domain.BookListing, error) {
		if q == "first" {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, nil
	})
	firstErr := make(chan error, 1)
	go func() {
		_, err := view.Run(context.Background(), "first")
		firstErr <- err
	}()
	<-started
	if view.Loading() != true {
		t.Fatalf("expected loading while first run is in flight")
	}
	if _, err := view.Run(context.Background(), "second"); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if err := <-firstErr; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected first run superseded, got %v", err)
	}
}

func TestSearchViewKeepsPreviousResultsOnError(t *testing.T) {
	fail := false
	view := NewSearchView(func(ctx context.Context, q string) ([]domain.BookListing, error) {
		if fail {
			return nil, fmt.Errorf("boom")
		}
		return []domain.BookListing{listing("1", "A", "B", domain.StatusAvailable, "x")}, nil
	})
	if _, err := view.Run(context.Background(), "a"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	fail = true
	if _, err := view.Run(context.Background(), "b"); err == nil {
		t.Fatalf("expected error")
	}
	q, res := view.Results()
	if q != "a" || ids(res) != "1" {
		t.Fatalf("results should be unchanged after failure: %q %s", q, ids(res))
	}
}
