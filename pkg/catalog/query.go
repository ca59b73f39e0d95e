package catalog

import (
	"strings"

	"bookan/pkg/domain"
)

// Query selects listings. Zero fields do not constrain the result.
type Query struct {
	// Text is matched case-insensitively as a substring of title or author.
	Text           string
	Status         domain.Availability
	OwnerID        string
	ExcludeOwnerID string
}

// MatchesText reports whether title or author contains text, ignoring case.
// Empty text matches everything. Whitespace is part of the needle.
func MatchesText(b domain.BookListing, text string) bool {
	if text == "" {
		return true
	}
	needle := strings.ToLower(text)
	return strings.Contains(strings.ToLower(b.Title), needle) ||
		strings.Contains(strings.ToLower(b.Author), needle)
}

// Matches reports whether b satisfies every set field of q.
func (q Query) Matches(b domain.BookListing) bool {
	if q.Status != "" && b.Status != q.Status {
		return false
	}
	if q.OwnerID != "" && b.Owner.ID != q.OwnerID {
		return false
	}
	if q.ExcludeOwnerID != "" && b.Owner.ID == q.ExcludeOwnerID {
		return false
	}
	return MatchesText(b, q.Text)
}

// Filter returns the listings matching q in their original order.
func Filter(listings []domain.BookListing, q Query) []domain.BookListing {
	res := make([]domain.BookListing, 0, len(listings))
	for _, b := range listings {
		if q.Matches(b) {
			res = append(res, b)
		}
	}
	return res
}

// Summary counts listings by availability.
type Summary struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Lent      int `json:"lent"`
}

func Summarize(listings []domain.BookListing) Summary {
	s := Summary{Total: len(listings)}
	for _, b := range listings {
		switch b.Status {
		case domain.StatusAvailable:
			s.Available++
		case domain.StatusLent:
			s.Lent++
		}
	}
	return s
}
