package app

import (
	"context"
	"errors"
	"fmt"

	"bookan/internal/util"
	"bookan/pkg/catalog"
	"bookan/pkg/domain"
)

// demoListings is the starter catalog shown around central Paris.
var demoListings = []domain.BookListing{
	{
		ID:          "1",
		ISBN:        "9782070408504",
		Title:       "Le Nom de la Rose",
		Author:      "Umberto Eco",
		CoverURL:    "https://images.unsplash.com/photo-1543002588-bfa74002ed7e?w=300&h=400&fit=crop",
		Condition:   domain.ConditionGood,
		Status:      domain.StatusAvailable,
		Description: "Roman historique captivant dans une abbaye médiévale.",
		Owner: domain.Owner{
			ID:         "2",
			Name:       "Marie Dubois",
			Kind:       domain.OwnerIndividual,
			Location:   domain.GeoPoint{Lat: 48.8566, Lng: 2.3522},
			DistanceKm: 0.8,
		},
	},
	{
		ID:          "2",
		ISBN:        "9782070413119",
		Title:       "L'Étranger",
		Author:      "Albert Camus",
		CoverURL:    "https://images.unsplash.com/photo-1512820790803-83ca734da794?w=300&h=400&fit=crop",
		Condition:   domain.ConditionNew,
		Status:      domain.StatusAvailable,
		Description: "Chef-d'œuvre de la littérature française du XXe siècle.",
		Owner: domain.Owner{
			ID:         "3",
			Name:       "Bibliothèque Forney",
			Kind:       domain.OwnerLibrary,
			Location:   domain.GeoPoint{Lat: 48.8534, Lng: 2.3488},
			DistanceKm: 1.2,
		},
	},
	{
		ID:          "3",
		ISBN:        "9782070360024",
		Title:       "Le Petit Prince",
		Author:      "Antoine de Saint-Exupéry",
		CoverURL:    "https://images.unsplash.com/photo-1481627834876-b7833e8f5570?w=300&h=400&fit=crop",
		Condition:   domain.ConditionGood,
		Status:      domain.StatusAvailable,
		Description: "Un conte poétique et philosophique intemporel.",
		Owner: domain.Owner{
			ID:         "4",
			Name:       "Jean Martin",
			Kind:       domain.OwnerIndividual,
			Location:   domain.GeoPoint{Lat: 48.8606, Lng: 2.3376},
			DistanceKm: 2.1,
		},
	},
	{
		ID:          "4",
		ISBN:        "9782070417759",
		Title:       "1984",
		Author:      "George Orwell",
		CoverURL:    "https://images.unsplash.com/photo-1544947950-fa07a98d237f?w=300&h=400&fit=crop",
		Condition:   domain.ConditionGood,
		Status:      domain.StatusAvailable,
		Description: "Dystopie prophétique sur la surveillance et le totalitarisme.",
		Owner: domain.Owner{
			ID:         "5",
			Name:       "Sophie Durand",
			Kind:       domain.OwnerIndividual,
			Location:   domain.GeoPoint{Lat: 48.8529, Lng: 2.3499},
			DistanceKm: 1.5,
		},
	},
}

// SeedDemoCatalog loads the starter listings. Listings already present are skipped.
func (a *App) SeedDemoCatalog(ctx context.Context) (int, error) {
	now := a.Catalog.now().UTC()
	added := 0
	for _, b := range demoListings {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		b.CreatedAt = now
		if err := a.Catalog.books.Add(b); err != nil {
			if errors.Is(err, catalog.ErrDuplicateID) {
				continue
			}
			return added, fmt.Errorf("seed %s: %w", b.ID, err)
		}
		added++
	}
	util.LoggerFromContext(ctx, a.logger).Info("demo catalog seeded", "added", added)
	return added, nil
}
