package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/avstrong/tours/internal/domain"
)

func (db *DB) SaveReview(ctx context.Context, review *domain.Review) error {
	release, err := db.autocommit(ctx)
	if err != nil {
		return err
	}
	defer release()

	db.mu.Lock()
	defer db.mu.Unlock()

	id, err := db.reviewIDs.GetID(ctx)
	if err != nil {
		return fmt.Errorf("next review id: %w", err)
	}

	review.ID = id
	stored := *review
	stored.Username = ""
	stored.TourName = ""
	db.reviews[id] = &stored

	return db.onRollback(ctx, func() {
		delete(db.reviews, id)
	})
}

func (db *DB) GetReview(_ context.Context, id int64) (*domain.Review, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	review, ok := db.reviews[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	return db.joinReview(review, false), nil
}

func (db *DB) ListTourReviews(_ context.Context, tourID int64) ([]*domain.Review, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := []*domain.Review{}

	for _, review := range db.newestReviews() {
		if review.TourID == tourID {
			out = append(out, db.joinReview(review, false))
		}
	}

	return out, nil
}

func (db *DB) ListReviews(_ context.Context) ([]*domain.Review, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]*domain.Review, 0, len(db.reviews))

	for _, review := range db.newestReviews() {
		out = append(out, db.joinReview(review, true))
	}

	return out, nil
}

func (db *DB) DeleteReview(ctx context.Context, id int64) error {
	release, err := db.autocommit(ctx)
	if err != nil {
		return err
	}
	defer release()

	db.mu.Lock()
	defer db.mu.Unlock()

	original, ok := db.reviews[id]
	if !ok {
		return domain.ErrRecordNotFound
	}

	delete(db.reviews, id)

	return db.onRollback(ctx, func() {
		db.reviews[id] = original
	})
}

// joinReview must be called with mu held.
func (db *DB) joinReview(review *domain.Review, withTour bool) *domain.Review {
	out := *review
	out.Username = domain.DeletedUserLabel

	if user, ok := db.users[review.UserID]; ok {
		out.Username = user.Username
	}

	if withTour {
		out.TourName = domain.DeletedTourLabel

		if tour, ok := db.tours[review.TourID]; ok {
			out.TourName = tour.Name
		}
	}

	return &out
}

// newestReviews must be called with mu held.
func (db *DB) newestReviews() []*domain.Review {
	reviews := make([]*domain.Review, 0, len(db.reviews))
	for _, review := range db.reviews {
		reviews = append(reviews, review)
	}

	sort.Slice(reviews, func(i, j int) bool {
		if !reviews[i].CreatedAt.Equal(reviews[j].CreatedAt) {
			return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
		}

		return reviews[i].ID > reviews[j].ID
	})

	return reviews
}
