package sqldb

import (
	"context"
	"fmt"

	"github.com/avstrong/tours/internal/domain"
)

const reviewColumns = `r.id, COALESCE(r.user_id, 0) AS user_id, COALESCE(r.tour_id, 0) AS tour_id, r.rating, r.text,
	r.created_at, COALESCE(u.username, ?) AS username`

func (db *DB) SaveReview(ctx context.Context, review *domain.Review) error {
	id, err := db.insert(ctx,
		`INSERT INTO reviews (user_id, tour_id, rating, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		review.UserID, review.TourID, review.Rating, review.Text, review.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}

	review.ID = id

	return nil
}

func (db *DB) GetReview(ctx context.Context, id int64) (*domain.Review, error) {
	var review domain.Review

	err := db.get(ctx, &review,
		`SELECT `+reviewColumns+` FROM reviews r LEFT JOIN users u ON u.id = r.user_id WHERE r.id = ?`,
		domain.DeletedUserLabel, id,
	)
	if err != nil {
		return nil, err
	}

	return &review, nil
}

func (db *DB) ListTourReviews(ctx context.Context, tourID int64) ([]*domain.Review, error) {
	reviews := []*domain.Review{}

	err := db.selectAll(ctx, &reviews,
		`SELECT `+reviewColumns+`
		FROM reviews r
		LEFT JOIN users u ON u.id = r.user_id
		WHERE r.tour_id = ?
		ORDER BY r.created_at DESC, r.id DESC`,
		domain.DeletedUserLabel, tourID,
	)
	if err != nil {
		return nil, fmt.Errorf("select reviews of tour %d: %w", tourID, err)
	}

	return reviews, nil
}

func (db *DB) ListReviews(ctx context.Context) ([]*domain.Review, error) {
	reviews := []*domain.Review{}

	err := db.selectAll(ctx, &reviews,
		`SELECT `+reviewColumns+`, COALESCE(t.name, ?) AS tour_name
		FROM reviews r
		LEFT JOIN users u ON u.id = r.user_id
		LEFT JOIN tours t ON t.id = r.tour_id
		ORDER BY r.created_at DESC, r.id DESC`,
		domain.DeletedUserLabel, domain.DeletedTourLabel,
	)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}

	return reviews, nil
}

func (db *DB) DeleteReview(ctx context.Context, id int64) error {
	return db.execOne(ctx, `DELETE FROM reviews WHERE id = ?`, id)
}
