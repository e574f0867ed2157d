package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/avstrong/tours/internal/domain"
)

func (db *DB) ListTours(_ context.Context) ([]*domain.Tour, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tours := make([]*domain.Tour, 0, len(db.tours))
	for _, tour := range db.tours {
		out := *tour
		tours = append(tours, &out)
	}

	sort.Slice(tours, func(i, j int) bool { return tours[i].ID < tours[j].ID })

	return tours, nil
}

func (db *DB) GetTour(_ context.Context, id int64) (*domain.Tour, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tour, ok := db.tours[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	out := *tour

	return &out, nil
}

func (db *DB) CountTours(_ context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return len(db.tours), nil
}

func (db *DB) SaveTour(ctx context.Context, tour *domain.Tour) error {
	release, err := db.autocommit(ctx)
	if err != nil {
		return err
	}
	defer release()

	db.mu.Lock()
	defer db.mu.Unlock()

	id, err := db.tourIDs.GetID(ctx)
	if err != nil {
		return fmt.Errorf("next tour id: %w", err)
	}

	tour.ID = id
	stored := *tour
	db.tours[id] = &stored

	return db.onRollback(ctx, func() {
		delete(db.tours, id)
	})
}

func (db *DB) UpdateTour(ctx context.Context, tour *domain.Tour) error {
	release, err := db.autocommit(ctx)
	if err != nil {
		return err
	}
	defer release()

	db.mu.Lock()
	defer db.mu.Unlock()

	original, ok := db.tours[tour.ID]
	if !ok {
		return domain.ErrRecordNotFound
	}

	stored := *tour
	db.tours[tour.ID] = &stored

	return db.onRollback(ctx, func() {
		db.tours[original.ID] = original
	})
}

// DeleteTour removes the tour and detaches every booking and review that
// referenced it, the way ON DELETE SET NULL does in the SQL store.
func (db *DB) DeleteTour(ctx context.Context, id int64) error {
	release, err := db.autocommit(ctx)
	if err != nil {
		return err
	}
	defer release()

	db.mu.Lock()
	defer db.mu.Unlock()

	original, ok := db.tours[id]
	if !ok {
		return domain.ErrRecordNotFound
	}

	delete(db.tours, id)

	var detachedBookings, detachedReviews []int64

	for _, booking := range db.bookings {
		if booking.TourID == id {
			booking.TourID = 0
			detachedBookings = append(detachedBookings, booking.ID)
		}
	}

	for _, review := range db.reviews {
		if review.TourID == id {
			review.TourID = 0
			detachedReviews = append(detachedReviews, review.ID)
		}
	}

	return db.onRollback(ctx, func() {
		db.tours[id] = original

		for _, bookingID := range detachedBookings {
			if booking, ok := db.bookings[bookingID]; ok {
				booking.TourID = id
			}
		}

		for _, reviewID := range detachedReviews {
			if review, ok := db.reviews[reviewID]; ok {
				review.TourID = id
			}
		}
	})
}

// TakeSpots decrements the tour's free seats by n unless that would make the
// count negative. It returns the remaining count.
func (db *DB) TakeSpots(ctx context.Context, tourID int64, n int) (int, error) {
	return db.moveSpots(ctx, tourID, -n)
}

func (db *DB) ReleaseSpots(ctx context.Context, tourID int64, n int) (int, error) {
	return db.moveSpots(ctx, tourID, n)
}

func (db *DB) moveSpots(ctx context.Context, tourID int64, delta int) (int, error) {
	release, err := db.autocommit(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	db.mu.Lock()
	defer db.mu.Unlock()

	tour, ok := db.tours[tourID]
	if !ok {
		return 0, domain.ErrRecordNotFound
	}

	if tour.AvailableSpots+delta < 0 {
		return tour.AvailableSpots, domain.ErrInsufficientSpots
	}

	tour.AvailableSpots += delta

	if err := db.onRollback(ctx, func() {
		if tour, ok := db.tours[tourID]; ok {
			tour.AvailableSpots -= delta
		}
	}); err != nil {
		return 0, err
	}

	return tour.AvailableSpots, nil
}

func (db *DB) CountActiveBookings(_ context.Context, tourID int64) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	count := 0

	for _, booking := range db.bookings {
		if booking.TourID == tourID && booking.Status.HoldsSeats() {
			count++
		}
	}

	return count, nil
}

// LockTour only checks that the tour exists: a transaction already excludes
// every other writer.
func (db *DB) LockTour(_ context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.tours[id]; !ok {
		return domain.ErrRecordNotFound
	}

	return nil
}
