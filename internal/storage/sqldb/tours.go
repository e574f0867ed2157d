package sqldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/avstrong/tours/internal/domain"
)

const tourColumns = `id, name, description, price, duration, destination, image_url, available_spots,
	transport_type, departure_location, departure_time, tour_guide, included_services`

func (db *DB) ListTours(ctx context.Context) ([]*domain.Tour, error) {
	tours := []*domain.Tour{}

	if err := db.selectAll(ctx, &tours, `SELECT `+tourColumns+` FROM tours ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select tours: %w", err)
	}

	return tours, nil
}

func (db *DB) GetTour(ctx context.Context, id int64) (*domain.Tour, error) {
	var tour domain.Tour

	if err := db.get(ctx, &tour, `SELECT `+tourColumns+` FROM tours WHERE id = ?`, id); err != nil {
		return nil, err
	}

	return &tour, nil
}

// LockTour locks the tour row for the rest of the transaction so that no
// booking can take its seats concurrently.
func (db *DB) LockTour(ctx context.Context, id int64) error {
	var found int64

	return db.get(ctx, &found, `SELECT id FROM tours WHERE id = ?`+db.lockClause, id)
}

func (db *DB) CountTours(ctx context.Context) (int, error) {
	var count int

	if err := db.get(ctx, &count, `SELECT COUNT(*) FROM tours`); err != nil {
		return 0, fmt.Errorf("count tours: %w", err)
	}

	return count, nil
}

func (db *DB) SaveTour(ctx context.Context, tour *domain.Tour) error {
	id, err := db.insert(ctx,
		`INSERT INTO tours (name, description, price, duration, destination, image_url, available_spots,
			transport_type, departure_location, departure_time, tour_guide, included_services)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tour.Name, tour.Description, tour.Price, tour.Duration, tour.Destination, tour.ImageURL, tour.AvailableSpots,
		tour.TransportType, tour.DepartureLocation, tour.DepartureTime, tour.TourGuide, tour.IncludedServices,
	)
	if err != nil {
		return fmt.Errorf("insert tour: %w", err)
	}

	tour.ID = id

	return nil
}

func (db *DB) UpdateTour(ctx context.Context, tour *domain.Tour) error {
	return db.execOne(ctx,
		`UPDATE tours SET name = ?, description = ?, price = ?, duration = ?, destination = ?, image_url = ?,
			available_spots = ?, transport_type = ?, departure_location = ?, departure_time = ?, tour_guide = ?,
			included_services = ?
		WHERE id = ?`,
		tour.Name, tour.Description, tour.Price, tour.Duration, tour.Destination, tour.ImageURL,
		tour.AvailableSpots, tour.TransportType, tour.DepartureLocation, tour.DepartureTime, tour.TourGuide,
		tour.IncludedServices,
		tour.ID,
	)
}

func (db *DB) DeleteTour(ctx context.Context, id int64) error {
	return db.execOne(ctx, `DELETE FROM tours WHERE id = ?`, id)
}

// TakeSpots decrements the tour's free seats by n unless that would make the
// count negative. It returns the remaining count.
func (db *DB) TakeSpots(ctx context.Context, tourID int64, n int) (int, error) {
	var spots int

	err := db.get(ctx, &spots,
		`UPDATE tours SET available_spots = available_spots - ?
		WHERE id = ? AND available_spots >= ?
		RETURNING available_spots`,
		n, tourID, n,
	)
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return spots, err
	}

	// Nothing matched: either the tour is gone or it is too full.
	if _, err = db.GetTour(ctx, tourID); err != nil {
		return 0, err
	}

	return 0, domain.ErrInsufficientSpots
}

func (db *DB) ReleaseSpots(ctx context.Context, tourID int64, n int) (int, error) {
	var spots int

	err := db.get(ctx, &spots,
		`UPDATE tours SET available_spots = available_spots + ? WHERE id = ? RETURNING available_spots`,
		n, tourID,
	)

	return spots, err
}

func (db *DB) CountActiveBookings(ctx context.Context, tourID int64) (int, error) {
	var count int

	err := db.get(ctx, &count,
		`SELECT COUNT(*) FROM bookings WHERE tour_id = ? AND status <> ?`,
		tourID, string(domain.StatusCancelled),
	)
	if err != nil {
		return 0, fmt.Errorf("count active bookings of tour %d: %w", tourID, err)
	}

	return count, nil
}
