package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/avstrong/tours/internal/domain"
)

func (db *DB) SaveBooking(ctx context.Context, booking *domain.Booking) error {
	release, err := db.autocommit(ctx)
	if err != nil {
		return err
	}
	defer release()

	db.mu.Lock()
	defer db.mu.Unlock()

	if booking.IdempotencyKey != "" {
		for _, existing := range db.bookings {
			if existing.UserID == booking.UserID && existing.IdempotencyKey == booking.IdempotencyKey {
				return fmt.Errorf("idempotency key %q: %w", booking.IdempotencyKey, domain.ErrDuplicate)
			}
		}
	}

	id, err := db.bookingIDs.GetID(ctx)
	if err != nil {
		return fmt.Errorf("next booking id: %w", err)
	}

	booking.ID = id
	stored := *booking
	db.bookings[id] = &stored

	return db.onRollback(ctx, func() {
		delete(db.bookings, id)
	})
}

// GetBookingForUpdate needs no extra locking here: a transaction already
// excludes every other writer.
func (db *DB) GetBookingForUpdate(_ context.Context, id int64) (*domain.Booking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	booking, ok := db.bookings[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	out := *booking

	return &out, nil
}

func (db *DB) GetBookingByIdempotencyKey(_ context.Context, userID int64, key string) (*domain.Booking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, booking := range db.bookings {
		if booking.UserID == userID && booking.IdempotencyKey == key {
			out := *booking

			return &out, nil
		}
	}

	return nil, domain.ErrRecordNotFound
}

func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status domain.Status) error {
	release, err := db.autocommit(ctx)
	if err != nil {
		return err
	}
	defer release()

	db.mu.Lock()
	defer db.mu.Unlock()

	booking, ok := db.bookings[id]
	if !ok {
		return domain.ErrRecordNotFound
	}

	previous := booking.Status
	booking.Status = status

	return db.onRollback(ctx, func() {
		if booking, ok := db.bookings[id]; ok {
			booking.Status = previous
		}
	})
}

func (db *DB) ListUserBookings(_ context.Context, userID int64) ([]*domain.UserBooking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := []*domain.UserBooking{}

	for _, booking := range db.sortedBookings() {
		if booking.UserID != userID {
			continue
		}

		//nolint:exhaustruct
		row := &domain.UserBooking{Booking: *booking, TourName: domain.DeletedTourLabel}

		if tour, ok := db.tours[booking.TourID]; ok {
			row.TourName = tour.Name
			row.Destination = tour.Destination
			row.TransportType = tour.TransportType
			row.DepartureLocation = tour.DepartureLocation
			row.DepartureTime = tour.DepartureTime
			row.TourGuide = tour.TourGuide
			row.IncludedServices = tour.IncludedServices
		}

		out = append(out, row)
	}

	return out, nil
}

func (db *DB) ListBookings(_ context.Context) ([]*domain.AdminBooking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]*domain.AdminBooking, 0, len(db.bookings))

	for _, booking := range db.sortedBookings() {
		row := &domain.AdminBooking{
			Booking:  *booking,
			Username: domain.DeletedUserLabel,
			TourName: domain.DeletedTourLabel,
		}

		if user, ok := db.users[booking.UserID]; ok {
			row.Username = user.Username
		}

		if tour, ok := db.tours[booking.TourID]; ok {
			row.TourName = tour.Name
		}

		out = append(out, row)
	}

	return out, nil
}

// sortedBookings must be called with mu held.
func (db *DB) sortedBookings() []*domain.Booking {
	bookings := make([]*domain.Booking, 0, len(db.bookings))
	for _, booking := range db.bookings {
		bookings = append(bookings, booking)
	}

	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })

	return bookings
}
