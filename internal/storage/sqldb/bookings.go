package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avstrong/tours/internal/domain"
)

const bookingColumns = `b.id, b.user_id, COALESCE(b.tour_id, 0) AS tour_id, b.booking_date, b.participants, b.status,
	b.total_price, COALESCE(b.idempotency_key, '') AS idempotency_key`

func (db *DB) SaveBooking(ctx context.Context, booking *domain.Booking) error {
	key := sql.NullString{String: booking.IdempotencyKey, Valid: booking.IdempotencyKey != ""}

	id, err := db.insert(ctx,
		`INSERT INTO bookings (user_id, tour_id, booking_date, participants, status, total_price, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		booking.UserID, booking.TourID, booking.BookingDate, booking.Participants, string(booking.Status),
		booking.TotalPrice, key,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	booking.ID = id

	return nil
}

func (db *DB) GetBookingForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	var booking domain.Booking

	err := db.get(ctx, &booking, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`+db.lockClause, id)
	if err != nil {
		return nil, err
	}

	return &booking, nil
}

func (db *DB) GetBookingByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Booking, error) {
	var booking domain.Booking

	err := db.get(ctx, &booking,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.user_id = ? AND b.idempotency_key = ?`,
		userID, key,
	)
	if err != nil {
		return nil, err
	}

	return &booking, nil
}

func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status domain.Status) error {
	return db.execOne(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, string(status), id)
}

func (db *DB) ListUserBookings(ctx context.Context, userID int64) ([]*domain.UserBooking, error) {
	bookings := []*domain.UserBooking{}

	err := db.selectAll(ctx, &bookings,
		`SELECT `+bookingColumns+`,
			COALESCE(t.name, ?) AS tour_name,
			COALESCE(t.destination, '') AS destination,
			COALESCE(t.transport_type, '') AS transport_type,
			COALESCE(t.departure_location, '') AS departure_location,
			COALESCE(t.departure_time, '') AS departure_time,
			COALESCE(t.tour_guide, '') AS tour_guide,
			COALESCE(t.included_services, '') AS included_services
		FROM bookings b
		LEFT JOIN tours t ON t.id = b.tour_id
		WHERE b.user_id = ?
		ORDER BY b.id`,
		domain.DeletedTourLabel, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select bookings of user %d: %w", userID, err)
	}

	return bookings, nil
}

func (db *DB) ListBookings(ctx context.Context) ([]*domain.AdminBooking, error) {
	bookings := []*domain.AdminBooking{}

	err := db.selectAll(ctx, &bookings,
		`SELECT `+bookingColumns+`,
			COALESCE(u.username, ?) AS username,
			COALESCE(t.name, ?) AS tour_name
		FROM bookings b
		LEFT JOIN users u ON u.id = b.user_id
		LEFT JOIN tours t ON t.id = b.tour_id
		ORDER BY b.id`,
		domain.DeletedUserLabel, domain.DeletedTourLabel,
	)
	if err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}

	return bookings, nil
}
