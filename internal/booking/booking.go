package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/avstrong/tours/internal/domain"
	"github.com/avstrong/tours/internal/logger"
	"github.com/avstrong/tours/internal/storage"
)

const bookingDateLayout = "2006-01-02"

type storageReader interface {
	GetTour(ctx context.Context, id int64) (*domain.Tour, error)
	GetBookingForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
	GetBookingByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Booking, error)
	ListUserBookings(ctx context.Context, userID int64) ([]*domain.UserBooking, error)
	ListBookings(ctx context.Context) ([]*domain.AdminBooking, error)
}

type storageWriter interface {
	storage.Transactor
	TakeSpots(ctx context.Context, tourID int64, n int) (int, error)
	ReleaseSpots(ctx context.Context, tourID int64, n int) (int, error)
	SaveBooking(ctx context.Context, booking *domain.Booking) error
	UpdateBookingStatus(ctx context.Context, id int64, status domain.Status) error
}

type store interface {
	storageReader
	storageWriter
}

// Manager owns the booking lifecycle and keeps tour seat counts consistent
// with it. Every seat movement happens in the same transaction as the booking
// write that causes it.
type Manager struct {
	l       *logger.Logger
	storage store
}

func New(l *logger.Logger, storage store) *Manager {
	return &Manager{
		l:       l,
		storage: storage,
	}
}

type CreateInput struct {
	TourID       int64  `json:"tour_id"`
	BookingDate  string `json:"booking_date"`
	Participants int    `json:"participants"`
}

func (in *CreateInput) validate() error {
	inputErr := domain.NewInputError()

	if in.TourID <= 0 {
		inputErr.AddError("tour_id", "tour_id is required")
	}

	if in.BookingDate == "" {
		inputErr.AddError("booking_date", "booking_date is required")
	} else if _, err := time.Parse(bookingDateLayout, in.BookingDate); err != nil {
		inputErr.AddError("booking_date", "booking_date must be a date in YYYY-MM-DD format")
	}

	if in.Participants <= 0 {
		inputErr.AddError("participants", "participants must be a positive number")
	}

	return inputErr.ErrOrNil()
}

// CancelResult is returned by a user cancellation.
type CancelResult struct {
	ID             int64         `json:"id"`
	Status         domain.Status `json:"status"`
	Message        string        `json:"message"`
	AvailableSpots int           `json:"available_spots"`
}

func totalPrice(price float64, participants int) float64 {
	return math.Round(price*float64(participants)*100) / 100 //nolint:gomnd // cents
}

func (m *Manager) CreateBooking(ctx context.Context, userID int64, input *CreateInput) (*domain.Booking, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	key, hasKey := IdempotencyKeyFromContext(ctx)
	if hasKey {
		if len(key) > maxIdempotencyKeyLen {
			inputErr := domain.NewInputError()
			inputErr.AddError("idempotency_key", "idempotency key is too long")

			return nil, inputErr
		}

		existing, err := m.storage.GetBookingByIdempotencyKey(ctx, userID, key)
		if err == nil {
			return m.replay(existing, input, key)
		}

		if !errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("get booking by idempotency key: %w", err)
		}
	}

	//nolint:exhaustruct // id and price are filled in the transaction
	booking := &domain.Booking{
		UserID:         userID,
		TourID:         input.TourID,
		BookingDate:    input.BookingDate,
		Participants:   input.Participants,
		Status:         domain.StatusPending,
		IdempotencyKey: key,
	}

	err := storage.WithinTransaction(ctx, m.l, m.storage, "create booking", func(ctx context.Context) error {
		tour, err := m.storage.GetTour(ctx, input.TourID)
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.NewNotFoundError("tour")
		}

		if err != nil {
			return fmt.Errorf("get tour %d: %w", input.TourID, err)
		}

		if input.Participants > tour.AvailableSpots {
			return &domain.CapacityError{TourID: tour.ID, Requested: input.Participants, Available: tour.AvailableSpots}
		}

		// The store re-checks the count under its own lock; the read above may be stale.
		if _, err = m.storage.TakeSpots(ctx, tour.ID, input.Participants); err != nil {
			return m.spotsError(ctx, err, tour.ID, input.Participants)
		}

		booking.TotalPrice = totalPrice(tour.Price, input.Participants)

		if err = m.storage.SaveBooking(ctx, booking); err != nil {
			return fmt.Errorf("save booking: %w", err)
		}

		return nil
	})

	if hasKey && errors.Is(err, domain.ErrDuplicate) {
		// A concurrent request with the same key won the race.
		existing, getErr := m.storage.GetBookingByIdempotencyKey(ctx, userID, key)
		if getErr != nil {
			return nil, fmt.Errorf("get booking by idempotency key after conflict: %w", getErr)
		}

		return m.replay(existing, input, key)
	}

	if err != nil {
		return nil, err
	}

	m.l.LogInfo("Booking %d created: tour %d, user %d, participants %d", booking.ID, booking.TourID, userID, booking.Participants)

	return booking, nil
}

// replay returns the booking stored under an idempotency key, provided the
// retried request asks for the same booking.
func (m *Manager) replay(existing *domain.Booking, input *CreateInput, key string) (*domain.Booking, error) {
	if existing.TourID != input.TourID ||
		existing.BookingDate != input.BookingDate ||
		existing.Participants != input.Participants {
		return nil, domain.NewConflictError("idempotency key was already used for a different booking")
	}

	m.l.LogDebug("Booking %d replayed for idempotency key %q", existing.ID, key)

	return existing, nil
}

func (m *Manager) CancelBookingAsUser(ctx context.Context, userID, bookingID int64) (*CancelResult, error) {
	var result *CancelResult

	err := storage.WithinTransaction(ctx, m.l, m.storage, "cancel booking", func(ctx context.Context) error {
		booking, err := m.storage.GetBookingForUpdate(ctx, bookingID)
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.NewNotFoundError("booking")
		}

		if err != nil {
			return fmt.Errorf("get booking %d: %w", bookingID, err)
		}

		if booking.UserID != userID {
			return domain.NewNotFoundError("booking")
		}

		if booking.Status == domain.StatusCancelled {
			spots, err := m.currentSpots(ctx, booking.TourID)
			if err != nil {
				return err
			}

			result = &CancelResult{
				ID:             booking.ID,
				Status:         domain.StatusCancelled,
				Message:        "Booking is already cancelled",
				AvailableSpots: spots,
			}

			return nil
		}

		if err = m.storage.UpdateBookingStatus(ctx, booking.ID, domain.StatusCancelled); err != nil {
			return fmt.Errorf("update booking %d status: %w", booking.ID, err)
		}

		spots, err := m.storage.ReleaseSpots(ctx, booking.TourID, booking.Participants)
		if err != nil {
			return m.spotsError(ctx, err, booking.TourID, booking.Participants)
		}

		result = &CancelResult{
			ID:             booking.ID,
			Status:         domain.StatusCancelled,
			Message:        "Booking cancelled",
			AvailableSpots: spots,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	m.l.LogInfo("Booking %d cancelled by user %d", bookingID, userID)

	return result, nil
}

// SetBookingStatus moves a booking to any status. Leaving a seat holding
// status releases the seats; entering one from cancelled takes them again and
// fails with a CapacityError when the tour is full.
func (m *Manager) SetBookingStatus(ctx context.Context, bookingID int64, status domain.Status) (*domain.Booking, error) {
	if !status.Valid() {
		inputErr := domain.NewInputError()
		inputErr.AddError("status", "status must be one of pending, confirmed, cancelled")

		return nil, inputErr
	}

	var booking *domain.Booking

	err := storage.WithinTransaction(ctx, m.l, m.storage, "set booking status", func(ctx context.Context) error {
		var err error

		booking, err = m.storage.GetBookingForUpdate(ctx, bookingID)
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.NewNotFoundError("booking")
		}

		if err != nil {
			return fmt.Errorf("get booking %d: %w", bookingID, err)
		}

		previous := booking.Status
		if previous == status {
			return nil
		}

		switch {
		case previous.HoldsSeats() && !status.HoldsSeats():
			if _, err = m.storage.ReleaseSpots(ctx, booking.TourID, booking.Participants); err != nil {
				return m.spotsError(ctx, err, booking.TourID, booking.Participants)
			}
		case !previous.HoldsSeats() && status.HoldsSeats():
			if _, err = m.storage.TakeSpots(ctx, booking.TourID, booking.Participants); err != nil {
				return m.spotsError(ctx, err, booking.TourID, booking.Participants)
			}
		}

		if err = m.storage.UpdateBookingStatus(ctx, booking.ID, status); err != nil {
			return fmt.Errorf("update booking %d status: %w", booking.ID, err)
		}

		booking.Status = status

		return nil
	})
	if err != nil {
		return nil, err
	}

	m.l.LogInfo("Booking %d status set to %s", booking.ID, booking.Status)

	return booking, nil
}

func (m *Manager) ListUserBookings(ctx context.Context, userID int64) ([]*domain.UserBooking, error) {
	bookings, err := m.storage.ListUserBookings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings of user %d: %w", userID, err)
	}

	return bookings, nil
}

func (m *Manager) ListAllBookings(ctx context.Context) ([]*domain.AdminBooking, error) {
	bookings, err := m.storage.ListBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	return bookings, nil
}

func (m *Manager) currentSpots(ctx context.Context, tourID int64) (int, error) {
	tour, err := m.storage.GetTour(ctx, tourID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("get tour %d: %w", tourID, err)
	}

	return tour.AvailableSpots, nil
}

// spotsError converts store level seat errors into the domain taxonomy.
func (m *Manager) spotsError(ctx context.Context, err error, tourID int64, requested int) error {
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		return domain.NewNotFoundError("tour")
	case errors.Is(err, domain.ErrInsufficientSpots):
		available := 0

		// Best effort: the count is only used in the error message.
		if tour, getErr := m.storage.GetTour(ctx, tourID); getErr == nil {
			available = tour.AvailableSpots
		}

		return &domain.CapacityError{TourID: tourID, Requested: requested, Available: available}
	default:
		return fmt.Errorf("change spots of tour %d: %w", tourID, err)
	}
}
