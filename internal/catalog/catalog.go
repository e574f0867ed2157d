package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avstrong/tours/internal/domain"
	"github.com/avstrong/tours/internal/logger"
	"github.com/avstrong/tours/internal/storage"
)

// Defaults for the descriptive tour fields an admin may leave empty.
const (
	DefaultTransportType     = "Bus"
	DefaultDepartureLocation = "Central bus station"
	DefaultDepartureTime     = "08:00"
	DefaultTourGuide         = "Experienced guide"
	DefaultIncludedServices  = "Accommodation, breakfasts, excursions"
)

type store interface {
	storage.Transactor
	ListTours(ctx context.Context) ([]*domain.Tour, error)
	GetTour(ctx context.Context, id int64) (*domain.Tour, error)
	LockTour(ctx context.Context, id int64) error
	SaveTour(ctx context.Context, tour *domain.Tour) error
	UpdateTour(ctx context.Context, tour *domain.Tour) error
	DeleteTour(ctx context.Context, id int64) error
	CountActiveBookings(ctx context.Context, tourID int64) (int, error)
}

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

// TourInput carries every mutable tour field. Updates replace all of them.
type TourInput struct {
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Price             float64 `json:"price"`
	Duration          int     `json:"duration"`
	Destination       string  `json:"destination"`
	ImageURL          string  `json:"image_url"`
	AvailableSpots    int     `json:"available_spots"`
	TransportType     string  `json:"transport_type"`
	DepartureLocation string  `json:"departure_location"`
	DepartureTime     string  `json:"departure_time"`
	TourGuide         string  `json:"tour_guide"`
	IncludedServices  string  `json:"included_services"`
}

func (in *TourInput) validate() error {
	inputErr := domain.NewInputError()

	if strings.TrimSpace(in.Name) == "" {
		inputErr.AddError("name", "name is required")
	}

	if in.Price <= 0 {
		inputErr.AddError("price", "price must be a positive number")
	}

	if in.Duration <= 0 {
		inputErr.AddError("duration", "duration must be a positive number of days")
	}

	if strings.TrimSpace(in.Destination) == "" {
		inputErr.AddError("destination", "destination is required")
	}

	if in.AvailableSpots <= 0 {
		inputErr.AddError("available_spots", "available_spots must be a positive number")
	}

	return inputErr.ErrOrNil()
}

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value == "" {
		return fallback
	}

	return value
}

func (in *TourInput) tour(id int64) *domain.Tour {
	return &domain.Tour{
		ID:                id,
		Name:              strings.TrimSpace(in.Name),
		Description:       in.Description,
		Price:             in.Price,
		Duration:          in.Duration,
		Destination:       strings.TrimSpace(in.Destination),
		ImageURL:          strings.TrimSpace(in.ImageURL),
		AvailableSpots:    in.AvailableSpots,
		TransportType:     orDefault(in.TransportType, DefaultTransportType),
		DepartureLocation: orDefault(in.DepartureLocation, DefaultDepartureLocation),
		DepartureTime:     orDefault(in.DepartureTime, DefaultDepartureTime),
		TourGuide:         orDefault(in.TourGuide, DefaultTourGuide),
		IncludedServices:  orDefault(in.IncludedServices, DefaultIncludedServices),
	}
}

func (m *Manager) ListTours(ctx context.Context) ([]*domain.Tour, error) {
	tours, err := m.storage.ListTours(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tours: %w", err)
	}

	return tours, nil
}

func (m *Manager) GetTour(ctx context.Context, id int64) (*domain.Tour, error) {
	tour, err := m.storage.GetTour(ctx, id)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("tour")
	}

	if err != nil {
		return nil, fmt.Errorf("get tour %d: %w", id, err)
	}

	return tour, nil
}

func (m *Manager) CreateTour(ctx context.Context, input *TourInput) (*domain.Tour, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	tour := input.tour(0)

	if err := m.storage.SaveTour(ctx, tour); err != nil {
		return nil, fmt.Errorf("save tour: %w", err)
	}

	m.l.LogInfo("Tour %d (%s) created with %d spots", tour.ID, tour.Name, tour.AvailableSpots)

	return tour, nil
}

func (m *Manager) UpdateTour(ctx context.Context, id int64, input *TourInput) (*domain.Tour, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	tour := input.tour(id)

	err := m.storage.UpdateTour(ctx, tour)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("tour")
	}

	if err != nil {
		return nil, fmt.Errorf("update tour %d: %w", id, err)
	}

	m.l.LogInfo("Tour %d updated", id)

	return tour, nil
}

// DeleteTour refuses while any booking still holds seats on the tour. The tour
// row is locked first so that no booking can slip in between the check and
// the delete.
func (m *Manager) DeleteTour(ctx context.Context, id int64) error {
	err := storage.WithinTransaction(ctx, m.l, m.storage, "delete tour", func(ctx context.Context) error {
		err := m.storage.LockTour(ctx, id)
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.NewNotFoundError("tour")
		}

		if err != nil {
			return fmt.Errorf("lock tour %d: %w", id, err)
		}

		active, err := m.storage.CountActiveBookings(ctx, id)
		if err != nil {
			return fmt.Errorf("count active bookings: %w", err)
		}

		if active > 0 {
			return domain.NewConflictError("cannot delete a tour with active bookings")
		}

		err = m.storage.DeleteTour(ctx, id)
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.NewNotFoundError("tour")
		}

		if err != nil {
			return fmt.Errorf("delete tour %d: %w", id, err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.l.LogInfo("Tour %d deleted", id)

	return nil
}
