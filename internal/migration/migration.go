package migration

import (
	"context"
	"fmt"

	"github.com/avstrong/tours/internal/domain"
	"github.com/avstrong/tours/internal/logger"
	"github.com/avstrong/tours/internal/storage"
)

type store interface {
	storage.Transactor
	CountUsers(ctx context.Context) (int, error)
	CountTours(ctx context.Context) (int, error)
	SaveTour(ctx context.Context, tour *domain.Tour) error
}

type userCreator interface {
	CreateUser(ctx context.Context, username, password string, role domain.Role) (*domain.User, error)
}

type account struct {
	username string
	password string
	role     domain.Role
}

// Demo accounts created on an empty users table.
var accounts = []account{
	{username: "admin", password: "admin", role: domain.RoleAdmin},
	{username: "user", password: "user", role: domain.RoleUser},
}

func tours() []*domain.Tour {
	return []*domain.Tour{
		{
			Name:              "Beautiful France",
			Description:       "A week across France with stops in Paris, Lyon and Nice",
			Price:             1500,
			Duration:          7,
			Destination:       "France",
			ImageURL:          "https://images.unsplash.com/photo-1502602898657-3e91760cbb34",
			AvailableSpots:    20,
			TransportType:     "Volvo coach",
			DepartureLocation: "Central station, platform 3",
			DepartureTime:     "07:30",
			TourGuide:         "Andrew Peters, French speaking guide",
			IncludedServices:  "4* hotels, breakfasts, guided excursions, transfers",
		},
		{
			Name:              "Italian Holidays",
			Description:       "Historic cities of Italy: Rome, Venice and Florence",
			Price:             1200,
			Duration:          6,
			Destination:       "Italy",
			ImageURL:          "https://images.unsplash.com/photo-1529260830199-42c24126f198",
			AvailableSpots:    15,
			TransportType:     "Flight and coach transfers",
			DepartureLocation: "Airport, terminal B",
			DepartureTime:     "10:45",
			TourGuide:         "Helen Sidorova, art historian",
			IncludedServices:  "Flights, 3-4* hotels, breakfasts, museum tours, group transfers",
		},
		{
			Name:              "Mysterious Greece",
			Description:       "The best beaches of the Greek islands and tours of ancient ruins",
			Price:             950,
			Duration:          8,
			Destination:       "Greece",
			ImageURL:          "https://images.unsplash.com/photo-1533105079780-92b9be482077",
			AvailableSpots:    25,
			TransportType:     "Flight and ferry",
			DepartureLocation: "Airport, terminal D",
			DepartureTime:     "09:15",
			TourGuide:         "Dmitry Ivanov, Greek culture specialist",
			IncludedServices:  "Flights, 4* hotels, half board, excursions, transfers, ferries",
		},
	}
}

// Up seeds demo accounts and tours into empty tables. Tables that already hold
// rows are left untouched, so Up is safe to run on every start.
func Up(ctx context.Context, l *logger.Logger, s store, users userCreator) error {
	return storage.WithinTransaction(ctx, l, s, "seed", func(ctx context.Context) error {
		userCount, err := s.CountUsers(ctx)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}

		if userCount == 0 {
			for _, acc := range accounts {
				if _, err = users.CreateUser(ctx, acc.username, acc.password, acc.role); err != nil {
					return fmt.Errorf("create %s account: %w", acc.username, err)
				}
			}

			l.LogInfo("Seeded %d demo accounts", len(accounts))
		}

		tourCount, err := s.CountTours(ctx)
		if err != nil {
			return fmt.Errorf("count tours: %w", err)
		}

		if tourCount > 0 {
			return nil
		}

		seed := tours()

		for _, tour := range seed {
			if err = s.SaveTour(ctx, tour); err != nil {
				return fmt.Errorf("save tour %q: %w", tour.Name, err)
			}
		}

		l.LogInfo("Seeded %d tours", len(seed))

		return nil
	})
}
