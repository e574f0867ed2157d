package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/avstrong/tours/internal/booking"
	"github.com/avstrong/tours/internal/catalog"
	"github.com/avstrong/tours/internal/config"
	"github.com/avstrong/tours/internal/domain"
	"github.com/avstrong/tours/internal/identity"
	"github.com/avstrong/tours/internal/logger"
	"github.com/avstrong/tours/internal/migration"
	"github.com/avstrong/tours/internal/review"
	"github.com/avstrong/tours/internal/storage"
	"github.com/avstrong/tours/internal/storage/memory"
	"github.com/avstrong/tours/internal/storage/sqldb"
	"github.com/avstrong/tours/internal/transport/web"
)

// store is everything the services need from a storage backend.
type store interface {
	storage.Transactor

	SaveUser(ctx context.Context, user *domain.User) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	CountUsers(ctx context.Context) (int, error)

	ListTours(ctx context.Context) ([]*domain.Tour, error)
	GetTour(ctx context.Context, id int64) (*domain.Tour, error)
	LockTour(ctx context.Context, id int64) error
	CountTours(ctx context.Context) (int, error)
	SaveTour(ctx context.Context, tour *domain.Tour) error
	UpdateTour(ctx context.Context, tour *domain.Tour) error
	DeleteTour(ctx context.Context, id int64) error
	CountActiveBookings(ctx context.Context, tourID int64) (int, error)
	TakeSpots(ctx context.Context, tourID int64, n int) (int, error)
	ReleaseSpots(ctx context.Context, tourID int64, n int) (int, error)

	SaveBooking(ctx context.Context, booking *domain.Booking) error
	GetBookingForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
	GetBookingByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status domain.Status) error
	ListUserBookings(ctx context.Context, userID int64) ([]*domain.UserBooking, error)
	ListBookings(ctx context.Context) ([]*domain.AdminBooking, error)

	SaveReview(ctx context.Context, review *domain.Review) error
	GetReview(ctx context.Context, id int64) (*domain.Review, error)
	ListTourReviews(ctx context.Context, tourID int64) ([]*domain.Review, error)
	ListReviews(ctx context.Context) ([]*domain.Review, error)
	DeleteReview(ctx context.Context, id int64) error
}

var (
	_ store = (*memory.DB)(nil)
	_ store = (*sqldb.DB)(nil)
)

func openStore(ctx context.Context, l *logger.Logger, conf config.StorageConfig) (store, func(), error) {
	if conf.Driver == config.DriverMemory {
		l.LogWarnf("Using in-memory storage, data is lost on restart")

		return memory.New(memory.Config{L: l}), func() {}, nil
	}

	db, err := sqldb.Open(ctx, sqldb.Config{
		L:            l,
		Driver:       conf.Driver,
		DSN:          conf.DSN,
		MaxOpenConns: conf.MaxOpenConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s storage: %w", conf.Driver, err)
	}

	closeFn := func() {
		if err := db.Close(); err != nil {
			l.LogErrorf("Failed to close storage: %v", err.Error())
		}
	}

	return db, closeFn, nil
}

func Run(l *logger.Logger, args []string) error {
	conf, err := config.Load(args)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	l.SetDebug(conf.Debug)

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)
	defer cancel()

	s, closeStore, err := openStore(ctx, l, conf.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	secret := conf.Auth.JWTSecret
	if secret == "" {
		l.LogWarnf("JWT_SECRET is not set, falling back to the development secret")

		secret = config.DevJWTSecret
	}

	identityManager, err := identity.New(l, s, identity.Conf{
		Secret:     []byte(secret),
		TokenTTL:   conf.Auth.TokenTTL,
		BcryptCost: conf.Auth.BcryptCost,
		Now:        nil,
	})
	if err != nil {
		return fmt.Errorf("init identity: %w", err)
	}

	if conf.Seed {
		if err = migration.Up(ctx, l, s, identityManager); err != nil {
			return fmt.Errorf("seed storage: %w", err)
		}
	}

	webConf := web.Conf{
		L:                 l,
		ServerLogger:      log.Default(),
		Host:              conf.Server.Host,
		Port:              conf.Server.Port,
		ReadHeaderTimeout: conf.Server.ReadHeaderTimeout,
		RequestTimeout:    conf.Server.RequestTimeout,
		LivenessEndpoint:  conf.Server.LivenessEndpoint,
		AllowedOrigins:    conf.Server.AllowedOrigins,
	}

	srv, err := web.New(ctx, webConf, web.Managers{
		Identity: identityManager,
		Catalog:  catalog.New(l, s),
		Bookings: booking.New(l, s),
		Reviews:  review.New(l, s),
	})
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	//nolint:contextcheck
	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Srv().Shutdown(ctx); err != nil {
			l.LogErrorf("Failed to stop http server: %v", err.Error())
		}
	}()

	l.LogInfo("Application is running on %v:%v...", webConf.Host, webConf.Port)

	start := time.Now()

	if err := srv.Srv().ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		l.LogErrorf("Failed to run http server: %v", err.Error())

		cancel()

		return fmt.Errorf("serve http: %w", err)
	}

	l.LogInfo("Application stopped gracefully after %s", time.Since(start).Round(time.Second))

	return nil
}
