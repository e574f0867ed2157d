//go:build integration

package sqldb_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/avstrong/tours/internal/booking"
	"github.com/avstrong/tours/internal/logger"
	"github.com/avstrong/tours/internal/storage/sqldb"
)

// With -tags integration and DB_DSN pointing at PostgreSQL, the whole suite in
// this package runs against PostgreSQL, each test in a schema of its own.
func init() {
	if os.Getenv("DB_DSN") != "" {
		openTestDB = openPostgres
	}
}

func withSearchPath(dsn, schema string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}

		return dsn + sep + "search_path=" + schema
	}

	return dsn + " search_path=" + schema
}

func openPostgres(t *testing.T) *sqldb.DB {
	t.Helper()

	dsn := os.Getenv("DB_DSN")
	ctx := context.Background()
	schema := "tours_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := sqlx.Open(sqldb.DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}

	t.Cleanup(func() { _ = admin.Close() })

	if _, err = admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	t.Cleanup(func() {
		if _, err := admin.ExecContext(context.Background(), "DROP SCHEMA "+schema+" CASCADE"); err != nil {
			t.Errorf("drop schema %s: %v", schema, err)
		}
	})

	//nolint:exhaustruct
	db, err := sqldb.Open(ctx, sqldb.Config{
		L:      logger.Discard(),
		Driver: sqldb.DriverPostgres,
		DSN:    withSearchPath(dsn, schema),
	})
	if err != nil {
		t.Fatalf("open postgres store: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestPostgresBookingStatusLocksRow(t *testing.T) {
	if os.Getenv("DB_DSN") == "" {
		t.Skip("DB_DSN is not set")
	}

	t.Parallel()

	db := openPostgres(t)
	userID, tourID := seed(t, db, 4)
	manager := booking.New(logger.Discard(), db)
	ctx := context.Background()

	b, err := manager.CreateBooking(ctx, userID, &booking.CreateInput{TourID: tourID, BookingDate: "2026-05-01", Participants: 2})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	errs := make(chan error, 2)

	// Two concurrent cancels of the same booking must release its seats once.
	for range 2 {
		go func() {
			_, err := manager.CancelBookingAsUser(ctx, userID, b.ID)
			errs <- err
		}()
	}

	for range 2 {
		if err := <-errs; err != nil {
			t.Fatalf("cancel: %v", err)
		}
	}

	tour, err := db.GetTour(ctx, tourID)
	if err != nil {
		t.Fatalf("get tour: %v", err)
	}

	if tour.AvailableSpots != 4 {
		t.Errorf("expected 4 spots after double cancel, got %d", tour.AvailableSpots)
	}
}
