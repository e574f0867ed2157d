package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avstrong/tours/internal/domain"
	"github.com/avstrong/tours/internal/logger"
	"github.com/avstrong/tours/internal/storage"
)

var errBoom = errors.New("boom")

func newTour(spots int) *domain.Tour {
	//nolint:exhaustruct
	return &domain.Tour{Name: "Crete", Price: 700, Duration: 7, Destination: "Greece", AvailableSpots: spots}
}

func TestRollbackUndoesWrites(t *testing.T) {
	t.Parallel()

	l := logger.Discard()
	db := New(Config{L: l})
	ctx := context.Background()

	tour := newTour(5)
	if err := db.SaveTour(ctx, tour); err != nil {
		t.Fatalf("save tour: %v", err)
	}

	err := storage.WithinTransaction(ctx, l, db, "test", func(ctx context.Context) error {
		if _, err := db.TakeSpots(ctx, tour.ID, 3); err != nil {
			return err
		}

		//nolint:exhaustruct
		if err := db.SaveBooking(ctx, &domain.Booking{UserID: 1, TourID: tour.ID, Participants: 3, Status: domain.StatusPending}); err != nil {
			return err
		}

		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}

	got, err := db.GetTour(ctx, tour.ID)
	if err != nil {
		t.Fatalf("get tour: %v", err)
	}

	if got.AvailableSpots != 5 {
		t.Errorf("expected spots restored to 5, got %d", got.AvailableSpots)
	}

	if len(db.bookings) != 0 {
		t.Errorf("expected booking to be rolled back, got %d", len(db.bookings))
	}
}

func TestRollbackRestoresDeletedTour(t *testing.T) {
	t.Parallel()

	l := logger.Discard()
	db := New(Config{L: l})
	ctx := context.Background()

	tour := newTour(5)
	if err := db.SaveTour(ctx, tour); err != nil {
		t.Fatalf("save tour: %v", err)
	}

	//nolint:exhaustruct
	b := &domain.Booking{UserID: 1, TourID: tour.ID, Participants: 1, Status: domain.StatusCancelled}
	if err := db.SaveBooking(ctx, b); err != nil {
		t.Fatalf("save booking: %v", err)
	}

	_ = storage.WithinTransaction(ctx, l, db, "test", func(ctx context.Context) error {
		if err := db.DeleteTour(ctx, tour.ID); err != nil {
			return err
		}

		return errBoom
	})

	if _, err := db.GetTour(ctx, tour.ID); err != nil {
		t.Fatalf("expected tour to be restored, got %v", err)
	}

	if db.bookings[b.ID].TourID != tour.ID {
		t.Errorf("expected booking to point at tour %d again, got %d", tour.ID, db.bookings[b.ID].TourID)
	}
}

func TestTakeSpotsNeverGoesNegative(t *testing.T) {
	t.Parallel()

	db := New(Config{L: logger.Discard()})
	ctx := context.Background()

	tour := newTour(2)
	if err := db.SaveTour(ctx, tour); err != nil {
		t.Fatalf("save tour: %v", err)
	}

	left, err := db.TakeSpots(ctx, tour.ID, 3)
	if !errors.Is(err, domain.ErrInsufficientSpots) {
		t.Fatalf("expected ErrInsufficientSpots, got %v", err)
	}

	if left != 2 {
		t.Errorf("expected 2 spots left, got %d", left)
	}

	if _, err = db.TakeSpots(ctx, tour.ID+1, 1); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestNestedTransactionIsRejected(t *testing.T) {
	t.Parallel()

	l := logger.Discard()
	db := New(Config{L: l})

	err := storage.WithinTransaction(context.Background(), l, db, "outer", func(ctx context.Context) error {
		_, err := db.BeginTransaction(ctx)

		return err
	})
	if !errors.Is(err, ErrNestedTransaction) {
		t.Fatalf("expected ErrNestedTransaction, got %v", err)
	}
}

func TestUniqueConstraints(t *testing.T) {
	t.Parallel()

	db := New(Config{L: logger.Discard()})
	ctx := context.Background()

	//nolint:exhaustruct
	if err := db.SaveUser(ctx, &domain.User{Username: "zoe", PasswordHash: "x", Role: domain.RoleUser}); err != nil {
		t.Fatalf("save user: %v", err)
	}

	//nolint:exhaustruct
	if err := db.SaveUser(ctx, &domain.User{Username: "zoe", PasswordHash: "y", Role: domain.RoleUser}); !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for username, got %v", err)
	}

	//nolint:exhaustruct
	b := domain.Booking{UserID: 1, TourID: 1, Participants: 1, Status: domain.StatusPending, IdempotencyKey: "k"}
	first, second := b, b

	if err := db.SaveBooking(ctx, &first); err != nil {
		t.Fatalf("save booking: %v", err)
	}

	if err := db.SaveBooking(ctx, &second); !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for idempotency key, got %v", err)
	}
}

func TestRollbackDoesNotClobberWriteOutsideTransaction(t *testing.T) {
	t.Parallel()

	db := New(Config{L: logger.Discard()})
	ctx := context.Background()

	tour := newTour(10)
	if err := db.SaveTour(ctx, tour); err != nil {
		t.Fatalf("save tour: %v", err)
	}

	txCtx, err := db.BeginTransaction(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if _, err = db.TakeSpots(txCtx, tour.ID, 2); err != nil {
		t.Fatalf("take spots: %v", err)
	}

	updated := *tour
	updated.AvailableSpots = 5

	done := make(chan error, 1)

	go func() {
		done <- db.UpdateTour(ctx, &updated)
	}()

	select {
	case err = <-done:
		t.Fatalf("update must wait for the open transaction, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if err = db.RollbackTransaction(txCtx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if err = <-done; err != nil {
		t.Fatalf("update tour: %v", err)
	}

	got, err := db.GetTour(ctx, tour.ID)
	if err != nil {
		t.Fatalf("get tour: %v", err)
	}

	if got.AvailableSpots != 5 {
		t.Errorf("expected the committed update to win with 5 spots, got %d", got.AvailableSpots)
	}
}

func TestBeginTransactionHonoursContext(t *testing.T) {
	t.Parallel()

	db := New(Config{L: logger.Discard()})

	txCtx, err := db.BeginTransaction(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err = db.BeginTransaction(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded while the writer is busy, got %v", err)
	}

	//nolint:exhaustruct
	if err = db.SaveUser(ctx, &domain.User{Username: "late", PasswordHash: "x", Role: domain.RoleUser}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded for a write outside the transaction, got %v", err)
	}

	if err = db.CommitTransaction(txCtx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	next, err := db.BeginTransaction(context.Background())
	if err != nil {
		t.Fatalf("begin after commit: %v", err)
	}

	if err = db.RollbackTransaction(next); err != nil {
		t.Fatalf("rollback: %v", err)
	}
}
