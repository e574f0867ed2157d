package booking_test

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/avstrong/tours/internal/booking"
	"github.com/avstrong/tours/internal/domain"
	"github.com/avstrong/tours/internal/logger"
	"github.com/avstrong/tours/internal/storage/memory"
)

type fixture struct {
	manager *booking.Manager
	db      *memory.DB
	tourID  int64
	userID  int64
}

func newFixture(t *testing.T, spots int) *fixture {
	t.Helper()

	l := logger.Discard()
	db := memory.New(memory.Config{L: l})
	ctx := context.Background()

	//nolint:exhaustruct
	user := &domain.User{Username: "traveller", PasswordHash: "x", Role: domain.RoleUser}
	if err := db.SaveUser(ctx, user); err != nil {
		t.Fatalf("save user: %v", err)
	}

	//nolint:exhaustruct
	tour := &domain.Tour{Name: "Alps", Price: 99.99, Duration: 3, Destination: "Austria", AvailableSpots: spots}
	if err := db.SaveTour(ctx, tour); err != nil {
		t.Fatalf("save tour: %v", err)
	}

	return &fixture{manager: booking.New(l, db), db: db, tourID: tour.ID, userID: user.ID}
}

func (f *fixture) spots(t *testing.T) int {
	t.Helper()

	tour, err := f.db.GetTour(context.Background(), f.tourID)
	if err != nil {
		t.Fatalf("get tour: %v", err)
	}

	return tour.AvailableSpots
}

func (f *fixture) book(t *testing.T, participants int) *domain.Booking {
	t.Helper()

	b, err := f.manager.CreateBooking(context.Background(), f.userID, &booking.CreateInput{
		TourID:       f.tourID,
		BookingDate:  "2026-07-01",
		Participants: participants,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	return b
}

func TestBookingLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	ctx := context.Background()

	b := f.book(t, 2)

	if b.Status != domain.StatusPending {
		t.Errorf("expected pending, got %q", b.Status)
	}

	if b.TotalPrice != 199.98 {
		t.Errorf("expected total price 199.98, got %v", b.TotalPrice)
	}

	if got := f.spots(t); got != 8 {
		t.Fatalf("expected 8 spots after booking, got %d", got)
	}

	confirmed, err := f.manager.SetBookingStatus(ctx, b.ID, domain.StatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if confirmed.Status != domain.StatusConfirmed {
		t.Errorf("expected confirmed, got %q", confirmed.Status)
	}

	if got := f.spots(t); got != 8 {
		t.Fatalf("confirming must not move seats, got %d", got)
	}

	res, err := f.manager.CancelBookingAsUser(ctx, f.userID, b.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if res.Status != domain.StatusCancelled || res.AvailableSpots != 10 {
		t.Errorf("unexpected cancel result: %+v", res)
	}

	if got := f.spots(t); got != 10 {
		t.Fatalf("expected 10 spots after cancel, got %d", got)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 5)

	tests := []struct {
		name  string
		input booking.CreateInput
		field string
	}{
		{"missing tour", booking.CreateInput{BookingDate: "2026-07-01", Participants: 1}, "tour_id"},
		{"missing date", booking.CreateInput{TourID: f.tourID, Participants: 1}, "booking_date"},
		{"bad date", booking.CreateInput{TourID: f.tourID, BookingDate: "01.07.2026", Participants: 1}, "booking_date"},
		{"zero participants", booking.CreateInput{TourID: f.tourID, BookingDate: "2026-07-01"}, "participants"},
	}

	for _, tt := range tests {
		_, err := f.manager.CreateBooking(context.Background(), f.userID, &tt.input)

		inputErr := domain.IsInputError(err)
		if inputErr == nil {
			t.Errorf("%s: expected input error, got %v", tt.name, err)

			continue
		}

		if _, ok := inputErr.Fields()[tt.field]; !ok {
			t.Errorf("%s: expected error on %q, got %v", tt.name, tt.field, inputErr.Fields())
		}
	}

	if got := f.spots(t); got != 5 {
		t.Errorf("rejected input must not move seats, got %d", got)
	}
}

func TestCreateBookingUnknownTour(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 5)

	_, err := f.manager.CreateBooking(context.Background(), f.userID, &booking.CreateInput{
		TourID:       f.tourID + 100,
		BookingDate:  "2026-07-01",
		Participants: 1,
	})
	if domain.IsNotFoundError(err) == nil {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestCreateBookingOverCapacity(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3)

	_, err := f.manager.CreateBooking(context.Background(), f.userID, &booking.CreateInput{
		TourID:       f.tourID,
		BookingDate:  "2026-07-01",
		Participants: 4,
	})

	capErr := domain.IsCapacityError(err)
	if capErr == nil {
		t.Fatalf("expected capacity error, got %v", err)
	}

	if capErr.Requested != 4 || capErr.Available != 3 {
		t.Errorf("unexpected capacity error: %+v", capErr)
	}

	if got := f.spots(t); got != 3 {
		t.Errorf("expected spots unchanged at 3, got %d", got)
	}

	bookings, err := f.manager.ListUserBookings(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}

	if len(bookings) != 0 {
		t.Errorf("expected no bookings, got %d", len(bookings))
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 6)
	ctx := context.Background()
	b := f.book(t, 3)

	if _, err := f.manager.CancelBookingAsUser(ctx, f.userID, b.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}

	res, err := f.manager.CancelBookingAsUser(ctx, f.userID, b.ID)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}

	if res.Status != domain.StatusCancelled || res.AvailableSpots != 6 {
		t.Errorf("unexpected second cancel result: %+v", res)
	}

	if got := f.spots(t); got != 6 {
		t.Errorf("expected 6 spots, got %d", got)
	}
}

func TestCancelOtherUsersBooking(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 6)
	b := f.book(t, 2)

	_, err := f.manager.CancelBookingAsUser(context.Background(), f.userID+1, b.ID)
	if domain.IsNotFoundError(err) == nil {
		t.Fatalf("expected not found error, got %v", err)
	}

	if got := f.spots(t); got != 4 {
		t.Errorf("expected 4 spots, got %d", got)
	}
}

func TestSetBookingStatusIsSymmetric(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 4)
	ctx := context.Background()
	b := f.book(t, 3)

	if _, err := f.manager.SetBookingStatus(ctx, b.ID, domain.StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if got := f.spots(t); got != 4 {
		t.Fatalf("expected 4 spots after admin cancel, got %d", got)
	}

	if _, err := f.manager.SetBookingStatus(ctx, b.ID, domain.StatusConfirmed); err != nil {
		t.Fatalf("reinstate: %v", err)
	}

	if got := f.spots(t); got != 1 {
		t.Fatalf("reinstating must take seats again, got %d", got)
	}

	// Fill the tour, then try to reinstate a cancelled booking.
	if _, err := f.manager.SetBookingStatus(ctx, b.ID, domain.StatusCancelled); err != nil {
		t.Fatalf("cancel again: %v", err)
	}

	f.book(t, 2)

	_, err := f.manager.SetBookingStatus(ctx, b.ID, domain.StatusPending)
	if domain.IsCapacityError(err) == nil {
		t.Fatalf("expected capacity error, got %v", err)
	}

	if got := f.spots(t); got != 2 {
		t.Errorf("failed reinstate must not move seats, got %d", got)
	}

	bookings, err := f.manager.ListAllBookings(ctx)
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}

	for _, got := range bookings {
		if got.ID == b.ID && got.Status != domain.StatusCancelled {
			t.Errorf("failed reinstate must keep status cancelled, got %q", got.Status)
		}
	}
}

func TestSetBookingStatusErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 4)
	ctx := context.Background()
	b := f.book(t, 1)

	if _, err := f.manager.SetBookingStatus(ctx, b.ID, "shipped"); domain.IsInputError(err) == nil {
		t.Errorf("expected input error, got %v", err)
	}

	if _, err := f.manager.SetBookingStatus(ctx, b.ID+100, domain.StatusConfirmed); domain.IsNotFoundError(err) == nil {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestIdempotencyKeyReplaysBooking(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	ctx := booking.NewContextWithIdempotencyKey(context.Background(), " order-42 ")
	input := &booking.CreateInput{TourID: f.tourID, BookingDate: "2026-07-01", Participants: 2}

	first, err := f.manager.CreateBooking(ctx, f.userID, input)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	second, err := f.manager.CreateBooking(ctx, f.userID, input)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected replayed booking %d, got %d", first.ID, second.ID)
	}

	if got := f.spots(t); got != 8 {
		t.Errorf("replay must not take seats, got %d", got)
	}

	changed := *input
	changed.Participants = 5
	changed.BookingDate = "2026-07-02"

	if _, err = f.manager.CreateBooking(ctx, f.userID, &changed); domain.IsConflictError(err) == nil {
		t.Errorf("expected conflict error for a reused key with another body, got %v", err)
	}

	if got := f.spots(t); got != 8 {
		t.Errorf("rejected reuse must not take seats, got %d", got)
	}

	long := booking.NewContextWithIdempotencyKey(context.Background(), strings.Repeat("k", 200))
	if _, err = f.manager.CreateBooking(long, f.userID, input); domain.IsInputError(err) == nil {
		t.Errorf("expected input error for a long key, got %v", err)
	}
}

func TestConcurrentBookingsForLastSeat(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)

	const workers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := f.manager.CreateBooking(context.Background(), f.userID, &booking.CreateInput{
				TourID:       f.tourID,
				BookingDate:  "2026-07-01",
				Participants: 1,
			})

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				succeeded++
			case domain.IsCapacityError(err) != nil:
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	if succeeded != 1 || rejected != workers-1 {
		t.Errorf("expected 1 success and %d rejections, got %d and %d", workers-1, succeeded, rejected)
	}

	if got := f.spots(t); got != 0 {
		t.Errorf("expected 0 spots, got %d", got)
	}
}

func TestSeatConservation(t *testing.T) {
	t.Parallel()

	const capacity = 20

	f := newFixture(t, capacity)
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(7)) //nolint:gosec

	var ids []int64

	statuses := []domain.Status{domain.StatusPending, domain.StatusConfirmed, domain.StatusCancelled}

	for range 300 {
		switch op := rnd.Intn(3); {
		case op == 0 || len(ids) == 0:
			b, err := f.manager.CreateBooking(ctx, f.userID, &booking.CreateInput{
				TourID:       f.tourID,
				BookingDate:  "2026-07-01",
				Participants: 1 + rnd.Intn(5),
			})
			if err == nil {
				ids = append(ids, b.ID)
			} else if domain.IsCapacityError(err) == nil {
				t.Fatalf("create: %v", err)
			}
		case op == 1:
			if _, err := f.manager.CancelBookingAsUser(ctx, f.userID, ids[rnd.Intn(len(ids))]); err != nil {
				t.Fatalf("cancel: %v", err)
			}
		default:
			status := statuses[rnd.Intn(len(statuses))]

			_, err := f.manager.SetBookingStatus(ctx, ids[rnd.Intn(len(ids))], status)
			if err != nil && domain.IsCapacityError(err) == nil {
				t.Fatalf("set status: %v", err)
			}
		}

		spots := f.spots(t)
		if spots < 0 {
			t.Fatalf("negative spots: %d", spots)
		}

		bookings, err := f.manager.ListUserBookings(ctx, f.userID)
		if err != nil {
			t.Fatalf("list bookings: %v", err)
		}

		held := 0

		for _, b := range bookings {
			if b.Status.HoldsSeats() {
				held += b.Participants
			}
		}

		if spots+held != capacity {
			t.Fatalf("seat conservation broken: %d free + %d held != %d", spots, held, capacity)
		}
	}
}
