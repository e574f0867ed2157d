package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestInputError(t *testing.T) {
	t.Parallel()

	ie := NewInputError()

	if ie.ErrOrNil() != nil {
		t.Fatal("expected nil for an empty input error")
	}

	ie.AddError("price", "price must be a positive number")
	ie.AddError("name", "name is required")

	err := ie.ErrOrNil()
	if err == nil {
		t.Fatal("expected an error")
	}

	if got := err.Error(); got != "name is required; price must be a positive number" {
		t.Errorf("unexpected message %q", got)
	}

	wrapped := fmt.Errorf("create tour: %w", err)

	if IsInputError(wrapped) != ie {
		t.Error("expected IsInputError to unwrap")
	}

	if IsInputError(nil) != nil || IsInputError(errors.New("other")) != nil {
		t.Error("expected nil for unrelated errors")
	}
}

func TestTypedErrorsUnwrap(t *testing.T) {
	t.Parallel()

	wrap := func(err error) error { return fmt.Errorf("outer: %w", err) }

	if IsAuthError(wrap(NewAuthError("no"))) == nil {
		t.Error("auth error not detected")
	}

	if IsForbiddenError(wrap(&ForbiddenError{Required: RoleAdmin})) == nil {
		t.Error("forbidden error not detected")
	}

	if e := IsNotFoundError(wrap(NewNotFoundError("tour"))); e == nil || e.Error() != "tour not found" {
		t.Errorf("unexpected not found error: %v", e)
	}

	if IsConflictError(wrap(NewConflictError("taken"))) == nil {
		t.Error("conflict error not detected")
	}

	capErr := IsCapacityError(wrap(&CapacityError{TourID: 1, Requested: 3, Available: 2}))
	if capErr == nil || capErr.Available != 2 {
		t.Errorf("unexpected capacity error: %v", capErr)
	}

	if IsNotFoundError(NewConflictError("x")) != nil {
		t.Error("conflict error must not look like not found")
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusPending, StatusConfirmed, StatusCancelled} {
		if !s.Valid() {
			t.Errorf("%q must be valid", s)
		}
	}

	if Status("paid").Valid() {
		t.Error("unknown status must be invalid")
	}

	if !StatusPending.HoldsSeats() || !StatusConfirmed.HoldsSeats() || StatusCancelled.HoldsSeats() {
		t.Error("only cancelled bookings release their seats")
	}
}
