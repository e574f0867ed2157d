package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Labels substituted in joined listings when the referenced row is gone.
const (
	DeletedUserLabel = "Deleted user"
	DeletedTourLabel = "Deleted tour"
)

type User struct {
	ID           int64  `json:"id" db:"id"`
	Username     string `json:"username" db:"username"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         Role   `json:"role" db:"role"`
}

// Identity is what a session token asserts about its bearer.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (u *User) Identity() Identity {
	return Identity{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
	}
}

type Tour struct {
	ID                int64   `json:"id" db:"id"`
	Name              string  `json:"name" db:"name"`
	Description       string  `json:"description" db:"description"`
	Price             float64 `json:"price" db:"price"`
	Duration          int     `json:"duration" db:"duration"`
	Destination       string  `json:"destination" db:"destination"`
	ImageURL          string  `json:"image_url" db:"image_url"`
	AvailableSpots    int     `json:"available_spots" db:"available_spots"`
	TransportType     string  `json:"transport_type" db:"transport_type"`
	DepartureLocation string  `json:"departure_location" db:"departure_location"`
	DepartureTime     string  `json:"departure_time" db:"departure_time"`
	TourGuide         string  `json:"tour_guide" db:"tour_guide"`
	IncludedServices  string  `json:"included_services" db:"included_services"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	default:
		return false
	}
}

// HoldsSeats reports whether a booking in this status occupies tour capacity.
func (s Status) HoldsSeats() bool {
	return s != StatusCancelled
}

type Booking struct {
	ID             int64   `json:"id" db:"id"`
	UserID         int64   `json:"user_id" db:"user_id"`
	TourID         int64   `json:"tour_id" db:"tour_id"`
	BookingDate    string  `json:"booking_date" db:"booking_date"`
	Participants   int     `json:"participants" db:"participants"`
	Status         Status  `json:"status" db:"status"`
	TotalPrice     float64 `json:"total_price" db:"total_price"`
	IdempotencyKey string  `json:"-" db:"idempotency_key"`
}

// UserBooking is a booking joined with the tour fields shown to its owner.
type UserBooking struct {
	Booking
	TourName          string `json:"tour_name" db:"tour_name"`
	Destination       string `json:"destination" db:"destination"`
	TransportType     string `json:"transport_type" db:"transport_type"`
	DepartureLocation string `json:"departure_location" db:"departure_location"`
	DepartureTime     string `json:"departure_time" db:"departure_time"`
	TourGuide         string `json:"tour_guide" db:"tour_guide"`
	IncludedServices  string `json:"included_services" db:"included_services"`
}

// AdminBooking is a booking joined with its author and tour names.
type AdminBooking struct {
	Booking
	Username string `json:"username" db:"username"`
	TourName string `json:"tour_name" db:"tour_name"`
}

type Review struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	TourID    int64     `json:"tour_id" db:"tour_id"`
	Rating    int       `json:"rating" db:"rating"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Username  string    `json:"username" db:"username"`
	TourName  string    `json:"tour_name,omitempty" db:"tour_name"`
}
