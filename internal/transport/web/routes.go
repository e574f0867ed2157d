package web

import (
	"fmt"
	"net/http"

	"github.com/avstrong/tours/internal/booking"
	"github.com/avstrong/tours/internal/catalog"
	"github.com/avstrong/tours/internal/domain"
	"github.com/avstrong/tours/internal/identity"
	"github.com/avstrong/tours/internal/review"
)

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var creds identity.Credentials

	if err := decodeJSON(w, r, &creds); err != nil {
		s.writeError(w, err)

		return
	}

	session, err := s.identity.Register(r.Context(), &creds)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, session)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var creds identity.Credentials

	if err := decodeJSON(w, r, &creds); err != nil {
		s.writeError(w, err)

		return
	}

	session, err := s.identity.Login(r.Context(), &creds)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, session)
}

func (s *Server) listToursHandler(w http.ResponseWriter, r *http.Request) {
	tours, err := s.catalog.ListTours(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, tours)
}

func (s *Server) getTourHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "tour")
	if err != nil {
		s.writeError(w, err)

		return
	}

	tour, err := s.catalog.GetTour(r.Context(), id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, tour)
}

func (s *Server) createTourHandler(w http.ResponseWriter, r *http.Request) {
	var input catalog.TourInput

	if err := decodeJSON(w, r, &input); err != nil {
		s.writeError(w, err)

		return
	}

	tour, err := s.catalog.CreateTour(r.Context(), &input)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, tour)
}

func (s *Server) updateTourHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "tour")
	if err != nil {
		s.writeError(w, err)

		return
	}

	var input catalog.TourInput

	if err = decodeJSON(w, r, &input); err != nil {
		s.writeError(w, err)

		return
	}

	tour, err := s.catalog.UpdateTour(r.Context(), id, &input)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, tour)
}

func (s *Server) deleteTourHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "tour")
	if err != nil {
		s.writeError(w, err)

		return
	}

	if err = s.catalog.DeleteTour(r.Context(), id); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, messageBody{Message: "Tour deleted"})
}

func (s *Server) listTourReviewsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "tour")
	if err != nil {
		s.writeError(w, err)

		return
	}

	reviews, err := s.reviews.ListTourReviews(r.Context(), id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, reviews)
}

func (s *Server) addReviewHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := identityFromContext(r.Context())

	tourID, err := pathID(r, "tour")
	if err != nil {
		s.writeError(w, err)

		return
	}

	var input review.Input

	if err = decodeJSON(w, r, &input); err != nil {
		s.writeError(w, err)

		return
	}

	out, err := s.reviews.AddReview(r.Context(), user.ID, tourID, &input)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, out)
}

func (s *Server) listReviewsHandler(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.reviews.ListAllReviews(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, reviews)
}

func (s *Server) deleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "review")
	if err != nil {
		s.writeError(w, err)

		return
	}

	if err = s.reviews.DeleteReview(r.Context(), id); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, messageBody{Message: "Review deleted"})
}

func (s *Server) createBookingHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := identityFromContext(r.Context())

	var input booking.CreateInput

	if err := decodeJSON(w, r, &input); err != nil {
		s.writeError(w, err)

		return
	}

	ctx := booking.NewContextWithIdempotencyKey(r.Context(), r.Header.Get("Idempotency-Key"))

	out, err := s.bookings.CreateBooking(ctx, user.ID, &input)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, out)
}

func (s *Server) listUserBookingsHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := identityFromContext(r.Context())

	bookings, err := s.bookings.ListUserBookings(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, bookings)
}

func (s *Server) cancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := identityFromContext(r.Context())

	id, err := pathID(r, "booking")
	if err != nil {
		s.writeError(w, err)

		return
	}

	out, err := s.bookings.CancelBookingAsUser(r.Context(), user.ID, id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) listBookingsHandler(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.bookings.ListAllBookings(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, bookings)
}

type statusInput struct {
	Status domain.Status `json:"status"`
}

type statusOutput struct {
	ID     int64         `json:"id"`
	Status domain.Status `json:"status"`
}

func (s *Server) setBookingStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "booking")
	if err != nil {
		s.writeError(w, err)

		return
	}

	var input statusInput

	if err = decodeJSON(w, r, &input); err != nil {
		s.writeError(w, err)

		return
	}

	out, err := s.bookings.SetBookingStatus(r.Context(), id, input.Status)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, statusOutput{ID: out.ID, Status: out.Status})
}

func (s *Server) livenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addRoutes(r *http.ServeMux) {
	r.Handle("POST /api/auth/register", s.public(s.registerHandler))
	r.Handle("POST /api/auth/login", s.public(s.loginHandler))

	r.Handle("GET /api/tours", s.public(s.listToursHandler))
	r.Handle("GET /api/tours/{id}", s.public(s.getTourHandler))
	r.Handle("GET /api/tours/{id}/reviews", s.public(s.listTourReviewsHandler))
	r.Handle("POST /api/tours/{id}/reviews", s.authenticated(s.addReviewHandler))

	r.Handle("POST /api/bookings", s.authenticated(s.createBookingHandler))
	r.Handle("GET /api/user/bookings", s.authenticated(s.listUserBookingsHandler))
	r.Handle("PUT /api/user/bookings/{id}/cancel", s.authenticated(s.cancelBookingHandler))

	r.Handle("GET /api/admin/bookings", s.admin(s.listBookingsHandler))
	r.Handle("PUT /api/admin/bookings/{id}", s.admin(s.setBookingStatusHandler))
	r.Handle("POST /api/admin/tours", s.admin(s.createTourHandler))
	r.Handle("PUT /api/admin/tours/{id}", s.admin(s.updateTourHandler))
	r.Handle("DELETE /api/admin/tours/{id}", s.admin(s.deleteTourHandler))
	r.Handle("GET /api/admin/reviews", s.admin(s.listReviewsHandler))
	r.Handle("DELETE /api/reviews/{id}", s.admin(s.deleteReviewHandler))

	r.Handle(fmt.Sprintf("GET %s", s.conf.LivenessEndpoint), s.public(s.livenessHandler))
}
