package web

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"

	"github.com/avstrong/tours/internal/booking"
	"github.com/avstrong/tours/internal/catalog"
	"github.com/avstrong/tours/internal/identity"
	"github.com/avstrong/tours/internal/logger"
	"github.com/avstrong/tours/internal/review"
)

type Server struct {
	srv      *http.Server
	router   *http.ServeMux
	l        *logger.Logger
	conf     Conf
	identity *identity.Manager
	catalog  *catalog.Manager
	bookings *booking.Manager
	reviews  *review.Manager
}

type Conf struct {
	L                 *logger.Logger
	ServerLogger      *log.Logger
	Host              string
	Port              string
	ReadHeaderTimeout time.Duration
	RequestTimeout    time.Duration
	LivenessEndpoint  string
	AllowedOrigins    []string
}

type Managers struct {
	Identity *identity.Manager
	Catalog  *catalog.Manager
	Bookings *booking.Manager
	Reviews  *review.Manager
}

func New(ctx context.Context, conf Conf, managers Managers) (*Server, error) {
	mux := http.NewServeMux()

	server := &Server{
		router:   mux,
		l:        conf.L,
		conf:     conf,
		identity: managers.Identity,
		catalog:  managers.Catalog,
		bookings: managers.Bookings,
		reviews:  managers.Reviews,
	}

	server.addRoutes(mux)

	cors := handlers.CORS(
		handlers.AllowedOrigins(conf.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "Idempotency-Key"}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)

	//nolint:exhaustruct
	server.srv = &http.Server{
		Addr:              net.JoinHostPort(conf.Host, conf.Port),
		ReadHeaderTimeout: conf.ReadHeaderTimeout,
		ErrorLog:          conf.ServerLogger,
		Handler:           cors(mux),
		BaseContext: func(listener net.Listener) context.Context {
			return ctx
		},
	}

	return server, nil
}

func (s *Server) Srv() *http.Server {
	return s.srv
}

// Handler exposes the full handler chain, including CORS. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
