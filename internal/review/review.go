package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avstrong/tours/internal/domain"
	"github.com/avstrong/tours/internal/logger"
)

const (
	minRating = 1
	maxRating = 5
)

type store interface {
	GetTour(ctx context.Context, id int64) (*domain.Tour, error)
	SaveReview(ctx context.Context, review *domain.Review) error
	GetReview(ctx context.Context, id int64) (*domain.Review, error)
	ListTourReviews(ctx context.Context, tourID int64) ([]*domain.Review, error)
	ListReviews(ctx context.Context) ([]*domain.Review, error)
	DeleteReview(ctx context.Context, id int64) error
}

type Manager struct {
	l       *logger.Logger
	storage store
	now     func() time.Time
}

func New(l *logger.Logger, storage store) *Manager {
	return &Manager{
		l:       l,
		storage: storage,
		now:     time.Now,
	}
}

type Input struct {
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

func (in *Input) validate() error {
	inputErr := domain.NewInputError()

	if in.Rating < minRating || in.Rating > maxRating {
		inputErr.AddError("rating", fmt.Sprintf("rating must be between %d and %d", minRating, maxRating))
	}

	if strings.TrimSpace(in.Text) == "" {
		inputErr.AddError("text", "text is required")
	}

	return inputErr.ErrOrNil()
}

// AddReview stores the review and returns it joined with the author's name.
func (m *Manager) AddReview(ctx context.Context, userID, tourID int64, input *Input) (*domain.Review, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	_, err := m.storage.GetTour(ctx, tourID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("tour")
	}

	if err != nil {
		return nil, fmt.Errorf("get tour %d: %w", tourID, err)
	}

	//nolint:exhaustruct
	review := &domain.Review{
		UserID:    userID,
		TourID:    tourID,
		Rating:    input.Rating,
		Text:      strings.TrimSpace(input.Text),
		CreatedAt: m.now().UTC().Truncate(time.Microsecond),
	}

	if err = m.storage.SaveReview(ctx, review); err != nil {
		return nil, fmt.Errorf("save review: %w", err)
	}

	saved, err := m.storage.GetReview(ctx, review.ID)
	if err != nil {
		return nil, fmt.Errorf("get review %d: %w", review.ID, err)
	}

	m.l.LogInfo("Review %d added to tour %d by user %d", saved.ID, tourID, userID)

	return saved, nil
}

func (m *Manager) ListTourReviews(ctx context.Context, tourID int64) ([]*domain.Review, error) {
	reviews, err := m.storage.ListTourReviews(ctx, tourID)
	if err != nil {
		return nil, fmt.Errorf("list reviews of tour %d: %w", tourID, err)
	}

	return reviews, nil
}

func (m *Manager) ListAllReviews(ctx context.Context) ([]*domain.Review, error) {
	reviews, err := m.storage.ListReviews(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	return reviews, nil
}

func (m *Manager) DeleteReview(ctx context.Context, id int64) error {
	err := m.storage.DeleteReview(ctx, id)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.NewNotFoundError("review")
	}

	if err != nil {
		return fmt.Errorf("delete review %d: %w", id, err)
	}

	m.l.LogInfo("Review %d deleted", id)

	return nil
}
