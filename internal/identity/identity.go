package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/avstrong/tours/internal/domain"
	"github.com/avstrong/tours/internal/logger"
)

const (
	minPasswordLen = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72

	DefaultTokenTTL = 24 * time.Hour
)

var errInvalidCredentials = domain.NewAuthError("invalid username or password")

type storage interface {
	SaveUser(ctx context.Context, user *domain.User) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
}

type Conf struct {
	Secret     []byte
	TokenTTL   time.Duration
	BcryptCost int
	// Now is used as the issue time of new tokens. Defaults to time.Now.
	Now func() time.Time
}

type Manager struct {
	l         *logger.Logger
	storage   storage
	secret    []byte
	ttl       time.Duration
	cost      int
	now       func() time.Time
	dummyHash []byte
}

func New(l *logger.Logger, storage storage, conf Conf) (*Manager, error) {
	if len(conf.Secret) == 0 {
		return nil, ErrEmptySecret
	}

	ttl := conf.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	cost := conf.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	now := conf.Now
	if now == nil {
		now = time.Now
	}

	// Compared against when a username is unknown so both failure paths cost the same.
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &Manager{
		l:         l,
		storage:   storage,
		secret:    conf.Secret,
		ttl:       ttl,
		cost:      cost,
		now:       now,
		dummyHash: dummyHash,
	}, nil
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Session is what a successful register or login hands back to the client.
type Session struct {
	Token string          `json:"token"`
	User  domain.Identity `json:"user"`
}

func (c *Credentials) validate(checkLength bool) error {
	inputErr := domain.NewInputError()

	if strings.TrimSpace(c.Username) == "" {
		inputErr.AddError("username", "username is required")
	}

	switch {
	case c.Password == "":
		inputErr.AddError("password", "password is required")
	case checkLength && len(c.Password) < minPasswordLen:
		inputErr.AddError("password", fmt.Sprintf("password must be at least %d characters long", minPasswordLen))
	case checkLength && len(c.Password) > maxPasswordLen:
		inputErr.AddError("password", fmt.Sprintf("password must be at most %d bytes long", maxPasswordLen))
	}

	return inputErr.ErrOrNil()
}

func (m *Manager) Register(ctx context.Context, creds *Credentials) (*Session, error) {
	if err := creds.validate(true); err != nil {
		return nil, err
	}

	user, err := m.CreateUser(ctx, strings.TrimSpace(creds.Username), creds.Password, domain.RoleUser)
	if err != nil {
		return nil, err
	}

	m.l.LogInfo("User %d (%s) registered", user.ID, user.Username)

	return m.session(user)
}

// CreateUser stores a new account with the given role.
func (m *Manager) CreateUser(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	//nolint:exhaustruct
	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}

	if err = m.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.NewConflictError("username is already taken")
		}

		return nil, fmt.Errorf("save user: %w", err)
	}

	return user, nil
}

func (m *Manager) Login(ctx context.Context, creds *Credentials) (*Session, error) {
	if err := creds.validate(false); err != nil {
		return nil, err
	}

	user, err := m.storage.GetUserByUsername(ctx, strings.TrimSpace(creds.Username))
	if errors.Is(err, domain.ErrRecordNotFound) {
		_ = bcrypt.CompareHashAndPassword(m.dummyHash, []byte(creds.Password))

		return nil, errInvalidCredentials
	}

	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	return m.session(user)
}

func (m *Manager) session(user *domain.User) (*Session, error) {
	token, err := m.IssueToken(user.Identity())
	if err != nil {
		return nil, err
	}

	return &Session{Token: token, User: user.Identity()}, nil
}
