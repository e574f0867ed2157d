package memory

import (
	"context"
	"fmt"

	"github.com/avstrong/tours/internal/domain"
)

func (db *DB) SaveUser(ctx context.Context, user *domain.User) error {
	release, err := db.autocommit(ctx)
	if err != nil {
		return err
	}
	defer release()

	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.users {
		if existing.Username == user.Username {
			return fmt.Errorf("username %q: %w", user.Username, domain.ErrDuplicate)
		}
	}

	id, err := db.userIDs.GetID(ctx)
	if err != nil {
		return fmt.Errorf("next user id: %w", err)
	}

	user.ID = id
	stored := *user
	db.users[id] = &stored

	return db.onRollback(ctx, func() {
		delete(db.users, id)
	})
}

func (db *DB) GetUser(_ context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	user, ok := db.users[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	out := *user

	return &out, nil
}

func (db *DB) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, user := range db.users {
		if user.Username == username {
			out := *user

			return &out, nil
		}
	}

	return nil, domain.ErrRecordNotFound
}

func (db *DB) CountUsers(_ context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return len(db.users), nil
}
