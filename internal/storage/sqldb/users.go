package sqldb

import (
	"context"
	"fmt"

	"github.com/avstrong/tours/internal/domain"
)

const userColumns = `id, username, password_hash, role`

func (db *DB) SaveUser(ctx context.Context, user *domain.User) error {
	id, err := db.insert(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		user.Username, user.PasswordHash, string(user.Role),
	)
	if err != nil {
		return fmt.Errorf("insert user %q: %w", user.Username, err)
	}

	user.ID = id

	return nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User

	if err := db.get(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return nil, err
	}

	return &user, nil
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User

	if err := db.get(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username = ?`, username); err != nil {
		return nil, err
	}

	return &user, nil
}

func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var count int

	if err := db.get(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return count, nil
}
