package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/internal/storage"
)

const userColumns = "id, first_name, last_name, phone, weight_kg, sex, is_cut_off, updated_at"

// UpsertUser creates or replaces a user profile.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *models.User) error {
	if user.UpdatedAt == 0 {
		user.UpdatedAt = time.Now().Unix()
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			phone = excluded.phone,
			weight_kg = excluded.weight_kg,
			sex = excluded.sex,
			is_cut_off = excluded.is_cut_off,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.WeightKg,
		string(user.Sex),
		user.IsCutOff,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil // User not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetUsersByIDs retrieves multiple users by their IDs.
// Returns a map of user ID to User object.
// Users that don't exist are omitted from the result.
func (s *SQLiteStore) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	if len(ids) == 0 {
		return make(map[string]*models.User), nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id IN (?` + repeatPlaceholder(len(ids)-1) + `)`

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by IDs: %w", err)
	}
	defer rows.Close()

	users := make(map[string]*models.User)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users[user.ID] = user
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// SetCutOff updates the cut-off flag of an existing user.
func (s *SQLiteStore) SetCutOff(ctx context.Context, userID string, cutOff bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET is_cut_off = ?, updated_at = ? WHERE id = ?",
		cutOff, time.Now().Unix(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cut-off: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var sex string
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.WeightKg,
		&sex,
		&user.IsCutOff,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Sex = models.Sex(sex)
	return user, nil
}
