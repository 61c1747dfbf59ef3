package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/saferound/internal/models"
)

// RecordDrink persists a validated drink.
func (s *SQLiteStore) RecordDrink(ctx context.Context, drink *models.DrinkRecord) error {
	if drink.ID == "" {
		drink.ID = uuid.New().String()
	}
	if drink.Timestamp == 0 {
		drink.Timestamp = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO drinks (id, user_id, drink_id, alcohol_grams, timestamp) VALUES (?, ?, ?, ?, ?)",
		drink.ID, drink.UserID, drink.DrinkID, drink.AlcoholGrams, drink.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record drink: %w", err)
	}

	return nil
}

// LastDrink returns the most recent drink of a user.
func (s *SQLiteStore) LastDrink(ctx context.Context, userID string) (*models.DrinkRecord, error) {
	drink := &models.DrinkRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, drink_id, alcohol_grams, timestamp
		FROM drinks WHERE user_id = ?
		ORDER BY timestamp DESC, rowid DESC LIMIT 1`,
		userID,
	).Scan(&drink.ID, &drink.UserID, &drink.DrinkID, &drink.AlcoholGrams, &drink.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last drink: %w", err)
	}

	return drink, nil
}
