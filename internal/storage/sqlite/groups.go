package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/internal/storage"
)

// CreateGroup persists a new group and its initial members.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if group.CreatedAt == 0 {
		group.CreatedAt = now
	}
	group.UpdatedAt = group.CreatedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO groups (id, code, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		group.ID, group.Code, group.Name, group.CreatedAt, group.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("code %s: %w", group.Code, storage.ErrCodeTaken)
	}
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	for _, userID := range group.MemberIDs {
		_, err = tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO group_members (group_id, user_id, joined_at) VALUES (?, ?, ?)",
			group.ID, userID, group.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetGroup retrieves a group by ID, including its members in join order.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return s.getGroupWhere(ctx, "id = ?", groupID)
}

// GetGroupByCode retrieves a group by its join code.
func (s *SQLiteStore) GetGroupByCode(ctx context.Context, code string) (*models.Group, error) {
	return s.getGroupWhere(ctx, "code = ?", code)
}

// FindGroupByMember returns the first group the user joined.
func (s *SQLiteStore) FindGroupByMember(ctx context.Context, userID string) (*models.Group, error) {
	var groupID string
	err := s.db.QueryRowContext(ctx,
		"SELECT group_id FROM group_members WHERE user_id = ? ORDER BY joined_at, rowid LIMIT 1",
		userID,
	).Scan(&groupID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("member %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find group by member: %w", err)
	}

	return s.GetGroup(ctx, groupID)
}

// AddMember appends a user to a group.
func (s *SQLiteStore) AddMember(ctx context.Context, groupID, userID string) (bool, error) {
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO group_members (group_id, user_id, joined_at) VALUES (?, ?, ?)",
		groupID, userID, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, "UPDATE groups SET updated_at = ? WHERE id = ?", now, groupID); err != nil {
		return false, fmt.Errorf("failed to update group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

// ListGroups retrieves all groups with their members.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, code, name, created_at, updated_at FROM groups ORDER BY created_at, rowid",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var groups []*models.Group
	byID := make(map[string]*models.Group)
	for rows.Next() {
		group := &models.Group{}
		if err := rows.Scan(&group.ID, &group.Code, &group.Name, &group.CreatedAt, &group.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
		byID[group.ID] = group
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	memberRows, err := s.db.QueryContext(ctx,
		"SELECT group_id, user_id FROM group_members ORDER BY joined_at, rowid",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var groupID, userID string
		if err := memberRows.Scan(&groupID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		if group, ok := byID[groupID]; ok {
			group.MemberIDs = append(group.MemberIDs, userID)
		}
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group members: %w", err)
	}

	return groups, nil
}

func (s *SQLiteStore) getGroupWhere(ctx context.Context, where string, arg any) (*models.Group, error) {
	group := &models.Group{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, code, name, created_at, updated_at FROM groups WHERE "+where,
		arg,
	).Scan(&group.ID, &group.Code, &group.Name, &group.CreatedAt, &group.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %v: %w", arg, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM group_members WHERE group_id = ? ORDER BY joined_at, rowid",
		group.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		group.MemberIDs = append(group.MemberIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group members: %w", err)
	}

	return group, nil
}
