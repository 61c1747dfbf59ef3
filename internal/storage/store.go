// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/saferound/internal/models"
)

var (
	// ErrNotFound is returned when a group or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCodeTaken is returned by CreateGroup when the join code is already used.
	ErrCodeTaken = errors.New("group code already in use")
)

// Store defines the interface for group, profile and drink storage.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// UpsertUser creates or replaces a profile keyed by user.ID.
	UpsertUser(ctx context.Context, user *models.User) error

	// GetUser retrieves a profile. Returns nil and no error if it does not exist.
	GetUser(ctx context.Context, userID string) (*models.User, error)

	// GetUsersByIDs retrieves several profiles. Missing users are omitted.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)

	// SetCutOff updates the cut-off flag. Returns ErrNotFound for unknown users.
	SetCutOff(ctx context.Context, userID string, cutOff bool) error

	// CreateGroup persists a new group with its initial members.
	// The group.ID field will be populated by the store.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group by ID. Returns ErrNotFound if it does not exist.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// GetGroupByCode retrieves a group by its join code. Returns ErrNotFound if none matches.
	GetGroupByCode(ctx context.Context, code string) (*models.Group, error)

	// FindGroupByMember returns the earliest group userID joined. Returns ErrNotFound
	// if the user is in no group.
	FindGroupByMember(ctx context.Context, userID string) (*models.Group, error)

	// AddMember appends userID to a group. It reports false if the user was
	// already a member.
	AddMember(ctx context.Context, groupID, userID string) (bool, error)

	// ListGroups retrieves every group, oldest first.
	ListGroups(ctx context.Context) ([]*models.Group, error)

	// RecordDrink persists a validated drink.
	RecordDrink(ctx context.Context, drink *models.DrinkRecord) error

	// LastDrink returns the user's most recent drink, or nil if there is none.
	LastDrink(ctx context.Context, userID string) (*models.DrinkRecord, error)

	// Close releases any resources held by the store.
	Close() error
}
