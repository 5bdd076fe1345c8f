// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/danielhkuo/orgvote/auth"
	"github.com/danielhkuo/orgvote/db"
	"github.com/danielhkuo/orgvote/models"
)

var ErrGroupNotFound = errors.New("group not found")

// Store reads and maintains group rosters.
type Store struct {
	db *sql.DB
}

func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// Missing returns the IDs from ids that do not name an existing group.
func (s *Store) Missing(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM user_group WHERE id IN (`+db.Placeholders(1, len(ids))+`)`,
		db.Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// IsMemberOfAny reports whether the user belongs to at least one group.
func (s *Store) IsMemberOfAny(ctx context.Context, userID string, groupIDs []string) (bool, error) {
	if len(groupIDs) == 0 {
		return false, nil
	}

	args := append([]any{userID}, db.Args(groupIDs)...)
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM group_member
		WHERE user_id = $1 AND group_id IN (`+db.Placeholders(2, len(groupIDs))+`)
	`, args...).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// Members returns the sorted, distinct members of the given groups.
func (s *Store) Members(ctx context.Context, groupIDs []string) ([]string, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM group_member
		WHERE group_id IN (`+db.Placeholders(1, len(groupIDs))+`)
	`, db.Args(groupIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

// List returns all groups ordered by type and name.
func (s *Store) List(ctx context.Context) ([]models.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type FROM user_group ORDER BY type, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := []models.Group{}
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Type); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Create inserts a new group.
func (s *Store) Create(ctx context.Context, name, groupType string) (*models.Group, error) {
	id, err := auth.GenerateID(12)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_group (id, name, type, created_at)
		VALUES ($1, $2, $3, $4)
	`, id, name, groupType, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	return &models.Group{ID: id, Name: name, Type: groupType}, nil
}

// AddMember adds a user to a group; adding an existing member is a no-op.
func (s *Store) AddMember(ctx context.Context, groupID, userID string) error {
	missing, err := s.Missing(ctx, []string{groupID})
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return ErrGroupNotFound
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO group_member (group_id, user_id) VALUES ($1, $2)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// SyncCity upserts the city group called name and replaces its roster
// with userIDs, all in one transaction. It returns the group ID.
func (s *Store) SyncCity(ctx context.Context, name string, userIDs []string) (string, error) {
	var groupID string
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM user_group WHERE type = $1 AND name = $2
		`, models.GroupTypeCity, name).Scan(&groupID)
		if err == sql.ErrNoRows {
			if groupID, err = auth.GenerateID(12); err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO user_group (id, name, type, created_at)
				VALUES ($1, $2, $3, $4)
			`, groupID, name, models.GroupTypeCity, time.Now().UTC())
		}
		if err != nil {
			return fmt.Errorf("failed to upsert city group %q: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM group_member WHERE group_id = $1`, groupID); err != nil {
			return fmt.Errorf("failed to clear city group %q: %w", name, err)
		}
		for _, userID := range userIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO group_member (group_id, user_id) VALUES ($1, $2)
			`, groupID, userID); err != nil {
				return fmt.Errorf("failed to add member to %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return groupID, nil
}
