// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/danielhkuo/orgvote/db"
	"github.com/danielhkuo/orgvote/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// GroupChecker reports target group IDs that do not exist.
type GroupChecker interface {
	Missing(ctx context.Context, ids []string) ([]string, error)
}

// ListOptions filters and pages list queries.
type ListOptions struct {
	Status  string
	Page    int
	PerPage int

	// HideDrafts drops drafts, for callers without admin access.
	HideDrafts bool
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func (o ListOptions) normalize() ListOptions {
	if o.PerPage < 1 {
		o.PerPage = defaultPerPage
	}
	if o.PerPage > maxPerPage {
		o.PerPage = maxPerPage
	}
	// Keeps offset() from overflowing.
	o.Page = min(max(o.Page, 1), math.MaxInt/o.PerPage)
	return o
}

func (o ListOptions) offset() int {
	return (o.Page - 1) * o.PerPage
}

// filter returns the WHERE clause and its arguments, followed by the
// placeholders for LIMIT and OFFSET.
func (o ListOptions) filter() (where string, args []any, limit string) {
	where = "($1 = '' OR status = $1)"
	args = []any{o.Status}
	if o.HideDrafts {
		where += " AND status <> $2"
		args = append(args, models.StatusDraft)
	}
	n := len(args)
	return where, args, fmt.Sprintf("LIMIT $%d OFFSET $%d", n+1, n+2)
}

func checkGroups(ctx context.Context, groups GroupChecker, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := groups.Missing(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return models.ValidationError(map[string]string{
			"target_groups": "unknown group: " + strings.Join(missing, ", "),
		})
	}
	return nil
}

// loadTargets returns the target group IDs of each owner, keyed by owner ID.
func loadTargets(ctx context.Context, q querier, table, ownerCol string, ownerIDs []string) (map[string][]string, error) {
	targets := make(map[string][]string, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return targets, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+ownerCol+`, group_id FROM `+table+
			` WHERE `+ownerCol+` IN (`+db.Placeholders(1, len(ownerIDs))+`) ORDER BY group_id`,
		db.Args(ownerIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var owner, group string
		if err := rows.Scan(&owner, &group); err != nil {
			return nil, err
		}
		targets[owner] = append(targets[owner], group)
	}
	return targets, rows.Err()
}

func insertTargets(ctx context.Context, tx *sql.Tx, table, ownerCol, ownerID string, groupIDs []string) error {
	seen := make(map[string]bool, len(groupIDs))
	for _, g := range groupIDs {
		if seen[g] {
			continue
		}
		seen[g] = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (`+ownerCol+`, group_id) VALUES ($1, $2)`, ownerID, g); err != nil {
			return fmt.Errorf("failed to insert target group: %w", err)
		}
	}
	return nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
