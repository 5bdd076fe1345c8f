// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/danielhkuo/orgvote/db"
)

// Logical profile fields
const (
	FirstName = "first_name"
	LastName  = "last_name"
	Nickname  = "nickname"
	Email     = "email"
	Phone     = "phone"
	City      = "city"
)

// LogicalFields lists every field the service knows how to read.
var LogicalFields = []string{FirstName, LastName, Nickname, Email, Phone, City}

// RequiredFields must be non-empty before a user may vote or respond.
var RequiredFields = []string{FirstName, LastName, Nickname, Email, City}

var ErrUserNotFound = errors.New("user not found")

// Mapping resolves logical profile fields for a user.
type Mapping interface {
	Get(ctx context.Context, logical, userID string) (string, error)
	IsSensitive(logical string) bool
}

// FieldMap maps logical field names to user_profile meta keys. Fields
// without an override use their logical name as the key.
type FieldMap struct {
	keys      map[string]string
	sensitive map[string]bool
}

func NewFieldMap(overrides map[string]string, sensitive []string) *FieldMap {
	m := &FieldMap{
		keys:      make(map[string]string, len(LogicalFields)),
		sensitive: make(map[string]bool, len(sensitive)),
	}
	for _, f := range LogicalFields {
		m.keys[f] = f
	}
	for logical, key := range overrides {
		m.keys[logical] = key
	}
	for _, f := range sensitive {
		m.sensitive[f] = true
	}
	return m
}

// Key returns the meta key backing a logical field.
func (m *FieldMap) Key(logical string) string {
	if k, ok := m.keys[logical]; ok {
		return k
	}
	return logical
}

// Has reports whether logical is a mapped field.
func (m *FieldMap) Has(logical string) bool {
	_, ok := m.keys[logical]
	return ok
}

func (m *FieldMap) IsSensitive(logical string) bool {
	return m.sensitive[logical]
}

// Profile holds a user's logical field values.
type Profile struct {
	UserID       string
	RegisteredAt time.Time
	Values       map[string]string
}

func (p *Profile) Value(logical string) string {
	return p.Values[logical]
}

// Missing returns the fields from required that are empty, in order.
func (p *Profile) Missing(required []string) []string {
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(p.Values[f]) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// FullName joins first and last name.
func (p *Profile) FullName() string {
	return strings.TrimSpace(p.Value(FirstName) + " " + p.Value(LastName))
}

// Store reads profiles from app_user and user_profile.
type Store struct {
	db     *sql.DB
	fields *FieldMap
}

func NewStore(conn *sql.DB, fields *FieldMap) *Store {
	return &Store{db: conn, fields: fields}
}

func (s *Store) Fields() *FieldMap {
	return s.fields
}

func (s *Store) IsSensitive(logical string) bool {
	return s.fields.IsSensitive(logical)
}

// Get returns a single logical field for a user; empty when unset.
func (s *Store) Get(ctx context.Context, logical, userID string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT meta_value FROM user_profile
		WHERE user_id = $1 AND meta_key = $2
	`, userID, s.fields.Key(logical)).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read profile field %s: %w", logical, err)
	}
	return value, nil
}

// Load returns the profile of one user, or ErrUserNotFound.
func (s *Store) Load(ctx context.Context, userID string) (*Profile, error) {
	profiles, err := s.LoadMany(ctx, []string{userID})
	if err != nil {
		return nil, err
	}
	p, ok := profiles[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return p, nil
}

// Keep IN lists well below driver parameter limits.
const chunkSize = 500

// LoadMany returns profiles keyed by user ID. Unknown IDs are omitted.
func (s *Store) LoadMany(ctx context.Context, userIDs []string) (map[string]*Profile, error) {
	out := make(map[string]*Profile, len(userIDs))
	for start := 0; start < len(userIDs); start += chunkSize {
		chunk := userIDs[start:min(start+chunkSize, len(userIDs))]

		rows, err := s.db.QueryContext(ctx,
			`SELECT id, registered_at FROM app_user WHERE id IN (`+db.Placeholders(1, len(chunk))+`)`,
			db.Args(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("failed to query users: %w", err)
		}
		for rows.Next() {
			p := &Profile{Values: make(map[string]string)}
			if err := rows.Scan(&p.UserID, &p.RegisteredAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan user: %w", err)
			}
			out[p.UserID] = p
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		if err := s.fillValues(ctx, out, chunk); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) fillValues(ctx context.Context, profiles map[string]*Profile, userIDs []string) error {
	byKey := s.logicalByKey()
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}

	args := append(db.Args(userIDs), db.Args(keys)...)
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, meta_key, meta_value FROM user_profile
		WHERE user_id IN (`+db.Placeholders(1, len(userIDs))+`)
		AND meta_key IN (`+db.Placeholders(len(userIDs)+1, len(keys))+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID, key, value string
		if err := rows.Scan(&userID, &key, &value); err != nil {
			return fmt.Errorf("failed to scan profile: %w", err)
		}
		p, ok := profiles[userID]
		if !ok {
			continue
		}
		for _, logical := range byKey[key] {
			p.Values[logical] = value
		}
	}
	return rows.Err()
}

// logicalByKey inverts the field map; several logical fields may share a key.
func (s *Store) logicalByKey() map[string][]string {
	byKey := make(map[string][]string)
	for _, f := range LogicalFields {
		k := s.fields.Key(f)
		byKey[k] = append(byKey[k], f)
	}
	return byKey
}

// CompleteUsers returns the sorted IDs of users registered at or before
// registeredBy whose required fields are all filled.
func (s *Store) CompleteUsers(ctx context.Context, registeredBy time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, registered_at FROM app_user`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	var candidates []string
	for rows.Next() {
		var id string
		var registeredAt time.Time
		if err := rows.Scan(&id, &registeredAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if !registeredAt.After(registeredBy) {
			candidates = append(candidates, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	profiles, err := s.LoadMany(ctx, candidates)
	if err != nil {
		return nil, err
	}

	var complete []string
	for _, id := range candidates {
		if p, ok := profiles[id]; ok && len(p.Missing(RequiredFields)) == 0 {
			complete = append(complete, id)
		}
	}
	slices.Sort(complete)
	return complete, nil
}

// DistinctValues returns the sorted non-empty values stored for a field.
func (s *Store) DistinctValues(ctx context.Context, logical string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT meta_value FROM user_profile
		WHERE meta_key = $1 AND meta_value <> ''
		ORDER BY meta_value
	`, s.fields.Key(logical))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s values: %w", logical, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// UsersWithValue returns the sorted IDs of users whose field equals value.
func (s *Store) UsersWithValue(ctx context.Context, logical, value string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM user_profile
		WHERE meta_key = $1 AND meta_value = $2
		ORDER BY user_id
	`, s.fields.Key(logical), value)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by %s: %w", logical, err)
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
	return ids, rows.Err()
}
