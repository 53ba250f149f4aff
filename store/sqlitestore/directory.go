package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/pinauth"
)

var _ pinauth.PreferenceStore = (*Store)(nil)

// SetPreferences records principalID's second-factor opt-in and capture mode.
func (s *Store) SetPreferences(ctx context.Context, principalID string, optIn bool, mode pinauth.CaptureMode) error {
	switch mode {
	case pinauth.CaptureUnset, pinauth.CaptureClock, pinauth.CaptureManual:
	default:
		return fmt.Errorf("set preferences: unknown capture mode %q", mode)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO principal_preferences (principal_id, second_factor_opt_in, capture_mode)
		VALUES (?, ?, ?)
		ON CONFLICT(principal_id) DO UPDATE SET
			second_factor_opt_in = excluded.second_factor_opt_in,
			capture_mode = excluded.capture_mode`,
		principalID, boolInt(optIn), string(mode))
	if err != nil {
		return fmt.Errorf("set preferences: %w", err)
	}
	return nil
}

// SecondFactorOptIn implements [pinauth.PreferenceStore]. A principal with no
// preference row has not opted in.
func (s *Store) SecondFactorOptIn(ctx context.Context, principalID string) (bool, error) {
	var v int
	err := s.db.QueryRowContext(ctx,
		`SELECT second_factor_opt_in FROM principal_preferences WHERE principal_id = ?`,
		principalID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("second factor opt-in: %w", err)
	}
	return v != 0, nil
}

// CapturePreference implements [pinauth.PreferenceStore].
func (s *Store) CapturePreference(ctx context.Context, principalID string) (pinauth.CaptureMode, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT capture_mode FROM principal_preferences WHERE principal_id = ?`,
		principalID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return pinauth.CaptureUnset, nil
	}
	if err != nil {
		return pinauth.CaptureUnset, fmt.Errorf("capture preference: %w", err)
	}
	return pinauth.CaptureMode(v), nil
}

// AssignRoles replaces the role set of principalID.
func (s *Store) AssignRoles(ctx context.Context, principalID string, roles ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("assign roles: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM principal_roles WHERE principal_id = ?`, principalID); err != nil {
		return fmt.Errorf("assign roles: %w", err)
	}
	for _, r := range roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO principal_roles (principal_id, role) VALUES (?, ?)`,
			principalID, r); err != nil {
			return fmt.Errorf("assign roles: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("assign roles: %w", err)
	}
	return nil
}

// Roles returns the roles of principalID in name order. It matches
// capability.RoleLookup.
func (s *Store) Roles(ctx context.Context, principalID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role FROM principal_roles WHERE principal_id = ? ORDER BY role`, principalID)
	if err != nil {
		return nil, fmt.Errorf("roles: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("roles: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: %w", err)
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
