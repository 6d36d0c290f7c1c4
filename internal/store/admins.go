package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foliodev/folio/internal/model"
)

const adminColumns = "id, email, password_hash, mobile, created_at"

// NormalizeEmail is the single place email identity is case-folded.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SeedAdmin whitelists an email. Seeding an email that already exists is a
// no-op apart from filling in a missing mobile number; created reports
// whether a new row was inserted.
func (s *Store) SeedAdmin(ctx context.Context, email string, mobile *string) (admin *model.Admin, created bool, err error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, false, fmt.Errorf("seed admin: email is required")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin seed admin: %w", err)
	}
	defer tx.Rollback()

	var existing model.Admin
	err = tx.GetContext(ctx, &existing,
		s.rebind("SELECT "+adminColumns+" FROM admins WHERE email = ?"+s.forUpdate()), email)
	switch {
	case err == nil:
		if mobile != nil && *mobile != "" && !existing.HasMobile() {
			if _, err := tx.ExecContext(ctx,
				s.rebind("UPDATE admins SET mobile = ? WHERE id = ?"), *mobile, existing.ID); err != nil {
				return nil, false, fmt.Errorf("update admin mobile: %w", err)
			}
			existing.Mobile = mobile
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("commit seed admin: %w", err)
		}
		return &existing, false, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, false, fmt.Errorf("get admin by email: %w", err)
	}

	now := time.Now().UTC()
	var mobileArg any
	if mobile != nil && *mobile != "" {
		mobileArg = *mobile
	}
	id, err := s.insertReturningID(ctx, tx,
		"INSERT INTO admins (email, mobile, created_at) VALUES (?, ?, ?)", email, mobileArg, now)
	if err != nil {
		return nil, false, fmt.Errorf("insert admin: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit seed admin: %w", err)
	}

	admin = &model.Admin{ID: id, Email: email, CreatedAt: now}
	if mobileArg != nil {
		admin.Mobile = mobile
	}
	return admin, true, nil
}

// GetAdminByEmail returns a whitelisted identity. The lookup is
// case-insensitive.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	err := s.db.GetContext(ctx, &admin,
		s.rebind("SELECT "+adminColumns+" FROM admins WHERE email = ?"), NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &admin, nil
}

// GetAdminByID returns an identity by its numeric id.
func (s *Store) GetAdminByID(ctx context.Context, id int64) (*model.Admin, error) {
	var admin model.Admin
	err := s.db.GetContext(ctx, &admin, s.rebind("SELECT "+adminColumns+" FROM admins WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by id: %w", err)
	}
	return &admin, nil
}

// ListAdmins returns every whitelisted identity in id order.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	if err := s.db.SelectContext(ctx, &admins, "SELECT "+adminColumns+" FROM admins ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// SetAdminPassword attaches a password hash to an identity that does not
// have one yet. The mobile number is only written when non-nil. It returns
// ErrConflict when a password is already set and ErrNotFound when the id
// does not exist.
func (s *Store) SetAdminPassword(ctx context.Context, id int64, passwordHash string, mobile *string) error {
	var mobileArg any
	if mobile != nil && *mobile != "" {
		mobileArg = *mobile
	}
	result, err := s.db.ExecContext(ctx, s.rebind(
		"UPDATE admins SET password_hash = ?, mobile = COALESCE(?, mobile) WHERE id = ? AND password_hash IS NULL"),
		passwordHash, mobileArg, id)
	if err != nil {
		return fmt.Errorf("set admin password: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set admin password rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetAdminByID(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

// ResetAdminPassword clears the password hash so the identity goes through
// registration again. This is an operator action, never reachable over HTTP.
func (s *Store) ResetAdminPassword(ctx context.Context, email string) error {
	result, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE admins SET password_hash = NULL WHERE email = ?"), NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("reset admin password: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reset admin password rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
