package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/foliodev/folio/internal/model"
)

// IssueOTP retires every unused code for email and inserts a new one, in a
// single transaction. A concurrent ConsumeOTP for the same email sees either
// the old codes or the new one, never a mix.
func (s *Store) IssueOTP(ctx context.Context, email, code string, expiresAt time.Time) (*model.OneTimeCode, error) {
	email = NormalizeEmail(email)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin issue otp: %w", err)
	}
	defer tx.Rollback()

	if err := s.lockAdmin(ctx, tx, email); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		s.rebind("UPDATE one_time_codes SET used = TRUE WHERE email = ? AND used = FALSE"), email); err != nil {
		return nil, fmt.Errorf("invalidate otps: %w", err)
	}

	now := time.Now().UTC()
	otp := &model.OneTimeCode{
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now,
	}
	otp.ID, err = s.insertReturningID(ctx, tx,
		"INSERT INTO one_time_codes (email, code, expires_at, used, created_at) VALUES (?, ?, ?, FALSE, ?)",
		otp.Email, otp.Code, otp.ExpiresAt, otp.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert otp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit issue otp: %w", err)
	}
	return otp, nil
}

// ConsumeOTP marks the most recent unused, unexpired code for email that
// matches code as used. It returns ErrNotFound when no such code exists,
// including when a concurrent caller consumed it first.
func (s *Store) ConsumeOTP(ctx context.Context, email, code string, now time.Time) (*model.OneTimeCode, error) {
	email = NormalizeEmail(email)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin consume otp: %w", err)
	}
	defer tx.Rollback()

	if err := s.lockAdmin(ctx, tx, email); err != nil {
		return nil, err
	}

	// Expiry is compared in Go: SQLite stores timestamps as text and the
	// three dialects disagree on how to compare them against a parameter.
	var candidates []model.OneTimeCode
	if err := tx.SelectContext(ctx, &candidates, s.rebind(
		"SELECT id, email, code, expires_at, used, created_at FROM one_time_codes "+
			"WHERE email = ? AND code = ? AND used = FALSE ORDER BY id DESC"),
		email, code); err != nil {
		return nil, fmt.Errorf("find otp: %w", err)
	}

	var match *model.OneTimeCode
	for i := range candidates {
		if !candidates[i].Expired(now) {
			match = &candidates[i]
			break
		}
	}
	if match == nil {
		return nil, ErrNotFound
	}

	result, err := tx.ExecContext(ctx,
		s.rebind("UPDATE one_time_codes SET used = TRUE WHERE id = ? AND used = FALSE"), match.ID)
	if err != nil {
		return nil, fmt.Errorf("mark otp used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("mark otp used rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit consume otp: %w", err)
	}
	match.Used = true
	return match, nil
}

// ListOTPs returns every code issued for email, newest first.
func (s *Store) ListOTPs(ctx context.Context, email string) ([]model.OneTimeCode, error) {
	var codes []model.OneTimeCode
	if err := s.db.SelectContext(ctx, &codes, s.rebind(
		"SELECT id, email, code, expires_at, used, created_at FROM one_time_codes WHERE email = ? ORDER BY id DESC"),
		NormalizeEmail(email)); err != nil {
		return nil, fmt.Errorf("list otps: %w", err)
	}
	return codes, nil
}

// PurgeOTPs deletes codes that are used or expired and were issued before
// cutoff. Codes still valid for consumption are never deleted.
func (s *Store) PurgeOTPs(ctx context.Context, cutoff, now time.Time) (int64, error) {
	var rows []model.OneTimeCode
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT id, email, code, expires_at, used, created_at FROM one_time_codes"); err != nil {
		return 0, fmt.Errorf("scan otps: %w", err)
	}

	var purged int64
	for _, row := range rows {
		if !row.CreatedAt.Before(cutoff) {
			continue
		}
		if !row.Used && !row.Expired(now) {
			continue
		}
		result, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM one_time_codes WHERE id = ?"), row.ID)
		if err != nil {
			return purged, fmt.Errorf("delete otp %d: %w", row.ID, err)
		}
		n, _ := result.RowsAffected()
		purged += n
	}
	return purged, nil
}

// lockAdmin takes a row lock on the identity owning email so that issue and
// consume for the same email serialize on PostgreSQL and MySQL.
func (s *Store) lockAdmin(ctx context.Context, tx *sqlx.Tx, email string) error {
	var id int64
	err := tx.GetContext(ctx, &id, s.rebind("SELECT id FROM admins WHERE email = ?"+s.forUpdate()), email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lock admin: %w", err)
	}
	return nil
}
