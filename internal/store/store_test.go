package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewSQLiteStore("") // in-memory
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestSeedAdmin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	admin, created, err := s.SeedAdmin(ctx, "  Admin@Example.COM ", nil)
	if err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}
	if !created {
		t.Error("expected first seed to create a row")
	}
	if admin.Email != "admin@example.com" {
		t.Errorf("got email %q, want lower-cased", admin.Email)
	}
	if admin.ID == 0 {
		t.Fatal("expected non-zero ID after seed")
	}

	// Re-seeding is idempotent and fills in a missing mobile.
	again, created, err := s.SeedAdmin(ctx, "admin@example.com", strPtr("+15550100"))
	if err != nil {
		t.Fatalf("SeedAdmin again: %v", err)
	}
	if created {
		t.Error("expected second seed to be a no-op")
	}
	if again.ID != admin.ID {
		t.Errorf("got ID %d, want %d", again.ID, admin.ID)
	}

	got, err := s.GetAdminByEmail(ctx, "ADMIN@example.com")
	if err != nil {
		t.Fatalf("GetAdminByEmail: %v", err)
	}
	if !got.HasMobile() || *got.Mobile != "+15550100" {
		t.Errorf("got mobile %v, want +15550100", got.Mobile)
	}
	if got.HasPassword() {
		t.Error("freshly seeded admin should have no password")
	}

	list, err := s.ListAdmins(ctx)
	if err != nil {
		t.Fatalf("ListAdmins: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d admins, want 1", len(list))
	}

	if _, _, err := s.SeedAdmin(ctx, "   ", nil); err == nil {
		t.Error("expected error seeding an empty email")
	}
}

func TestGetAdminNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetAdminByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAdminByEmail: got %v, want ErrNotFound", err)
	}
	if _, err := s.GetAdminByID(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAdminByID: got %v, want ErrNotFound", err)
	}
}

func TestSetAdminPasswordWriteOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	admin, _, err := s.SeedAdmin(ctx, "a@example.com", nil)
	if err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}

	if err := s.SetAdminPassword(ctx, admin.ID, "hash-1", strPtr("+15550199")); err != nil {
		t.Fatalf("SetAdminPassword: %v", err)
	}
	if err := s.SetAdminPassword(ctx, admin.ID, "hash-2", nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("second SetAdminPassword: got %v, want ErrConflict", err)
	}

	got, err := s.GetAdminByID(ctx, admin.ID)
	if err != nil {
		t.Fatalf("GetAdminByID: %v", err)
	}
	if got.PasswordHash == nil || *got.PasswordHash != "hash-1" {
		t.Errorf("password hash was overwritten: %v", got.PasswordHash)
	}
	if got.Mobile == nil || *got.Mobile != "+15550199" {
		t.Errorf("got mobile %v, want +15550199", got.Mobile)
	}

	if err := s.SetAdminPassword(ctx, 9999, "hash", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: got %v, want ErrNotFound", err)
	}
}

func TestSetAdminPasswordKeepsMobileWhenOmitted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	admin, _, _ := s.SeedAdmin(ctx, "m@example.com", strPtr("+15550111"))
	if err := s.SetAdminPassword(ctx, admin.ID, "hash", nil); err != nil {
		t.Fatalf("SetAdminPassword: %v", err)
	}
	got, _ := s.GetAdminByID(ctx, admin.ID)
	if got.Mobile == nil || *got.Mobile != "+15550111" {
		t.Errorf("got mobile %v, want seeded value kept", got.Mobile)
	}
}

func TestResetAdminPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	admin, _, _ := s.SeedAdmin(ctx, "r@example.com", nil)
	if err := s.SetAdminPassword(ctx, admin.ID, "hash", nil); err != nil {
		t.Fatalf("SetAdminPassword: %v", err)
	}
	if err := s.ResetAdminPassword(ctx, "R@example.com"); err != nil {
		t.Fatalf("ResetAdminPassword: %v", err)
	}
	if err := s.SetAdminPassword(ctx, admin.ID, "hash-2", nil); err != nil {
		t.Fatalf("SetAdminPassword after reset: %v", err)
	}
	if err := s.ResetAdminPassword(ctx, "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestIssueOTPSupersedesPrevious(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SeedAdmin(ctx, "otp@example.com", nil)

	expires := time.Now().Add(10 * time.Minute)
	first, err := s.IssueOTP(ctx, "otp@example.com", "111111", expires)
	if err != nil {
		t.Fatalf("IssueOTP first: %v", err)
	}
	second, err := s.IssueOTP(ctx, "OTP@example.com", "222222", expires)
	if err != nil {
		t.Fatalf("IssueOTP second: %v", err)
	}
	if second.ID <= first.ID {
		t.Errorf("expected increasing ids, got %d then %d", first.ID, second.ID)
	}

	codes, err := s.ListOTPs(ctx, "otp@example.com")
	if err != nil {
		t.Fatalf("ListOTPs: %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("got %d codes, want 2", len(codes))
	}
	unused := 0
	for _, c := range codes {
		if !c.Used {
			unused++
			if c.Code != "222222" {
				t.Errorf("unused code is %q, want 222222", c.Code)
			}
		}
	}
	if unused != 1 {
		t.Errorf("got %d unused codes, want 1", unused)
	}

	now := time.Now()
	if _, err := s.ConsumeOTP(ctx, "otp@example.com", "111111", now); !errors.Is(err, ErrNotFound) {
		t.Errorf("superseded code: got %v, want ErrNotFound", err)
	}
	if _, err := s.ConsumeOTP(ctx, "otp@example.com", "222222", now); err != nil {
		t.Errorf("current code: %v", err)
	}
}

func TestConsumeOTPOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SeedAdmin(ctx, "once@example.com", nil)

	if _, err := s.IssueOTP(ctx, "once@example.com", "123456", time.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("IssueOTP: %v", err)
	}
	got, err := s.ConsumeOTP(ctx, "once@example.com", "123456", time.Now())
	if err != nil {
		t.Fatalf("ConsumeOTP: %v", err)
	}
	if !got.Used {
		t.Error("expected consumed code to be marked used")
	}
	if _, err := s.ConsumeOTP(ctx, "once@example.com", "123456", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("second consume: got %v, want ErrNotFound", err)
	}
}

func TestConsumeOTPExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SeedAdmin(ctx, "late@example.com", nil)

	issued := time.Now()
	if _, err := s.IssueOTP(ctx, "late@example.com", "654321", issued.Add(10*time.Minute)); err != nil {
		t.Fatalf("IssueOTP: %v", err)
	}
	if _, err := s.ConsumeOTP(ctx, "late@example.com", "654321", issued.Add(11*time.Minute)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired code: got %v, want ErrNotFound", err)
	}
	// Still consumable inside the window.
	if _, err := s.ConsumeOTP(ctx, "late@example.com", "654321", issued.Add(9*time.Minute)); err != nil {
		t.Errorf("code inside window: %v", err)
	}
}

func TestConsumeOTPWrongCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SeedAdmin(ctx, "w@example.com", nil)
	s.IssueOTP(ctx, "w@example.com", "000001", time.Now().Add(time.Minute))

	if _, err := s.ConsumeOTP(ctx, "w@example.com", "000002", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if _, err := s.ConsumeOTP(ctx, "other@example.com", "000001", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("other email: got %v, want ErrNotFound", err)
	}
}

func TestPurgeOTPs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SeedAdmin(ctx, "p@example.com", nil)

	now := time.Now()
	s.IssueOTP(ctx, "p@example.com", "100000", now.Add(10*time.Minute)) // superseded below
	s.IssueOTP(ctx, "p@example.com", "200000", now.Add(10*time.Minute)) // still valid

	// Cutoff in the future so both rows qualify by age.
	n, err := s.PurgeOTPs(ctx, now.Add(time.Hour), now)
	if err != nil {
		t.Fatalf("PurgeOTPs: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d codes, want 1", n)
	}
	if _, err := s.ConsumeOTP(ctx, "p@example.com", "200000", now); err != nil {
		t.Errorf("valid code should survive purge: %v", err)
	}

	// Cutoff in the past keeps everything.
	s.IssueOTP(ctx, "p@example.com", "300000", now.Add(-time.Minute))
	n, err = s.PurgeOTPs(ctx, now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("PurgeOTPs: %v", err)
	}
	if n != 0 {
		t.Errorf("purged %d codes, want 0", n)
	}
}

func TestBucketUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetBucket(ctx, "projects"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetBucket before write: got %v, want ErrNotFound", err)
	}

	if _, err := s.PutBucket(ctx, "projects", json.RawMessage(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("PutBucket: %v", err)
	}
	if _, err := s.PutBucket(ctx, "projects", json.RawMessage(`[{"id":"b"},{"id":"c"}]`)); err != nil {
		t.Fatalf("PutBucket replace: %v", err)
	}

	got, err := s.GetBucket(ctx, "projects")
	if err != nil {
		t.Fatalf("GetBucket: %v", err)
	}
	var items []map[string]string
	if err := json.Unmarshal(got.Data, &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 2 || items[0]["id"] != "b" {
		t.Errorf("expected whole-document replace, got %s", got.Data)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("expected updated_at to be set")
	}
}

func TestBucketExplicitNull(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.PutBucket(ctx, "notes", json.RawMessage("null")); err != nil {
		t.Fatalf("PutBucket: %v", err)
	}
	got, err := s.GetBucket(ctx, "notes")
	if err != nil {
		t.Fatalf("GetBucket: %v", err)
	}
	if string(got.Data) != "null" {
		t.Errorf("got %s, want null", got.Data)
	}
}

func TestBucketKeepsDocumentVerbatim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := `{"zeta": 1,  "alpha": [ 2, 3 ]}`
	if _, err := s.PutBucket(ctx, "notes", json.RawMessage(doc)); err != nil {
		t.Fatalf("PutBucket: %v", err)
	}
	got, err := s.GetBucket(ctx, "notes")
	if err != nil {
		t.Fatalf("GetBucket: %v", err)
	}
	if string(got.Data) != doc {
		t.Errorf("got %s, want %s", got.Data, doc)
	}
}

// Content is stored as text on every dialect. MySQL's JSON and PostgreSQL's
// JSONB column types normalize the document.
func TestMigrationsStoreContentAsText(t *testing.T) {
	normalizing := regexp.MustCompile(`(?i)\bdata\s+(JSON|JSONB)\b`)
	for _, dialect := range []string{"mysql", "postgres", "sqlite"} {
		files, err := fs.Glob(migrationsFS, "migrations/"+dialect+"/*.sql")
		if err != nil {
			t.Fatalf("glob %s: %v", dialect, err)
		}
		if len(files) == 0 {
			t.Fatalf("no migrations for %s", dialect)
		}
		for _, f := range files {
			b, err := fs.ReadFile(migrationsFS, f)
			if err != nil {
				t.Fatalf("read %s: %v", f, err)
			}
			if dialect == "postgres" {
				if regexp.MustCompile(`(?i)\bdata\s+JSONB\b`).Match(b) {
					t.Errorf("%s: content column must not be JSONB", f)
				}
				continue
			}
			if normalizing.Match(b) {
				t.Errorf("%s: content column must not use a JSON type", f)
			}
		}
	}
}

func TestListBuckets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.PutBucket(ctx, "settings", json.RawMessage(`{"theme":"light"}`))
	s.PutBucket(ctx, "profile", json.RawMessage(`{"name":"Ada"}`))

	list, err := s.ListBuckets(ctx)
	if err != nil {
		t.Fatalf("ListBuckets: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d buckets, want 2", len(list))
	}
	if list[0].Key != "profile" || list[1].Key != "settings" {
		t.Errorf("got order %q, %q; want profile, settings", list[0].Key, list[1].Key)
	}
}

func TestFileBackedStoreReopens(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	ctx := context.Background()

	s, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if _, err := s.PutBucket(ctx, "profile", json.RawMessage(`{"name":"Ada"}`)); err != nil {
		t.Fatalf("PutBucket: %v", err)
	}
	s.Close()

	// Migrations are idempotent across restarts.
	s, err = NewSQLiteStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.GetBucket(ctx, "profile"); err != nil {
		t.Errorf("GetBucket after reopen: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestRebindPerDialect(t *testing.T) {
	s := newTestStore(t)
	if s.Dialect() != DialectSQLite {
		t.Errorf("got dialect %q, want sqlite", s.Dialect())
	}
	if got := s.forUpdate(); got != "" {
		t.Errorf("sqlite forUpdate = %q, want empty", got)
	}
}
