package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/foliodev/folio/internal/model"
)

// bucketRow scans the data column as text; database/sql cannot assign a
// driver string straight into json.RawMessage on every driver.
type bucketRow struct {
	Key       string    `db:"bucket_key"`
	Data      string    `db:"data"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r bucketRow) toModel() model.ContentBucket {
	return model.ContentBucket{
		Key:       r.Key,
		Data:      json.RawMessage(r.Data),
		UpdatedAt: r.UpdatedAt,
	}
}

// GetBucket returns the stored document for key, or ErrNotFound.
func (s *Store) GetBucket(ctx context.Context, key string) (*model.ContentBucket, error) {
	var row bucketRow
	err := s.db.GetContext(ctx, &row,
		s.rebind("SELECT bucket_key, data, updated_at FROM content_buckets WHERE bucket_key = ?"), key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get bucket %q: %w", key, err)
	}
	b := row.toModel()
	return &b, nil
}

// PutBucket inserts or wholly replaces the document stored under key and
// bumps its updated timestamp. Concurrent writers to the same key resolve
// last-write-wins.
func (s *Store) PutBucket(ctx context.Context, key string, data json.RawMessage) (*model.ContentBucket, error) {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	now := time.Now().UTC()

	var q string
	if s.dialect == DialectMySQL {
		q = "INSERT INTO content_buckets (bucket_key, data, updated_at) VALUES (?, ?, ?) " +
			"ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)"
	} else {
		q = "INSERT INTO content_buckets (bucket_key, data, updated_at) VALUES (?, ?, ?) " +
			"ON CONFLICT (bucket_key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at"
	}

	if _, err := s.db.ExecContext(ctx, s.rebind(q), key, string(data), now); err != nil {
		return nil, fmt.Errorf("upsert bucket %q: %w", key, err)
	}
	return &model.ContentBucket{Key: key, Data: data, UpdatedAt: now}, nil
}

// ListBuckets returns every stored bucket ordered by key.
func (s *Store) ListBuckets(ctx context.Context) ([]model.ContentBucket, error) {
	var rows []bucketRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT bucket_key, data, updated_at FROM content_buckets ORDER BY bucket_key"); err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	buckets := make([]model.ContentBucket, len(rows))
	for i, r := range rows {
		buckets[i] = r.toModel()
	}
	return buckets, nil
}
