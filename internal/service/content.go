package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/foliodev/folio/internal/model"
	"github.com/foliodev/folio/internal/store"
)

// ContentService reads and writes content buckets. Reads never fail for a
// missing bucket; they fall back to the bucket's default document.
type ContentService struct {
	store  *store.Store
	logger *slog.Logger
}

func NewContentService(st *store.Store, logger *slog.Logger) *ContentService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ContentService{store: st, logger: logger}
}

// ParseBucketKey normalizes a raw bucket key and rejects malformed ones.
func ParseBucketKey(raw string) (string, error) {
	key := model.NormalizeBucketKey(raw)
	if key == "" {
		return "", validationErrorf("type", "Content type is required")
	}
	if !model.BucketKeyPattern.MatchString(key) {
		return "", validationErrorf("type", "Invalid content type %q", raw)
	}
	return key, nil
}

// GetBucket returns the stored document for key, or its default with
// IsDefault set when nothing has been written.
func (s *ContentService) GetBucket(ctx context.Context, rawKey string) (*model.BucketResponse, error) {
	key, err := ParseBucketKey(rawKey)
	if err != nil {
		return nil, err
	}
	b, err := s.store.GetBucket(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return &model.BucketResponse{Data: model.DefaultDocument(key), IsDefault: true}, nil
	}
	if err != nil {
		s.logger.Error("get bucket", "bucket", key, "error", err)
		return nil, err
	}
	return &model.BucketResponse{Data: b.Data, IsDefault: false}, nil
}

// PutBucket replaces the whole document stored under key. A nil data means
// the field was absent and is rejected; JSON null is a legitimate value.
func (s *ContentService) PutBucket(ctx context.Context, rawKey string, data json.RawMessage) (*model.ContentBucket, error) {
	key, err := ParseBucketKey(rawKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, validationErrorf("data", "data is required")
	}
	if !json.Valid(data) {
		return nil, validationErrorf("data", "data must be valid JSON")
	}
	b, err := s.store.PutBucket(ctx, key, data)
	if err != nil {
		s.logger.Error("put bucket", "bucket", key, "error", err)
		return nil, err
	}
	return b, nil
}

// ListBuckets reports every known bucket plus any extra stored keys, with
// whether each one is still on its default.
func (s *ContentService) ListBuckets(ctx context.Context) ([]model.BucketSummary, error) {
	stored, err := s.store.ListBuckets(ctx)
	if err != nil {
		s.logger.Error("list buckets", "error", err)
		return nil, err
	}

	byKey := make(map[string]model.ContentBucket, len(stored))
	for _, b := range stored {
		byKey[b.Key] = b
	}

	summaries := make([]model.BucketSummary, 0, len(model.KnownBuckets)+len(stored))
	seen := make(map[string]bool, len(model.KnownBuckets))
	add := func(key string) {
		sum := model.BucketSummary{Key: key, IsDefault: true}
		if b, ok := byKey[key]; ok {
			updated := b.UpdatedAt
			sum.IsDefault = false
			sum.UpdatedAt = &updated
		}
		summaries = append(summaries, sum)
		seen[key] = true
	}
	for _, key := range model.KnownBuckets {
		add(key)
	}
	for _, b := range stored {
		if !seen[b.Key] {
			add(b.Key)
		}
	}
	return summaries, nil
}
