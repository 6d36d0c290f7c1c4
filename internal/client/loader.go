package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/foliodev/folio/internal/model"
)

// LoadPortfolio fetches every known bucket concurrently. A bucket that fails
// to load or decode keeps its value from prior and its error is reported
// under its key. The returned map is empty when everything loaded.
func (c *Client) LoadPortfolio(ctx context.Context, prior model.Portfolio) (model.Portfolio, map[string]error) {
	out := prior
	targets := map[string]any{
		model.BucketProfile:      &out.Profile,
		model.BucketProjects:     &out.Projects,
		model.BucketAchievements: &out.Achievements,
		model.BucketNotes:        &out.Notes,
		model.BucketOpenSource:   &out.OpenSource,
		model.BucketSettings:     &out.Settings,
	}

	var (
		mu   sync.Mutex
		errs = make(map[string]error)
	)
	// Each fetch decodes into its own field; only the error map is shared.
	var g errgroup.Group
	g.SetLimit(len(targets))
	for key, dst := range targets {
		g.Go(func() error {
			if err := c.loadBucket(ctx, key, dst); err != nil {
				mu.Lock()
				errs[key] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, errs
}

func (c *Client) loadBucket(ctx context.Context, key string, dst any) error {
	resp, err := c.GetContent(ctx, key)
	if err != nil {
		return err
	}
	if string(resp.Data) == "null" {
		return fmt.Errorf("%s: empty document", key)
	}
	// Decode into a fresh value so a half-decoded document never replaces
	// the prior one.
	switch d := dst.(type) {
	case *model.Profile:
		return decodeInto(resp.Data, d)
	case *model.Settings:
		return decodeInto(resp.Data, d)
	case *[]model.Project:
		return decodeInto(resp.Data, d)
	case *[]model.Achievement:
		return decodeInto(resp.Data, d)
	case *[]model.Note:
		return decodeInto(resp.Data, d)
	case *[]model.OpenSourceContribution:
		return decodeInto(resp.Data, d)
	default:
		return fmt.Errorf("%s: unsupported target %T", key, dst)
	}
}

func decodeInto[T any](data json.RawMessage, dst *T) error {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	*dst = v
	return nil
}
