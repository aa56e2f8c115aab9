package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/backlinkoo/blog-engine/internal/verify"
)

// VerificationStore writes backlink verification results.
type VerificationStore struct {
	pool pool
}

// NewVerificationStore wraps a pool.
func NewVerificationStore(p pool) (*VerificationStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &VerificationStore{pool: p}, nil
}

// Save inserts a result, assigning a UUIDv7 when it has no ID.
func (s *VerificationStore) Save(ctx context.Context, r verify.Result) error {
	if r.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate id: %w", err)
		}
		r.ID = id.String()
	}
	chain := r.RedirectChain
	if chain == nil {
		chain = []string{}
	}
	chainJSON, err := json.Marshal(chain)
	if err != nil {
		return fmt.Errorf("marshal redirect chain: %w", err)
	}
	var attrsJSON []byte
	if r.LinkAttributes != nil {
		if attrsJSON, err = json.Marshal(r.LinkAttributes); err != nil {
			return fmt.Errorf("marshal link attributes: %w", err)
		}
	}

	query := `
INSERT INTO link_verifications (
	id,
	source_url,
	target_url,
	anchor_text,
	status_code,
	final_url,
	redirect_chain,
	link_found,
	link_attributes,
	anchor_matches,
	dofollow,
	used_headless,
	score,
	snapshot_uri,
	checked_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
)`
	args := []any{
		r.ID,
		r.SourceURL,
		r.TargetURL,
		r.AnchorText,
		r.StatusCode,
		r.FinalURL,
		chainJSON,
		r.LinkFound,
		attrsJSON,
		r.AnchorMatches,
		r.Dofollow,
		r.UsedHeadless,
		r.Score,
		r.SnapshotURI,
		r.CheckedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}
