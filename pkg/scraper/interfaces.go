package scraper

import (
	"context"

	"ttscraper/pkg/auth"
	"ttscraper/pkg/checkpoint"
	"ttscraper/pkg/models"
)

// BatchFetcher retrieves one page of a target's items
type BatchFetcher interface {
	Fetch(ctx context.Context, targetID string, cursor int64, token string) models.BatchResult
}

// TokenSource hands out the session token attached to page requests
type TokenSource interface {
	Get(ctx context.Context, forceRefresh bool) (auth.Token, error)
	MarkBatchServed()
	Invalidate()
	TokensIssued() int
}

// ProxyRotator forces a new egress IP
type ProxyRotator interface {
	Rotate(ctx context.Context) (string, bool)
}

// CheckpointStore persists per (worker, target) progress
type CheckpointStore interface {
	Save(cp *checkpoint.Checkpoint) error
	Load(workerID int, targetID string) *checkpoint.Checkpoint
}
