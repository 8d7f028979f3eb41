package tiktok

import (
	"context"

	errs "ttscraper/pkg/errors"
	"ttscraper/pkg/logger"
	"ttscraper/pkg/models"
)

// Fetcher retrieves single comment pages and normalizes every outcome into
// a models.BatchResult. It never returns an error of its own.
type Fetcher struct {
	client    *Client
	batchSize int
	logger    logger.Logger
}

// NewFetcher creates a fetcher requesting batchSize comments per page
func NewFetcher(client *Client, batchSize int, log logger.Logger) *Fetcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Fetcher{client: client, batchSize: batchSize, logger: log}
}

// BatchSize returns the page size requested
func (f *Fetcher) BatchSize() int {
	return f.batchSize
}

// Fetch requests the page of targetID starting at cursor.
func (f *Fetcher) Fetch(ctx context.Context, targetID string, cursor int64, token string) models.BatchResult {
	url := CommentListURL(f.client.BaseURL(), f.client.AppID(), targetID, f.batchSize, cursor, token)

	var resp CommentListResponse
	if err := f.client.GetJSON(ctx, url, &resp); err != nil {
		return failed(cursor, errs.Wrap(errs.ErrorTypeBatchFetch, "comment page request failed", err))
	}

	if resp.StatusCode != 0 {
		return failed(cursor, &errs.Error{
			Type:    errs.ErrorTypeAPIStatus,
			Message: "api status " + resp.StatusMsg,
			Code:    resp.StatusCode,
		})
	}

	if len(resp.Comments) == 0 {
		if resp.HasMore != nil && !bool(*resp.HasMore) {
			f.logger.DebugWithFields("Comment list exhausted", map[string]interface{}{
				"video_id": targetID,
				"cursor":   cursor,
			})
			result := failed(cursor, nil)
			result.Exhausted = true
			return result
		}
		return failed(cursor, errs.New(errs.ErrorTypeEmptyBatch, "page carried no comments"))
	}

	return models.BatchResult{
		Success:    true,
		Items:      resp.Comments,
		HasMore:    resp.HasMoreValue(),
		NextCursor: resp.NextCursor(cursor + int64(f.batchSize)),
	}
}

func failed(cursor int64, err error) models.BatchResult {
	return models.BatchResult{
		Success:    false,
		Items:      nil,
		HasMore:    false,
		NextCursor: cursor,
		Err:        err,
	}
}
