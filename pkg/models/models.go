package models

import (
	"encoding/json"
	"time"
)

// CommentUser is the author block embedded in a comment record.
type CommentUser struct {
	UID      string `json:"uid,omitempty"`
	UniqueID string `json:"unique_id"`
	Nickname string `json:"nickname"`
}

// Item is a single comment. Known fields are decoded for export and
// deduplication; the full record is kept verbatim so nothing the API sends
// is lost when items are checkpointed or written to the report.
type Item struct {
	CID               string      `json:"cid"`
	Text              string      `json:"text"`
	CreateTime        int64       `json:"create_time"`
	DiggCount         int64       `json:"digg_count"`
	ReplyCommentTotal int64       `json:"reply_comment_total"`
	User              CommentUser `json:"user"`

	raw json.RawMessage
}

type itemFields Item

// UnmarshalJSON decodes the typed fields and retains the raw record.
func (i *Item) UnmarshalJSON(data []byte) error {
	var f itemFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*i = Item(f)
	i.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes the raw record when one was decoded.
func (i Item) MarshalJSON() ([]byte, error) {
	if len(i.raw) > 0 {
		return i.raw, nil
	}
	return json.Marshal(itemFields(i))
}

// ID returns the dedup key of the item; empty means unidentifiable.
func (i Item) ID() string {
	return i.CID
}

// CreatedAt converts the unix create time; zero when absent.
func (i Item) CreatedAt() time.Time {
	if i.CreateTime <= 0 {
		return time.Time{}
	}
	return time.Unix(i.CreateTime, 0)
}

// Target is one unit of work: a video whose comments are fetched.
type Target struct {
	ID    string `json:"video_id"`
	Label string `json:"author,omitempty"`
}

// BatchResult is the normalized outcome of fetching one page.
type BatchResult struct {
	Success    bool
	Items      []Item
	HasMore    bool
	NextCursor int64
	// Exhausted marks a well-formed empty page with no continuation.
	Exhausted bool
	Err       error
}

// TargetResult summarizes one FetchLoop run.
type TargetResult struct {
	TargetID          string        `json:"video_id"`
	Label             string        `json:"author"`
	WorkerID          int           `json:"worker_id"`
	TotalItems        int           `json:"total_comments"`
	TotalBatches      int           `json:"total_batches"`
	TokensIssued      int           `json:"tokens_used"`
	ProxyRotations    int           `json:"proxy_rotations"`
	DuplicatesSkipped int           `json:"duplicates_skipped"`
	Resumed           bool          `json:"resumed,omitempty"`
	Interrupted       bool          `json:"interrupted,omitempty"`
	Error             string        `json:"error,omitempty"`
	Elapsed           time.Duration `json:"-"`
	Items             []Item        `json:"comments"`
}

// Failed reports whether the target ended with an error marker.
func (r TargetResult) Failed() bool {
	return r.Error != ""
}
