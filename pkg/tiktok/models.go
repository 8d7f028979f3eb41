package tiktok

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"ttscraper/pkg/models"
)

// CommentListResponse is one page of the comment list endpoint
type CommentListResponse struct {
	StatusCode int           `json:"status_code"`
	StatusMsg  string        `json:"status_msg"`
	Comments   []models.Item `json:"comments"`
	HasMore    *Flag         `json:"has_more"`
	Cursor     *Int64        `json:"cursor"`
	Total      int64         `json:"total"`
}

// Flag decodes a boolean the API sends as true/false or 1/0
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", "1", `"1"`, `"true"`:
		*f = true
	case "false", "0", "null", `"0"`, `"false"`, `""`:
		*f = false
	default:
		return fmt.Errorf("invalid boolean flag %s", data)
	}
	return nil
}

// Int64 decodes an integer sent either as a number or a numeric string
type Int64 int64

func (n *Int64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", s, err)
		}
		*n = Int64(v)
		return nil
	}

	var v json.Number
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	i, err := v.Int64()
	if err != nil {
		f, ferr := v.Float64()
		if ferr != nil {
			return err
		}
		i = int64(f)
	}
	*n = Int64(i)
	return nil
}

// HasMoreValue reports has_more, treating an absent field as false
func (r *CommentListResponse) HasMoreValue() bool {
	return r.HasMore != nil && bool(*r.HasMore)
}

// NextCursor returns the response cursor, or fallback when none was sent
func (r *CommentListResponse) NextCursor(fallback int64) int64 {
	if r.Cursor == nil {
		return fallback
	}
	return int64(*r.Cursor)
}
