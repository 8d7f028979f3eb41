// Package metadata flattens fetched comments into export records.
package metadata

import (
	"strconv"
	"strings"
	"time"

	"ttscraper/pkg/models"
)

// DateLayout formats create_date columns
const DateLayout = "2006-01-02 15:04:05"

// Header lists the columns of a flattened comment row
var Header = []string{
	"video_id", "video_author", "comment_id", "username", "nickname",
	"text", "likes", "replies", "create_time", "create_date",
}

// CommentMetadata is one comment together with the video it belongs to
type CommentMetadata struct {
	VideoID     string    `json:"video_id"`
	VideoAuthor string    `json:"video_author"`
	CommentID   string    `json:"comment_id"`
	Username    string    `json:"username"`
	Nickname    string    `json:"nickname"`
	Text        string    `json:"text"`
	Likes       int64     `json:"likes"`
	Replies     int64     `json:"replies"`
	CreateTime  int64     `json:"create_time"`
	CreatedAt   time.Time `json:"create_date"`
}

// FromItem flattens a comment of the given target
func FromItem(target models.Target, item models.Item) *CommentMetadata {
	return &CommentMetadata{
		VideoID:     target.ID,
		VideoAuthor: target.Label,
		CommentID:   item.ID(),
		Username:    item.User.UniqueID,
		Nickname:    item.User.Nickname,
		Text:        item.Text,
		Likes:       item.DiggCount,
		Replies:     item.ReplyCommentTotal,
		CreateTime:  item.CreateTime,
		CreatedAt:   item.CreatedAt(),
	}
}

// FromResult flattens every comment of a target result, in order
func FromResult(result models.TargetResult) []*CommentMetadata {
	target := models.Target{ID: result.TargetID, Label: result.Label}
	out := make([]*CommentMetadata, 0, len(result.Items))
	for _, item := range result.Items {
		out = append(out, FromItem(target, item))
	}
	return out
}

// Record returns the row matching Header. Dates are UTC; a missing create
// time leaves create_date empty.
func (m *CommentMetadata) Record() []string {
	date := ""
	if !m.CreatedAt.IsZero() {
		date = m.CreatedAt.UTC().Format(DateLayout)
	}
	return []string{
		m.VideoID,
		m.VideoAuthor,
		m.CommentID,
		m.Username,
		m.Nickname,
		m.Text,
		strconv.FormatInt(m.Likes, 10),
		strconv.FormatInt(m.Replies, 10),
		strconv.FormatInt(m.CreateTime, 10),
		date,
	}
}

// GetFormattedText returns the text on one line, truncated for display
func (m *CommentMetadata) GetFormattedText(maxLength int) string {
	text := strings.Join(strings.Fields(m.Text), " ")
	runes := []rune(text)
	if maxLength > 3 && len(runes) > maxLength {
		text = string(runes[:maxLength-3]) + "..."
	}
	return text
}

// Handle returns @username, or "?" when the author is unknown
func (m *CommentMetadata) Handle() string {
	if m.Username == "" {
		return "?"
	}
	return "@" + m.Username
}
