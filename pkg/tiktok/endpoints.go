package tiktok

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// BaseURL is the web API host
	BaseURL = "https://www.tiktok.com"

	// AppID is the aid query parameter the web client sends
	AppID = "1988"

	// CommentListEndpoint returns one page of top-level comments
	CommentListEndpoint = "/api/comment/list/"

	// TokenEndpoint is a cheap request whose response sets a fresh msToken cookie
	TokenEndpoint = "/api/recommend/item_list/"

	// DefaultBatchSize is the page size the web client uses
	DefaultBatchSize = 50

	// MaxBatchSize is the largest page the endpoint honors
	MaxBatchSize = 50

	// TokenCookie is the session token cookie name
	TokenCookie = "msToken"

	// TokenHeader carries the token when no cookie is set
	TokenHeader = "X-Ms-Token"
)

// CommentListURL constructs the URL for one page of a video's comments
func CommentListURL(base, aid, videoID string, count int, cursor int64, token string) string {
	if count <= 0 {
		count = DefaultBatchSize
	} else if count > MaxBatchSize {
		count = MaxBatchSize
	}

	params := url.Values{}
	params.Set("aid", aid)
	params.Set("aweme_id", videoID)
	params.Set("count", strconv.Itoa(count))
	params.Set("cursor", strconv.FormatInt(cursor, 10))
	params.Set(TokenCookie, token)

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(base, "/"), CommentListEndpoint, params.Encode())
}

// TokenURL constructs the URL of the token handshake request
func TokenURL(base, aid string) string {
	params := url.Values{}
	params.Set("aid", aid)
	params.Set("count", "1")

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(base, "/"), TokenEndpoint, params.Encode())
}

// VideoURL returns the public page of a video
func VideoURL(author, videoID string) string {
	if videoID == "" {
		return ""
	}
	if author == "" {
		return fmt.Sprintf("%s/video/%s", BaseURL, videoID)
	}
	return fmt.Sprintf("%s/@%s/video/%s", BaseURL, strings.TrimPrefix(author, "@"), videoID)
}

// IsValidVideoID reports whether id looks like a numeric video id
func IsValidVideoID(id string) bool {
	if id == "" || len(id) > 32 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseVideoID extracts a video id from a bare id or a video page URL.
// It returns "" when nothing usable is found.
func ParseVideoID(s string) string {
	s = strings.TrimSpace(s)
	if IsValidVideoID(s) {
		return s
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "video" && IsValidVideoID(parts[i+1]) {
			return parts[i+1]
		}
	}
	return ""
}

// redactToken shortens the msToken query parameter of a URL for logging
func redactToken(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if tok := q.Get(TokenCookie); len(tok) > 8 {
		q.Set(TokenCookie, tok[:8]+"...")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
