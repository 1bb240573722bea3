package e621

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the main e621 host
	BaseURL = "https://e621.net"

	// SafeBaseURL is e926, the mirror that only serves safe-rated posts
	SafeBaseURL = "https://e926.net"

	PostsEndpoint = "/posts.json"
	PostEndpoint  = "/posts/%d.json"
	PoolEndpoint  = "/pools/%d.json"

	// DefaultPostsLimit is the page size used when none is given
	DefaultPostsLimit = 320

	// MaxPostsLimit is the largest page size the posts endpoint accepts
	MaxPostsLimit = 320
)

// GetPostsURL builds a search URL for tags on the given page
func GetPostsURL(base, tags string, page, limit int) string {
	params := url.Values{}
	params.Set("tags", strings.TrimSpace(tags))
	params.Set("limit", fmt.Sprintf("%d", ClampLimit(limit)))
	if page < 1 {
		page = 1
	}
	params.Set("page", fmt.Sprintf("%d", page))

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(base, "/"), PostsEndpoint, params.Encode())
}

// GetPostURL builds the URL for a single post
func GetPostURL(base string, id int64) string {
	return strings.TrimRight(base, "/") + fmt.Sprintf(PostEndpoint, id)
}

// GetPoolURL builds the URL for a pool
func GetPoolURL(base string, id int64) string {
	return strings.TrimRight(base, "/") + fmt.Sprintf(PoolEndpoint, id)
}

// ClampLimit keeps a page size within what the API accepts
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPostsLimit
	case limit > MaxPostsLimit:
		return MaxPostsLimit
	default:
		return limit
	}
}
