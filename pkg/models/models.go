// Package models holds the data passed from the grabber to the downloader.
package models

// SingleSetName is the set name of the posts requested one by one
const SingleSetName = "single"

// GrabbedPost is one file to download
type GrabbedPost struct {
	// FileName is the leaf name on disk, "{id}.{ext}" or "{md5}.{ext}"
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
	// FileSize is the size reported by the API; it is advisory
	FileSize int64 `json:"file_size"`
}

// PostSet is a named group of posts that share a destination directory
type PostSet struct {
	SetName string `json:"set_name"`
	// Category adds one directory level above the set when non-empty
	Category string        `json:"category,omitempty"`
	Posts    []GrabbedPost `json:"posts"`
}

// NewSingleSet returns the empty set collecting individually requested posts
func NewSingleSet() PostSet {
	return PostSet{SetName: SingleSetName}
}

// Len returns the number of posts in the set
func (s PostSet) Len() int {
	return len(s.Posts)
}

// IsEmpty reports whether the set has no posts
func (s PostSet) IsEmpty() bool {
	return len(s.Posts) == 0
}
