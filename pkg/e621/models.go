package e621

import "sort"

// Post is the subset of an e621 post the downloader uses
type Post struct {
	ID        int64   `json:"id"`
	CreatedAt string  `json:"created_at"`
	File      File    `json:"file"`
	Tags      Tags    `json:"tags"`
	Rating    string  `json:"rating"`
	Pools     []int64 `json:"pools"`
	Flags     Flags   `json:"flags"`
}

// File describes the post's media file. URL is empty when the post is
// deleted or hidden from the current user.
type File struct {
	URL  string `json:"url"`
	MD5  string `json:"md5"`
	Ext  string `json:"ext"`
	Size int64  `json:"size"`
}

// Tags holds a post's tags grouped by type
type Tags struct {
	General   []string `json:"general"`
	Species   []string `json:"species"`
	Character []string `json:"character"`
	Artist    []string `json:"artist"`
	Copyright []string `json:"copyright"`
	Invalid   []string `json:"invalid"`
	Lore      []string `json:"lore"`
	Meta      []string `json:"meta"`
}

// Flags holds moderation state
type Flags struct {
	Deleted bool `json:"deleted"`
}

// All returns every tag of the post regardless of type, sorted
func (t Tags) All() []string {
	groups := [][]string{t.General, t.Species, t.Character, t.Artist, t.Copyright, t.Invalid, t.Lore, t.Meta}

	n := 0
	for _, g := range groups {
		n += len(g)
	}
	all := make([]string, 0, n)
	for _, g := range groups {
		all = append(all, g...)
	}
	sort.Strings(all)
	return all
}

// HasFile reports whether the post's media can be downloaded
func (p Post) HasFile() bool {
	return p.File.URL != "" && !p.Flags.Deleted
}

// Pool is an ordered collection of posts
type Pool struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	PostIDs   []int64 `json:"post_ids"`
	PostCount int     `json:"post_count"`
}

type postsResponse struct {
	Posts []Post `json:"posts"`
}

type postResponse struct {
	Post Post `json:"post"`
}
