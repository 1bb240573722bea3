// Package blacklist filters out posts the user never wants downloaded.
//
// Each entry is a line of space separated tokens, in the same form as the
// e621 account blacklist. A line matches a post when all of its plain
// tokens are present and none of its "-" tokens are. "rating:s", "rating:q"
// and "rating:e" match on the post rating instead of its tags.
package blacklist

import (
	"strings"

	"e621dl/pkg/e621"
)

type token struct {
	value  string
	negate bool
	rating bool
}

type rule struct {
	raw    string
	tokens []token
}

// Blacklist is an immutable set of rules
type Blacklist struct {
	rules []rule
}

// New compiles lines into a Blacklist. Blank lines are ignored.
func New(lines []string) *Blacklist {
	b := &Blacklist{}
	for _, line := range lines {
		fields := strings.Fields(strings.ToLower(line))
		if len(fields) == 0 {
			continue
		}

		r := rule{raw: strings.Join(fields, " ")}
		for _, f := range fields {
			t := token{value: f}
			if strings.HasPrefix(f, "-") && len(f) > 1 {
				t.negate = true
				t.value = f[1:]
			}
			if v, ok := strings.CutPrefix(t.value, "rating:"); ok && v != "" {
				t.rating = true
				t.value = v[:1]
			}
			r.tokens = append(r.tokens, t)
		}
		b.rules = append(b.rules, r)
	}
	return b
}

// Len returns the number of compiled rules
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.rules)
}

// Matches reports whether any rule matches post
func (b *Blacklist) Matches(post e621.Post) bool {
	_, ok := b.Match(post)
	return ok
}

// Match returns the first rule matching post
func (b *Blacklist) Match(post e621.Post) (string, bool) {
	if b.Len() == 0 {
		return "", false
	}

	tags := make(map[string]struct{})
	for _, t := range post.Tags.All() {
		tags[strings.ToLower(t)] = struct{}{}
	}
	rating := strings.ToLower(post.Rating)

	for _, r := range b.rules {
		if r.matches(tags, rating) {
			return r.raw, true
		}
	}
	return "", false
}

func (r rule) matches(tags map[string]struct{}, rating string) bool {
	for _, t := range r.tokens {
		var present bool
		if t.rating {
			present = rating != "" && rating[:1] == t.value
		} else {
			_, present = tags[t.value]
		}
		if present == t.negate {
			return false
		}
	}
	return true
}

// Filter returns the posts that no rule matches, preserving order
func (b *Blacklist) Filter(posts []e621.Post) []e621.Post {
	if b.Len() == 0 {
		return posts
	}
	kept := make([]e621.Post, 0, len(posts))
	for _, p := range posts {
		if !b.Matches(p) {
			kept = append(kept, p)
		}
	}
	return kept
}
