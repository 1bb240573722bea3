// Package tags reads the tag file that drives a download session.
//
// The file is plain text split into bracketed sections. Each non-empty,
// non-comment line in a section is one query:
//
//	[artists]
//	some_artist
//
//	[general]
//	wolf solo rating:s
//
//	[pools]
//	12345
//
//	[single-post]
//	678910
package tags

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	errs "e621dl/pkg/errors"
)

// DefaultFileName is the tag file looked up in the working directory
const DefaultFileName = "tags.txt"

// GroupType is the section a tag was listed under
type GroupType string

const (
	GroupArtists    GroupType = "artists"
	GroupGeneral    GroupType = "general"
	GroupPools      GroupType = "pools"
	GroupSinglePost GroupType = "single-post"
)

// Valid reports whether t is a known section name
func (t GroupType) Valid() bool {
	switch t {
	case GroupArtists, GroupGeneral, GroupPools, GroupSinglePost:
		return true
	}
	return false
}

// IsSearch reports whether the group's tags are post search queries
func (t GroupType) IsSearch() bool {
	return t == GroupArtists || t == GroupGeneral
}

// Tag is one query line
type Tag struct {
	Name string
	Line int
}

// ID returns the numeric id of a pool or single-post tag
func (t Tag) ID() (int64, error) {
	return strconv.ParseInt(t.Name, 10, 64)
}

// Group is all tags of one section type, in file order
type Group struct {
	Type GroupType
	Tags []Tag
}

// ParseError describes a problem at a specific line
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Parse reads a tag file. Groups are returned in the order their section
// first appears; a repeated section appends to the earlier group.
func Parse(r io.Reader) ([]Group, error) {
	var (
		groups  []Group
		index   = map[GroupType]int{}
		current = -1
		lineNo  int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, parseErr(lineNo, "unterminated section header %q", line)
			}
			gt := GroupType(strings.ToLower(strings.TrimSpace(line[1 : len(line)-1])))
			if !gt.Valid() {
				return nil, parseErr(lineNo, "unknown section %q", line)
			}
			i, ok := index[gt]
			if !ok {
				groups = append(groups, Group{Type: gt})
				i = len(groups) - 1
				index[gt] = i
			}
			current = i
			continue
		}

		if current < 0 {
			return nil, parseErr(lineNo, "tag %q appears before any section", line)
		}

		tag := Tag{Name: strings.Join(strings.Fields(line), " "), Line: lineNo}
		if !groups[current].Type.IsSearch() {
			if id, err := tag.ID(); err != nil || id <= 0 {
				return nil, parseErr(lineNo, "%q is not a valid id for [%s]", line, groups[current].Type)
			}
		}
		groups[current].Tags = append(groups[current].Tags, tag)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeIO, "read tag file", err)
	}

	return groups, nil
}

// Load parses the tag file at path on fs
func Load(fs afero.Fs, path string) ([]Group, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrorTypeConfig, "load tag file", err, "cannot open %s", path)
	}
	defer f.Close()

	groups, err := Parse(f)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrorTypeConfig, "load tag file", err, "%s", path)
	}
	return groups, nil
}

// CreateDefault writes a commented template to path
func CreateDefault(fs afero.Fs, path string) error {
	if err := afero.WriteFile(fs, path, []byte(defaultTemplate), 0644); err != nil {
		return errs.Wrapf(errs.ErrorTypeIO, "create tag file", err, "cannot write %s", path)
	}
	return nil
}

// Ensure creates the template when path does not exist yet
func Ensure(fs afero.Fs, path string) (bool, error) {
	_, err := fs.Stat(path)
	if err == nil {
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, errs.Wrapf(errs.ErrorTypeIO, "check tag file", err, "cannot stat %s", path)
	}
	if err := CreateDefault(fs, path); err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of tags across groups
func Count(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Tags)
	}
	return n
}

func stripComment(line string) string {
	if i := strings.Index(line, "#"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

func parseErr(line int, format string, args ...interface{}) error {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

const defaultTemplate = `# e621dl tag file
#
# Lines starting with # are comments. Each line below a section header is
# one query, downloaded into its own directory.
#
# [artists] and [general] take e621 search queries, e.g. "wolf solo rating:s".
# [pools] takes pool ids; files go under downloads/pools/<pool name>.
# [single-post] takes post ids; files go under downloads/single.

[artists]

[general]

[pools]

[single-post]
`
