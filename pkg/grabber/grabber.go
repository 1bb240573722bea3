// Package grabber resolves tag groups into the post sets the downloader consumes.
package grabber

import (
	"context"
	"fmt"
	"strings"
	"time"

	"e621dl/pkg/blacklist"
	"e621dl/pkg/config"
	"e621dl/pkg/e621"
	errs "e621dl/pkg/errors"
	"e621dl/pkg/logger"
	"e621dl/pkg/models"
	"e621dl/pkg/tags"
)

// PoolCategory is the category of every set built from a pool
const PoolCategory = "pools"

// Searcher is the part of the API client the grabber needs
type Searcher interface {
	SearchPosts(ctx context.Context, tags string, page, limit int) ([]e621.Post, error)
	FetchPost(ctx context.Context, id int64) (*e621.Post, error)
	FetchPool(ctx context.Context, id int64) (*e621.Pool, error)
}

// Options tunes how many posts are requested
type Options struct {
	// PostsPerPage is the search page size; 0 means the API maximum
	PostsPerPage int
	// MaxPages bounds pagination per query; 0 means no bound
	MaxPages  int
	Blacklist *blacklist.Blacklist
	Logger    logger.Logger
	// Now is used for lastRun stamps; defaults to time.Now
	Now func() time.Time
}

// Result is everything grabbed in one session
type Result struct {
	GrabbedPosts       []models.PostSet
	GrabbedSinglePosts models.PostSet
}

// Total returns the number of posts across all sets
func (r *Result) Total() int {
	n := r.GrabbedSinglePosts.Len()
	for _, s := range r.GrabbedPosts {
		n += s.Len()
	}
	return n
}

type grabber struct {
	client Searcher
	cfg    *config.Configuration
	opts   Options
	log    logger.Logger
	stamps []string
}

// FromTags queries the API for every tag in groups. Search tags with a
// lastRun date only fetch posts from that date on, and are stamped with
// today's date in cfg once everything has been grabbed. Any API failure
// aborts the grab and leaves cfg untouched.
func FromTags(ctx context.Context, groups []tags.Group, client Searcher, cfg *config.Configuration, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.PostsPerPage = e621.ClampLimit(opts.PostsPerPage)

	g := &grabber{client: client, cfg: cfg, opts: opts, log: opts.Logger}
	result := &Result{GrabbedSinglePosts: models.NewSingleSet()}

	for _, group := range groups {
		for _, tag := range group.Tags {
			switch group.Type {
			case tags.GroupArtists, tags.GroupGeneral:
				set, err := g.searchSet(ctx, tag)
				if err != nil {
					return nil, err
				}
				result.GrabbedPosts = append(result.GrabbedPosts, set)

			case tags.GroupPools:
				set, err := g.poolSet(ctx, tag)
				if err != nil {
					return nil, err
				}
				result.GrabbedPosts = append(result.GrabbedPosts, set)

			case tags.GroupSinglePost:
				post, ok, err := g.singlePost(ctx, tag)
				if err != nil {
					return nil, err
				}
				if ok {
					result.GrabbedSinglePosts.Posts = appendUnique(result.GrabbedSinglePosts.Posts, post)
				}
			}
		}
	}

	today := opts.Now()
	for _, tag := range g.stamps {
		cfg.RecordRun(tag, today)
	}

	return result, nil
}

func (g *grabber) searchSet(ctx context.Context, tag tags.Tag) (models.PostSet, error) {
	query := tag.Name
	if last, ok := g.cfg.LastRun[tag.Name]; ok && last != "" {
		query = fmt.Sprintf("%s date:>=%s", tag.Name, last)
	}

	posts, err := g.search(ctx, query)
	if err != nil {
		return models.PostSet{}, errs.Wrapf(errs.ErrorTypeGrab, "grab tag", err, "tag %q (line %d)", tag.Name, tag.Line)
	}

	set := g.buildSet(tag.Name, "", posts)
	g.stamps = append(g.stamps, tag.Name)

	g.log.InfoWithFields("Grabbed posts for tag", map[string]interface{}{
		"tag":   tag.Name,
		"query": query,
		"posts": set.Len(),
	})
	return set, nil
}

func (g *grabber) poolSet(ctx context.Context, tag tags.Tag) (models.PostSet, error) {
	id, err := tag.ID()
	if err != nil {
		return models.PostSet{}, errs.Wrapf(errs.ErrorTypeGrab, "grab pool", err, "invalid pool id %q (line %d)", tag.Name, tag.Line)
	}

	pool, err := g.client.FetchPool(ctx, id)
	if err != nil {
		return models.PostSet{}, errs.Wrapf(errs.ErrorTypeGrab, "grab pool", err, "pool %d", id)
	}

	posts, err := g.search(ctx, fmt.Sprintf("pool:%d", id))
	if err != nil {
		return models.PostSet{}, errs.Wrapf(errs.ErrorTypeGrab, "grab pool", err, "pool %d", id)
	}

	name := pool.Name
	if strings.TrimSpace(name) == "" {
		name = tag.Name
	}
	set := g.buildSet(name, PoolCategory, posts)

	g.log.InfoWithFields("Grabbed posts for pool", map[string]interface{}{
		"pool":  id,
		"name":  name,
		"posts": set.Len(),
	})
	return set, nil
}

func (g *grabber) singlePost(ctx context.Context, tag tags.Tag) (models.GrabbedPost, bool, error) {
	id, err := tag.ID()
	if err != nil {
		return models.GrabbedPost{}, false, errs.Wrapf(errs.ErrorTypeGrab, "grab post", err, "invalid post id %q (line %d)", tag.Name, tag.Line)
	}

	post, err := g.client.FetchPost(ctx, id)
	if err != nil {
		return models.GrabbedPost{}, false, errs.Wrapf(errs.ErrorTypeGrab, "grab post", err, "post %d", id)
	}

	if !post.HasFile() {
		g.log.WarnWithFields("Post has no downloadable file", map[string]interface{}{"post": id})
		return models.GrabbedPost{}, false, nil
	}
	return g.toGrabbed(*post), true, nil
}

// search pages through query until a short page or the page bound
func (g *grabber) search(ctx context.Context, query string) ([]e621.Post, error) {
	var all []e621.Post
	for page := 1; g.opts.MaxPages <= 0 || page <= g.opts.MaxPages; page++ {
		posts, err := g.client.SearchPosts(ctx, query, page, g.opts.PostsPerPage)
		if err != nil {
			return nil, err
		}
		all = append(all, posts...)
		if len(posts) < g.opts.PostsPerPage {
			break
		}
	}
	return all, nil
}

// buildSet drops unusable and blacklisted posts and names the rest
func (g *grabber) buildSet(name, category string, posts []e621.Post) models.PostSet {
	set := models.PostSet{SetName: name, Category: category}
	seen := make(map[string]struct{}, len(posts))

	for _, p := range posts {
		if !p.HasFile() {
			continue
		}
		if rule, hit := g.opts.Blacklist.Match(p); hit {
			g.log.DebugWithFields("Post blacklisted", map[string]interface{}{
				"post": p.ID,
				"rule": rule,
			})
			continue
		}
		gp := g.toGrabbed(p)
		if _, dup := seen[gp.FileName]; dup {
			continue
		}
		seen[gp.FileName] = struct{}{}
		set.Posts = append(set.Posts, gp)
	}
	return set
}

func (g *grabber) toGrabbed(p e621.Post) models.GrabbedPost {
	return models.GrabbedPost{
		FileName: FileName(p, g.cfg.PartUsedAsName),
		FileURL:  p.File.URL,
		FileSize: p.File.Size,
	}
}

// FileName names a post's file on disk by id or md5
func FileName(p e621.Post, part string) string {
	if part == config.PartID || p.File.MD5 == "" {
		return fmt.Sprintf("%d.%s", p.ID, p.File.Ext)
	}
	return fmt.Sprintf("%s.%s", p.File.MD5, p.File.Ext)
}

// appendUnique adds post unless a post with the same file name is present
func appendUnique(posts []models.GrabbedPost, post models.GrabbedPost) []models.GrabbedPost {
	for _, p := range posts {
		if p.FileName == post.FileName {
			return posts
		}
	}
	return append(posts, post)
}
