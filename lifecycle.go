package pagemill

import (
	"fmt"
	"io"

	"github.com/pagemill/pagemill/content"
)

// SaveBlogPost runs the full save path for a post: validate, recompute the
// reading time, persist with a revision, and drop the affected post-list
// cache entries.
func (a *App) SaveBlogPost(p *BlogPost, action string) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.ReadingTime = content.ReadingTime(p.Intro, p.Body)
	if err := a.Store.SaveBlogPost(p, action); err != nil {
		return err
	}
	a.invalidatePostCaches(p.ID)
	a.Log.Info().Int64("page", p.ID).Str("slug", p.Slug).Str("action", action).Msg("post saved")
	return nil
}

// SaveHomePage validates and persists the root page with a revision. The
// home page is not query-cached, so nothing is invalidated.
func (a *App) SaveHomePage(p *HomePage, action string) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := a.Store.SaveHomePage(p, action); err != nil {
		return err
	}
	a.Log.Info().Int64("page", p.ID).Str("action", action).Msg("home page saved")
	return nil
}

// SaveStaticPage validates and persists a static page with a revision.
func (a *App) SaveStaticPage(p *StaticPage, action string) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := a.Store.SaveStaticPage(p, action); err != nil {
		return err
	}
	a.Log.Info().Int64("page", p.ID).Str("slug", p.Slug).Str("action", action).Msg("page saved")
	return nil
}

// PublishPage makes a page live and invalidates post listings when the page
// is a blog post.
func (a *App) PublishPage(id int64) error {
	e, err := a.Store.PublishPage(id)
	if err != nil {
		return err
	}
	if e.Node().Kind == KindPost {
		a.invalidatePostCaches(id)
	}
	a.Log.Info().Int64("page", id).Str("kind", string(e.Node().Kind)).Msg("page published")
	return nil
}

// UnpublishPage takes a page offline and invalidates post listings when the
// page is a blog post.
func (a *App) UnpublishPage(id int64) error {
	e, err := a.Store.UnpublishPage(id)
	if err != nil {
		return err
	}
	if e.Node().Kind == KindPost {
		a.invalidatePostCaches(id)
	}
	a.Log.Info().Int64("page", id).Str("kind", string(e.Node().Kind)).Msg("page unpublished")
	return nil
}

// DeletePage removes a page and its subtree, invalidating post listings.
func (a *App) DeletePage(id int64) error {
	if err := a.Store.DeletePageTree(id); err != nil {
		return err
	}
	a.invalidatePostCaches(id)
	a.Log.Info().Int64("page", id).Msg("page deleted")
	return nil
}

// RecalculateReadingTimes recomputes the reading time of every post, drafts
// included, writing a per-post report to out. In dry-run mode nothing is
// persisted. Failed updates are reported and skipped, not fatal.
func (a *App) RecalculateReadingTimes(dryRun bool, out io.Writer) error {
	posts, err := a.Store.ListAllPosts()
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		fmt.Fprintln(out, "No blog posts found.")
		return nil
	}
	fmt.Fprintf(out, "Found %d blog post(s) to process...\n\n", len(posts))

	updated := 0
	for i := range posts {
		p := &posts[i]
		words := content.CountWords(p.Intro) + p.Body.WordCount()
		minutes := content.ReadingTime(p.Intro, p.Body)
		if minutes == p.ReadingTime {
			fmt.Fprintf(out, "  ✓ \"%s\": %d min (no change needed)\n", p.Title, minutes)
			continue
		}
		if !dryRun {
			if err := a.Store.UpdateReadingTime(p.ID, minutes); err != nil {
				fmt.Fprintf(out, "  ✗ \"%s\": update failed: %v\n", p.Title, err)
				a.Log.Error().Err(err).Int64("page", p.ID).Msg("reading time update failed")
				continue
			}
		}
		fmt.Fprintf(out, "  \"%s\": %d words → %d min → %d min\n",
			p.Title, words, p.ReadingTime, minutes)
		updated++
	}

	if dryRun {
		fmt.Fprintf(out, "\n[DRY RUN] Would update %d of %d post(s)\n", updated, len(posts))
	} else {
		fmt.Fprintf(out, "\n✓ Successfully updated %d of %d post(s)\n", updated, len(posts))
	}
	return nil
}
