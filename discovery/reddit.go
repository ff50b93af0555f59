package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vartanbeno/go-reddit/v2/reddit"

	"highlight-reel-pipeline/config"
	"highlight-reel-pipeline/types"
)

// Reddit finds video posts in subreddits. Posts linking to YouTube are
// reported as YouTube videos so they dedupe against channel results.
type Reddit struct {
	client     *reddit.Client
	subreddits []string
	limit      int
}

// NewReddit creates a read-only client; no credentials are needed
func NewReddit(cfg config.RedditConfig, userAgent string) (*Reddit, error) {
	if len(cfg.Subreddits) == 0 {
		return nil, ErrNotConfigured
	}
	if userAgent == "" {
		userAgent = "highlight-reel-pipeline/1.0"
	}
	client, err := reddit.NewReadonlyClient(reddit.WithUserAgent(userAgent))
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	return &Reddit{client: client, subreddits: cfg.Subreddits, limit: cfg.Limit}, nil
}

func (r *Reddit) Name() string       { return "reddit" }
func (r *Reddit) Channels() []string { return r.subreddits }

// ListRecent returns video posts from the subreddit's newest listing
func (r *Reddit) ListRecent(ctx context.Context, subreddit string, since time.Time) ([]types.SourceVideo, error) {
	posts, _, err := r.client.Subreddit.NewPosts(ctx, subreddit, &reddit.ListOptions{Limit: r.limit})
	if err != nil {
		return nil, err
	}
	var videos []types.SourceVideo
	for _, p := range posts {
		if p == nil {
			continue
		}
		var created time.Time
		if p.Created != nil {
			created = p.Created.Time
		}
		if v, ok := postVideo(subreddit, p.ID, p.Title, p.URL, p.Permalink, created); ok {
			videos = append(videos, v)
		}
	}
	return videos, nil
}

// postVideo classifies a post by its link target
func postVideo(subreddit, id, title, link, permalink string, created time.Time) (types.SourceVideo, bool) {
	v := types.SourceVideo{
		ChannelID:   subreddit,
		ChannelName: "r/" + subreddit,
		Title:       title,
		PublishedAt: created,
	}
	if ytID := youTubeID(link); ytID != "" {
		v.Platform = "youtube"
		v.VideoID = ytID
		v.URL = "https://www.youtube.com/watch?v=" + ytID
		return v, true
	}
	u, err := url.Parse(link)
	if err != nil || !strings.EqualFold(u.Hostname(), "v.redd.it") || id == "" {
		return types.SourceVideo{}, false
	}
	v.Platform = "reddit"
	v.VideoID = "reddit_" + id
	v.URL = "https://www.reddit.com" + permalink
	if permalink == "" {
		v.URL = link
	}
	return v, true
}

// youTubeID extracts the video ID from watch, shorts and youtu.be links
func youTubeID(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	path := strings.Trim(u.Path, "/")
	switch host {
	case "youtu.be":
		return firstSegment(path)
	case "youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return id
		}
		for _, prefix := range []string{"shorts/", "live/", "embed/"} {
			if strings.HasPrefix(path, prefix) {
				return firstSegment(strings.TrimPrefix(path, prefix))
			}
		}
	}
	return ""
}

func firstSegment(p string) string {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}
