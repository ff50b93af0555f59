package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"highlight-reel-pipeline/config"
	"highlight-reel-pipeline/types"
)

// ErrNotConfigured means a source has no channels or credentials
var ErrNotConfigured = errors.New("source not configured")

// YouTube lists channel uploads through the Data API v3 search endpoint
type YouTube struct {
	svc        *youtube.Service
	channels   []string
	maxResults int64
}

// NewYouTube authenticates with a refresh token when OAuth credentials are
// present and with an API key otherwise.
func NewYouTube(ctx context.Context, cfg config.YouTubeConfig, s config.Secrets) (*YouTube, error) {
	if len(cfg.Channels) == 0 {
		return nil, ErrNotConfigured
	}
	var opts []option.ClientOption
	switch {
	case s.YouTubeClientID != "" && s.YouTubeClientSecret != "" && s.YouTubeRefreshToken != "":
		conf := &oauth2.Config{
			ClientID:     s.YouTubeClientID,
			ClientSecret: s.YouTubeClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{youtube.YoutubeReadonlyScope},
		}
		token := &oauth2.Token{
			RefreshToken: s.YouTubeRefreshToken,
			Expiry:       time.Now().Add(-time.Hour), // force refresh
		}
		opts = append(opts, option.WithTokenSource(conf.TokenSource(ctx, token)))
	case s.YouTubeAPIKey != "":
		opts = append(opts, option.WithAPIKey(s.YouTubeAPIKey))
	default:
		return nil, fmt.Errorf("youtube: %w: set YOUTUBE_API_KEY or OAuth credentials", ErrNotConfigured)
	}
	return newYouTube(ctx, cfg, opts...)
}

func newYouTube(ctx context.Context, cfg config.YouTubeConfig, opts ...option.ClientOption) (*YouTube, error) {
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &YouTube{svc: svc, channels: cfg.Channels, maxResults: cfg.MaxResults}, nil
}

func (y *YouTube) Name() string       { return "youtube" }
func (y *YouTube) Channels() []string { return y.channels }

// ListRecent returns uploads of channel published after since. Rate limits
// and server errors are retried until ctx expires.
func (y *YouTube) ListRecent(ctx context.Context, channel string, since time.Time) ([]types.SourceVideo, error) {
	var resp *youtube.SearchListResponse
	op := func() error {
		var err error
		resp, err = y.svc.Search.List([]string{"snippet"}).
			ChannelId(channel).
			Type("video").
			Order("date").
			PublishedAfter(since.UTC().Format(time.RFC3339)).
			MaxResults(y.maxResults).
			Context(ctx).
			Do()
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code < 500 && gerr.Code != 429 {
			return backoff.Permanent(err)
		}
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // bounded by ctx
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	videos := make([]types.SourceVideo, 0, len(resp.Items))
	for _, item := range resp.Items {
		if v, ok := searchResultVideo(item); ok {
			videos = append(videos, v)
		}
	}
	return videos, nil
}

func searchResultVideo(item *youtube.SearchResult) (types.SourceVideo, bool) {
	if item == nil || item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
		return types.SourceVideo{}, false
	}
	v := types.SourceVideo{
		Platform:    "youtube",
		ChannelID:   item.Snippet.ChannelId,
		ChannelName: item.Snippet.ChannelTitle,
		VideoID:     item.Id.VideoId,
		Title:       item.Snippet.Title,
		URL:         "https://www.youtube.com/watch?v=" + item.Id.VideoId,
	}
	// an unparsable timestamp is treated as absent
	if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
		v.PublishedAt = t
	}
	return v, true
}
