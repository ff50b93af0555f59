package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"highlight-reel-pipeline/config"
	"highlight-reel-pipeline/types"
)

// Source lists recent videos for the channels it monitors
type Source interface {
	Name() string
	Channels() []string
	ListRecent(ctx context.Context, channel string, since time.Time) ([]types.SourceVideo, error)
}

// Discoverer queries every source channel concurrently and merges the results
type Discoverer struct {
	Sources       []Source
	Seen          SeenStore // nil disables cross-run filtering
	Partners      []config.Partner
	Workers       int
	SourceTimeout time.Duration
	FallbackCount int
	MaxVideos     int
	Now           func() time.Time
	log           *logrus.Entry
}

// New creates a Discoverer from discovery settings
func New(cfg config.DiscoveryConfig, sources []Source, seen SeenStore, log *logrus.Entry) *Discoverer {
	return &Discoverer{
		Sources:       sources,
		Seen:          seen,
		Partners:      cfg.Partners,
		Workers:       cfg.Workers,
		SourceTimeout: cfg.SourceTimeout,
		FallbackCount: cfg.FallbackCount,
		MaxVideos:     cfg.MaxVideos,
		Now:           time.Now,
		log:           log,
	}
}

type lookup struct {
	source  Source
	channel string
}

// Run returns deduplicated, unused videos published within window and the
// discovery outcome. Only when no source yields anything does it return
// placeholder videos built from the partner list (DiscoveryFallback). When
// sources answered but every video was already used, it returns nothing
// with DiscoveryNothingNew.
func (d *Discoverer) Run(ctx context.Context, window time.Duration) (videos []types.SourceVideo, outcome string) {
	now := d.Now()
	since := now.Add(-window)

	var jobs []lookup
	for _, s := range d.Sources {
		for _, ch := range s.Channels() {
			jobs = append(jobs, lookup{source: s, channel: ch})
		}
	}

	results := make([][]types.SourceVideo, len(jobs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, d.Workers))
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			lctx, cancel := context.WithTimeout(gctx, d.SourceTimeout)
			defer cancel()
			found, err := job.source.ListRecent(lctx, job.channel, since)
			if err != nil {
				d.log.Warnf("⚠️  %s %s: %v", job.source.Name(), job.channel, err)
				return nil
			}
			mu.Lock()
			results[i] = found
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var all []types.SourceVideo
	for _, r := range results {
		all = append(all, r...)
	}
	videos = Fresh(Dedupe(all), since)
	if len(videos) == 0 {
		d.log.Warn("⚠️  no videos discovered, using partner placeholders")
		return Fallback(d.Partners, d.FallbackCount, now), types.DiscoveryFallback
	}

	listed := len(videos)
	videos = d.unseen(ctx, videos)
	if len(videos) == 0 {
		d.log.Warnf("⚠️  all %d discovered video(s) were already used", listed)
		return nil, types.DiscoveryNothingNew
	}

	sortNewestFirst(videos)
	if d.MaxVideos > 0 && len(videos) > d.MaxVideos {
		videos = videos[:d.MaxVideos]
	}
	d.log.Infof("✅ discovered %d video(s) from %d lookup(s)", len(videos), len(jobs))
	return videos, types.DiscoveryFound
}

// MarkUsed records videos so later runs skip them
func (d *Discoverer) MarkUsed(ctx context.Context, videos []types.SourceVideo) {
	if d.Seen == nil {
		return
	}
	var ids []string
	for _, v := range videos {
		if !v.IsFallback() {
			ids = append(ids, v.VideoID)
		}
	}
	if len(ids) == 0 {
		return
	}
	if err := d.Seen.Mark(ctx, ids...); err != nil {
		d.log.Warnf("⚠️  could not record used videos: %v", err)
	}
}

func (d *Discoverer) unseen(ctx context.Context, videos []types.SourceVideo) []types.SourceVideo {
	if d.Seen == nil {
		return videos
	}
	out := videos[:0]
	for _, v := range videos {
		seen, err := d.Seen.Seen(ctx, v.VideoID)
		if err != nil {
			d.log.Warnf("⚠️  seen-store lookup failed, keeping %s: %v", v.VideoID, err)
		}
		if !seen {
			out = append(out, v)
		}
	}
	return out
}

// Dedupe keeps the first video for each identifier
func Dedupe(videos []types.SourceVideo) []types.SourceVideo {
	seen := make(map[string]bool, len(videos))
	out := make([]types.SourceVideo, 0, len(videos))
	for _, v := range videos {
		if v.VideoID == "" || seen[v.VideoID] {
			continue
		}
		seen[v.VideoID] = true
		out = append(out, v)
	}
	return out
}

// Fresh drops videos published before since. Videos without a timestamp are kept.
func Fresh(videos []types.SourceVideo, since time.Time) []types.SourceVideo {
	out := make([]types.SourceVideo, 0, len(videos))
	for _, v := range videos {
		if !v.PublishedAt.IsZero() && v.PublishedAt.Before(since) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Fallback builds count placeholder videos named fallback_<date>_<n>
func Fallback(partners []config.Partner, count int, now time.Time) []types.SourceVideo {
	if len(partners) == 0 {
		partners = []config.Partner{{Name: "Partner Channel"}}
	}
	if count <= 0 {
		count = 1
	}
	date := now.UTC().Format("20060102")
	out := make([]types.SourceVideo, 0, count)
	for n := 1; n <= count; n++ {
		p := partners[(n-1)%len(partners)]
		out = append(out, types.SourceVideo{
			Platform:    "fallback",
			ChannelID:   p.ChannelID,
			ChannelName: p.Name,
			VideoID:     fmt.Sprintf("fallback_%s_%d", date, n),
			Title:       fmt.Sprintf("%s highlights", p.Name),
			PublishedAt: now.UTC(),
		})
	}
	return out
}

// sortNewestFirst orders by publish time, undated videos last
func sortNewestFirst(videos []types.SourceVideo) {
	sort.SliceStable(videos, func(i, j int) bool {
		a, b := videos[i].PublishedAt, videos[j].PublishedAt
		if a.IsZero() != b.IsZero() {
			return !a.IsZero()
		}
		return a.After(b)
	})
}
