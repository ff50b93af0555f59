package discovery

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/api/youtube/v3"

	"highlight-reel-pipeline/config"
	"highlight-reel-pipeline/logger"
	"highlight-reel-pipeline/types"
)

type fakeSource struct {
	name     string
	channels []string
	videos   map[string][]types.SourceVideo
	fail     map[string]bool
	block    bool
	calls    atomic.Int32
}

func (f *fakeSource) Name() string       { return f.name }
func (f *fakeSource) Channels() []string { return f.channels }

func (f *fakeSource) ListRecent(ctx context.Context, channel string, since time.Time) ([]types.SourceVideo, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.fail[channel] {
		return nil, errors.New("quota exceeded")
	}
	return f.videos[channel], nil
}

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestDiscoverer(sources ...Source) *Discoverer {
	cfg := config.Default().Discovery
	cfg.SourceTimeout = 200 * time.Millisecond
	d := New(cfg, sources, nil, logger.Discard().Stage("ingest"))
	d.Now = func() time.Time { return now }
	return d
}

func video(id string, age time.Duration) types.SourceVideo {
	v := types.SourceVideo{Platform: "youtube", VideoID: id, Title: "t " + id}
	if age >= 0 {
		v.PublishedAt = now.Add(-age)
	}
	return v
}

func TestRunMergesDedupesAndFilters(t *testing.T) {
	yt := &fakeSource{
		name:     "youtube",
		channels: []string{"UC1", "UC2"},
		videos: map[string][]types.SourceVideo{
			"UC1": {video("a", time.Hour), video("old", 48*time.Hour)},
			"UC2": {video("b", 2*time.Hour), video("a", time.Hour)},
		},
	}
	rd := &fakeSource{
		name:     "reddit",
		channels: []string{"mining"},
		videos:   map[string][]types.SourceVideo{"mining": {video("undated", -1)}},
	}
	d := newTestDiscoverer(yt, rd)

	got, outcome := d.Run(context.Background(), 24*time.Hour)
	if outcome != types.DiscoveryFound {
		t.Fatalf("outcome = %s", outcome)
	}
	var ids []string
	for _, v := range got {
		ids = append(ids, v.VideoID)
	}
	want := []string{"a", "b", "undated"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
}

func TestRunToleratesFailingSource(t *testing.T) {
	yt := &fakeSource{
		name:     "youtube",
		channels: []string{"bad", "good"},
		fail:     map[string]bool{"bad": true},
		videos:   map[string][]types.SourceVideo{"good": {video("g", time.Hour)}},
	}
	got, outcome := newTestDiscoverer(yt).Run(context.Background(), 24*time.Hour)
	if outcome != types.DiscoveryFound || len(got) != 1 || got[0].VideoID != "g" {
		t.Errorf("got %v outcome=%s", got, outcome)
	}
}

func TestRunTimesOutSlowSource(t *testing.T) {
	slow := &fakeSource{name: "youtube", channels: []string{"UC1"}, block: true}
	start := time.Now()
	got, outcome := newTestDiscoverer(slow).Run(context.Background(), 24*time.Hour)
	if time.Since(start) > 2*time.Second {
		t.Error("source timeout not applied")
	}
	if outcome != types.DiscoveryFallback || len(got) == 0 {
		t.Errorf("expected fallback videos, got %v", got)
	}
}

func TestRunFallsBackToPartners(t *testing.T) {
	empty := &fakeSource{name: "youtube", channels: []string{"UC1"}}
	d := newTestDiscoverer(empty)
	d.Partners = []config.Partner{{Name: "Alpha", ChannelID: "UCA"}, {Name: "Beta"}}
	d.FallbackCount = 3

	got, outcome := d.Run(context.Background(), 24*time.Hour)
	if outcome != types.DiscoveryFallback {
		t.Fatalf("outcome = %s, want fallback", outcome)
	}
	want := []string{"fallback_20260314_1", "fallback_20260314_2", "fallback_20260314_3"}
	for i, v := range got {
		if v.VideoID != want[i] {
			t.Errorf("id[%d] = %s, want %s", i, v.VideoID, want[i])
		}
		if !v.IsFallback() {
			t.Errorf("%s not marked fallback", v.VideoID)
		}
	}
	if got[2].ChannelName != "Alpha" {
		t.Errorf("partners should cycle, got %s", got[2].ChannelName)
	}
}

func TestRunCapsMaxVideos(t *testing.T) {
	yt := &fakeSource{
		name:     "youtube",
		channels: []string{"UC1"},
		videos: map[string][]types.SourceVideo{"UC1": {
			video("v1", 5*time.Hour), video("v2", 1*time.Hour), video("v3", 3*time.Hour),
		}},
	}
	d := newTestDiscoverer(yt)
	d.MaxVideos = 2
	got, _ := d.Run(context.Background(), 24*time.Hour)
	if len(got) != 2 || got[0].VideoID != "v2" || got[1].VideoID != "v3" {
		t.Errorf("got %v", got)
	}
}

func TestSeenStoreFiltersAndMarks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	store := NewFileStore(path)
	ctx := context.Background()
	if err := store.Mark(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	yt := &fakeSource{
		name:     "youtube",
		channels: []string{"UC1"},
		videos:   map[string][]types.SourceVideo{"UC1": {video("a", time.Hour), video("b", time.Hour)}},
	}
	d := newTestDiscoverer(yt)
	d.Seen = store

	got, _ := d.Run(ctx, 24*time.Hour)
	if len(got) != 1 || got[0].VideoID != "b" {
		t.Fatalf("got %v", got)
	}

	d.MarkUsed(ctx, append(got, types.SourceVideo{Platform: "fallback", VideoID: "fallback_x_1"}))
	reloaded := NewFileStore(path)
	if ok, _ := reloaded.Seen(ctx, "b"); !ok {
		t.Error("b not persisted")
	}
	if ok, _ := reloaded.Seen(ctx, "fallback_x_1"); ok {
		t.Error("fallback ids must not be recorded")
	}
}

func TestRunAllSeenIsNothingNew(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "seen.json"))
	if err := store.Mark(ctx, "a", "b"); err != nil {
		t.Fatal(err)
	}
	yt := &fakeSource{
		name:     "youtube",
		channels: []string{"UC1"},
		videos:   map[string][]types.SourceVideo{"UC1": {video("a", time.Hour), video("b", time.Hour)}},
	}
	d := newTestDiscoverer(yt)
	d.Seen = store

	got, outcome := d.Run(ctx, 24*time.Hour)
	if outcome != types.DiscoveryNothingNew {
		t.Errorf("outcome = %s, want %s", outcome, types.DiscoveryNothingNew)
	}
	if len(got) != 0 {
		t.Errorf("partner placeholders used on a quiet day: %v", got)
	}
}

func TestPostVideo(t *testing.T) {
	tests := []struct {
		name     string
		link     string
		platform string
		id       string
	}{
		{"watch link", "https://www.youtube.com/watch?v=abc123&t=5", "youtube", "abc123"},
		{"short link", "https://youtu.be/xyz789?si=q", "youtube", "xyz789"},
		{"shorts", "https://m.youtube.com/shorts/sh0rt", "youtube", "sh0rt"},
		{"reddit video", "https://v.redd.it/k2j3h4", "reddit", "reddit_p1"},
		{"image", "https://i.redd.it/pic.jpg", "", ""},
		{"article", "https://example.com/news", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := postVideo("mining", "p1", "title", tt.link, "/r/mining/comments/p1/x/", now)
			if ok != (tt.platform != "") {
				t.Fatalf("ok = %v", ok)
			}
			if v.Platform != tt.platform || v.VideoID != tt.id {
				t.Errorf("got %s/%s, want %s/%s", v.Platform, v.VideoID, tt.platform, tt.id)
			}
		})
	}
}

func TestSearchResultVideo(t *testing.T) {
	item := &youtube.SearchResult{
		Id: &youtube.ResourceId{VideoId: "vid1"},
		Snippet: &youtube.SearchResultSnippet{
			ChannelId:    "UC1",
			ChannelTitle: "Mining Weekly",
			Title:        "Copper outlook",
			PublishedAt:  "2026-03-14T08:00:00Z",
		},
	}
	v, ok := searchResultVideo(item)
	if !ok {
		t.Fatal("expected video")
	}
	if v.URL != "https://www.youtube.com/watch?v=vid1" || v.ChannelName != "Mining Weekly" {
		t.Errorf("got %+v", v)
	}
	if !v.PublishedAt.Equal(time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("published = %v", v.PublishedAt)
	}

	item.Snippet.PublishedAt = "yesterday"
	if v, _ := searchResultVideo(item); !v.PublishedAt.IsZero() {
		t.Error("bad timestamp should be zero")
	}
	if _, ok := searchResultVideo(&youtube.SearchResult{Id: &youtube.ResourceId{}}); ok {
		t.Error("missing id should be skipped")
	}
}
