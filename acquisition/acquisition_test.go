package acquisition

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"highlight-reel-pipeline/config"
	"highlight-reel-pipeline/logger"
	"highlight-reel-pipeline/mediatool"
	"highlight-reel-pipeline/mediatool/mediatooltest"
	"highlight-reel-pipeline/types"
)

func newTestAcquirer(t *testing.T, runner mediatool.Runner) *Acquirer {
	t.Helper()
	cfg := config.Default()
	cfg.Acquisition.FootageDir = t.TempDir()
	log := logger.Discard().Stage("ingest")
	return New(cfg.Acquisition, cfg.Render, runner, mediatool.NewEncoderPolicy(config.ModeCPUOnly, log), log)
}

func ytVideo(id string) types.SourceVideo {
	return types.SourceVideo{Platform: "youtube", VideoID: id, URL: "https://www.youtube.com/watch?v=" + id}
}

func TestFetchIsIdempotent(t *testing.T) {
	runner := &mediatooltest.Runner{}
	a := newTestAcquirer(t, runner)
	if err := os.WriteFile(a.Target("abc"), []byte("existing footage"), 0644); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		f, err := a.Fetch(context.Background(), ytVideo("abc"))
		if err != nil || !f.OK || f.Placeholder {
			t.Fatalf("fetch %d: %+v %v", i, f, err)
		}
	}
	if n := len(runner.Commands()); n != 0 {
		t.Errorf("ran %d commands, want 0", n)
	}
}

func TestFetchDownloads(t *testing.T) {
	runner := &mediatooltest.Runner{}
	a := newTestAcquirer(t, runner)

	f, err := a.Fetch(context.Background(), ytVideo("abc"))
	if err != nil {
		t.Fatal(err)
	}
	if f.Placeholder || f.Path != a.Target("abc") || !mediatool.NonEmpty(f.Path) {
		t.Errorf("footage = %+v", f)
	}
	if runner.Count("yt-dlp") != 1 || runner.Count("ffmpeg") != 0 {
		t.Errorf("commands = %v", runner.Commands())
	}
	assertOnlyFiles(t, a.cfg.FootageDir, "abc.mp4")
}

// assertOnlyFiles fails when dir holds anything besides names, such as a
// leftover scratch directory
func assertOnlyFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	if strings.Join(got, ",") != strings.Join(names, ",") {
		t.Errorf("footage dir = %v, want %v", got, names)
	}
}

// flakyNetwork fails yt-dlp until online is set
type flakyNetwork struct {
	online bool
}

func (n *flakyNetwork) handle(c mediatool.Command) mediatool.Result {
	if c.Name == "yt-dlp" && !n.online {
		return mediatooltest.Fail(1)
	}
	mediatooltest.WriteOutput(c, []byte("media"))
	return mediatool.Result{}
}

func TestFetchFallsBackToPlaceholder(t *testing.T) {
	runner := &mediatooltest.Runner{Handler: func(c mediatool.Command) mediatool.Result {
		if c.Name == "yt-dlp" {
			return mediatool.Result{ExitCode: -1, TimedOut: true}
		}
		mediatooltest.WriteOutput(c, []byte("placeholder"))
		return mediatool.Result{}
	}}
	a := newTestAcquirer(t, runner)

	f, err := a.Fetch(context.Background(), ytVideo("abc"))
	if err != nil {
		t.Fatal(err)
	}
	if !f.Placeholder || !f.OK || f.Reason == "" {
		t.Errorf("footage = %+v", f)
	}
	if f.Path != a.PlaceholderTarget("abc") {
		t.Errorf("path = %s, want %s", f.Path, a.PlaceholderTarget("abc"))
	}
	if _, err := os.Stat(a.Target("abc")); !os.IsNotExist(err) {
		t.Error("placeholder written under the real footage name")
	}
	cmd := runner.Commands()[1]
	if cmd.Name != "ffmpeg" || !strings.HasPrefix(cmd.Args[4], "color=") || !mediatooltest.Has(cmd, "libx264") {
		t.Errorf("placeholder cmd = %s", cmd)
	}
}

func TestFetchRetriesDownloadAfterPlaceholder(t *testing.T) {
	net := &flakyNetwork{}
	runner := &mediatooltest.Runner{Handler: net.handle}
	a := newTestAcquirer(t, runner)

	first, err := a.Fetch(context.Background(), ytVideo("abc"))
	if err != nil || !first.Placeholder {
		t.Fatalf("first fetch = %+v, %v", first, err)
	}

	net.online = true
	second, err := a.Fetch(context.Background(), ytVideo("abc"))
	if err != nil {
		t.Fatal(err)
	}
	if second.Placeholder || second.Path != a.Target("abc") || second.Reason != "" {
		t.Errorf("second fetch = %+v", second)
	}
	if n := runner.Count("yt-dlp"); n != 2 {
		t.Errorf("yt-dlp ran %d times, want 2", n)
	}

	third, err := a.Fetch(context.Background(), ytVideo("abc"))
	if err != nil || third.Placeholder || runner.Count("yt-dlp") != 2 {
		t.Errorf("cached real footage not reused: %+v, %v", third, err)
	}
}

func TestFetchReusesCachedPlaceholder(t *testing.T) {
	runner := &mediatooltest.Runner{Handler: (&flakyNetwork{}).handle}
	a := newTestAcquirer(t, runner)

	for i := 0; i < 2; i++ {
		f, err := a.Fetch(context.Background(), ytVideo("abc"))
		if err != nil || !f.Placeholder {
			t.Fatalf("fetch %d = %+v, %v", i, f, err)
		}
	}
	if runner.Count("yt-dlp") != 2 || runner.Count("ffmpeg") != 1 {
		t.Errorf("commands = %v", runner.Commands())
	}
	assertOnlyFiles(t, a.cfg.FootageDir, "abc.placeholder.mp4")
}

func TestFetchSkipsDownloadForFallbackVideos(t *testing.T) {
	runner := &mediatooltest.Runner{}
	a := newTestAcquirer(t, runner)

	f, err := a.Fetch(context.Background(), types.SourceVideo{Platform: "fallback", VideoID: "fallback_20260314_1"})
	if err != nil || !f.Placeholder {
		t.Fatalf("%+v %v", f, err)
	}
	if runner.Count("yt-dlp") != 0 {
		t.Error("fallback video should not be downloaded")
	}
}

func TestRunRecordsFailures(t *testing.T) {
	runner := &mediatooltest.Runner{Handler: func(c mediatool.Command) mediatool.Result {
		if strings.Contains(c.String(), "bad") {
			return mediatooltest.Fail(1)
		}
		mediatooltest.WriteOutput(c, nil)
		return mediatool.Result{}
	}}
	a := newTestAcquirer(t, runner)

	footage, failed := a.Run(context.Background(), []types.SourceVideo{ytVideo("good1"), ytVideo("bad"), ytVideo("good2")})
	if len(failed) != 1 || failed[0].ID != "bad" || failed[0].Reason == "" {
		t.Errorf("failed = %v", failed)
	}
	if len(footage) != 2 || footage[0].VideoID != "good1" || footage[1].VideoID != "good2" {
		t.Errorf("footage = %+v", footage)
	}
	if filepath.Dir(footage[0].Path) != a.cfg.FootageDir {
		t.Errorf("path = %s", footage[0].Path)
	}
}
