package mediatool_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"highlight-reel-pipeline/mediatool"
	"highlight-reel-pipeline/mediatool/mediatooltest"
)

func TestEncoderPolicyOrder(t *testing.T) {
	tests := []struct {
		mode string
		want []string
	}{
		{"mixed", []string{"h264_nvenc", "libx264"}},
		{"cpu-only", []string{"libx264"}},
		{"gpu-only", []string{"h264_nvenc"}},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			got := mediatool.NewEncoderPolicy(tt.mode, nil).Encoders()
			if len(got) != len(tt.want) {
				t.Fatalf("got %d encoders, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Name != tt.want[i] {
					t.Errorf("encoder %d = %s, want %s", i, got[i].Name, tt.want[i])
				}
			}
		})
	}
}

func TestEncoderPolicyFallsBackToSoftware(t *testing.T) {
	r := &mediatooltest.Runner{Handler: func(c mediatool.Command) mediatool.Result {
		if mediatooltest.Has(c, "h264_nvenc") {
			return mediatooltest.Fail(1)
		}
		return mediatool.Result{}
	}}
	p := mediatool.NewEncoderPolicy("mixed", nil)

	_, enc, err := p.Run(context.Background(), r, "trim", func(e mediatool.Encoder) mediatool.Command {
		return mediatool.Command{Name: "ffmpeg", Args: append([]string{"-i", "in.mp4"}, e.Args...)}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if enc.Name != "libx264" {
		t.Errorf("encoder = %s, want libx264", enc.Name)
	}
	if n := len(r.Commands()); n != 2 {
		t.Errorf("ran %d commands, want 2", n)
	}
}

func TestEncoderPolicyTimeoutIsFailure(t *testing.T) {
	r := &mediatooltest.Runner{Handler: func(c mediatool.Command) mediatool.Result {
		return mediatool.Result{TimedOut: true, ExitCode: -1, Err: context.DeadlineExceeded}
	}}
	p := mediatool.NewEncoderPolicy("mixed", nil)
	_, _, err := p.Run(context.Background(), r, "concat", func(e mediatool.Encoder) mediatool.Command {
		return mediatool.Command{Name: "ffmpeg", Args: e.Args}
	})
	if err == nil {
		t.Fatal("expected error when every encoder times out")
	}
	if n := len(r.Commands()); n != 2 {
		t.Errorf("ran %d commands, want 2", n)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	res := mediatool.NewExecRunner(nil).Run(context.Background(), mediatool.Command{
		Name: "definitely-not-a-real-binary-xyz",
	})
	if res.OK() {
		t.Fatal("missing binary reported success")
	}
	if res.Error() == nil {
		t.Fatal("Error() = nil for failed result")
	}
}

func TestExecRunnerTimeout(t *testing.T) {
	if !mediatool.Available("sleep") {
		t.Skip("sleep not available")
	}
	res := mediatool.NewExecRunner(nil).Run(context.Background(), mediatool.Command{
		Name:    "sleep",
		Args:    []string{"5"},
		Timeout: 50 * time.Millisecond,
	})
	if !res.TimedOut {
		t.Fatalf("TimedOut = false, result %+v", res)
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v", res.Err)
	}
}

func TestExecRunnerTimeoutKillsChildren(t *testing.T) {
	if !mediatool.Available("sh") {
		t.Skip("sh not available")
	}
	start := time.Now()
	res := mediatool.NewExecRunner(nil).Run(context.Background(), mediatool.Command{
		Name:    "sh",
		Args:    []string{"-c", "sleep 5 & wait"},
		Timeout: 200 * time.Millisecond,
	})
	if !res.TimedOut {
		t.Fatalf("TimedOut = false, result %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Run took %s, background child outlived the timeout", elapsed)
	}
}

func TestFFprobeStreams(t *testing.T) {
	out := `{"streams":[{"index":0,"codec_type":"video","codec_name":"h264"},{"index":1,"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"12.500000"}}`
	r := &mediatooltest.Runner{Handler: func(c mediatool.Command) mediatool.Result {
		return mediatool.Result{Stdout: []byte(out)}
	}}
	p := &mediatool.Prober{Runner: r, Path: "ffprobe"}
	pr, err := p.Probe(context.Background(), "x.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if len(pr.VideoStreams()) != 1 || pr.VideoStreams()[0].CodecName != "h264" {
		t.Errorf("streams = %+v", pr.Streams)
	}
	d, err := pr.Duration()
	if err != nil || d != 12.5 {
		t.Errorf("Duration = %v, %v", d, err)
	}
}

func TestWritePlaylistEscapesQuotes(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "list.txt")
	files := []string{filepath.Join(dir, "a.mp4"), filepath.Join(dir, "it's.mp4")}
	if err := mediatool.WritePlaylist(list, files); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(list)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], `it'\''s.mp4`) {
		t.Errorf("quote not escaped: %s", lines[1])
	}
}

func TestEscapeDrawtext(t *testing.T) {
	got := mediatool.EscapeDrawtext("Hash: 50% it's up")
	want := `Hash\: 50\% it’s up`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSilentAudioFallsBackToWAV(t *testing.T) {
	dir := t.TempDir()
	r := &mediatooltest.Runner{Handler: func(c mediatool.Command) mediatool.Result {
		return mediatooltest.Fail(1)
	}}
	path, err := mediatool.SilentAudio(context.Background(), r, "ffmpeg", filepath.Join(dir, "outro.mp3"), 2, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Ext(path) != ".wav" {
		t.Errorf("path = %s, want .wav", path)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	// 44 byte header + 2s * 16000 * 2 bytes
	if fi.Size() != 44+64000 {
		t.Errorf("size = %d", fi.Size())
	}
}
