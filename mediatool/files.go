package mediatool

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WritePlaylist writes an ffmpeg concat demuxer list of absolute paths
func WritePlaylist(listPath string, files []string) error {
	var b strings.Builder
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", f, err)
		}
		// concat demuxer quoting: ' becomes '\''
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	return os.WriteFile(listPath, []byte(b.String()), 0644)
}

// EscapeDrawtext escapes text for a single-quoted drawtext value.
// Apostrophes cannot be escaped inside the quotes, so they become U+2019.
func EscapeDrawtext(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"'", "’",
		":", `\:`,
		"%", `\%`,
	)
	return r.Replace(s)
}

// SilentAudio renders seconds of silence to outPath with ffmpeg. If ffmpeg
// fails, a PCM WAV of zero samples is written instead so the file always exists.
func SilentAudio(ctx context.Context, r Runner, ffmpeg, outPath string, seconds float64, timeout time.Duration) (string, error) {
	res := r.Run(ctx, Command{
		Name: ffmpeg,
		Args: []string{"-y",
			"-f", "lavfi", "-i", "anullsrc=r=44100:cl=mono",
			"-t", fmt.Sprintf("%.2f", seconds),
			"-q:a", "9", "-acodec", "libmp3lame",
			outPath,
		},
		Timeout: timeout,
	})
	if res.OK() && NonEmpty(outPath) {
		return outPath, nil
	}
	wav := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".wav"
	if err := WriteSilentWAV(wav, seconds); err != nil {
		return "", fmt.Errorf("silent audio: ffmpeg: %v; wav: %w", res.Error(), err)
	}
	return wav, nil
}

// WriteSilentWAV writes a 16-bit mono 16 kHz WAV of zero samples
func WriteSilentWAV(path string, seconds float64) error {
	const (
		sampleRate    = 16000
		bitsPerSample = 16
		channels      = 1
	)
	if seconds <= 0 {
		seconds = 1
	}
	dataLen := uint32(seconds*sampleRate) * channels * bitsPerSample / 8
	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := []any{
		[4]byte{'R', 'I', 'F', 'F'}, 36 + dataLen, [4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '}, uint32(16), uint16(1), uint16(channels),
		uint32(sampleRate), byteRate, uint16(channels * bitsPerSample / 8), uint16(bitsPerSample),
		[4]byte{'d', 'a', 't', 'a'}, dataLen,
	}
	for _, v := range header {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if _, err := f.Write(make([]byte, dataLen)); err != nil {
		return err
	}
	return f.Close()
}

// NonEmpty reports whether path is an existing regular file with data
func NonEmpty(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}
