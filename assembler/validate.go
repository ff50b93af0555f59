package assembler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"highlight-reel-pipeline/mediatool"
)

// Validation failures. Every one except ErrOutputMissing deletes the file.
var (
	ErrOutputMissing  = errors.New("output file missing")
	ErrOutputTooSmall = errors.New("output file too small")
	ErrHTMLPayload    = errors.New("output file is an HTML document")
	ErrNoVideoStream  = errors.New("output has no video stream")
	ErrZeroDuration   = errors.New("output has no duration")
)

// Report is what validation learned about a good file
type Report struct {
	SizeBytes   int64
	DurationSec float64
}

var htmlPrefixes = [][]byte{
	[]byte("<!doctype html"),
	[]byte("<html"),
	[]byte("<head"),
	[]byte("<body"),
	[]byte("<?xml"),
}

// Validate checks that path is a real media file. Invalid files are removed
// so nothing unusable is left where a reel is expected.
func Validate(ctx context.Context, path string, minBytes int64, prober *mediatool.Prober) (Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %s", ErrOutputMissing, path)
	}
	fail := func(err error) (Report, error) {
		_ = os.Remove(path)
		return Report{SizeBytes: info.Size()}, err
	}

	if info.Size() < minBytes {
		return fail(fmt.Errorf("%w: %d bytes < %d", ErrOutputTooSmall, info.Size(), minBytes))
	}
	html, err := looksLikeHTML(path)
	if err != nil {
		return fail(err)
	}
	if html {
		return fail(ErrHTMLPayload)
	}

	pr, err := prober.Probe(ctx, path)
	if err != nil {
		return fail(err)
	}
	if len(pr.VideoStreams()) == 0 {
		return fail(ErrNoVideoStream)
	}
	dur, err := pr.Duration()
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrZeroDuration, err))
	}
	if dur <= 0 {
		return fail(ErrZeroDuration)
	}
	return Report{SizeBytes: info.Size(), DurationSec: dur}, nil
}

func looksLikeHTML(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	head = bytes.ToLower(bytes.TrimLeft(head[:n], " \t\r\n\ufeff"))
	for _, p := range htmlPrefixes {
		if bytes.HasPrefix(head, p) {
			return true, nil
		}
	}
	return false, nil
}
