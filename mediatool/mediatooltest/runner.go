// Package mediatooltest provides a recording Runner for tests.
package mediatooltest

import (
	"context"
	"os"
	"strings"
	"sync"

	"highlight-reel-pipeline/mediatool"
)

// Runner records every command and answers with Handler. When Handler is nil
// every command succeeds and, if its last argument looks like an output file,
// that file is created with Output bytes.
type Runner struct {
	Handler func(cmd mediatool.Command) mediatool.Result
	Output  []byte

	mu       sync.Mutex
	commands []mediatool.Command
}

// Run implements mediatool.Runner
func (r *Runner) Run(ctx context.Context, cmd mediatool.Command) mediatool.Result {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()

	if r.Handler != nil {
		return r.Handler(cmd)
	}
	WriteOutput(cmd, r.Output)
	return mediatool.Result{}
}

// Commands returns a copy of the recorded commands
func (r *Runner) Commands() []mediatool.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mediatool.Command(nil), r.commands...)
}

// Count returns how many commands named name were run
func (r *Runner) Count(name string) int {
	n := 0
	for _, c := range r.Commands() {
		if c.Name == name {
			n++
		}
	}
	return n
}

// Fail returns a non-zero exit result
func Fail(code int) mediatool.Result {
	return mediatool.Result{ExitCode: code, Stderr: []byte("simulated failure")}
}

// WriteOutput creates the command's output file (its last argument) when it
// has a media or text extension.
func WriteOutput(cmd mediatool.Command, data []byte) {
	if len(cmd.Args) == 0 {
		return
	}
	out := cmd.Args[len(cmd.Args)-1]
	for _, ext := range []string{".mp4", ".mp3", ".wav", ".m4a", ".json", ".vtt", ".part"} {
		if strings.HasSuffix(out, ext) {
			if data == nil {
				data = []byte("media")
			}
			_ = os.WriteFile(out, data, 0644)
			return
		}
	}
}

// Has reports whether args contains v
func Has(cmd mediatool.Command, v string) bool {
	for _, a := range cmd.Args {
		if a == v {
			return true
		}
	}
	return false
}
