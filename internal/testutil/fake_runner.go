// fake_runner.go - Scripted converter runner for handler tests
package testutil

import (
	"context"
	"sync"

	"github.com/markdown-sidecar/backend/internal/convert"
)

// FakeRunner implements convert.Runner with canned per-converter outcomes
// so handler tests never spawn real subprocesses.
type FakeRunner struct {
	mu       sync.Mutex
	Markdown map[string]string
	Failures map[string]*convert.AttemptFailure
	Calls    []string
}

// NewFakeRunner creates an empty fake runner; attempts for converters
// without a scripted outcome fail with exit code 1.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Markdown: make(map[string]string),
		Failures: make(map[string]*convert.AttemptFailure),
	}
}

func (f *FakeRunner) Run(ctx context.Context, d convert.Descriptor, inputPath string) (string, *convert.AttemptFailure) {
	f.mu.Lock()
	f.Calls = append(f.Calls, d.Name)
	f.mu.Unlock()

	if fail, ok := f.Failures[d.Name]; ok {
		return "", fail
	}
	if md, ok := f.Markdown[d.Name]; ok {
		return md, nil
	}
	return "", &convert.AttemptFailure{Converter: d.Name, ExitCode: 1, Stderr: "unscripted converter"}
}

// CallNames returns the converters invoked so far.
func (f *FakeRunner) CallNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}
