// Package convert routes uploads to external converters and runs each
// attempt as an isolated, timeout-bounded subprocess.
package convert

import (
	"fmt"
	"strings"
)

// FailureKind classifies terminal conversion outcomes.
type FailureKind string

const (
	KindBadInput          FailureKind = "bad_input"
	KindTooLarge          FailureKind = "too_large"
	KindUnsupported       FailureKind = "unsupported"
	KindPasswordProtected FailureKind = "password_protected"
	KindConverterFailure  FailureKind = "converter_failure"
	KindTimeout           FailureKind = "timeout"
	KindQueueFull         FailureKind = "queue_full"
	KindDisconnected      FailureKind = "disconnected"
)

// KindError is a terminal conversion failure of a known kind.
type KindError struct {
	Kind    FailureKind
	Message string
}

func (e *KindError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// AttemptFailure describes one failed converter attempt with enough
// diagnostic detail for recoverable-failure predicates to inspect.
type AttemptFailure struct {
	Converter string
	ExitCode  int // -1 when the process never ran or died on a signal
	Stderr    string
	TimedOut  bool
	Err       error
}

func (f *AttemptFailure) Error() string {
	switch {
	case f.TimedOut:
		return fmt.Sprintf("%s: timed out", f.Converter)
	case f.Err != nil:
		return fmt.Sprintf("%s: %v", f.Converter, f.Err)
	default:
		return fmt.Sprintf("%s: exit code %d: %s", f.Converter, f.ExitCode, f.Stderr)
	}
}

// ChainError is returned when a fallback chain is exhausted or hits a
// non-recoverable failure. It records every attempt that was made.
type ChainError struct {
	Attempts []*AttemptFailure
	Hint     string
}

func (e *ChainError) Error() string {
	if len(e.Attempts) == 0 {
		return "conversion failed"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "conversion failed after %d attempt(s):", len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  %s", a.Error())
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, "\n%s", e.Hint)
	}
	return b.String()
}

func (e *ChainError) Unwrap() error {
	if len(e.Attempts) > 0 {
		return e.Attempts[len(e.Attempts)-1]
	}
	return nil
}
