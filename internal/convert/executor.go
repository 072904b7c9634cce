package convert

import (
	"bytes"
	"context"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// stderrTailBytes bounds how much converter stderr is kept for predicate
// matching and error reporting.
const stderrTailBytes = 4 * 1024

// ExecRunner runs converter attempts as isolated child processes. Every
// attempt gets its own process so the OS reclaims the converter's memory
// when it exits, and a wall-clock timeout with terminate-then-kill
// escalation so a wedged converter cannot outlive its budget.
type ExecRunner struct {
	Timeout   time.Duration
	KillGrace time.Duration
	Logger    *zap.Logger
}

// NewExecRunner creates a runner with the given per-attempt timeout.
func NewExecRunner(timeout time.Duration, logger *zap.Logger) *ExecRunner {
	return &ExecRunner{
		Timeout:   timeout,
		KillGrace: 5 * time.Second,
		Logger:    logger,
	}
}

// Run spawns one converter invocation and waits for it to exit, the
// timeout to expire, or ctx to be cancelled. The command is executed with
// an argument vector, never a shell. Run never returns while the child is
// still alive.
func (e *ExecRunner) Run(ctx context.Context, d Descriptor, inputPath string) (string, *AttemptFailure) {
	argv := d.Argv(inputPath)

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return "", &AttemptFailure{Converter: d.Name, ExitCode: -1, Err: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	deadline := time.NewTimer(e.Timeout)
	defer deadline.Stop()

	select {
	case err := <-done:
		if err == nil {
			e.log("conversion attempt succeeded", d, start, nil)
			return stdout.String(), nil
		}
		fail := &AttemptFailure{
			Converter: d.Name,
			ExitCode:  exitCode(err),
			Stderr:    tail(stderr.Bytes()),
			Err:       err,
		}
		e.log("conversion attempt failed", d, start, fail)
		return "", fail

	case <-ctx.Done():
		e.terminate(cmd, done)
		fail := &AttemptFailure{Converter: d.Name, ExitCode: -1, Err: ctx.Err()}
		e.log("conversion attempt cancelled", d, start, fail)
		return "", fail

	case <-deadline.C:
		e.terminate(cmd, done)
		fail := &AttemptFailure{Converter: d.Name, ExitCode: -1, TimedOut: true, Stderr: tail(stderr.Bytes())}
		e.log("conversion attempt timed out", d, start, fail)
		return "", fail
	}
}

// terminate asks the child to exit and escalates to SIGKILL if it does not
// comply within the grace period. It only returns once the child is gone.
func (e *ExecRunner) terminate(cmd *exec.Cmd, done <-chan error) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)

	grace := e.KillGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}

	select {
	case <-done:
		return
	case <-time.After(grace):
		_ = cmd.Process.Kill()
		<-done
	}
}

func (e *ExecRunner) log(msg string, d Descriptor, start time.Time, fail *AttemptFailure) {
	if e.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("converter", d.Name),
		zap.Duration("duration", time.Since(start)),
	}
	if fail != nil {
		fields = append(fields, zap.Int("exitCode", fail.ExitCode), zap.Bool("timedOut", fail.TimedOut))
		e.Logger.Warn(msg, fields...)
		return
	}
	e.Logger.Debug(msg, fields...)
}

// exitCode extracts the process exit status; -1 when the process was
// signalled or never ran.
func exitCode(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func tail(b []byte) string {
	if len(b) > stderrTailBytes {
		b = b[len(b)-stderrTailBytes:]
	}
	return string(bytes.TrimSpace(b))
}
