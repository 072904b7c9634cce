package convert

import (
	"context"
)

// Runner executes a single converter attempt against a spooled file.
// Implementations must never let a subprocess failure escape as anything
// other than an AttemptFailure.
type Runner interface {
	Run(ctx context.Context, d Descriptor, inputPath string) (string, *AttemptFailure)
}

// RunChain walks an ordered fallback chain, returning the first successful
// conversion. A failed attempt moves on to the next converter only when it
// matches one of the failing converter's recoverable-failure predicates;
// any other failure, or running out of converters, terminates the chain
// with a ChainError. Timeouts and cancellation abort immediately.
func RunChain(ctx context.Context, chain []Descriptor, inputPath string, runner Runner) (string, error) {
	var attempts []*AttemptFailure

	for i, d := range chain {
		if err := ctx.Err(); err != nil {
			return "", &KindError{Kind: KindDisconnected, Message: "client disconnected"}
		}

		markdown, fail := runner.Run(ctx, d, inputPath)
		if fail == nil {
			return markdown, nil
		}
		attempts = append(attempts, fail)

		if fail.TimedOut {
			return "", &KindError{Kind: KindTimeout, Message: fail.Error()}
		}
		if ctx.Err() != nil {
			return "", &KindError{Kind: KindDisconnected, Message: "client disconnected"}
		}

		last := i == len(chain)-1
		if last || !d.IsRecoverable(fail) {
			return "", &ChainError{Attempts: attempts}
		}
	}

	// Empty chain; routing should never produce one.
	return "", &ChainError{}
}
