package batch

import (
	"context"

	"github.com/emptyOVO/yelpdp-go"
)

// Runner abstracts how a flow's job is executed.
type Runner interface {
	Run(ctx context.Context, opts yelpdp.Options, req yelpdp.JobRequest) (*yelpdp.Report, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, opts yelpdp.Options, req yelpdp.JobRequest) (*yelpdp.Report, error)

func (f RunnerFunc) Run(ctx context.Context, opts yelpdp.Options, req yelpdp.JobRequest) (*yelpdp.Report, error) {
	return f(ctx, opts, req)
}

var defaultRunner Runner = RunnerFunc(yelpdp.Run)

// SetDefaultRunner overrides the process-wide job runner.
func SetDefaultRunner(r Runner) {
	if r == nil {
		return
	}
	defaultRunner = r
}

// DefaultRunner returns the current process-wide job runner.
func DefaultRunner() Runner {
	return defaultRunner
}
