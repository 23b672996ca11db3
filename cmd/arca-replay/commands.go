package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/journal"
	"github.com/akam1o/arca-replay/pkg/replay"
)

func (c *cli) cmdApply(ctx context.Context) int {
	return c.replay(ctx, func(r *replay.Runner) (*replay.Result, error) {
		return r.Routers(ctx, c.flags.routers)
	})
}

func (c *cli) cmdHosts(ctx context.Context) int {
	return c.replay(ctx, func(r *replay.Runner) (*replay.Result, error) {
		return r.Hosts(ctx, c.flags.routers)
	})
}

// replay runs an apply-style command and prints its per-target summary
func (c *cli) replay(ctx context.Context, fn func(*replay.Runner) (*replay.Result, error)) int {
	a, err := c.setup(ctx, true)
	if err != nil {
		printError(c.stderr, err)
		return ExitOperationError
	}
	defer a.close()

	result, err := fn(a.runner)
	if err != nil {
		printError(c.stderr, err)
		return ExitOperationError
	}

	if err := FormatResult(c.stdout, result); err != nil {
		a.log.Warn("Failed to write summary", slog.Any("error", err))
	}
	FormatWarnings(c.stderr, result.Warnings())

	if result.Cancelled || len(result.Failed()) > 0 {
		return ExitOperationError
	}
	return ExitSuccess
}

func (c *cli) cmdPlan(ctx context.Context, hosts bool) int {
	a, err := c.setup(ctx, false)
	if err != nil {
		printError(c.stderr, err)
		return ExitOperationError
	}
	defer a.close()

	var result *replay.Result
	if hosts {
		result, err = a.runner.HostPlans(ctx, c.flags.routers)
	} else {
		result, err = a.runner.Plans(ctx, c.flags.routers)
	}
	if err != nil {
		printError(c.stderr, err)
		return ExitOperationError
	}

	for _, tr := range result.Targets {
		if tr.Err != nil {
			fmt.Fprintf(c.stdout, "# %s: %s failed: %v\n\n", tr.Target, tr.Stage, tr.Err)
			continue
		}
		FormatPlan(c.stdout, tr.Plan)
	}
	FormatWarnings(c.stderr, result.Warnings())

	if len(result.Failed()) > 0 {
		return ExitOperationError
	}
	return ExitSuccess
}

func (c *cli) cmdDiff(ctx context.Context) int {
	a, err := c.setup(ctx, false)
	if err != nil {
		printError(c.stderr, err)
		return ExitOperationError
	}
	defer a.close()

	if a.journal == nil {
		printError(c.stderr, errors.New(errors.ErrCodeConfigValidation,
			"diff needs the journal", "journal.enabled is false", "Enable the journal in the run configuration"))
		return ExitUsageError
	}

	result, err := a.runner.Plans(ctx, c.flags.routers)
	if err != nil {
		printError(c.stderr, err)
		return ExitOperationError
	}

	code := ExitSuccess
	for _, tr := range result.Targets {
		if tr.Err != nil {
			fmt.Fprintf(c.stdout, "# %s: %s failed: %v\n\n", tr.Target, tr.Stage, tr.Err)
			code = ExitOperationError
			continue
		}

		old, ok, err := a.journal.LastAppliedPlan(ctx, tr.Target)
		if err != nil {
			printError(c.stderr, err)
			return ExitOperationError
		}
		if !ok {
			fmt.Fprintf(c.stdout, "# %s: never applied\n", tr.Target)
		}

		diff := journal.ComparePlans(old, tr.Plan.Text())
		if !diff.HasChanges {
			fmt.Fprintf(c.stdout, "# %s: no changes\n\n", tr.Target)
			continue
		}
		fmt.Fprintf(c.stdout, "# %s: +%d -%d\n%s\n", tr.Target, diff.Added, diff.Removed, diff.Text)
	}
	return code
}

func (c *cli) cmdHistory(ctx context.Context) int {
	j, closeFn, code := c.openJournal(ctx)
	if j == nil {
		return code
	}
	defer closeFn()

	runs, err := j.ListRuns(ctx, 20)
	if err != nil {
		printError(c.stderr, err)
		return ExitOperationError
	}
	if err := FormatRuns(c.stdout, runs); err != nil {
		printError(c.stderr, err)
		return ExitOperationError
	}
	return ExitSuccess
}

func (c *cli) cmdRun(ctx context.Context, runID string) int {
	j, closeFn, code := c.openJournal(ctx)
	if j == nil {
		return code
	}
	defer closeFn()

	run, err := j.GetRun(ctx, runID)
	if err != nil {
		printError(c.stderr, err)
		return ExitOperationError
	}
	if err := FormatRun(c.stdout, run); err != nil {
		printError(c.stderr, err)
		return ExitOperationError
	}
	return ExitSuccess
}

// openJournal sets up the invocation and returns its journal with the matching close
func (c *cli) openJournal(ctx context.Context) (*journal.Journal, func(), int) {
	a, err := c.setup(ctx, false)
	if err != nil {
		printError(c.stderr, err)
		return nil, nil, ExitOperationError
	}
	if a.journal == nil {
		a.close()
		printError(c.stderr, errors.New(errors.ErrCodeConfigValidation,
			"history needs the journal", "journal.enabled is false", "Enable the journal in the run configuration"))
		return nil, nil, ExitUsageError
	}
	return a.journal, a.close, ExitSuccess
}
