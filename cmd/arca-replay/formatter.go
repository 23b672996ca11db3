package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/akam1o/arca-replay/pkg/journal"
	"github.com/akam1o/arca-replay/pkg/plan"
	"github.com/akam1o/arca-replay/pkg/replay"
	"github.com/akam1o/arca-replay/pkg/snapshot"
)

// FormatTable formats data as a table with aligned columns
func FormatTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	sep := make([]string, len(headers))
	for i := range headers {
		sep[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(tw, strings.Join(sep, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	return tw.Flush()
}

// FormatPlan prints a plan as phase-annotated command lines
func FormatPlan(w io.Writer, p *plan.Plan) {
	fmt.Fprintf(w, "# %s (%s, %d commands)\n", p.Target, p.Kind, p.Len())
	for _, ph := range p.Phases {
		fmt.Fprintf(w, "## %s\n", ph.Name)
		for _, cmd := range ph.Commands {
			fmt.Fprintln(w, cmd.Text)
		}
	}
	fmt.Fprintln(w)
}

// FormatResult prints one row per target followed by the run totals
func FormatResult(w io.Writer, r *replay.Result) error {
	rows := make([][]string, 0, len(r.Targets))
	for _, tr := range r.Targets {
		status := "ok"
		detail := ""
		if tr.Err != nil {
			status = tr.Code()
			detail = tr.Err.Error()
		}
		rows = append(rows, []string{tr.Target, string(tr.Kind), string(tr.Stage), progress(tr), status, detail})
	}
	if err := FormatTable(w, []string{"TARGET", "KIND", "STAGE", "SENT", "STATUS", "DETAIL"}, rows); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d succeeded, %d failed", r.Succeeded(), len(r.Failed()))
	if r.Cancelled {
		fmt.Fprintf(w, ", cancelled")
	}
	if r.RunID != "" {
		fmt.Fprintf(w, " (run %s)", r.RunID)
	}
	fmt.Fprintln(w)
	return nil
}

func progress(tr replay.TargetResult) string {
	total := 0
	if tr.Plan != nil {
		total = tr.Plan.Len()
	}
	sent := 0
	if tr.Outcome != nil {
		sent = tr.Outcome.Sent
	}
	return fmt.Sprintf("%d/%d", sent, total)
}

// FormatWarnings prints parse warnings, one per line
func FormatWarnings(w io.Writer, warnings []snapshot.Warning) {
	for _, warning := range warnings {
		fmt.Fprintf(w, "warning: %s\n", warning.String())
	}
}

// FormatRuns prints the run history
func FormatRuns(w io.Writer, runs []journal.Run) error {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		dry := ""
		if run.DryRun {
			dry = "yes"
		}
		rows = append(rows, []string{
			run.ID,
			run.Kind,
			run.Mode,
			dry,
			run.StartedAt.Local().Format(time.DateTime),
			run.Status,
			fmt.Sprintf("%d/%d", run.Attempted-run.Failed, run.Attempted),
		})
	}
	return FormatTable(w, []string{"RUN", "KIND", "MODE", "DRY", "STARTED", "STATUS", "OK"}, rows)
}

// FormatRun prints one run and its target records
func FormatRun(w io.Writer, run *journal.Run) error {
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Kind:     %s (%s)\n", run.Kind, run.Mode)
	fmt.Fprintf(w, "Topology: %s\n", run.Topology)
	fmt.Fprintf(w, "Status:   %s\n", run.Status)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Finished: %s\n", run.FinishedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(w)

	rows := make([][]string, 0, len(run.Targets))
	for _, rec := range run.Targets {
		rows = append(rows, []string{
			rec.Target,
			rec.Stage,
			rec.Status,
			fmt.Sprintf("%d/%d", rec.Sent, rec.Total),
			rec.ErrorCode,
			fmt.Sprintf("%d", len(rec.Warnings)),
		})
	}
	return FormatTable(w, []string{"TARGET", "STAGE", "STATUS", "SENT", "ERROR", "WARNINGS"}, rows)
}
