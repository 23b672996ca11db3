// Package replay runs the per-target loop: load snapshots, parse, plan and apply,
// strictly one target at a time and in topology order. A failing target is
// recorded and the loop moves on to the next one.
package replay

import (
	"context"
	"fmt"

	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/journal"
	"github.com/akam1o/arca-replay/pkg/logger"
	"github.com/akam1o/arca-replay/pkg/plan"
	"github.com/akam1o/arca-replay/pkg/session"
	"github.com/akam1o/arca-replay/pkg/snapshot"
	"github.com/akam1o/arca-replay/pkg/topology"
)

// Mode selects how router plans are built
type Mode string

const (
	// ModeStructured parses snapshots and plans from the router model
	ModeStructured Mode = "structured"
	// ModeVerbatim replays every saved snapshot line
	ModeVerbatim Mode = "verbatim"
)

// Run kinds recorded in the journal
const (
	KindRouters = "routers"
	KindHosts   = "hosts"
)

// Runner replays a topology
type Runner struct {
	Topology *topology.Topology
	Source   snapshot.Source

	// Driver applies plans; required by Routers and Hosts
	Driver *session.Driver

	// Journal records runs when set
	Journal *journal.Journal

	Log  *logger.Logger
	Mode Mode

	// DryRun marks journal runs whose plans were not sent to real targets
	DryRun bool
}

// Routers replays the selected routers; an empty filter selects all of them
func (r *Runner) Routers(ctx context.Context, filter []string) (*Result, error) {
	routers, err := r.selectRouters(filter, false)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, KindRouters, routers, r.routerPlan, true)
}

// Hosts bootstraps the hosts attached to the selected routers
func (r *Runner) Hosts(ctx context.Context, filter []string) (*Result, error) {
	routers, err := r.selectRouters(filter, true)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, KindHosts, routers, r.hostPlan, true)
}

// Plans builds router plans without opening any session
func (r *Runner) Plans(ctx context.Context, filter []string) (*Result, error) {
	routers, err := r.selectRouters(filter, false)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, KindRouters, routers, r.routerPlan, false)
}

// HostPlans builds host plans without opening any session
func (r *Runner) HostPlans(ctx context.Context, filter []string) (*Result, error) {
	routers, err := r.selectRouters(filter, true)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, KindHosts, routers, r.hostPlan, false)
}

func (r *Runner) logger() *logger.Logger {
	if r.Log == nil {
		return logger.Discard()
	}
	return r.Log
}

// selectRouters returns the filtered routers in topology order
func (r *Runner) selectRouters(filter []string, hostsOnly bool) ([]topology.Router, error) {
	if r.Topology == nil {
		return nil, errors.New(errors.ErrCodeConfigValidation, "no topology loaded", "", "Set topology.path in the configuration")
	}

	want := make(map[string]bool, len(filter))
	for _, name := range filter {
		if _, ok := r.Topology.Router(name); !ok {
			return nil, errors.UnknownRouter(name)
		}
		want[name] = true
	}

	var out []topology.Router
	for _, rt := range r.Topology.Routers {
		if len(want) > 0 && !want[rt.Name] {
			continue
		}
		if hostsOnly && rt.Host == nil {
			continue
		}
		out = append(out, rt)
	}
	return out, nil
}

type planFunc func(ctx context.Context, rt topology.Router) TargetResult

func (r *Runner) run(ctx context.Context, kind string, routers []topology.Router, build planFunc, apply bool) (*Result, error) {
	log := r.logger()
	if apply && r.Driver == nil {
		return nil, errors.New(errors.ErrCodeConfigValidation, "no session driver configured", "", "Configure a transport")
	}

	result := &Result{Kind: kind, Applied: apply}

	var run *journal.Run
	if apply && r.Journal != nil {
		var err error
		run, err = r.Journal.BeginRun(ctx, kind, r.Topology.Name, string(r.mode()), r.DryRun)
		if err != nil {
			return nil, err
		}
		result.RunID = run.ID
		log = log.WithField("run_id", run.ID)
	}

	log.Info("Replay started", "kind", kind, "targets", len(routers), "apply", apply, "dry_run", r.DryRun)

	for _, rt := range routers {
		if err := ctx.Err(); err != nil {
			result.Cancelled = true
			log.Warn("Replay cancelled", "remaining_from", rt.Name)
			break
		}

		tr := build(ctx, rt)
		if tr.Err == nil && apply {
			out, err := r.Driver.Apply(ctx, tr.Target, tr.Plan)
			tr.Outcome = out
			tr.Stage = StageTransport
			tr.Err = err
		}

		if tr.Err != nil {
			log.Error("Target failed", "target", tr.Target, "stage", string(tr.Stage), "code", tr.Code(), "error", tr.Err)
		} else {
			log.Info("Target done", "target", tr.Target, "stage", string(tr.Stage), "warnings", len(tr.Warnings))
		}

		if run != nil {
			r.record(ctx, log, run.ID, &tr)
		}
		result.Targets = append(result.Targets, tr)
	}

	if ctx.Err() != nil && len(result.Targets) < len(routers) {
		result.Cancelled = true
	}

	if run != nil {
		// The run is closed even when ctx was cancelled
		if err := r.Journal.FinishRun(context.WithoutCancel(ctx), run.ID, result.Status()); err != nil {
			log.ErrorWithCause("Failed to close journal run", err, "journal write failed", "Inspect the journal database")
		}
	}

	log.Info("Replay finished", "kind", kind, "succeeded", result.Succeeded(),
		"failed", len(result.Failed()), "status", result.Status())
	return result, nil
}

func (r *Runner) record(ctx context.Context, log *logger.Logger, runID string, tr *TargetResult) {
	rec := &journal.TargetRecord{
		RunID:  runID,
		Target: tr.Target,
		Kind:   string(tr.Kind),
		Stage:  string(tr.Stage),
		Status: journal.TargetApplied,
	}
	if tr.Plan != nil {
		rec.PlanText = tr.Plan.Text()
		rec.Total = tr.Plan.Len()
	}
	if tr.Outcome != nil {
		rec.SessionID = tr.Outcome.SessionID
		rec.Sent = tr.Outcome.Sent
	}
	if tr.Err != nil {
		rec.Status = journal.TargetFailed
		rec.ErrorCode = tr.Code()
		rec.ErrorMessage = tr.Err.Error()
	}
	for _, w := range tr.Warnings {
		rec.Warnings = append(rec.Warnings, w.String())
	}

	if err := r.Journal.RecordTarget(context.WithoutCancel(ctx), rec); err != nil {
		log.ErrorWithCause("Failed to journal target", err, "journal write failed", "Inspect the journal database")
	}
}

func (r *Runner) mode() Mode {
	if r.Mode == "" {
		return ModeStructured
	}
	return r.Mode
}

// parse loads and parses one router's snapshots
func (r *Runner) parse(ctx context.Context, router string, tr *TargetResult) (*snapshot.Snapshots, *snapshot.RouterModel) {
	tr.Stage = StageLoad
	if r.Source == nil {
		tr.Err = errors.New(errors.ErrCodeConfigValidation, "no snapshot source configured", "", "Set snapshots.dir in the configuration")
		return nil, nil
	}
	snaps, err := r.Source.Load(ctx, router)
	if err != nil {
		tr.Err = err
		return nil, nil
	}

	tr.Stage = StageParse
	opts := snapshot.OptionsFor(r.Topology, router, r.logger().Named("snapshot"))
	model, warnings, err := snapshot.Parse(router, snaps, opts)
	tr.Warnings = warnings
	if err != nil {
		tr.Err = err
		return snaps, nil
	}
	return snaps, model
}

func (r *Runner) routerPlan(ctx context.Context, rt topology.Router) TargetResult {
	tr := TargetResult{Target: rt.Name, Router: rt.Name, Kind: plan.KindRouter}

	if r.mode() == ModeVerbatim {
		tr.Kind = plan.KindVerbatim
		tr.Stage = StageLoad
		if r.Source == nil {
			tr.Err = errors.New(errors.ErrCodeConfigValidation, "no snapshot source configured", "", "Set snapshots.dir in the configuration")
			return tr
		}
		snaps, err := r.Source.Load(ctx, rt.Name)
		if err != nil {
			tr.Err = err
			return tr
		}
		tr.Stage = StagePlan
		tr.Plan, tr.Err = planOrNil(plan.Verbatim(rt.Name, snaps))
		return tr
	}

	_, model := r.parse(ctx, rt.Name, &tr)
	if tr.Err != nil {
		return tr
	}
	tr.Stage = StagePlan
	tr.Plan, tr.Err = planOrNil(plan.ForRouter(model, r.Topology))
	return tr
}

func (r *Runner) hostPlan(ctx context.Context, rt topology.Router) TargetResult {
	tr := TargetResult{Router: rt.Name, Kind: plan.KindHost}
	if rt.Host == nil {
		tr.Target = rt.Name + "-host"
		tr.Stage = StagePlan
		tr.Err = errors.PlanningError(tr.Target, fmt.Sprintf("router %s has no attached host", rt.Name))
		return tr
	}
	tr.Target = rt.Host.Name

	_, model := r.parse(ctx, rt.Name, &tr)
	if tr.Err != nil {
		return tr
	}
	tr.Stage = StagePlan
	tr.Plan, tr.Err = planOrNil(plan.ForHost(model, *rt.Host))
	return tr
}

// planOrNil drops a plan returned alongside an error
func planOrNil(p *plan.Plan, err error) (*plan.Plan, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
