package session

import (
	"context"
	"fmt"
	"time"

	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/logger"
	"github.com/akam1o/arca-replay/pkg/plan"
)

// Default driver timeouts
const (
	DefaultOpenTimeout    = 30 * time.Second
	DefaultCommandTimeout = 10 * time.Second
)

// Driver applies command plans to targets, one session per target
type Driver struct {
	Transport Transport

	// Waiter synchronizes with the shell between commands; nil means NoWait
	Waiter PromptWaiter

	// OpenTimeout bounds opening the session and waiting for the first prompt
	OpenTimeout time.Duration

	// CommandTimeout bounds each send and the wait that follows it
	CommandTimeout time.Duration

	Log *logger.Logger
}

// NewDriver creates a fire-and-forget driver with default timeouts
func NewDriver(t Transport, log *logger.Logger) *Driver {
	return &Driver{
		Transport:      t,
		Waiter:         NoWait{},
		OpenTimeout:    DefaultOpenTimeout,
		CommandTimeout: DefaultCommandTimeout,
		Log:            log,
	}
}

// Outcome reports what happened to one target
type Outcome struct {
	Target    string
	SessionID string
	Sent      int
	Total     int
	Mode      plan.Mode
	Started   time.Time
	Finished  time.Time
	Err       error
}

// Complete reports whether every command of the plan was sent
func (o *Outcome) Complete() bool {
	return o.Err == nil && o.Sent == o.Total
}

// Apply opens a session to target, sends every command of p in order and closes
// the session, whether or not every command was sent. A transport failure aborts
// this target only and is returned as a TRANSPORT_* error.
func (d *Driver) Apply(ctx context.Context, target string, p *plan.Plan) (*Outcome, error) {
	log := d.logger().WithField("target", target)

	out := &Outcome{Target: target, Started: time.Now()}
	finish := func(err error) (*Outcome, error) {
		out.Finished = time.Now()
		out.Err = err
		return out, err
	}

	if p == nil {
		return finish(errors.PlanningError(target, "no plan"))
	}
	out.Total = p.Len()
	if err := p.Validate(); err != nil {
		return finish(errors.PlanningError(target, err.Error()))
	}
	if d.Transport == nil {
		return finish(errors.TransportOpenError(target, fmt.Errorf("no transport configured")))
	}
	if err := ctx.Err(); err != nil {
		return finish(err)
	}

	sess := newSession(target)
	out.SessionID = sess.ID()
	log = log.WithField("session", sess.ID())

	openCtx, cancel := withTimeout(ctx, d.OpenTimeout)
	err := sess.open(openCtx, d.Transport)
	if err == nil {
		err = d.waiter().Wait(openCtx, sess.ch, plan.ModeShellReady, "")
		if err != nil {
			err = classify(target, "", err, true)
		}
	} else {
		err = classify(target, "", err, true)
	}
	cancel()

	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("Session close failed", "error", cerr)
		}
		log.Debug("Session closed", "sent", sess.Sent(), "total", out.Total)
	}()

	if err != nil {
		log.Error("Session open failed", "error", err)
		out.Mode = sess.Mode()
		return finish(err)
	}
	log.Info("Session opened", "kind", string(p.Kind), "commands", out.Total)

	for _, ph := range p.Phases {
		for _, cmd := range ph.Commands {
			if err := ctx.Err(); err != nil {
				log.Warn("Replay cancelled", "sent", sess.Sent(), "total", out.Total)
				out.Sent, out.Mode = sess.Sent(), sess.Mode()
				return finish(err)
			}

			cmdCtx, cancel := withTimeout(ctx, d.CommandTimeout)
			err := sess.send(cmdCtx, cmd)
			if err == nil {
				log.Info("Command sent", "phase", ph.Name, "line", cmd.Text, "mode", cmd.Mode.String())
				err = d.waiter().Wait(cmdCtx, sess.ch, cmd.Mode, cmd.Text)
			}
			cancel()

			if err != nil {
				err = classify(target, cmd.Text, err, false)
				log.Error("Command failed", "phase", ph.Name, "line", cmd.Text, "error", err)
				out.Sent, out.Mode = sess.Sent(), sess.Mode()
				return finish(err)
			}
		}
	}

	out.Sent, out.Mode = sess.Sent(), sess.Mode()
	log.Info("Plan applied", "sent", out.Sent)
	return finish(nil)
}

func (d *Driver) logger() *logger.Logger {
	if d.Log == nil {
		return logger.Discard()
	}
	return d.Log
}

func (d *Driver) waiter() PromptWaiter {
	if d.Waiter == nil {
		return NoWait{}
	}
	return d.Waiter
}

// classify maps a raw transport error to its coded form
func classify(target, line string, err error, opening bool) error {
	if errors.IsTransport(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if line == "" {
			line = "<open>"
		}
		return errors.TransportTimeout(target, line, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if opening {
		return errors.TransportOpenError(target, err)
	}
	return errors.TransportSendError(target, line, err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
