package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/akam1o/arca-replay/pkg/config"
	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/journal"
	"github.com/akam1o/arca-replay/pkg/logger"
	"github.com/akam1o/arca-replay/pkg/plan"
	"github.com/akam1o/arca-replay/pkg/replay"
	"github.com/akam1o/arca-replay/pkg/session"
	"github.com/akam1o/arca-replay/pkg/snapshot"
	"github.com/akam1o/arca-replay/pkg/topology"
)

// app is the wired object graph of one invocation
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	journal *journal.Journal
	runner  *replay.Runner
}

// setup loads the configuration and topology and wires the runner. Sessions are
// only configured when withDriver is set; the journal is opened when enabled.
func (c *cli) setup(ctx context.Context, withDriver bool) (*app, error) {
	cfg, err := config.Load(c.flags.configPath, nil)
	if err != nil {
		return nil, err
	}

	log, err := c.newLogger(cfg)
	if err != nil {
		return nil, err
	}
	log.Debug("Configuration loaded", slog.String("path", c.flags.configPath))
	for _, w := range cfg.Warnings() {
		log.Warn("Configuration warning", slog.String("warning", w))
	}

	mode := replay.Mode(c.flags.mode)
	if mode != replay.ModeStructured && mode != replay.ModeVerbatim {
		return nil, errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("unknown mode %q", c.flags.mode), "", "Use -mode structured or -mode verbatim")
	}

	topo, err := topology.Load(cfg.Topology.Path, log.Named("topology"))
	if err != nil {
		return nil, err
	}

	source := &snapshot.DirSource{
		Root:      cfg.Snapshots.Dir,
		ZebraFile: cfg.Snapshots.ZebraFile,
		OSPFFile:  cfg.Snapshots.OSPFFile,
		BGPFile:   cfg.Snapshots.BGPFile,
	}

	a := &app{
		cfg: cfg,
		log: log,
		runner: &replay.Runner{
			Topology: topo,
			Source:   source,
			Log:      log.Named("replay"),
			Mode:     mode,
			DryRun:   c.flags.dryRun,
		},
	}

	if withDriver {
		driver, err := newDriver(cfg, c.flags.dryRun, log)
		if err != nil {
			return nil, err
		}
		a.runner.Driver = driver
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(ctx, cfg.Journal.Path, log.Named("journal"))
		if err != nil {
			return nil, err
		}
		a.journal = j
		a.runner.Journal = j
	}

	return a, nil
}

func (a *app) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn("Failed to close journal", slog.Any("error", err))
		}
	}
}

func (c *cli) newLogger(cfg *config.Config) (*logger.Logger, error) {
	levelName := orDefault(c.flags.logLevel, cfg.Log.Level)
	level, ok := logger.ParseLevel(levelName)
	if !ok {
		return nil, errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("unknown log level %q", levelName), "", "Use debug, info, warn or error")
	}

	format := logger.Format(orDefault(c.flags.logFormat, cfg.Log.Format))
	if format != logger.FormatJSON && format != logger.FormatText {
		return nil, errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("unknown log format %q", format), "", "Use json or text")
	}

	return logger.New("main", &logger.Config{
		Level:  level,
		Format: format,
		Output: c.stderr,
	}), nil
}

// newDriver builds the session driver for the configured transport. A dry run
// always records into an in-memory transport.
func newDriver(cfg *config.Config, dryRun bool, log *logger.Logger) (*session.Driver, error) {
	t := cfg.Transport

	var transport session.Transport
	switch {
	case dryRun || t.Kind == config.TransportMock:
		transport = session.NewMockTransport()

	case t.Kind == config.TransportExec:
		transport = &session.ExecTransport{
			Launcher:     t.Launcher,
			Dir:          t.WorkDir,
			CloseTimeout: t.CloseTimeout,
			Log:          log.Named("exec"),
		}

	case t.Kind == config.TransportSSH:
		s := t.SSH
		transport = &session.SSHTransport{
			User:                  s.User,
			Port:                  s.Port,
			Hosts:                 s.Hosts,
			KeyFile:               s.KeyFile,
			Password:              passwordFromEnv(s.PasswordEnv),
			KnownHostsFile:        s.KnownHostsFile,
			InsecureIgnoreHostKey: s.InsecureIgnoreHostKey,
			Log:                   log.Named("ssh"),
		}

	default:
		return nil, errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("transport.kind %q is not supported", t.Kind), "", "Use one of exec, ssh or mock")
	}

	driver := session.NewDriver(transport, log.Named("session"))
	driver.OpenTimeout = t.OpenTimeout
	driver.CommandTimeout = t.CommandTimeout

	if t.Prompt.Enabled && !dryRun {
		matcher, err := session.NewPromptMatcher(promptPatterns(t.Prompt))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigValidation,
				"invalid prompt pattern", "A prompt pattern does not compile", "Fix transport.prompt")
		}
		driver.Waiter = matcher
	}
	return driver, nil
}

// promptPatterns overlays the configured prompts on the built-in ones
func promptPatterns(p config.PromptConfig) map[plan.Mode]string {
	patterns := session.DefaultPromptPatterns()
	set := func(pattern string, modes ...plan.Mode) {
		if pattern == "" {
			return
		}
		for _, m := range modes {
			patterns[m] = pattern
		}
	}
	set(p.Shell, plan.ModeShellReady)
	set(p.CLI, plan.ModeCLI)
	set(p.Config, plan.ModeConfig)
	set(p.Interface, plan.ModeInterface)
	set(p.Router, plan.ModeOSPF, plan.ModeBGP)
	set(p.Subsystem, plan.ModeSubsystem)
	return patterns
}

func passwordFromEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// printError writes err to w, with cause and action for coded errors
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	var coded *errors.Error
	if errors.As(err, &coded) {
		if coded.Cause != "" {
			fmt.Fprintf(w, "  Cause:  %s\n", coded.Cause)
		}
		if coded.Action != "" {
			fmt.Fprintf(w, "  Action: %s\n", coded.Action)
		}
	}
}
