package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

var (
	// Version information (set by ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitOperationError = 1
	ExitUsageError     = 2
)

type flags struct {
	configPath string
	logLevel   string
	logFormat  string
	mode       string
	dryRun     bool
	routers    routerList
}

// routerList collects repeated -router flags
type routerList []string

func (r *routerList) String() string { return strings.Join(*r, ",") }

func (r *routerList) Set(v string) error {
	for _, name := range strings.Split(v, ",") {
		if name = strings.TrimSpace(name); name != "" {
			*r = append(*r, name)
		}
	}
	return nil
}

// cli carries the parsed flags and output streams of one invocation
type cli struct {
	flags  *flags
	stdout io.Writer
	stderr io.Writer
}

func main() {
	// Note: os.Interrupt is equivalent to syscall.SIGINT on Unix systems
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run parses args and dispatches the command; it returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f := &flags{}
	fs := newFlagSet("arca-replay", f, stderr)
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitUsageError
	}

	if fs.NArg() < 1 {
		showUsage(stderr)
		return ExitUsageError
	}

	c := &cli{flags: f, stdout: stdout, stderr: stderr}
	return c.dispatch(ctx, fs.Arg(0), fs.Args()[1:])
}

// newFlagSet registers every option on a flag set bound to f. The same options
// are accepted before and after the command name.
func newFlagSet(name string, f *flags, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.configPath, "config", orDefault(f.configPath, "arca-replay.yaml"),
		"Path to the run configuration file")
	fs.StringVar(&f.logLevel, "log-level", f.logLevel,
		"Log level (debug, info, warn, error); overrides log.level")
	fs.StringVar(&f.logFormat, "log-format", f.logFormat,
		"Log format (json, text); overrides log.format")
	fs.StringVar(&f.mode, "mode", orDefault(f.mode, "structured"),
		"Router plan mode (structured, verbatim)")
	fs.BoolVar(&f.dryRun, "dry-run", f.dryRun,
		"Send plans to an in-memory transport instead of the lab")
	fs.Var(&f.routers, "router",
		"Restrict the run to a router (repeatable or comma separated)")

	fs.Usage = func() { showUsage(stderr) }
	return fs
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (c *cli) dispatch(ctx context.Context, command string, args []string) int {
	switch command {
	case "help", "-h", "--help":
		showUsage(c.stdout)
		return ExitSuccess

	case "version", "-v", "--version":
		return c.cmdVersion()
	}

	// Options may follow the command name
	fs := newFlagSet("arca-replay "+command, c.flags, c.stderr)
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitUsageError
	}
	args = fs.Args()

	switch command {
	case "apply":
		return c.cmdApply(ctx)

	case "hosts":
		return c.cmdHosts(ctx)

	case "plan":
		target := "routers"
		if len(args) > 0 {
			target = args[0]
		}
		if target != "routers" && target != "hosts" {
			fmt.Fprintf(c.stderr, "Error: 'plan' takes 'routers' or 'hosts', got '%s'\n\n", target)
			showUsage(c.stderr)
			return ExitUsageError
		}
		return c.cmdPlan(ctx, target == "hosts")

	case "diff":
		return c.cmdDiff(ctx)

	case "history":
		if len(args) > 0 {
			return c.cmdRun(ctx, args[0])
		}
		return c.cmdHistory(ctx)

	default:
		fmt.Fprintf(c.stderr, "Error: unknown command '%s'\n\n", command)
		showUsage(c.stderr)
		return ExitUsageError
	}
}

func showUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage: arca-replay [options] <command> [args...]

Commands:
  apply               Replay the saved router configurations
  hosts               Bootstrap the hosts attached to the routers
  plan [routers|hosts]
                      Print the command plans without opening sessions
  diff                Compare each router's plan with the last one applied
  history [run-id]    List recent runs, or show the targets of one run
  version             Show version information
  help                Show this help message

Options:
  -config <path>      Run configuration file (default: arca-replay.yaml)
  -log-level <level>  debug, info, warn or error
  -log-format <fmt>   json or text
  -mode <mode>        structured (default) or verbatim
  -router <name>      Restrict the run to a router; repeatable
  -dry-run            Record plans against an in-memory transport

Examples:
  arca-replay -config lab.yaml plan
  arca-replay -config lab.yaml apply -router NEWY -router WASH
  arca-replay -config lab.yaml hosts
  arca-replay -config lab.yaml history

`)
}
