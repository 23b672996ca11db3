// Package plan turns parsed router models into ordered command plans for an
// interactive Quagga shell (vtysh) or a host shell.
package plan

import (
	"fmt"
	"strings"
)

// Mode is the mode of the remote shell after a command runs
type Mode int

const (
	ModeClosed Mode = iota
	ModeOpening
	ModeShellReady
	ModeCLI
	ModeConfig
	ModeInterface
	ModeOSPF
	ModeBGP
	// ModeSubsystem is any other configuration stanza (line, route-map, ...)
	ModeSubsystem
)

func (m Mode) String() string {
	switch m {
	case ModeClosed:
		return "closed"
	case ModeOpening:
		return "opening"
	case ModeShellReady:
		return "shell"
	case ModeCLI:
		return "cli"
	case ModeConfig:
		return "config"
	case ModeInterface:
		return "config-if"
	case ModeOSPF:
		return "config-router-ospf"
	case ModeBGP:
		return "config-router-bgp"
	case ModeSubsystem:
		return "config-subsystem"
	default:
		return "unknown"
	}
}

// IsSubMode reports whether the mode is nested under configuration mode
func (m Mode) IsSubMode() bool {
	switch m {
	case ModeInterface, ModeOSPF, ModeBGP, ModeSubsystem:
		return true
	}
	return false
}

// Kind is the kind of target a plan is built for
type Kind string

const (
	KindRouter   Kind = "router"
	KindHost     Kind = "host"
	KindVerbatim Kind = "verbatim"
)

// Phase names, in emission order
const (
	PhaseModeEntry  = "mode-entry"
	PhaseOSPF       = "ospf"
	PhaseInterfaces = "interfaces"
	PhaseBGP        = "bgp"
	// PhaseCommit starts from config mode; the exit out of the last sub-mode belongs to the preceding phase
	PhaseCommit     = "commit"
	PhaseHost       = "host-bootstrap"
	PhaseVerbatim   = "verbatim"
)

// Command is one line sent to the remote shell
type Command struct {
	Text string
	// Mode is the shell mode once the command has run
	Mode Mode
}

// Phase is a named group of commands
type Phase struct {
	Name     string
	Commands []Command
}

// Plan is an immutable, ordered command sequence for one target
type Plan struct {
	Target string
	Kind   Kind
	Phases []Phase
}

// Len returns the number of commands in the plan
func (p *Plan) Len() int {
	n := 0
	for _, ph := range p.Phases {
		n += len(ph.Commands)
	}
	return n
}

// Commands returns every command in phase order
func (p *Plan) Commands() []Command {
	out := make([]Command, 0, p.Len())
	for _, ph := range p.Phases {
		out = append(out, ph.Commands...)
	}
	return out
}

// Lines returns the command texts in phase order
func (p *Plan) Lines() []string {
	out := make([]string, 0, p.Len())
	for _, ph := range p.Phases {
		for _, c := range ph.Commands {
			out = append(out, c.Text)
		}
	}
	return out
}

// Text renders the plan as newline-terminated lines
func (p *Plan) Text() string {
	var b strings.Builder
	for _, line := range p.Lines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Phase returns the phase with the given name
func (p *Plan) Phase(name string) (Phase, bool) {
	for _, ph := range p.Phases {
		if ph.Name == name {
			return ph, true
		}
	}
	return Phase{}, false
}

// transitions lists the modes reachable from each mode with one command
var transitions = map[Mode][]Mode{
	ModeShellReady: {ModeShellReady, ModeCLI, ModeClosed},
	ModeCLI:        {ModeCLI, ModeConfig, ModeShellReady},
	ModeConfig:     {ModeConfig, ModeInterface, ModeOSPF, ModeBGP, ModeSubsystem, ModeCLI},
	ModeInterface:  {ModeInterface, ModeConfig},
	ModeOSPF:       {ModeOSPF, ModeConfig},
	ModeBGP:        {ModeBGP, ModeConfig},
	ModeSubsystem:  {ModeSubsystem, ModeConfig},
}

// Validate checks the plan's mode walk and command texts. The walk starts in a
// ready shell, never moves between sub-modes without returning to configuration
// mode, and ends with the session closed.
func (p *Plan) Validate() error {
	mode := ModeShellReady
	step := 0
	for _, ph := range p.Phases {
		for _, c := range ph.Commands {
			step++
			if c.Text == "" || c.Text != strings.TrimSpace(c.Text) || strings.Contains(c.Text, "  ") {
				return fmt.Errorf("%s: command %d %q has an empty argument", ph.Name, step, c.Text)
			}
			if mode == ModeClosed {
				return fmt.Errorf("%s: command %d %q follows session close", ph.Name, step, c.Text)
			}
			if !allowed(mode, c.Mode) {
				return fmt.Errorf("%s: command %d %q moves from %s to %s", ph.Name, step, c.Text, mode, c.Mode)
			}
			mode = c.Mode
		}
	}
	if mode != ModeClosed {
		return fmt.Errorf("plan ends in %s mode, want %s", mode, ModeClosed)
	}
	return nil
}

func allowed(from, to Mode) bool {
	for _, m := range transitions[from] {
		if m == to {
			return true
		}
	}
	return false
}

// builder accumulates phases while a plan is built
type builder struct {
	plan *Plan
}

func newBuilder(target string, kind Kind) *builder {
	return &builder{plan: &Plan{Target: target, Kind: kind}}
}

func (b *builder) phase(name string) {
	b.plan.Phases = append(b.plan.Phases, Phase{Name: name})
}

func (b *builder) emit(mode Mode, format string, args ...interface{}) {
	ph := &b.plan.Phases[len(b.plan.Phases)-1]
	ph.Commands = append(ph.Commands, Command{Text: fmt.Sprintf(format, args...), Mode: mode})
}
