package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/logger"
)

// Validate performs semantic validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return errors.New(
			errors.ErrCodeConfigValidation,
			"Configuration is nil",
			"Internal error: configuration object is nil",
			"Report this issue to the maintainers",
		)
	}

	if err := c.Snapshots.Validate(); err != nil {
		return err
	}
	if c.Topology.Path == "" {
		return invalid("topology.path is empty", "Set topology.path to the topology YAML file")
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return invalid("journal.path is empty", "Set journal.path or disable the journal")
	}
	return c.Log.Validate()
}

// Warnings reports settings that are valid but likely to stall a run
func (c *Config) Warnings() []string {
	var out []string
	t := c.Transport
	if t.Kind == TransportExec && t.Prompt.Enabled && !interactiveLauncher(t.Launcher) {
		out = append(out, fmt.Sprintf(
			"transport.prompt is enabled with the exec transport, but launcher %q does not force an interactive shell; "+
				"a shell on pipes prints no prompt and every open will time out (use e.g. \"sh -i\" or a pty-backed launcher)",
			t.Launcher))
	}
	return out
}

// interactiveLauncher reports whether the launcher asks for an interactive
// shell or a terminal
func interactiveLauncher(launcher string) bool {
	for _, f := range strings.Fields(launcher) {
		switch f {
		case "-i", "-t", "-tt", "--interactive":
			return true
		}
	}
	return false
}

// Validate validates the snapshot locations
func (s *SnapshotsConfig) Validate() error {
	if s.Dir == "" {
		return invalid("snapshots.dir is empty", "Set snapshots.dir to the directory holding per-router snapshots")
	}
	for field, name := range map[string]string{
		"zebra_file": s.ZebraFile,
		"ospf_file":  s.OSPFFile,
		"bgp_file":   s.BGPFile,
	} {
		if strings.ContainsRune(name, '/') {
			return invalid(fmt.Sprintf("snapshots.%s must be a file name, got %q", field, name),
				"Snapshot files are looked up inside each router directory")
		}
	}
	return nil
}

// Validate validates the transport section
func (t *TransportConfig) Validate() error {
	switch t.Kind {
	case TransportExec:
		if strings.TrimSpace(t.Launcher) == "" {
			return invalid("transport.launcher is empty", "Set a launcher such as \"sudo ./go_to.sh {target}\"")
		}
	case TransportSSH:
		if t.SSH == nil {
			return invalid("transport.ssh section is required for the ssh transport", "Add a transport.ssh section")
		}
		if err := t.SSH.Validate(); err != nil {
			return err
		}
	case TransportMock:
	default:
		return invalid(fmt.Sprintf("transport.kind %q is not supported", t.Kind),
			"Use one of exec, ssh or mock")
	}

	for field, d := range map[string]time.Duration{
		"open_timeout":    t.OpenTimeout,
		"command_timeout": t.CommandTimeout,
		"close_timeout":   t.CloseTimeout,
	} {
		if d < 0 {
			return invalid(fmt.Sprintf("transport.%s must not be negative", field), "Use a duration such as 10s")
		}
	}

	return t.Prompt.Validate()
}

// Validate validates the ssh settings
func (s *SSHConfig) Validate() error {
	if s.User == "" {
		return invalid("transport.ssh.user is empty", "Set the login user")
	}
	if s.Port < 0 || s.Port > 65535 {
		return invalid(fmt.Sprintf("transport.ssh.port %d is out of range", s.Port), "Use a TCP port between 1 and 65535")
	}
	if s.KeyFile == "" && s.PasswordEnv == "" {
		return invalid("transport.ssh needs key_file or password_env", "Configure at least one authentication method")
	}
	if s.KnownHostsFile == "" && !s.InsecureIgnoreHostKey {
		return invalid("transport.ssh needs known_hosts or insecure_ignore_host_key",
			"Point known_hosts at a known_hosts file")
	}
	return nil
}

// Validate compiles every configured prompt pattern
func (p *PromptConfig) Validate() error {
	for field, pattern := range p.Patterns() {
		if _, err := regexp.Compile(pattern); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation,
				fmt.Sprintf("transport.prompt.%s is not a valid regular expression", field),
				"The prompt pattern does not compile",
				"Fix the regular expression syntax")
		}
	}
	return nil
}

// Patterns returns the non-empty prompt patterns keyed by field name
func (p *PromptConfig) Patterns() map[string]string {
	out := make(map[string]string)
	for field, pattern := range map[string]string{
		"shell":     p.Shell,
		"cli":       p.CLI,
		"config":    p.Config,
		"interface": p.Interface,
		"router":    p.Router,
		"subsystem": p.Subsystem,
	} {
		if pattern != "" {
			out[field] = pattern
		}
	}
	return out
}

// Validate checks the log level and format
func (l *LogConfig) Validate() error {
	if _, ok := logger.ParseLevel(l.Level); !ok {
		return invalid(fmt.Sprintf("log.level %q is not supported", l.Level), "Use debug, info, warn or error")
	}
	if l.Format != LogFormatJSON && l.Format != LogFormatText {
		return invalid(fmt.Sprintf("log.format %q is not supported", l.Format), "Use json or text")
	}
	return nil
}

func invalid(message, action string) error {
	return errors.New(errors.ErrCodeConfigValidation, message, "Configuration contains invalid values", action)
}
