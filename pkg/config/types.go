// Package config loads the arca-replay run configuration: where the saved snapshots
// live, which topology to replay, how sessions are opened and where the journal is kept.
package config

import (
	"time"
)

// Transport kinds
const (
	TransportExec = "exec"
	TransportSSH  = "ssh"
	TransportMock = "mock"
)

// Log formats accepted in the log section
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Defaults applied when the file leaves a field empty
const (
	DefaultSnapshotsDir   = "./configs"
	DefaultZebraFile      = "zebra.conf.sav"
	DefaultOSPFFile       = "ospfd.conf.sav"
	DefaultBGPFile        = "bgpd.conf.sav"
	DefaultLauncher       = "sudo ./go_to.sh {target}"
	DefaultOpenTimeout    = 30 * time.Second
	DefaultCommandTimeout = 10 * time.Second
	DefaultCloseTimeout   = 5 * time.Second
	DefaultJournalPath    = "./arca-replay.db"
	DefaultLogLevel       = "info"
	DefaultSSHPort        = 22
)

// Config is the run configuration.
// Relative paths are resolved against the working directory of the process.
type Config struct {
	Snapshots SnapshotsConfig `yaml:"snapshots"`
	Topology  TopologyConfig  `yaml:"topology"`
	Transport TransportConfig `yaml:"transport"`
	Journal   JournalConfig   `yaml:"journal"`
	Log       LogConfig       `yaml:"log"`
}

// SnapshotsConfig locates the saved per-router snapshots.
// Files are read from <dir>/<ROUTER>/<file>.
type SnapshotsConfig struct {
	Dir       string `yaml:"dir"`
	ZebraFile string `yaml:"zebra_file,omitempty"`
	OSPFFile  string `yaml:"ospf_file,omitempty"`
	BGPFile   string `yaml:"bgp_file,omitempty"`
}

// TopologyConfig points at the topology description
type TopologyConfig struct {
	Path string `yaml:"path"`
}

// TransportConfig selects and tunes the session transport
type TransportConfig struct {
	Kind string `yaml:"kind"`

	// Launcher is the exec command template; {target} is replaced by the node name
	Launcher string `yaml:"launcher,omitempty"`

	// WorkDir is the working directory of launched commands
	WorkDir string `yaml:"workdir,omitempty"`

	SSH *SSHConfig `yaml:"ssh,omitempty"`

	OpenTimeout    time.Duration `yaml:"open_timeout,omitempty"`
	CommandTimeout time.Duration `yaml:"command_timeout,omitempty"`
	CloseTimeout   time.Duration `yaml:"close_timeout,omitempty"`

	Prompt PromptConfig `yaml:"prompt"`
}

// SSHConfig holds the settings of the ssh transport
type SSHConfig struct {
	User string `yaml:"user"`
	Port int    `yaml:"port,omitempty"`

	// Hosts maps a target name to its address; unmapped targets are dialed by name
	Hosts map[string]string `yaml:"hosts,omitempty"`

	KeyFile string `yaml:"key_file,omitempty"`

	// PasswordEnv names the environment variable holding the password
	PasswordEnv string `yaml:"password_env,omitempty"`

	KnownHostsFile        string `yaml:"known_hosts,omitempty"`
	InsecureIgnoreHostKey bool   `yaml:"insecure_ignore_host_key,omitempty"`
}

// PromptConfig enables prompt matching after each command.
// Empty patterns keep the built-in prompt for that mode.
type PromptConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Shell     string `yaml:"shell,omitempty"`
	CLI       string `yaml:"cli,omitempty"`
	Config    string `yaml:"config,omitempty"`
	Interface string `yaml:"interface,omitempty"`
	Router    string `yaml:"router,omitempty"`
	Subsystem string `yaml:"subsystem,omitempty"`
}

// JournalConfig controls the SQLite replay journal
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// LogConfig sets the default log level and format; command-line flags override it
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills optional fields with their documented defaults
func (c *Config) applyDefaults() {
	if c.Snapshots.Dir == "" {
		c.Snapshots.Dir = DefaultSnapshotsDir
	}
	if c.Snapshots.ZebraFile == "" {
		c.Snapshots.ZebraFile = DefaultZebraFile
	}
	if c.Snapshots.OSPFFile == "" {
		c.Snapshots.OSPFFile = DefaultOSPFFile
	}
	if c.Snapshots.BGPFile == "" {
		c.Snapshots.BGPFile = DefaultBGPFile
	}

	t := &c.Transport
	if t.Kind == "" {
		t.Kind = TransportExec
	}
	if t.Kind == TransportExec && t.Launcher == "" {
		t.Launcher = DefaultLauncher
	}
	if t.SSH != nil && t.SSH.Port == 0 {
		t.SSH.Port = DefaultSSHPort
	}
	if t.OpenTimeout == 0 {
		t.OpenTimeout = DefaultOpenTimeout
	}
	if t.CommandTimeout == 0 {
		t.CommandTimeout = DefaultCommandTimeout
	}
	if t.CloseTimeout == 0 {
		t.CloseTimeout = DefaultCloseTimeout
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		c.Journal.Path = DefaultJournalPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = LogFormatText
	}
}
