package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/akam1o/arca-replay/pkg/config"
	"github.com/akam1o/arca-replay/pkg/logger"
	"github.com/akam1o/arca-replay/pkg/plan"
	"github.com/akam1o/arca-replay/pkg/session"
)

const testTopology = `
name: lab
asn: 4
ospf:
  networks: [4.0.0.0/8]
routers:
  - name: NEWY
    host: {}
  - name: WASH
peer_addresses: [4.101.0.2, 4.102.0.2]
`

var testSnapshots = map[string]map[string]string{
	"NEWY": {
		"zebra.conf.sav": "interface host\n ip address 4.101.0.1/24\n!\ninterface wash\n ip address 4.0.1.1/24\n!\n",
		"ospfd.conf.sav": "interface wash\n ip ospf cost 10\n!\n",
		"bgpd.conf.sav":  "router bgp 4\n bgp router-id 4.101.0.2\n!\n",
	},
	"WASH": {
		"zebra.conf.sav": "interface host\n ip address 4.102.0.1/24\n!\ninterface newy\n ip address 4.0.1.2/24\n!\n",
		"bgpd.conf.sav":  "router bgp 4\n bgp router-id 4.102.0.2\n!\n",
	},
}

// writeLab creates a topology, snapshots and a mock-transport run configuration
func writeLab(t *testing.T, journal bool) string {
	t.Helper()
	dir := t.TempDir()

	write := func(path, content string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	write(filepath.Join(dir, "topology.yaml"), testTopology)
	for router, files := range testSnapshots {
		for name, content := range files {
			write(filepath.Join(dir, "configs", router, name), content)
		}
	}

	cfg := "snapshots:\n  dir: " + filepath.Join(dir, "configs") + "\n" +
		"topology:\n  path: " + filepath.Join(dir, "topology.yaml") + "\n" +
		"transport:\n  kind: mock\n" +
		"log:\n  level: error\n"
	if journal {
		cfg += "journal:\n  enabled: true\n  path: " + filepath.Join(dir, "journal.db") + "\n"
	}
	path := filepath.Join(dir, "arca-replay.yaml")
	write(path, cfg)
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, ExitUsageError},
		{"unknown command", []string{"frobnicate"}, ExitUsageError},
		{"unknown flag", []string{"-frob", "plan"}, ExitUsageError},
		{"bad plan target", []string{"plan", "switches"}, ExitUsageError},
		{"help", []string{"help"}, ExitSuccess},
		{"version", []string{"version"}, ExitSuccess},
		{"missing config", []string{"-config", "/nonexistent/arca-replay.yaml", "plan"}, ExitOperationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			if code != tt.want {
				t.Errorf("exit code = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestRun_Plan(t *testing.T) {
	cfg := writeLab(t, false)

	code, stdout, stderr := runCLI(t, "-config", cfg, "plan")
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	for _, want := range []string{
		"# NEWY (router,",
		"# WASH (router,",
		"## ospf",
		"ip ospf cost 10",
		"router bgp 4",
		"neighbor 4.102.0.2 remote-as 4",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("plan output missing %q:\n%s", want, stdout)
		}
	}
	newy := stdout[:strings.Index(stdout, "# WASH")]
	if strings.Contains(newy, "neighbor 4.101.0.2") {
		t.Errorf("NEWY must not peer with itself:\n%s", newy)
	}

	// WASH has no OSPF snapshot so its link has no cost, which is not a warning
	if strings.Contains(stderr, "warning:") {
		t.Errorf("unexpected warnings:\n%s", stderr)
	}
}

func TestRun_PlanFilterAndHosts(t *testing.T) {
	cfg := writeLab(t, false)

	code, stdout, _ := runCLI(t, "-config", cfg, "plan", "-router", "WASH")
	if code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if strings.Contains(stdout, "# NEWY") || !strings.Contains(stdout, "# WASH") {
		t.Errorf("filtered plan output:\n%s", stdout)
	}

	code, stdout, _ = runCLI(t, "-config", cfg, "plan", "hosts")
	if code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "sudo ifconfig newy 4.101.0.1/24 up") {
		t.Errorf("host plan output:\n%s", stdout)
	}

	code, _, stderr := runCLI(t, "-config", cfg, "plan", "-router", "LOSA")
	if code != ExitOperationError || !strings.Contains(stderr, "TOPOLOGY_UNKNOWN_ROUTER") {
		t.Errorf("unknown router: code %d, stderr:\n%s", code, stderr)
	}

	code, _, _ = runCLI(t, "-config", cfg, "-mode", "literal", "plan")
	if code != ExitOperationError {
		t.Errorf("bad mode exit code = %d, want %d", code, ExitOperationError)
	}
}

var runIDPattern = regexp.MustCompile(`\(run ([0-9A-Z]{26})\)`)

func TestRun_ApplyHistoryDiff(t *testing.T) {
	cfg := writeLab(t, true)

	code, stdout, stderr := runCLI(t, "-config", cfg, "-dry-run", "apply")
	if code != ExitSuccess {
		t.Fatalf("dry-run apply exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "2 succeeded, 0 failed") {
		t.Errorf("apply summary:\n%s", stdout)
	}

	// Dry runs are not the last applied plan
	code, stdout, _ = runCLI(t, "-config", cfg, "diff")
	if code != ExitSuccess || !strings.Contains(stdout, "# NEWY: never applied") {
		t.Errorf("diff after dry run: code %d\n%s", code, stdout)
	}

	code, stdout, _ = runCLI(t, "-config", cfg, "apply")
	if code != ExitSuccess {
		t.Fatalf("apply exit code = %d", code)
	}
	m := runIDPattern.FindStringSubmatch(stdout)
	if m == nil {
		t.Fatalf("apply summary has no run id:\n%s", stdout)
	}

	code, stdout, _ = runCLI(t, "-config", cfg, "diff")
	if code != ExitSuccess || !strings.Contains(stdout, "# NEWY: no changes") {
		t.Errorf("diff after apply: code %d\n%s", code, stdout)
	}

	code, stdout, _ = runCLI(t, "-config", cfg, "history")
	if code != ExitSuccess {
		t.Fatalf("history exit code = %d", code)
	}
	if strings.Count(stdout, "succeeded") != 2 || !strings.Contains(stdout, m[1]) {
		t.Errorf("history output:\n%s", stdout)
	}

	code, stdout, _ = runCLI(t, "-config", cfg, "history", m[1])
	if code != ExitSuccess || !strings.Contains(stdout, "NEWY") || !strings.Contains(stdout, "WASH") {
		t.Errorf("history %s: code %d\n%s", m[1], code, stdout)
	}
}

func TestRun_ApplyReportsFailures(t *testing.T) {
	cfg := writeLab(t, false)
	if err := os.RemoveAll(filepath.Join(filepath.Dir(cfg), "configs", "WASH")); err != nil {
		t.Fatal(err)
	}

	code, stdout, _ := runCLI(t, "-config", cfg, "apply")
	if code != ExitOperationError {
		t.Errorf("exit code = %d, want %d", code, ExitOperationError)
	}
	if !strings.Contains(stdout, "SNAPSHOT_NOT_FOUND") || !strings.Contains(stdout, "1 succeeded, 1 failed") {
		t.Errorf("apply summary:\n%s", stdout)
	}
}

func TestRun_HistoryNeedsJournal(t *testing.T) {
	cfg := writeLab(t, false)
	code, _, stderr := runCLI(t, "-config", cfg, "history")
	if code != ExitUsageError || !strings.Contains(stderr, "journal") {
		t.Errorf("code %d, stderr:\n%s", code, stderr)
	}
}

func TestRouterList(t *testing.T) {
	var r routerList
	for _, v := range []string{"NEWY", "WASH, ATLA", ""} {
		if err := r.Set(v); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff(routerList{"NEWY", "WASH", "ATLA"}, r); diff != "" {
		t.Errorf("routerList mismatch (-want +got):\n%s", diff)
	}
	if r.String() != "NEWY,WASH,ATLA" {
		t.Errorf("String() = %q", r.String())
	}
}

func TestPromptPatterns(t *testing.T) {
	got := promptPatterns(config.PromptConfig{Shell: `\$ $`, Router: `router# $`})

	if got[plan.ModeShellReady] != `\$ $` {
		t.Errorf("shell prompt = %q", got[plan.ModeShellReady])
	}
	if got[plan.ModeOSPF] != `router# $` || got[plan.ModeBGP] != `router# $` {
		t.Errorf("router prompts = %q/%q", got[plan.ModeOSPF], got[plan.ModeBGP])
	}
	if got[plan.ModeCLI] != session.DefaultCLIPrompt {
		t.Errorf("cli prompt = %q, want the default", got[plan.ModeCLI])
	}
}

func TestNewDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Topology.Path = "topo.yaml"
	cfg.Transport.Prompt.Enabled = true

	d, err := newDriver(cfg, false, logger.Discard())
	if err != nil {
		t.Fatalf("newDriver() error = %v", err)
	}
	if _, ok := d.Transport.(*session.ExecTransport); !ok {
		t.Errorf("Transport = %T, want *session.ExecTransport", d.Transport)
	}
	if _, ok := d.Waiter.(*session.PromptMatcher); !ok {
		t.Errorf("Waiter = %T, want *session.PromptMatcher", d.Waiter)
	}

	d, err = newDriver(cfg, true, logger.Discard())
	if err != nil {
		t.Fatalf("newDriver(dry run) error = %v", err)
	}
	if _, ok := d.Transport.(*session.MockTransport); !ok {
		t.Errorf("dry-run Transport = %T, want *session.MockTransport", d.Transport)
	}
	if _, ok := d.Waiter.(*session.PromptMatcher); ok {
		t.Error("dry runs must not wait for prompts")
	}
}
