package plan

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/snapshot"
	"github.com/akam1o/arca-replay/pkg/topology"
)

const labTopology = `
name: lab
asn: 4
ospf:
  networks: [4.0.0.0/8, 4.0.0.0/16]
bgp_networks: [4.0.0.0/8]
routers:
  - name: NEWY
    self_address: 4.101.0.2
    host: {}
  - name: WASH
    self_address: 4.102.0.2
  - name: ATLA
    self_address: 4.103.0.2
peer_addresses: [4.101.0.2, 4.102.0.2, 4.103.0.2]
edge_rules:
  NEWY:
    - {neighbor: 6.0.1.2, remote_as: 6}
    - {neighbor: 7.0.1.2, remote_as: 7}
`

func loadTopology(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := topology.Decode(strings.NewReader(labTopology))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return topo
}

func newyModel() *snapshot.RouterModel {
	return &snapshot.RouterModel{
		ID: "NEWY",
		Interfaces: []snapshot.Interface{
			{Name: "host", Address: "4.101.0.1/24", Cost: "0", CostDefaulted: true, HostFacing: true},
			{Name: "lo", Loopback: true},
			{Name: "newy", Address: "4.1.1.1", Cost: "10"},
			{Name: "wash", Address: "4.0.3.1/24"},
		},
		BGPRouterID: "4.101.0.2",
		HostPrefix:  "4.1.1.",
	}
}

func TestForRouter_Scenario(t *testing.T) {
	p, err := ForRouter(newyModel(), loadTopology(t))
	if err != nil {
		t.Fatalf("ForRouter() error = %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	ifaces, ok := p.Phase(PhaseInterfaces)
	if !ok {
		t.Fatal("interfaces phase missing")
	}
	var lines []string
	for _, c := range ifaces.Commands {
		lines = append(lines, c.Text)
	}
	want := []string{
		"interface host",
		"ip address 4.101.0.1/24",
		"exit",
		"interface newy",
		"ip address 4.1.1.1",
		"ip ospf cost 10",
		"exit",
		"interface wash",
		"ip address 4.0.3.1/24",
		"exit",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("interface phase mismatch (-want +got):\n%s", diff)
	}

	for _, line := range p.Lines() {
		if line == "interface lo" {
			t.Error("loopback interface must not be selected")
		}
	}

	var names []string
	for _, ph := range p.Phases {
		names = append(names, ph.Name)
	}
	if diff := cmp.Diff([]string{PhaseModeEntry, PhaseOSPF, PhaseInterfaces, PhaseBGP, PhaseCommit}, names); diff != "" {
		t.Errorf("phase order mismatch (-want +got):\n%s", diff)
	}
}

func TestForRouter_Deterministic(t *testing.T) {
	topo := loadTopology(t)
	first, err := ForRouter(newyModel(), topo)
	if err != nil {
		t.Fatalf("ForRouter() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := ForRouter(newyModel(), topo)
		if err != nil {
			t.Fatalf("ForRouter() error = %v", err)
		}
		if again.Text() != first.Text() {
			t.Fatalf("plan text differs on run %d", i)
		}
	}
}

func TestForRouter_NoBGPPhaseWithoutRouterID(t *testing.T) {
	model := newyModel()
	model.BGPRouterID = ""

	p, err := ForRouter(model, loadTopology(t))
	if err != nil {
		t.Fatalf("ForRouter() error = %v", err)
	}
	if _, ok := p.Phase(PhaseBGP); ok {
		t.Error("BGP phase present without router-id")
	}
	for _, line := range p.Lines() {
		if strings.HasPrefix(line, "router bgp") || strings.HasPrefix(line, "neighbor") {
			t.Errorf("unexpected BGP command %q", line)
		}
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	wantTail := []string{"exit", "write file", "exit", "exit"}
	lines := p.Lines()
	if diff := cmp.Diff(wantTail, lines[len(lines)-4:]); diff != "" {
		t.Errorf("commit phase mismatch (-want +got):\n%s", diff)
	}
}

func TestForRouter_NeighborCounts(t *testing.T) {
	topo := loadTopology(t)

	tests := []struct {
		name     string
		model    *snapshot.RouterModel
		internal int
		external map[string]string
	}{
		{
			name:     "edge router",
			model:    newyModel(),
			internal: 3 * (3 - 1),
			external: map[string]string{"6.0.1.2": "6", "7.0.1.2": "7"},
		},
		{
			name:     "internal router",
			model:    &snapshot.RouterModel{ID: "WASH", BGPRouterID: "4.102.0.2"},
			internal: 3 * (3 - 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ForRouter(tt.model, topo)
			if err != nil {
				t.Fatalf("ForRouter() error = %v", err)
			}
			bgp, ok := p.Phase(PhaseBGP)
			if !ok {
				t.Fatal("BGP phase missing")
			}

			internal, external := 0, 0
			for _, c := range bgp.Commands {
				if !strings.HasPrefix(c.Text, "neighbor ") {
					continue
				}
				addr := strings.Fields(c.Text)[1]
				if as, ok := tt.external[addr]; ok {
					external++
					if strings.Contains(c.Text, "remote-as") && !strings.HasSuffix(c.Text, "remote-as "+as) {
						t.Errorf("%q uses wrong AS, want %s", c.Text, as)
					}
					continue
				}
				internal++
				if strings.Contains(c.Text, "remote-as") && !strings.HasSuffix(c.Text, "remote-as 4") {
					t.Errorf("%q uses wrong AS, want 4", c.Text)
				}
				if addr == topo.SelfAddress(tt.model.ID, nil) {
					t.Errorf("router peers with itself: %q", c.Text)
				}
			}
			if internal != tt.internal {
				t.Errorf("internal neighbor commands = %d, want %d", internal, tt.internal)
			}
			if external != 3*len(tt.external) {
				t.Errorf("external neighbor commands = %d, want %d", external, 3*len(tt.external))
			}
		})
	}
}

func TestForRouter_UnresolvedSelf(t *testing.T) {
	topo := loadTopology(t)
	topo.Routers[0].SelfAddress = ""

	model := newyModel()
	model.BGPRouterID = "10.0.0.1"
	model.Interfaces = nil

	_, err := ForRouter(model, topo)
	if errors.CodeOf(err) != errors.ErrCodePlanning {
		t.Fatalf("code = %q, want %q", errors.CodeOf(err), errors.ErrCodePlanning)
	}
	var coded *errors.Error
	if !errors.As(err, &coded) {
		t.Fatalf("error %v is not coded", err)
	}
	for _, want := range []string{"Only the BGP phase", "self_address"} {
		if !strings.Contains(coded.Action, want) {
			t.Errorf("Action = %q, want it to mention %q", coded.Action, want)
		}
	}
}

func TestForRouter_CommitPhaseBoundary(t *testing.T) {
	for _, withBGP := range []bool{true, false} {
		model := newyModel()
		want := PhaseBGP
		if !withBGP {
			model.BGPRouterID = ""
			want = PhaseInterfaces
		}

		p, err := ForRouter(model, loadTopology(t))
		if err != nil {
			t.Fatalf("ForRouter() error = %v", err)
		}

		commit, ok := p.Phase(PhaseCommit)
		if !ok {
			t.Fatal("commit phase missing")
		}
		var got []string
		for _, c := range commit.Commands {
			got = append(got, c.Text)
		}
		if diff := cmp.Diff([]string{"write file", "exit", "exit"}, got[1:]); diff != "" {
			t.Errorf("commit phase mismatch (-want +got):\n%s", diff)
		}
		if commit.Commands[0].Text != "exit" || commit.Commands[0].Mode != ModeCLI {
			t.Errorf("commit phase starts with %+v, want exit to CLI mode", commit.Commands[0])
		}

		prev := p.Phases[len(p.Phases)-2]
		if prev.Name != want {
			t.Fatalf("phase before commit = %q, want %q", prev.Name, want)
		}
		last := prev.Commands[len(prev.Commands)-1]
		if last.Text != "exit" || last.Mode != ModeConfig {
			t.Errorf("%s phase ends with %+v, want the sub-mode exit to config mode", prev.Name, last)
		}
	}
}

func TestForHost(t *testing.T) {
	p, err := ForHost(newyModel(), topology.Host{Name: "NEWY-host", Interface: "newy"})
	if err != nil {
		t.Fatalf("ForHost() error = %v", err)
	}
	want := []string{
		"sudo ifconfig newy 4.1.1.1/24 up",
		"sudo route add default gw 4.1.1.2 newy",
		"exit",
	}
	if diff := cmp.Diff(want, p.Lines()); diff != "" {
		t.Errorf("host plan mismatch (-want +got):\n%s", diff)
	}
	if p.Target != "NEWY-host" || p.Kind != KindHost {
		t.Errorf("Target/Kind = %s/%s, want NEWY-host/host", p.Target, p.Kind)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestForHost_MissingPrefix(t *testing.T) {
	model := newyModel()
	model.HostPrefix = ""

	p, err := ForHost(model, topology.Host{Name: "NEWY-host", Interface: "newy"})
	if err == nil {
		t.Fatalf("ForHost() = %v, want error", p.Lines())
	}
	if errors.CodeOf(err) != errors.ErrCodePlanning {
		t.Errorf("code = %q, want %q", errors.CodeOf(err), errors.ErrCodePlanning)
	}
	if p != nil {
		t.Error("plan returned alongside planning error")
	}
}

func TestValidate_RejectsBadWalks(t *testing.T) {
	tests := []struct {
		name     string
		commands []Command
		wantErr  string
	}{
		{
			name: "sub-mode to sub-mode",
			commands: []Command{
				{"vtysh", ModeCLI}, {"configure terminal", ModeConfig},
				{"router ospf", ModeOSPF}, {"interface newy", ModeInterface},
			},
			wantErr: "moves from",
		},
		{
			name: "not closed",
			commands: []Command{
				{"vtysh", ModeCLI}, {"configure terminal", ModeConfig},
			},
			wantErr: "ends in",
		},
		{
			name: "empty argument",
			commands: []Command{
				{"sudo ifconfig newy  up", ModeShellReady}, {"exit", ModeClosed},
			},
			wantErr: "empty argument",
		},
		{
			name: "after close",
			commands: []Command{
				{"exit", ModeClosed}, {"exit", ModeClosed},
			},
			wantErr: "follows session close",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Plan{Target: "X", Phases: []Phase{{Name: "test", Commands: tt.commands}}}
			err := p.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestVerbatim(t *testing.T) {
	snaps := &snapshot.Snapshots{
		Zebra: []byte("!\nhostname NEWY\n!\ninterface newy\n ip address 4.1.1.1/24\n!\nline vty\n!\n"),
		OSPF:  []byte("router ospf\n network 4.0.0.0/8 area 0\n!\n"),
	}
	p, err := Verbatim("NEWY", snaps)
	if err != nil {
		t.Fatalf("Verbatim() error = %v", err)
	}
	want := []string{
		"vtysh", "configure terminal",
		"hostname NEWY",
		"interface newy", "ip address 4.1.1.1/24", "exit",
		"line vty", "exit",
		"router ospf", "network 4.0.0.0/8 area 0", "exit",
		"exit", "write file", "exit", "exit",
	}
	if diff := cmp.Diff(want, p.Lines()); diff != "" {
		t.Errorf("verbatim plan mismatch (-want +got):\n%s", diff)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
