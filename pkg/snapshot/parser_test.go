package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/akam1o/arca-replay/pkg/errors"
)

const newyZebra = `!
! Zebra configuration saved from vty
!
hostname NEWY
password zebra
!
interface host
 ip address 4.101.0.1/24
 ipv6 nd suppress-ra
!
interface lo
 ip address 4.101.0.2/32
!
interface newy
 ip address 4.1.1.1
!
interface wash
 ip address 4.0.3.1/24
!
line vty
!
`

const newyOSPF = `!
hostname ospfd
!
interface host
 ip ospf cost 5
!
interface newy
 ip ospf cost 10
!
interface wash
!
router ospf
 network 4.0.0.0/8 area 0
!
`

const newyBGP = `!
router bgp 4
 bgp router-id 4.101.0.2
 bgp router-id 9.9.9.9
 network 4.0.0.0/8
!
`

func testOptions() Options {
	return Options{
		RouterFacing: map[string]bool{"newy": true, "wash": true},
	}
}

func TestParse_Scenario(t *testing.T) {
	snaps := &Snapshots{Zebra: []byte(newyZebra), OSPF: []byte(newyOSPF), BGP: []byte(newyBGP)}

	model, warnings, err := Parse("NEWY", snaps, testOptions())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []Interface{
		{Name: "host", Address: "4.101.0.1/24", Cost: "0", CostDefaulted: true, HostFacing: true},
		{Name: "lo", Loopback: true},
		{Name: "newy", Address: "4.1.1.1", Cost: "10"},
		{Name: "wash", Address: "4.0.3.1/24"},
	}
	if diff := cmp.Diff(want, model.Interfaces); diff != "" {
		t.Errorf("Interfaces mismatch (-want +got):\n%s", diff)
	}
	if model.BGPRouterID != "4.101.0.2" {
		t.Errorf("BGPRouterID = %q, want 4.101.0.2", model.BGPRouterID)
	}
	if model.HostPrefix != "4.101.0." {
		t.Errorf("HostPrefix = %q, want 4.101.0.", model.HostPrefix)
	}

	// wash is router-facing but has no cost
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want 1", warnings)
	}
	if warnings[0].Subsystem != SubsystemOSPF || !strings.Contains(warnings[0].Message, "wash") {
		t.Errorf("warning = %v, want OSPF warning about wash", warnings[0])
	}

	wash, _ := model.Interface("wash")
	if wash.HasCost() {
		t.Errorf("wash HasCost() = true, want false")
	}
}

func TestParse_KeepLoopbackAddress(t *testing.T) {
	opts := testOptions()
	opts.KeepLoopbackAddress = true

	model, _, err := Parse("LOSA", &Snapshots{Zebra: []byte(newyZebra)}, opts)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	lo, ok := model.Interface("lo")
	if !ok {
		t.Fatal("loopback not recorded")
	}
	if lo.Address != "4.101.0.2/32" {
		t.Errorf("loopback address = %q, want 4.101.0.2/32", lo.Address)
	}
}

func TestParse_MissingZebra(t *testing.T) {
	_, _, err := Parse("NEWY", &Snapshots{OSPF: []byte(newyOSPF)}, testOptions())
	if err == nil {
		t.Fatal("Parse() expected error for missing zebra snapshot")
	}
	if errors.CodeOf(err) != errors.ErrCodeSnapshotParseError {
		t.Errorf("code = %q, want %q", errors.CodeOf(err), errors.ErrCodeSnapshotParseError)
	}
	if !strings.Contains(err.Error(), "NEWY") {
		t.Errorf("error %q does not mention router", err)
	}
}

func TestParse_NoBGPSnapshot(t *testing.T) {
	model, warnings, err := Parse("NEWY", &Snapshots{Zebra: []byte(newyZebra)}, testOptions())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if model.BGPRouterID != "" {
		t.Errorf("BGPRouterID = %q, want empty", model.BGPRouterID)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
}

func TestParse_SoftFailures(t *testing.T) {
	tests := []struct {
		name      string
		snaps     Snapshots
		subsystem string
		message   string
	}{
		{
			name:      "address marker without token",
			snaps:     Snapshots{Zebra: []byte("interface newy\n ip address\n")},
			subsystem: SubsystemZebra,
			message:   "without an address",
		},
		{
			name:      "short host address",
			snaps:     Snapshots{Zebra: []byte("interface host\n ip address 1/24\n")},
			subsystem: SubsystemZebra,
			message:   "host prefix",
		},
		{
			name:      "non numeric cost",
			snaps:     Snapshots{Zebra: []byte("interface newy\n"), OSPF: []byte("interface newy\n ip ospf cost high\n")},
			subsystem: SubsystemOSPF,
			message:   "not numeric",
		},
		{
			name:      "invalid router-id",
			snaps:     Snapshots{Zebra: []byte(""), BGP: []byte("router bgp 4\n bgp router-id 4.1\n")},
			subsystem: SubsystemBGP,
			message:   "invalid router-id",
		},
		{
			name:      "bgp without router-id",
			snaps:     Snapshots{Zebra: []byte(""), BGP: []byte("router bgp 4\n network 4.0.0.0/8\n")},
			subsystem: SubsystemBGP,
			message:   "no bgp router-id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, warnings, err := Parse("NEWY", &tt.snaps, testOptions())
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(warnings) != 1 {
				t.Fatalf("warnings = %v, want 1", warnings)
			}
			if warnings[0].Subsystem != tt.subsystem {
				t.Errorf("Subsystem = %q, want %q", warnings[0].Subsystem, tt.subsystem)
			}
			if !strings.Contains(warnings[0].Message, tt.message) {
				t.Errorf("Message = %q, want it to contain %q", warnings[0].Message, tt.message)
			}
			if model.BGPRouterID != "" || model.HostPrefix != "" {
				t.Errorf("model = %+v, want absent fields", model)
			}
		})
	}
}

func TestParse_ZebraAddressLine(t *testing.T) {
	tests := []struct {
		name  string
		zebra string
		want  string
	}{
		{
			name:  "address right after declaration",
			zebra: "interface wash\n ip address 4.0.3.1/24\n!\n",
			want:  "4.0.3.1/24",
		},
		{
			name:  "address after other sub-commands",
			zebra: "interface wash\n description to WASH\n link-detect\n ip address 4.0.3.1/24\n!\n",
			want:  "4.0.3.1/24",
		},
		{
			name:  "first address wins",
			zebra: "interface wash\n ip address 4.0.3.1/24\n ip address 4.0.9.1/24 secondary\n!\n",
			want:  "4.0.3.1/24",
		},
		{
			name:  "address outside the stanza is not attached",
			zebra: "interface wash\n description to WASH\n!\nip address 4.0.3.1/24\n",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, _, err := Parse("NEWY", &Snapshots{Zebra: []byte(tt.zebra)}, testOptions())
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			iface, ok := model.Interface("wash")
			if !ok {
				t.Fatal("interface wash not recorded")
			}
			if iface.Address != tt.want {
				t.Errorf("Address = %q, want %q", iface.Address, tt.want)
			}
		})
	}
}

func TestParse_OSPFOnlyInterfaceAppended(t *testing.T) {
	snaps := &Snapshots{
		Zebra: []byte("interface wash\n ip address 4.0.3.1/24\n"),
		OSPF:  []byte("interface newy\n ip ospf cost 7\n!\ninterface wash\n ip ospf cost 3\n"),
	}
	model, _, err := Parse("NEWY", snaps, testOptions())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []Interface{
		{Name: "wash", Address: "4.0.3.1/24", Cost: "3"},
		{Name: "newy", Cost: "7"},
	}
	if diff := cmp.Diff(want, model.Interfaces); diff != "" {
		t.Errorf("Interfaces mismatch (-want +got):\n%s", diff)
	}
}

func TestLexer_Classification(t *testing.T) {
	l := NewLexerBytes([]byte("! comment\n\ninterface newy\n ip address 4.1.1.1\r\n"))

	var got []LineType
	for {
		line := l.NextLine()
		got = append(got, line.Type)
		if line.Type == LineEOF {
			break
		}
	}
	want := []LineType{LineComment, LineDecl, LineBody, LineEOF}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("line types mismatch (-want +got):\n%s", diff)
	}
}

func TestDirSource_Load(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "NEWY")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, DefaultZebraFile), []byte(newyZebra), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, DefaultBGPFile), []byte(newyBGP), 0644); err != nil {
		t.Fatal(err)
	}

	src := NewDirSource(root)
	snaps, err := src.Load(context.Background(), "NEWY")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(snaps.Zebra) != newyZebra {
		t.Error("zebra snapshot content mismatch")
	}
	if snaps.OSPF != nil {
		t.Errorf("OSPF = %q, want nil", snaps.OSPF)
	}
	if snaps.BGP == nil {
		t.Error("BGP = nil, want content")
	}

	_, err = src.Load(context.Background(), "WASH")
	if errors.CodeOf(err) != errors.ErrCodeSnapshotNotFound {
		t.Errorf("code = %q, want %q", errors.CodeOf(err), errors.ErrCodeSnapshotNotFound)
	}
}
