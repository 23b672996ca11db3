package plan

import (
	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/snapshot"
)

// stanzaModes maps declaration keywords that open a nested vtysh mode
var stanzaModes = map[string]Mode{
	"interface": ModeInterface,
	"line":      ModeSubsystem,
	"route-map": ModeSubsystem,
	"key":       ModeSubsystem,
}

// Verbatim builds a plan that replays every saved line of the router's snapshots
// inside configuration mode, closing each nested stanza with an explicit exit.
// It serves multi-AS labs whose snapshots carry more than the structured planner models.
func Verbatim(routerID string, snaps *snapshot.Snapshots) (*Plan, error) {
	if snaps == nil || snaps.Zebra == nil {
		return nil, errors.PlanningError(routerID, "no zebra snapshot to replay")
	}

	b := newBuilder(routerID, KindVerbatim)
	b.phase(PhaseModeEntry)
	b.emit(ModeCLI, cmdShell)
	b.emit(ModeConfig, cmdConfigure)

	b.phase(PhaseVerbatim)
	for _, data := range [][]byte{snaps.Zebra, snaps.OSPF, snaps.BGP} {
		if data == nil {
			continue
		}
		stanzas, err := snapshot.Stanzas(data)
		if err != nil {
			return nil, errors.ParseError(routerID, err)
		}
		for _, st := range stanzas {
			if st.Decl.Is("end") {
				continue
			}
			mode := stanzaMode(st.Decl)
			b.emit(mode, "%s", st.Decl.Text)
			for _, line := range st.Body {
				b.emit(mode, "%s", line.Text)
			}
			if mode != ModeConfig {
				b.emit(ModeConfig, cmdExit)
			}
		}
	}

	b.phase(PhaseCommit)
	b.emit(ModeCLI, cmdExit)
	b.emit(ModeCLI, cmdPersist)
	b.emit(ModeShellReady, cmdExit)
	b.emit(ModeClosed, cmdExit)
	return b.plan, nil
}

func stanzaMode(decl snapshot.Line) Mode {
	if decl.Is("router", "ospf") {
		return ModeOSPF
	}
	if decl.Is("router", "bgp") {
		return ModeBGP
	}
	if decl.Is("router") {
		return ModeSubsystem
	}
	if m, ok := stanzaModes[decl.Keyword()]; ok {
		return m
	}
	return ModeConfig
}
