package plan

import (
	"net/netip"

	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/snapshot"
	"github.com/akam1o/arca-replay/pkg/topology"
)

// ForHost builds the bootstrap plan for the host attached to a router: bring up
// the host interface with the first address of the router's host prefix and route
// everything via the second.
func ForHost(model *snapshot.RouterModel, host topology.Host) (*Plan, error) {
	target := host.Name
	if model == nil {
		return nil, errors.PlanningError(target, "no router model")
	}
	if target == "" {
		target = model.ID + "-host"
	}
	if model.HostPrefix == "" {
		return nil, errors.PlanningError(target, "no host address captured for router "+model.ID)
	}
	if host.Interface == "" {
		return nil, errors.PlanningError(target, "host interface is not set")
	}

	addr := model.HostPrefix + "1"
	gw := model.HostPrefix + "2"
	for _, a := range []string{addr, gw} {
		if ip, err := netip.ParseAddr(a); err != nil || !ip.Is4() {
			return nil, errors.PlanningError(target, "invalid derived host address "+a)
		}
	}

	b := newBuilder(target, KindHost)
	b.phase(PhaseHost)
	b.emit(ModeShellReady, "sudo ifconfig %s %s/24 up", host.Interface, addr)
	b.emit(ModeShellReady, "sudo route add default gw %s %s", gw, host.Interface)
	b.emit(ModeClosed, cmdExit)
	return b.plan, nil
}
