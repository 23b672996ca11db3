package plan

import (
	"fmt"

	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/snapshot"
	"github.com/akam1o/arca-replay/pkg/topology"
)

// Quagga command texts
const (
	cmdShell       = "vtysh"
	cmdConfigure   = "configure terminal"
	cmdExit        = "exit"
	cmdPersist     = "write file"
	cmdRouterOSPF  = "router ospf"
	cmdNextHopSelf = "next-hop-self"
)

// ForRouter builds the replay plan for a parsed router. The BGP phase is only
// emitted when the model carries a router-id.
func ForRouter(model *snapshot.RouterModel, topo *topology.Topology) (*Plan, error) {
	if model == nil {
		return nil, errors.PlanningError("<nil>", "no router model")
	}
	if topo == nil {
		return nil, errors.PlanningError(model.ID, "no topology")
	}

	b := newBuilder(model.ID, KindRouter)

	b.phase(PhaseModeEntry)
	b.emit(ModeCLI, cmdShell)
	b.emit(ModeConfig, cmdConfigure)

	b.phase(PhaseOSPF)
	b.emit(ModeOSPF, cmdRouterOSPF)
	for _, network := range topo.OSPF.Networks {
		b.emit(ModeOSPF, "network %s area %s", network, topo.OSPF.Area)
	}
	b.emit(ModeConfig, cmdExit)

	b.phase(PhaseInterfaces)
	for _, iface := range model.Interfaces {
		if iface.Loopback {
			continue
		}
		b.emit(ModeInterface, "interface %s", iface.Name)
		if iface.Address != "" {
			b.emit(ModeInterface, "ip address %s", iface.Address)
		}
		if iface.HasCost() && !iface.HostFacing {
			b.emit(ModeInterface, "ip ospf cost %s", iface.Cost)
		}
		b.emit(ModeConfig, cmdExit)
	}

	if model.BGPRouterID != "" {
		if err := planBGP(b, model, topo); err != nil {
			return nil, err
		}
	}

	b.phase(PhaseCommit)
	b.emit(ModeCLI, cmdExit)
	b.emit(ModeCLI, cmdPersist)
	b.emit(ModeShellReady, cmdExit)
	b.emit(ModeClosed, cmdExit)

	return b.plan, nil
}

func planBGP(b *builder, model *snapshot.RouterModel, topo *topology.Topology) error {
	var self string
	if len(topo.PeerAddresses) > 0 {
		self = topo.SelfAddress(model.ID, model.OwnAddresses())
		if self == "" {
			return errors.New(errors.ErrCodePlanning,
				fmt.Sprintf("Cannot build command plan for %s: cannot resolve the router's own full-mesh address", model.ID),
				"No configured peer address matches the router-id or an interface address",
				"Only the BGP phase needs this address; set self_address for the router in the topology, "+
					"or remove its bgp router-id to replay OSPF and interfaces alone")
		}
	}

	b.phase(PhaseBGP)
	b.emit(ModeBGP, "router bgp %d", topo.ASN)
	b.emit(ModeBGP, "bgp router-id %s", model.BGPRouterID)
	for _, network := range topo.BGPNetworks {
		b.emit(ModeBGP, "network %s", network)
	}
	for _, peer := range topo.PeerAddresses {
		if peer == self {
			continue
		}
		neighbor(b, peer, topo.ASN, topo.UpdateSource)
	}
	for _, edge := range topo.EdgePeers(model.ID) {
		neighbor(b, edge.Neighbor, edge.RemoteAS, topo.UpdateSource)
	}
	b.emit(ModeConfig, cmdExit)
	return nil
}

func neighbor(b *builder, addr string, asn uint32, updateSource string) {
	b.emit(ModeBGP, "neighbor %s remote-as %d", addr, asn)
	b.emit(ModeBGP, "neighbor %s update-source %s", addr, updateSource)
	b.emit(ModeBGP, "neighbor %s %s", addr, cmdNextHopSelf)
}
