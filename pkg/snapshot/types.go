// Package snapshot recovers a structured router model from the configuration files a
// Quagga router saves with "write file" (zebra.conf.sav, ospfd.conf.sav, bgpd.conf.sav).
package snapshot

import (
	"fmt"
	"strings"

	"github.com/akam1o/arca-replay/pkg/logger"
	"github.com/akam1o/arca-replay/pkg/topology"
)

// Subsystem names used in warnings, errors and logs
const (
	SubsystemZebra = "zebra"
	SubsystemOSPF  = "ospf"
	SubsystemBGP   = "bgp"
)

// Snapshots holds the raw saved configuration of one router.
// A nil slice means the subsystem snapshot was not supplied.
type Snapshots struct {
	Zebra []byte
	OSPF  []byte
	BGP   []byte
}

// RouterModel is the structured view of one router's saved configuration.
// It is built fresh for every router and never shared between iterations.
type RouterModel struct {
	// ID is the canonical router name
	ID string

	// Interfaces in declaration order (zebra first, then interfaces only known to ospfd)
	Interfaces []Interface

	// BGPRouterID is empty when no BGP snapshot was supplied or it declared none
	BGPRouterID string

	// HostPrefix is the bare address prefix of the host-facing interface (e.g. "4.101.0.")
	HostPrefix string
}

// Interface is one interface of a router model. Empty strings mean absent.
type Interface struct {
	Name    string
	Address string
	Cost    string

	// CostDefaulted marks the "0" cost recorded for non router-facing interfaces
	CostDefaulted bool

	Loopback   bool
	HostFacing bool
}

// HasCost reports whether an OSPF cost was read from the snapshot
func (i Interface) HasCost() bool {
	return i.Cost != "" && !i.CostDefaulted
}

// Interface returns the interface with the given name
func (m *RouterModel) Interface(name string) (Interface, bool) {
	for _, iface := range m.Interfaces {
		if iface.Name == name {
			return iface, true
		}
	}
	return Interface{}, false
}

// OwnAddresses returns the router's interface addresses and BGP router-id
func (m *RouterModel) OwnAddresses() []string {
	var out []string
	for _, iface := range m.Interfaces {
		if iface.Address != "" {
			out = append(out, iface.Address)
		}
	}
	if m.BGPRouterID != "" {
		out = append(out, m.BGPRouterID)
	}
	return out
}

// Warning is a soft parse anomaly: it is reported and the field is left absent
type Warning struct {
	Router    string
	Subsystem string
	Line      int
	Message   string
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("%s %s line %d: %s", w.Router, w.Subsystem, w.Line, w.Message)
	}
	return fmt.Sprintf("%s %s: %s", w.Router, w.Subsystem, w.Message)
}

// Options control how snapshots are interpreted for one router
type Options struct {
	// RouterFacing names the interfaces that lead to other routers
	RouterFacing map[string]bool

	// HostInterface is the interface facing the attached host
	HostInterface string

	// Loopback is the loopback interface name
	Loopback string

	// KeepLoopbackAddress keeps the loopback's saved address instead of recording none
	KeepLoopbackAddress bool

	// Log receives parse decisions; nil disables logging
	Log *logger.Logger
}

// OptionsFor derives parse options for a router from the topology
func OptionsFor(topo *topology.Topology, router string, log *logger.Logger) Options {
	return Options{
		RouterFacing:        topo.RouterFacing(),
		HostInterface:       topo.HostInterface,
		Loopback:            topo.LoopbackInterface,
		KeepLoopbackAddress: topo.KeepsLoopbackAddress(router),
		Log:                 log,
	}
}

func (o *Options) applyDefaults() {
	if o.HostInterface == "" {
		o.HostInterface = topology.DefaultHostInterface
	}
	if o.Loopback == "" {
		o.Loopback = topology.DefaultLoopbackInterface
	}
	if o.Log == nil {
		o.Log = logger.Discard()
	}
}

// stripPrefixLen drops a "/len" suffix from an address
func stripPrefixLen(addr string) string {
	if i := strings.IndexByte(addr, '/'); i >= 0 {
		return addr[:i]
	}
	return addr
}
