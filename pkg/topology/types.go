// Package topology describes the routers and hosts of a replayed network and the
// peering facts the command planner needs: the internal full mesh and the edge rules
// for routers that peer with other autonomous systems.
package topology

import (
	"strings"
)

// Defaults applied by Load when the file leaves a field empty
const (
	DefaultUpdateSource      = "host"
	DefaultHostInterface     = "host"
	DefaultLoopbackInterface = "lo"
	DefaultOSPFArea          = "0"
)

// Topology is the static description of a replayed network.
// It is immutable once loaded and safe to read from several stages.
type Topology struct {
	// Name is a free-form label used in logs and the journal
	Name string `yaml:"name,omitempty"`

	// ASN is the autonomous system shared by every internal router
	ASN uint32 `yaml:"asn"`

	// OSPF holds the supervised address ranges declared on every router
	OSPF OSPF `yaml:"ospf"`

	// BGPNetworks are the prefixes advertised by every BGP speaker
	BGPNetworks []string `yaml:"bgp_networks,omitempty"`

	// UpdateSource is the interface used as BGP update-source for every neighbor
	UpdateSource string `yaml:"update_source,omitempty"`

	// HostInterface is the router interface facing its attached host
	HostInterface string `yaml:"host_interface,omitempty"`

	// LoopbackInterface is the name of the loopback interface in snapshots
	LoopbackInterface string `yaml:"loopback_interface,omitempty"`

	// AddressBearingNode is the router whose loopback keeps its real address
	AddressBearingNode string `yaml:"address_bearing_node,omitempty"`

	// Routers lists the routers in replay order
	Routers []Router `yaml:"routers"`

	// PeerAddresses is the internal full mesh, in declaration order
	PeerAddresses []string `yaml:"peer_addresses,omitempty"`

	// EdgeRules maps a router name to its external peers
	EdgeRules map[string][]EdgePeer `yaml:"edge_rules,omitempty"`
}

// OSPF holds the OSPF process settings shared by all routers
type OSPF struct {
	Area     string   `yaml:"area,omitempty"`
	Networks []string `yaml:"networks"`
}

// Router is one router of the topology
type Router struct {
	// Name is the canonical router identifier (e.g. "NEWY")
	Name string `yaml:"name"`

	// Interface is the name other routers use for their link to this one.
	// Defaults to the lowercase router name.
	Interface string `yaml:"interface,omitempty"`

	// SelfAddress is this router's own full-mesh address, excluded from its neighbors
	SelfAddress string `yaml:"self_address,omitempty"`

	// Host describes the attached host, if any
	Host *Host `yaml:"host,omitempty"`
}

// Host is an end host hanging off a router
type Host struct {
	// Name is the session target (defaults to "<ROUTER>-host")
	Name string `yaml:"name,omitempty"`

	// Interface is the host-side interface toward the router (defaults to the lowercase router name)
	Interface string `yaml:"interface,omitempty"`
}

// EdgePeer is an external BGP peer of an edge router
type EdgePeer struct {
	Neighbor string `yaml:"neighbor"`
	RemoteAS uint32 `yaml:"remote_as"`
}

// applyDefaults fills optional fields with their documented defaults
func (t *Topology) applyDefaults() {
	if t.UpdateSource == "" {
		t.UpdateSource = DefaultUpdateSource
	}
	if t.HostInterface == "" {
		t.HostInterface = DefaultHostInterface
	}
	if t.LoopbackInterface == "" {
		t.LoopbackInterface = DefaultLoopbackInterface
	}
	if t.OSPF.Area == "" {
		t.OSPF.Area = DefaultOSPFArea
	}
	for i := range t.Routers {
		r := &t.Routers[i]
		if r.Interface == "" {
			r.Interface = strings.ToLower(r.Name)
		}
		if r.Host != nil {
			if r.Host.Name == "" {
				r.Host.Name = r.Name + "-host"
			}
			if r.Host.Interface == "" {
				r.Host.Interface = strings.ToLower(r.Name)
			}
		}
	}
}

// RouterNames returns the router identifiers in replay order
func (t *Topology) RouterNames() []string {
	names := make([]string, 0, len(t.Routers))
	for _, r := range t.Routers {
		names = append(names, r.Name)
	}
	return names
}

// Router returns the router entry with the given name
func (t *Topology) Router(name string) (Router, bool) {
	for _, r := range t.Routers {
		if r.Name == name {
			return r, true
		}
	}
	return Router{}, false
}

// RouterFacing returns the set of interface names that lead to another router
func (t *Topology) RouterFacing() map[string]bool {
	set := make(map[string]bool, len(t.Routers))
	for _, r := range t.Routers {
		set[r.Interface] = true
	}
	return set
}

// EdgePeers returns the external peers of a router, nil for internal-only routers
func (t *Topology) EdgePeers(router string) []EdgePeer {
	return t.EdgeRules[router]
}

// IsEdge reports whether the router peers outside the internal domain
func (t *Topology) IsEdge(router string) bool {
	return len(t.EdgeRules[router]) > 0
}

// KeepsLoopbackAddress reports whether the router's loopback keeps its saved address
func (t *Topology) KeepsLoopbackAddress(router string) bool {
	return t.AddressBearingNode != "" && t.AddressBearingNode == router
}

// HostRouters returns the routers that have an attached host, in replay order
func (t *Topology) HostRouters() []Router {
	var out []Router
	for _, r := range t.Routers {
		if r.Host != nil {
			out = append(out, r)
		}
	}
	return out
}

// SelfAddress resolves the router's own full-mesh address. An explicit self_address
// wins; otherwise the first peer address found among ownAddrs (the router's interface
// addresses and router-id, without prefix length) is used. Returns "" when none matches.
func (t *Topology) SelfAddress(router string, ownAddrs []string) string {
	if r, ok := t.Router(router); ok && r.SelfAddress != "" {
		return r.SelfAddress
	}
	own := make(map[string]bool, len(ownAddrs))
	for _, a := range ownAddrs {
		if i := strings.IndexByte(a, '/'); i >= 0 {
			a = a[:i]
		}
		own[a] = true
	}
	for _, p := range t.PeerAddresses {
		if own[p] {
			return p
		}
	}
	return ""
}
