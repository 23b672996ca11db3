package topology

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/akam1o/arca-replay/pkg/errors"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate performs semantic validation on the topology
func (t *Topology) Validate() error {
	if err := t.validate(); err != nil {
		return errors.Wrap(
			err,
			errors.ErrCodeTopologyValidation,
			"Topology validation failed",
			"The topology contains invalid or inconsistent values",
			"Review the error details and fix the topology file",
		)
	}
	return nil
}

func (t *Topology) validate() error {
	if t.ASN == 0 {
		return &ValidationError{Field: "asn", Message: "autonomous system number is required"}
	}
	if len(t.Routers) == 0 {
		return &ValidationError{Field: "routers", Message: "at least one router is required"}
	}
	if len(t.OSPF.Networks) == 0 {
		return &ValidationError{Field: "ospf.networks", Message: "at least one supervised network is required"}
	}
	for i, n := range t.OSPF.Networks {
		if _, err := netip.ParsePrefix(n); err != nil {
			return &ValidationError{Field: fmt.Sprintf("ospf.networks[%d]", i), Message: fmt.Sprintf("invalid prefix %q", n)}
		}
	}
	if err := validateArea(t.OSPF.Area); err != nil {
		return err
	}
	for i, n := range t.BGPNetworks {
		if _, err := netip.ParsePrefix(n); err != nil {
			return &ValidationError{Field: fmt.Sprintf("bgp_networks[%d]", i), Message: fmt.Sprintf("invalid prefix %q", n)}
		}
	}
	if strings.ContainsAny(t.UpdateSource, " \t") {
		return &ValidationError{Field: "update_source", Message: "interface name cannot contain whitespace"}
	}

	seen := make(map[string]bool, len(t.Routers))
	facing := make(map[string]string, len(t.Routers))
	for i, r := range t.Routers {
		field := fmt.Sprintf("routers[%d]", i)
		if r.Name == "" {
			return &ValidationError{Field: field + ".name", Message: "router name cannot be empty"}
		}
		if seen[r.Name] {
			return &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate router %q", r.Name)}
		}
		seen[r.Name] = true

		if other, ok := facing[r.Interface]; ok {
			return &ValidationError{
				Field:   field + ".interface",
				Message: fmt.Sprintf("interface %q already used by router %q", r.Interface, other),
			}
		}
		facing[r.Interface] = r.Name

		if r.SelfAddress != "" {
			if _, err := netip.ParseAddr(r.SelfAddress); err != nil {
				return &ValidationError{Field: field + ".self_address", Message: fmt.Sprintf("invalid address %q", r.SelfAddress)}
			}
		}
	}

	peers := make(map[string]bool, len(t.PeerAddresses))
	for i, p := range t.PeerAddresses {
		if _, err := netip.ParseAddr(p); err != nil {
			return &ValidationError{Field: fmt.Sprintf("peer_addresses[%d]", i), Message: fmt.Sprintf("invalid address %q", p)}
		}
		if peers[p] {
			return &ValidationError{Field: fmt.Sprintf("peer_addresses[%d]", i), Message: fmt.Sprintf("duplicate address %q", p)}
		}
		peers[p] = true
	}

	for router, rules := range t.EdgeRules {
		if !seen[router] {
			return &ValidationError{Field: "edge_rules." + router, Message: "edge rule for a router not in the topology"}
		}
		for i, rule := range rules {
			field := fmt.Sprintf("edge_rules.%s[%d]", router, i)
			if _, err := netip.ParseAddr(rule.Neighbor); err != nil {
				return &ValidationError{Field: field + ".neighbor", Message: fmt.Sprintf("invalid address %q", rule.Neighbor)}
			}
			if rule.RemoteAS == 0 {
				return &ValidationError{Field: field + ".remote_as", Message: "remote AS is required"}
			}
			if rule.RemoteAS == t.ASN {
				return &ValidationError{Field: field + ".remote_as", Message: "external peer cannot share the internal AS"}
			}
		}
	}

	if t.AddressBearingNode != "" && !seen[t.AddressBearingNode] {
		return &ValidationError{Field: "address_bearing_node", Message: fmt.Sprintf("router %q not in the topology", t.AddressBearingNode)}
	}

	return nil
}

// validateArea accepts an area in integer ("0") or dotted decimal ("0.0.0.0") form
func validateArea(area string) error {
	if area == "" {
		return nil
	}
	var n uint32
	if _, err := fmt.Sscanf(area, "%d", &n); err == nil && fmt.Sprintf("%d", n) == area {
		return nil
	}
	if addr, err := netip.ParseAddr(area); err == nil && addr.Is4() {
		return nil
	}
	return &ValidationError{Field: "ospf.area", Message: fmt.Sprintf("invalid area %q (must be like '0' or '0.0.0.0')", area)}
}
