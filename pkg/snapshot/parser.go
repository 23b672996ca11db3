package snapshot

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/logger"
)

// hostSuffixWidth is the width of the subnet suffix zebra saves after the
// host-facing address ("1/24" in "4.101.0.1/24")
const hostSuffixWidth = 4

// Stanza is a declaration line and the indented lines that belong to it
type Stanza struct {
	Decl Line
	Body []Line
}

// Stanzas splits a snapshot into its declarations
func Stanzas(data []byte) ([]Stanza, error) {
	p := newLineParser(data)
	var out []Stanza
	for {
		st, ok := p.nextStanza()
		if !ok {
			break
		}
		out = append(out, st)
	}
	return out, p.lexer.Err()
}

// lineParser walks one snapshot with a current/peek lookahead
type lineParser struct {
	lexer   *Lexer
	current Line
	peek    Line
}

func newLineParser(data []byte) *lineParser {
	p := &lineParser{lexer: NewLexerBytes(data)}
	// Read two lines to initialize current and peek
	p.nextLine()
	p.nextLine()
	return p
}

func (p *lineParser) nextLine() {
	p.current = p.peek
	p.peek = p.lexer.NextLine()
}

// nextStanza returns the next declaration together with its body.
// Comments and body lines without a declaration are skipped.
func (p *lineParser) nextStanza() (Stanza, bool) {
	for p.current.Type != LineEOF && p.current.Type != LineDecl {
		p.nextLine()
	}
	if p.current.Type == LineEOF {
		return Stanza{}, false
	}

	st := Stanza{Decl: p.current}
	p.nextLine()
	for p.current.Type == LineBody {
		st.Body = append(st.Body, p.current)
		p.nextLine()
	}
	return st, true
}

// modelBuilder accumulates one router's model while its snapshots are parsed
type modelBuilder struct {
	opts     Options
	log      *logger.Logger
	model    *RouterModel
	index    map[string]int
	warnings []Warning
}

// Parse builds the router model from its saved snapshots. A missing zebra snapshot
// is a hard failure for the router; malformed lines are returned as warnings.
func Parse(routerID string, snaps *Snapshots, opts Options) (*RouterModel, []Warning, error) {
	opts.applyDefaults()
	if snaps == nil || snaps.Zebra == nil {
		return nil, nil, errors.ParseError(routerID, fmt.Errorf("%s snapshot not supplied", SubsystemZebra))
	}

	b := &modelBuilder{
		opts:  opts,
		log:   opts.Log.WithField("router", routerID),
		model: &RouterModel{ID: routerID},
		index: make(map[string]int),
	}

	if err := b.parseZebra(snaps.Zebra); err != nil {
		return nil, b.warnings, errors.ParseError(routerID, err)
	}
	if snaps.OSPF != nil {
		if err := b.parseOSPF(snaps.OSPF); err != nil {
			return nil, b.warnings, errors.ParseError(routerID, err)
		}
	}
	if snaps.BGP != nil {
		if err := b.parseBGP(snaps.BGP); err != nil {
			return nil, b.warnings, errors.ParseError(routerID, err)
		}
	}

	b.log.Info("Parsed router snapshots",
		"interfaces", len(b.model.Interfaces),
		"bgp_router_id", b.model.BGPRouterID,
		"host_prefix", b.model.HostPrefix,
		"warnings", len(b.warnings))
	return b.model, b.warnings, nil
}

// iface returns the interface with the given name, declaring it if needed
func (b *modelBuilder) iface(name string) *Interface {
	if i, ok := b.index[name]; ok {
		return &b.model.Interfaces[i]
	}
	b.model.Interfaces = append(b.model.Interfaces, Interface{
		Name:       name,
		Loopback:   name == b.opts.Loopback,
		HostFacing: name == b.opts.HostInterface,
	})
	b.index[name] = len(b.model.Interfaces) - 1
	return &b.model.Interfaces[len(b.model.Interfaces)-1]
}

func (b *modelBuilder) warn(subsystem string, line int, format string, args ...interface{}) {
	w := Warning{
		Router:    b.model.ID,
		Subsystem: subsystem,
		Line:      line,
		Message:   fmt.Sprintf(format, args...),
	}
	b.warnings = append(b.warnings, w)
	b.log.Warn("Snapshot warning", "subsystem", subsystem, "line", line, "message", w.Message)
}

// parseZebra discovers interfaces and their addresses
func (b *modelBuilder) parseZebra(data []byte) error {
	p := newLineParser(data)
	for {
		st, ok := p.nextStanza()
		if !ok {
			break
		}
		if !st.Decl.Is("interface") {
			continue
		}
		if len(st.Decl.Fields) < 2 {
			b.warn(SubsystemZebra, st.Decl.Number, "interface declaration without a name")
			continue
		}

		iface := b.iface(st.Decl.Fields[1])
		b.log.Debug("Interface declared", "subsystem", SubsystemZebra, "interface", iface.Name)

		for _, line := range st.Body {
			if !line.Is("ip", "address") {
				continue
			}
			if len(line.Fields) < 3 {
				b.warn(SubsystemZebra, line.Number, "interface %s: address marker without an address", iface.Name)
				break
			}
			b.attachAddress(iface, line)
			break
		}
	}
	return p.lexer.Err()
}

func (b *modelBuilder) attachAddress(iface *Interface, line Line) {
	token := line.Fields[2]

	switch {
	case iface.Loopback && !b.opts.KeepLoopbackAddress:
		b.log.Debug("Loopback address dropped", "interface", iface.Name, "address", token)
		return

	case iface.HostFacing:
		prefix, ok := hostPrefix(token)
		if !ok {
			b.warn(SubsystemZebra, line.Number, "interface %s: cannot derive host prefix from %q", iface.Name, token)
		} else {
			b.model.HostPrefix = prefix
			b.log.Debug("Host prefix captured", "interface", iface.Name, "prefix", prefix)
		}
	}

	if iface.Address != "" {
		return
	}
	iface.Address = token
	b.log.Debug("Address attached", "interface", iface.Name, "address", token)
}

// hostPrefix strips the fixed-width suffix from a saved host-facing address
func hostPrefix(token string) (string, bool) {
	if len(token) <= hostSuffixWidth {
		return "", false
	}
	prefix := token[:len(token)-hostSuffixWidth]
	if !strings.HasSuffix(prefix, ".") {
		return "", false
	}
	addr, err := netip.ParseAddr(prefix + "1")
	if err != nil || !addr.Is4() {
		return "", false
	}
	return prefix, true
}

// parseOSPF records per-interface OSPF costs
func (b *modelBuilder) parseOSPF(data []byte) error {
	p := newLineParser(data)
	for {
		st, ok := p.nextStanza()
		if !ok {
			break
		}
		if !st.Decl.Is("interface") || len(st.Decl.Fields) < 2 {
			continue
		}

		iface := b.iface(st.Decl.Fields[1])
		if !b.opts.RouterFacing[iface.Name] {
			iface.Cost = "0"
			iface.CostDefaulted = true
			b.log.Debug("Cost defaulted", "interface", iface.Name)
			continue
		}

		cost, line, found := findCost(st.Body)
		switch {
		case !found:
			b.warn(SubsystemOSPF, st.Decl.Number, "interface %s: no OSPF cost", iface.Name)
		case !isNumeric(cost):
			b.warn(SubsystemOSPF, line, "interface %s: OSPF cost %q is not numeric", iface.Name, cost)
		default:
			iface.Cost = cost
			iface.CostDefaulted = false
			b.log.Debug("Cost recorded", "interface", iface.Name, "cost", cost)
		}
	}
	return p.lexer.Err()
}

// findCost looks for a "cost <n>" pair in a stanza body
func findCost(body []Line) (string, int, bool) {
	for _, line := range body {
		for i, f := range line.Fields {
			if f != "cost" {
				continue
			}
			if i+1 < len(line.Fields) {
				return line.Fields[i+1], line.Number, true
			}
			return "", line.Number, true
		}
	}
	return "", 0, false
}

func isNumeric(s string) bool {
	_, err := strconv.ParseUint(s, 10, 32)
	return err == nil
}

// parseBGP finds the router-id; the first declaration wins
func (b *modelBuilder) parseBGP(data []byte) error {
	lexer := NewLexerBytes(data)
	for {
		line := lexer.NextLine()
		if line.Type == LineEOF {
			break
		}
		if !line.Is("bgp", "router-id") {
			continue
		}

		if len(line.Fields) < 3 {
			b.warn(SubsystemBGP, line.Number, "router-id marker without an address")
			return lexer.Err()
		}
		id := line.Fields[2]
		if _, err := netip.ParseAddr(id); err != nil {
			b.warn(SubsystemBGP, line.Number, "invalid router-id %q", id)
			return lexer.Err()
		}
		b.model.BGPRouterID = id
		b.log.Debug("BGP router-id found", "router_id", id)
		return lexer.Err()
	}

	if err := lexer.Err(); err != nil {
		return err
	}
	b.warn(SubsystemBGP, 0, "snapshot has no bgp router-id")
	return nil
}
