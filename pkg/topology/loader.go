package topology

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/logger"
)

// Load reads, decodes and validates a topology file
// Note: This function logs diagnostic information if a logger is provided
func Load(path string, log *logger.Logger) (*Topology, error) {
	if log != nil {
		log.Debug("Loading topology", slog.String("path", path))
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.TopologyNotFound(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(
			err,
			errors.ErrCodeConfigPermission,
			fmt.Sprintf("Failed to read topology: %s", path),
			"Permission denied or file is not readable",
			"Check file permissions with 'ls -l' and ensure the file is readable",
		)
	}

	topo, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if log != nil {
		log.Info("Topology loaded",
			slog.String("name", topo.Name),
			slog.Int("router_count", len(topo.Routers)),
			slog.Int("peer_count", len(topo.PeerAddresses)),
			slog.Int("edge_router_count", len(topo.EdgeRules)),
		)
	}

	return topo, nil
}

// Decode parses a topology document, applies defaults and validates it
func Decode(r io.Reader) (*Topology, error) {
	// Strict mode rejects unknown fields (typo detection)
	var topo Topology
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&topo); err != nil {
		return nil, errors.Wrap(
			err,
			errors.ErrCodeTopologyParseError,
			"Failed to parse topology",
			"Invalid YAML syntax, structure, or unknown fields (check for typos)",
			"Compare the file against examples/internet2-topology.yaml",
		)
	}

	topo.applyDefaults()

	if err := topo.Validate(); err != nil {
		return nil, err
	}

	return &topo, nil
}
