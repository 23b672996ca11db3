package snapshot

import (
	"context"
	"os"
	"path/filepath"

	"github.com/akam1o/arca-replay/pkg/errors"
)

// Default snapshot file names as written by Quagga's "write file"
const (
	DefaultZebraFile = "zebra.conf.sav"
	DefaultOSPFFile  = "ospfd.conf.sav"
	DefaultBGPFile   = "bgpd.conf.sav"
)

// Source returns the saved snapshots of a router
type Source interface {
	Load(ctx context.Context, routerID string) (*Snapshots, error)
}

// DirSource reads snapshots from <Root>/<router>/<file>
type DirSource struct {
	Root      string
	ZebraFile string
	OSPFFile  string
	BGPFile   string
}

// NewDirSource creates a DirSource with the default file names
func NewDirSource(root string) *DirSource {
	return &DirSource{
		Root:      root,
		ZebraFile: DefaultZebraFile,
		OSPFFile:  DefaultOSPFFile,
		BGPFile:   DefaultBGPFile,
	}
}

// Load reads the router's snapshots. The zebra snapshot is required; missing
// OSPF and BGP snapshots are left nil.
func (s *DirSource) Load(ctx context.Context, routerID string) (*Snapshots, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.Root, routerID)
	snaps := &Snapshots{}

	zebra, err := s.read(routerID, SubsystemZebra, filepath.Join(dir, orDefault(s.ZebraFile, DefaultZebraFile)), true)
	if err != nil {
		return nil, err
	}
	snaps.Zebra = zebra

	if snaps.OSPF, err = s.read(routerID, SubsystemOSPF, filepath.Join(dir, orDefault(s.OSPFFile, DefaultOSPFFile)), false); err != nil {
		return nil, err
	}
	if snaps.BGP, err = s.read(routerID, SubsystemBGP, filepath.Join(dir, orDefault(s.BGPFile, DefaultBGPFile)), false); err != nil {
		return nil, err
	}
	return snaps, nil
}

func (s *DirSource) read(router, subsystem, path string, required bool) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if data == nil {
			data = []byte{}
		}
		return data, nil
	}
	if os.IsNotExist(err) {
		if required {
			return nil, errors.SnapshotNotFound(router, subsystem, path)
		}
		return nil, nil
	}
	return nil, errors.SnapshotReadError(router, subsystem, path, err)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// MapSource serves snapshots from memory, keyed by router
type MapSource map[string]*Snapshots

// Load returns the stored snapshots or SNAPSHOT_NOT_FOUND
func (m MapSource) Load(ctx context.Context, routerID string) (*Snapshots, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snaps, ok := m[routerID]
	if !ok || snaps == nil || snaps.Zebra == nil {
		return nil, errors.SnapshotNotFound(routerID, SubsystemZebra, "memory")
	}
	return snaps, nil
}
