package utils

import (
	"os"

	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/app"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
)

// ReadRoster reads a group toml file.
func ReadRoster(path string) (*onet.Roster, error) {
	file, err := os.Open(path)
	if err != nil {
		log.Errorf("ReadRoster error: %v", err)
		return nil, err
	}
	defer file.Close()

	group, err := app.ReadGroupDescToml(file)
	if err != nil {
		log.Errorf("ReadRoster error: %v", err)
		return nil, err
	}
	if group.Roster == nil || len(group.Roster.List) == 0 {
		return nil, xerrors.Errorf("empty roster in %s", path)
	}
	return group.Roster, nil
}

// Node returns the server at index i of the roster in path.
func Node(path string, i int) (*network.ServerIdentity, error) {
	roster, err := ReadRoster(path)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(roster.List) {
		return nil, xerrors.Errorf("index %d outside a roster of %d", i, len(roster.List))
	}
	return roster.List[i], nil
}
