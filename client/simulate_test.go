package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dedis/raffle/state"
	"github.com/dedis/raffle/sys"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, dir string) *sys.Config {
	doc := `
entrance_fee = 10
interval = "30s"
rounds = 3

[[players]]
name = "alice"
balance = 1000
entries = 2

[[players]]
name = "bob"
balance = 1000
`
	cfg, err := sys.ParseConfig(doc)
	require.NoError(t, err)
	cfg.DBPath = filepath.Join(dir, "raffle.db")
	return cfg
}

func TestSimulate(t *testing.T) {
	dir, err := ioutil.TempDir("", "raffle-client")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	cfg := testConfig(t, dir)

	var out bytes.Buffer
	require.NoError(t, simulate(cfg, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	for _, l := range lines {
		require.Contains(t, l, "wins 30")
	}

	// resumes from the store
	out.Reset()
	cfg.Rounds = 1
	require.NoError(t, simulate(cfg, &out))
	require.True(t, strings.HasPrefix(out.String(), "epoch 4:"))

	store, err := state.Open(cfg.DBPath)
	require.NoError(t, err)
	defer store.Close()

	out.Reset()
	require.NoError(t, printStatus(store, &out))
	require.Contains(t, out.String(), "epoch: 5")
	require.Contains(t, out.String(), "state: OPEN")

	out.Reset()
	require.NoError(t, printEvents(store, 0, &out))
	// three entries, one request and one winner per round
	require.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 20)
}

func TestSimulate_NoPlayers(t *testing.T) {
	dir, err := ioutil.TempDir("", "raffle-client")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	cfg := sys.Default()
	cfg.DBPath = filepath.Join(dir, "raffle.db")

	var out bytes.Buffer
	require.NoError(t, simulate(cfg, &out))
	require.Contains(t, out.String(), "no draw")
}

func TestPlay(t *testing.T) {
	dir, err := ioutil.TempDir("", "raffle-client")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	cfg := testConfig(t, dir)
	cfg.Interval.Duration = 20 * time.Millisecond
	cfg.KeeperPeriod.Duration = 5 * time.Millisecond
	cfg.OracleDelay.Duration = 5 * time.Millisecond
	cfg.Rounds = 2

	var out bytes.Buffer
	require.NoError(t, play(context.Background(), cfg, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		require.Contains(t, l, "wins")
	}
}
