package sys

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dedis/raffle/apps/lottery"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"golang.org/x/xerrors"
)

func TestConfig_Defaults(t *testing.T) {
	c, err := ParseConfig("")
	require.NoError(t, err)
	require.Equal(t, Default(), c)
	require.Equal(t, uint64(lottery.Ether/100), c.EntranceFee)
	require.Equal(t, DefaultInterval, c.Interval.Duration)

	lc := c.LotteryConfig()
	require.Equal(t, lottery.Address("vault"), lc.Vault)
	require.Equal(t, uint32(1), lc.NumWords)
}

func TestConfig_Parse(t *testing.T) {
	doc := `
entrance_fee = 100
interval = "2s"
num_words = 3
vault = "pot"
keeper_period = "10ms"
rounds = 4

[[players]]
name = "alice"
balance = 1000
entries = 2

[[players]]
name = "bob"
balance = 500
`
	c, err := ParseConfig(doc)
	require.NoError(t, err)
	require.Equal(t, uint64(100), c.EntranceFee)
	require.Equal(t, 2*time.Second, c.Interval.Duration)
	require.Equal(t, uint32(3), c.NumWords)
	require.Equal(t, "pot", c.Vault)
	require.Equal(t, 10*time.Millisecond, c.KeeperPeriod.Duration)
	require.Equal(t, DefaultOracleDelay, c.OracleDelay.Duration)
	require.Equal(t, 4, c.Rounds)
	require.Len(t, c.Players, 2)
	require.Equal(t, 2, c.Players[0].Entries)
	require.Equal(t, 1, c.Players[1].Entries)
}

func TestConfig_Invalid(t *testing.T) {
	for _, doc := range []string{
		`interval = "-1s"`,
		`rounds = -1`,
		"[[players]]\nbalance = 1",
		"[[players]]\nname = \"vault\"",
		"[[players]]\nname = \"a\"\n[[players]]\nname = \"a\"",
	} {
		_, err := ParseConfig(doc)
		require.True(t, xerrors.Is(err, ErrInvalidConfig), doc)
	}
	_, err := ParseConfig(`interval = "soon"`)
	require.Error(t, err)
}

func TestConfig_LoadFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "raffle-sys")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "raffle.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte(`num_words = 2`), 0600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, uint32(2), c.NumWords)

	_, err = LoadConfig(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
}

func TestAuth(t *testing.T) {
	kp := key.NewKeyPair(cothority.Suite)
	addr, err := Address(kp.Public)
	require.NoError(t, err)
	pub, err := PointFromAddress(addr)
	require.NoError(t, err)
	require.True(t, pub.Equal(kp.Public))

	msg, err := EntryMessage(kp.Public, 1, 0, 10)
	require.NoError(t, err)
	sig, err := Sign(kp.Private, msg)
	require.NoError(t, err)
	require.NoError(t, VerifyAuthentication(kp.Public, msg, sig))

	other, err := EntryMessage(kp.Public, 1, 1, 10)
	require.NoError(t, err)
	require.True(t, xerrors.Is(VerifyAuthentication(kp.Public, other, sig), ErrBadSignature))
	require.True(t, xerrors.Is(VerifyAuthentication(nil, msg, sig), ErrBadSignature))

	_, err = PointFromAddress("not hex")
	require.Error(t, err)
}
