package utils

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/kyber/v3/util/key"
)

func TestReadRoster(t *testing.T) {
	dir, err := ioutil.TempDir("", "raffle-utils")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	doc := ""
	var keys []*key.Pair
	for i := 0; i < 2; i++ {
		kp := key.NewKeyPair(cothority.Suite)
		keys = append(keys, kp)
		pub, err := encoding.PointToStringHex(cothority.Suite, kp.Public)
		require.NoError(t, err)
		doc += fmt.Sprintf("[[servers]]\n  Address = \"tcp://127.0.0.1:%d\"\n  Suite = \"Ed25519\"\n  Public = \"%s\"\n  Description = \"node %d\"\n", 7770+2*i, pub, i)
	}
	path := filepath.Join(dir, "public.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte(doc), 0600))

	roster, err := ReadRoster(path)
	require.NoError(t, err)
	require.Len(t, roster.List, 2)
	require.True(t, roster.List[1].Public.Equal(keys[1].Public))

	si, err := Node(path, 0)
	require.NoError(t, err)
	require.True(t, si.Public.Equal(keys[0].Public))
	_, err = Node(path, 2)
	require.Error(t, err)

	_, err = ReadRoster(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
}
