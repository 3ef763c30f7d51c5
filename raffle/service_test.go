package raffle

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dedis/raffle/apps/lottery"
	"github.com/dedis/raffle/easyrand"
	"github.com/dedis/raffle/keeper"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

func TestService(t *testing.T) {
	local := onet.NewTCPTest(cothority.Suite)
	_, roster, _ := local.GenTree(2, true)
	defer local.CloseAll()

	dir, err := ioutil.TempDir("", "raffle-service")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	rcl := easyrand.NewClient(roster.List[0])
	pub, err := rcl.InitOracle("")
	require.NoError(t, err)
	pubBuf, err := easyrand.PublicToBytes(pub)
	require.NoError(t, err)

	cl := NewClient(roster.List[1])
	_, err = cl.GetState()
	require.Error(t, err)

	operator := key.NewKeyPair(cothority.Suite)
	reply, err := cl.InitRaffle(&InitRaffleRequest{
		EntranceFee:  10,
		NumWords:     1,
		Vault:        "vault",
		Oracle:       roster.List[0],
		OraclePublic: pubBuf,
		Operator:     operator.Public,
		DBPath:       filepath.Join(dir, "raffle.db"),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), reply.Epoch)
	require.False(t, reply.Restored)

	// the oracle key and the operator are fixed once the raffle runs
	other, err := easyrand.PublicToBytes(easyrand.NewOracle().Public())
	require.NoError(t, err)
	_, err = cl.InitRaffle(&InitRaffleRequest{
		EntranceFee:  1,
		Vault:        "other",
		Oracle:       roster.List[0],
		OraclePublic: other,
		Operator:     key.NewKeyPair(cothority.Suite).Public,
	})
	require.Error(t, err)

	players := []*key.Pair{key.NewKeyPair(cothority.Suite), key.NewKeyPair(cothority.Suite)}
	var addrs []string
	for _, kp := range players {
		addr := AddressOf(kp.Public)
		addrs = append(addrs, addr)
		bal, err := cl.Deposit(addr, 100)
		require.NoError(t, err)
		require.Equal(t, uint64(100), bal)
	}

	_, err = cl.Enter(players[0], 5)
	require.Error(t, err)
	for i, kp := range players {
		er, err := cl.Enter(kp, 10)
		require.NoError(t, err)
		require.Equal(t, i+1, er.Players)
	}

	// a signature from another key does not enter
	sig, err := key.NewKeyPair(cothority.Suite).Private.MarshalBinary()
	require.NoError(t, err)
	err = cl.SendProtobuf(roster.List[1], &EnterRequest{Public: players[0].Public, Amount: 10, Signature: sig}, &EnterReply{})
	require.Error(t, err)

	st, err := cl.CheckUpkeepStatus()
	require.NoError(t, err)
	require.True(t, st.Needed)
	require.True(t, st.HasPlayers)

	k := keeper.New(cl, time.Millisecond)
	res, err := k.Tick()
	require.NoError(t, err)
	require.Equal(t, keeper.Performed, res)

	state, err := cl.GetState()
	require.NoError(t, err)
	require.Equal(t, int(lottery.Calculating), state.Snapshot.State)
	require.Equal(t, uint64(20), state.VaultBalance)
	require.Equal(t, "vault", state.Snapshot.Vault)

	pending, err := rcl.GetPending()
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, pending)
	fr, err := rcl.Fulfill(0)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, fr.Delivered)

	state, err = cl.WaitEpoch(2, 5*time.Second)
	require.NoError(t, err)
	require.True(t, state.Snapshot.HasWinner)
	require.Contains(t, addrs, state.Snapshot.WinnerAddress)
	require.Equal(t, uint64(20), state.Snapshot.WinnerAmount)
	require.Equal(t, uint64(0), state.VaultBalance)
	require.Empty(t, state.Snapshot.Participants)

	err = cl.PerformUpkeep(nil)
	require.True(t, xerrors.Is(err, lottery.ErrUpkeepNotNeeded))
	res, err = k.Tick()
	require.NoError(t, err)
	require.Equal(t, keeper.Idle, res)

	_, err = cl.RetryPayout(operator)
	require.Error(t, err)
	_, err = cl.RetryPayout(players[0])
	require.Error(t, err)

	events, err := cl.GetEvents(0)
	require.NoError(t, err)
	require.Len(t, events, 4)
	require.Equal(t, lottery.WinnerPicked, events[3].Type)
	require.Equal(t, lottery.Address(state.Snapshot.WinnerAddress), events[3].Winner)
	tail, err := cl.GetEvents(3)
	require.NoError(t, err)
	require.Len(t, tail, 1)
}

func TestService_ResumeUnknownRequest(t *testing.T) {
	e := newEnv(t)
	defer os.RemoveAll(e.dir)
	e.draw(t, "alice")
	require.NoError(t, e.r.Close())

	local := onet.NewTCPTest(cothority.Suite)
	_, roster, _ := local.GenTree(2, true)
	defer local.CloseAll()

	pub, err := easyrand.NewClient(roster.List[0]).InitOracle("")
	require.NoError(t, err)
	pubBuf, err := easyrand.PublicToBytes(pub)
	require.NoError(t, err)
	req := &InitRaffleRequest{
		EntranceFee:  10,
		Vault:        "vault",
		Oracle:       roster.List[0],
		OraclePublic: pubBuf,
		Operator:     key.NewKeyPair(cothority.Suite).Public,
		DBPath:       filepath.Join(e.dir, "raffle.db"),
	}
	cl := NewClient(roster.List[1])
	_, err = cl.InitRaffle(req)
	require.Error(t, err)
	_, err = cl.GetState()
	require.Error(t, err)

	req.DBPath = filepath.Join(e.dir, "fresh.db")
	reply, err := cl.InitRaffle(req)
	require.NoError(t, err)
	require.False(t, reply.Restored)
}
