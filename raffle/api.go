package raffle

import (
	"strings"
	"time"

	"github.com/dedis/raffle/apps/lottery"
	"github.com/dedis/raffle/sys"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
)

// Client talks to the raffle service of one node.
type Client struct {
	*onet.Client
	node *network.ServerIdentity
}

// NewClient returns a client for the raffle running on node.
func NewClient(node *network.ServerIdentity) *Client {
	return &Client{Client: onet.NewClient(cothority.Suite, ServiceName), node: node}
}

// InitRaffle starts or resumes the raffle.
func (c *Client) InitRaffle(req *InitRaffleRequest) (*InitRaffleReply, error) {
	reply := &InitRaffleReply{}
	err := c.SendProtobuf(c.node, req, reply)
	return reply, err
}

// Deposit credits addr with amount and returns the new balance.
func (c *Client) Deposit(addr string, amount uint64) (uint64, error) {
	reply := &DepositReply{}
	err := c.SendProtobuf(c.node, &DepositRequest{Address: addr, Amount: amount}, reply)
	return reply.Balance, err
}

// Enter pays amount from the account of kp. The entry is signed for the
// current epoch and player count, fetched first.
func (c *Client) Enter(kp *key.Pair, amount uint64) (*EnterReply, error) {
	st, err := c.GetState()
	if err != nil {
		return nil, err
	}
	msg, err := sys.EntryMessage(kp.Public, st.Snapshot.Epoch, len(st.Snapshot.Participants), amount)
	if err != nil {
		return nil, err
	}
	sig, err := sys.Sign(kp.Private, msg)
	if err != nil {
		return nil, err
	}
	reply := &EnterReply{}
	err = c.SendProtobuf(c.node, &EnterRequest{Public: kp.Public, Amount: amount, Signature: sig}, reply)
	return reply, err
}

// CheckUpkeepStatus returns the full upkeep answer.
func (c *Client) CheckUpkeepStatus() (*CheckUpkeepReply, error) {
	reply := &CheckUpkeepReply{}
	err := c.SendProtobuf(c.node, &CheckUpkeepRequest{}, reply)
	return reply, err
}

// CheckUpkeep implements keeper.Upkeeper.
func (c *Client) CheckUpkeep() (bool, []byte, error) {
	reply, err := c.CheckUpkeepStatus()
	if err != nil {
		return false, nil, err
	}
	return reply.Needed, reply.PerformData, nil
}

// PerformUpkeep implements keeper.Upkeeper. A refusal because no upkeep is
// needed matches lottery.ErrUpkeepNotNeeded.
func (c *Client) PerformUpkeep(performData []byte) error {
	reply := &PerformUpkeepReply{}
	err := c.SendProtobuf(c.node, &PerformUpkeepRequest{PerformData: performData}, reply)
	if err != nil && strings.Contains(err.Error(), lottery.ErrUpkeepNotNeeded.Error()) {
		return xerrors.Errorf("%v: %w", err, lottery.ErrUpkeepNotNeeded)
	}
	return err
}

// RetryPayout asks the raffle to try the halted transfer again. op must be
// the operator key given at init.
func (c *Client) RetryPayout(op *key.Pair) (string, error) {
	st, err := c.GetState()
	if err != nil {
		return "", err
	}
	sig, err := sys.Sign(op.Private, sys.OperatorMessage(retryOp, st.Snapshot.Epoch))
	if err != nil {
		return "", err
	}
	reply := &RetryPayoutReply{}
	err = c.SendProtobuf(c.node, &RetryPayoutRequest{Signature: sig}, reply)
	return reply.Winner, err
}

// GetState returns the snapshot of the raffle.
func (c *Client) GetState() (*GetStateReply, error) {
	reply := &GetStateReply{}
	err := c.SendProtobuf(c.node, &GetStateRequest{}, reply)
	return reply, err
}

// GetEvents returns the events above since.
func (c *Client) GetEvents(since uint64) ([]lottery.Event, error) {
	reply := &GetEventsReply{}
	if err := c.SendProtobuf(c.node, &GetEventsRequest{Since: since}, reply); err != nil {
		return nil, err
	}
	events := make([]lottery.Event, len(reply.Events))
	for i := range reply.Events {
		events[i] = reply.Events[i].Event()
	}
	return events, nil
}

// WaitEpoch polls until the raffle reaches epoch or the timeout expires.
func (c *Client) WaitEpoch(epoch uint64, timeout time.Duration) (*GetStateReply, error) {
	deadline := time.Now().Add(timeout)
	for {
		st, err := c.GetState()
		if err != nil {
			return nil, err
		}
		if st.Snapshot.Epoch >= epoch {
			return st, nil
		}
		if time.Now().After(deadline) {
			return st, xerrors.Errorf("epoch %d not reached, still at %d", epoch, st.Snapshot.Epoch)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// AddressOf returns the account address of a public key.
func AddressOf(pub kyber.Point) string {
	addr, err := sys.Address(pub)
	if err != nil {
		return ""
	}
	return addr
}
