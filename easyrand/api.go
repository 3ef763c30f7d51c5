package easyrand

import (
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/network"
)

// Client talks to the easyrand service of a single node.
type Client struct {
	*onet.Client
	node *network.ServerIdentity
}

// NewClient returns a client for the oracle running on node.
func NewClient(node *network.ServerIdentity) *Client {
	return &Client{Client: onet.NewClient(cothority.Suite, ServiceName), node: node}
}

// InitOracle sets up the oracle key and returns the verification key.
func (c *Client) InitOracle(hexKey string) (kyber.Point, error) {
	reply := &InitOracleReply{}
	err := c.SendProtobuf(c.node, &InitOracleRequest{Key: hexKey}, reply)
	if err != nil {
		return nil, err
	}
	return PublicFromBytes(reply.Public)
}

// RequestRandomness registers a request whose fulfillment is sent to the
// given consumer service.
func (c *Client) RequestRandomness(consumer *network.ServerIdentity, service string, seed []byte, numWords uint32) (uint64, error) {
	req := &RandomnessRequest{
		Consumer:        consumer,
		ConsumerService: service,
		Seed:            seed,
		NumWords:        numWords,
	}
	reply := &RandomnessReply{}
	err := c.SendProtobuf(c.node, req, reply)
	return reply.RequestID, err
}

// Fulfill delivers request id, or every pending request when id is zero.
func (c *Client) Fulfill(id uint64) (*FulfillReply, error) {
	reply := &FulfillReply{}
	err := c.SendProtobuf(c.node, &FulfillRequest{RequestID: id}, reply)
	return reply, err
}

// GetPending ...
func (c *Client) GetPending() ([]uint64, error) {
	reply := &GetPendingReply{}
	err := c.SendProtobuf(c.node, &GetPendingRequest{}, reply)
	return reply.Pending, err
}
