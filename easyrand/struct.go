package easyrand

import (
	"github.com/dedis/raffle/easyrand/base"
	"go.dedis.ch/onet/v3/network"
)

func init() {
	network.RegisterMessages(&InitOracleRequest{}, &InitOracleReply{},
		&RandomnessRequest{}, &RandomnessReply{}, &FulfillRequest{},
		&FulfillReply{}, &GetPendingRequest{}, &GetPendingReply{},
		&FulfillRandomness{}, &FulfillRandomnessReply{})
}

// InitOracleRequest sets up the oracle key. An empty Key generates a fresh
// key pair.
type InitOracleRequest struct {
	Key string
}

// InitOracleReply carries the marshalled BLS verification key.
type InitOracleReply struct {
	Public []byte
}

// RandomnessRequest asks for NumWords random words. The fulfillment is sent
// as a FulfillRandomness message to ConsumerService on Consumer.
type RandomnessRequest struct {
	Consumer        *network.ServerIdentity
	ConsumerService string
	Seed            []byte
	NumWords        uint32
}

// RandomnessReply returns the id assigned to the request.
type RandomnessReply struct {
	RequestID uint64
}

// FulfillRequest fulfills a single request, or every pending one when
// RequestID is zero.
type FulfillRequest struct {
	RequestID uint64
}

// FulfillReply lists the ids delivered to their consumers.
type FulfillReply struct {
	Delivered []uint64
}

// GetPendingRequest lists the pending ids.
type GetPendingRequest struct{}

// GetPendingReply ...
type GetPendingReply struct {
	Pending []uint64
}

// FulfillRandomness is the callback handled by consumer services.
type FulfillRandomness struct {
	Output base.RandomnessOutput
}

// FulfillRandomnessReply is empty when the output was accepted. Rejected
// explains a refusal that delivering again would not change.
type FulfillRandomnessReply struct {
	Rejected string
}
