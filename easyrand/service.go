package easyrand

import (
	"sync"

	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
)

var serviceID onet.ServiceID

// ErrAlreadyInitialized is returned by a second InitOracle.
var ErrAlreadyInitialized = xerrors.New("easyrand: oracle already initialized")

// ServiceName is the name of the easyrand service
const ServiceName = "easyrand"

func init() {
	var err error
	serviceID, err = onet.RegisterNewService(ServiceName, newService)
	if err != nil {
		panic(err)
	}
}

// GetServiceID returns the id of the easyrand service.
func GetServiceID() onet.ServiceID {
	return serviceID
}

type route struct {
	si      *network.ServerIdentity
	service string
}

// EasyRand holds the internal state of the service.
type EasyRand struct {
	*onet.ServiceProcessor

	mu     sync.Mutex
	oracle *Oracle
	routes map[uint64]route
}

// InitOracle sets up the signing key of the node. The key cannot be replaced
// afterwards, so pending requests keep their verification key.
func (s *EasyRand) InitOracle(req *InitOracleRequest) (*InitOracleReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.oracle != nil {
		return nil, ErrAlreadyInitialized
	}
	var o *Oracle
	if req.Key == "" {
		o = NewOracle()
	} else {
		var err error
		o, err = NewOracleFromKey(req.Key)
		if err != nil {
			return nil, err
		}
	}
	buf, err := PublicToBytes(o.Public())
	if err != nil {
		return nil, xerrors.Errorf("marshaling public key: %v", err)
	}
	s.oracle = o
	log.Lvl2(s.ServerIdentity(), "initialized oracle")
	return &InitOracleReply{Public: buf}, nil
}

// RequestRandomness records a request and returns its id.
func (s *EasyRand) RequestRandomness(req *RandomnessRequest) (*RandomnessReply, error) {
	if req.Consumer == nil || req.ConsumerService == "" {
		return nil, xerrors.New("missing consumer")
	}
	o, err := s.getOracle()
	if err != nil {
		return nil, err
	}
	id, err := o.Request(req.Seed, req.NumWords)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.routes[id] = route{si: req.Consumer, service: req.ConsumerService}
	s.mu.Unlock()
	return &RandomnessReply{RequestID: id}, nil
}

// Fulfill produces the randomness of pending requests and pushes it to the
// consumers. A request whose consumer cannot be reached stays pending.
func (s *EasyRand) Fulfill(req *FulfillRequest) (*FulfillReply, error) {
	o, err := s.getOracle()
	if err != nil {
		return nil, err
	}
	ids := []uint64{req.RequestID}
	if req.RequestID == 0 {
		ids = o.Pending()
	}
	reply := &FulfillReply{}
	for _, id := range ids {
		out, err := o.Fulfill(id)
		if err != nil {
			if req.RequestID != 0 {
				return nil, err
			}
			continue
		}
		s.mu.Lock()
		r, ok := s.routes[id]
		s.mu.Unlock()
		if !ok {
			log.Warn(s.ServerIdentity(), "no consumer for request", id)
			continue
		}
		cl := onet.NewClient(cothority.Suite, r.service)
		fr := &FulfillRandomnessReply{}
		err = cl.SendProtobuf(r.si, &FulfillRandomness{Output: *out}, fr)
		if err != nil {
			log.Warn(s.ServerIdentity(), "delivering request", id, "failed, keeping it:", err)
			if req.RequestID != 0 {
				return nil, xerrors.Errorf("delivering request %d: %v", id, err)
			}
			continue
		}
		if fr.Rejected != "" {
			log.Warn(s.ServerIdentity(), "consumer rejected request", id, fr.Rejected)
		}
		o.Consume(id)
		s.mu.Lock()
		delete(s.routes, id)
		s.mu.Unlock()
		reply.Delivered = append(reply.Delivered, id)
	}
	return reply, nil
}

// GetPending lists the requests waiting for fulfillment.
func (s *EasyRand) GetPending(req *GetPendingRequest) (*GetPendingReply, error) {
	o, err := s.getOracle()
	if err != nil {
		return nil, err
	}
	return &GetPendingReply{Pending: o.Pending()}, nil
}

func (s *EasyRand) getOracle() (*Oracle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.oracle == nil {
		return nil, xerrors.New("oracle is not initialized")
	}
	return s.oracle, nil
}

func newService(c *onet.Context) (onet.Service, error) {
	s := &EasyRand{
		ServiceProcessor: onet.NewServiceProcessor(c),
		routes:           make(map[uint64]route),
	}
	if err := s.RegisterHandlers(s.InitOracle, s.RequestRandomness,
		s.Fulfill, s.GetPending); err != nil {
		return nil, err
	}
	return s, nil
}
