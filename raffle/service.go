package raffle

import (
	"sync"
	"time"

	"github.com/dedis/raffle/apps/lottery"
	"github.com/dedis/raffle/easyrand"
	"github.com/dedis/raffle/state"
	"github.com/dedis/raffle/sys"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
)

var raffleID onet.ServiceID

// ServiceName is the name of the raffle service
const ServiceName = "raffle"

const retryOp = "retry_payout"

// ErrAlreadyInitialized is returned by a second InitRaffle.
var ErrAlreadyInitialized = xerrors.New("raffle: already initialized")

func init() {
	var err error
	raffleID, err = onet.RegisterNewService(ServiceName, newService)
	if err != nil {
		panic(err)
	}
}

// GetServiceID returns the id of the raffle service.
func GetServiceID() onet.ServiceID {
	return raffleID
}

type remoteCoordinator struct {
	cl   *easyrand.Client
	self *network.ServerIdentity
}

func (c *remoteCoordinator) RequestRandomness(seed []byte, numWords uint32) (lottery.RequestID, error) {
	id, err := c.cl.RequestRandomness(c.self, ServiceName, seed, numWords)
	if err != nil {
		return 0, xerrors.Errorf("requesting randomness: %v", err)
	}
	return lottery.RequestID(id), nil
}

// Service runs one raffle per node.
type Service struct {
	*onet.ServiceProcessor

	mu       sync.Mutex
	raffle   *Raffle
	operator kyber.Point
	// entries serializes Enter so the signed count is the recorded one.
	entries sync.Mutex
}

// InitRaffle creates the raffle, or resumes it from the store. It succeeds
// once per node: the oracle key and the operator cannot be swapped under a
// running round.
func (s *Service) InitRaffle(req *InitRaffleRequest) (*InitRaffleReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raffle != nil {
		return nil, ErrAlreadyInitialized
	}
	if req.Oracle == nil {
		return nil, xerrors.New("missing oracle identity")
	}
	pub, err := easyrand.PublicFromBytes(req.OraclePublic)
	if err != nil {
		return nil, err
	}
	coord := &remoteCoordinator{cl: easyrand.NewClient(req.Oracle), self: s.ServerIdentity()}

	var store *state.Store
	if req.DBPath != "" {
		store, err = state.Open(req.DBPath)
		if err != nil {
			return nil, err
		}
	}
	restored := false
	var r *Raffle
	if store != nil {
		r, err = Restore(store, coord, pub, nil)
		if err == nil {
			restored = true
			if err := s.checkPending(r, coord.cl); err != nil {
				r.Close()
				return nil, err
			}
		} else if !xerrors.Is(err, state.ErrNotFound) {
			store.Close()
			return nil, err
		}
	}
	if r == nil {
		cfg := lottery.Config{
			EntranceFee: lottery.Amount(req.EntranceFee),
			Interval:    time.Duration(req.Interval),
			NumWords:    req.NumWords,
			Vault:       lottery.Address(req.Vault),
		}
		r, err = New(cfg, coord, pub, nil, store)
		if err != nil {
			if store != nil {
				store.Close()
			}
			return nil, err
		}
	}

	s.raffle = r
	s.operator = req.Operator
	log.Lvl2(s.ServerIdentity(), "raffle ready, restored:", restored)
	return &InitRaffleReply{Epoch: r.Machine().Epoch(), Restored: restored}, nil
}

// checkPending refuses to resume a draw the oracle no longer knows about,
// for example after the oracle node restarted.
func (s *Service) checkPending(r *Raffle, cl *easyrand.Client) error {
	p, ok := r.Machine().Pending()
	if !ok {
		return nil
	}
	ids, err := cl.GetPending()
	if err != nil {
		return xerrors.Errorf("asking oracle for request %d: %v", p.RequestID, err)
	}
	for _, id := range ids {
		if id == uint64(p.RequestID) {
			return nil
		}
	}
	return xerrors.Errorf("raffle waits for request %d the oracle does not hold", p.RequestID)
}

// Deposit credits an account of the fund ledger. It is the faucet of the
// demo network and takes no authentication: balances only gate entries and
// the pot is tracked by the machine, not by the vault balance.
func (s *Service) Deposit(req *DepositRequest) (*DepositReply, error) {
	r, err := s.getRaffle()
	if err != nil {
		return nil, err
	}
	if req.Address == "" {
		return nil, xerrors.New("empty address")
	}
	addr := lottery.Address(req.Address)
	if err := r.Deposit(addr, lottery.Amount(req.Amount)); err != nil {
		return nil, err
	}
	return &DepositReply{Balance: uint64(r.Accounts().Balance(addr))}, nil
}

// Enter verifies the payer signature and records the entry.
func (s *Service) Enter(req *EnterRequest) (*EnterReply, error) {
	r, err := s.getRaffle()
	if err != nil {
		return nil, err
	}
	if req.Public == nil {
		return nil, xerrors.New("missing payer key")
	}
	s.entries.Lock()
	defer s.entries.Unlock()
	m := r.Machine()
	msg, err := sys.EntryMessage(req.Public, m.Epoch(), m.NumberOfPlayers(), req.Amount)
	if err != nil {
		return nil, xerrors.Errorf("building entry message: %v", err)
	}
	if err := sys.VerifyAuthentication(req.Public, msg, req.Signature); err != nil {
		return nil, err
	}
	addr, err := sys.Address(req.Public)
	if err != nil {
		return nil, err
	}
	if err := r.Enter(lottery.Address(addr), lottery.Amount(req.Amount)); err != nil {
		return nil, err
	}
	return &EnterReply{Epoch: m.Epoch(), Players: m.NumberOfPlayers()}, nil
}

// CheckUpkeep answers the keeper poll.
func (s *Service) CheckUpkeep(req *CheckUpkeepRequest) (*CheckUpkeepReply, error) {
	r, err := s.getRaffle()
	if err != nil {
		return nil, err
	}
	needed, data := r.Machine().CheckUpkeep(req.CheckData)
	st := r.Machine().UpkeepStatus()
	return &CheckUpkeepReply{
		Needed:      needed,
		PerformData: data,
		TimePassed:  st.TimePassed,
		IsOpen:      st.IsOpen,
		HasBalance:  st.HasBalance,
		HasPlayers:  st.HasPlayers,
	}, nil
}

// PerformUpkeep starts a draw.
func (s *Service) PerformUpkeep(req *PerformUpkeepRequest) (*PerformUpkeepReply, error) {
	r, err := s.getRaffle()
	if err != nil {
		return nil, err
	}
	id, err := r.PerformUpkeepID(req.PerformData)
	if err != nil {
		return nil, err
	}
	return &PerformUpkeepReply{RequestID: uint64(id)}, nil
}

// FulfillRandomness is called by the easyrand service.
func (s *Service) FulfillRandomness(req *easyrand.FulfillRandomness) (*easyrand.FulfillRandomnessReply, error) {
	r, err := s.getRaffle()
	if err != nil {
		return nil, err
	}
	err = r.FulfillRandomness(&req.Output)
	if xerrors.Is(err, easyrand.ErrRejected) {
		log.Warn(s.ServerIdentity(), err)
		return &easyrand.FulfillRandomnessReply{Rejected: err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}
	return &easyrand.FulfillRandomnessReply{}, nil
}

// RetryPayout re-attempts a halted transfer. Only the operator may call it.
func (s *Service) RetryPayout(req *RetryPayoutRequest) (*RetryPayoutReply, error) {
	r, err := s.getRaffle()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	op := s.operator
	s.mu.Unlock()
	msg := sys.OperatorMessage(retryOp, r.Machine().Epoch())
	if err := sys.VerifyAuthentication(op, msg, req.Signature); err != nil {
		return nil, err
	}
	winner, err := r.RetryPayout()
	if err != nil {
		return nil, err
	}
	return &RetryPayoutReply{Winner: string(winner)}, nil
}

// GetState returns the snapshot of the raffle.
func (s *Service) GetState(req *GetStateRequest) (*GetStateReply, error) {
	r, err := s.getRaffle()
	if err != nil {
		return nil, err
	}
	m := r.Machine()
	return &GetStateReply{
		Snapshot:     *m.Snapshot(),
		VaultBalance: uint64(r.Accounts().Balance(m.Vault())),
	}, nil
}

// GetEvents returns the audit log above req.Since.
func (s *Service) GetEvents(req *GetEventsRequest) (*GetEventsReply, error) {
	r, err := s.getRaffle()
	if err != nil {
		return nil, err
	}
	events, err := r.Events(req.Since)
	if err != nil {
		return nil, err
	}
	reply := &GetEventsReply{}
	for _, e := range events {
		reply.Events = append(reply.Events, *state.NewEventRecord(e))
	}
	return reply, nil
}

func (s *Service) getRaffle() (*Raffle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raffle == nil {
		return nil, xerrors.New("raffle is not initialized")
	}
	return s.raffle, nil
}

func newService(c *onet.Context) (onet.Service, error) {
	s := &Service{
		ServiceProcessor: onet.NewServiceProcessor(c),
	}
	if err := s.RegisterHandlers(s.InitRaffle, s.Deposit, s.Enter,
		s.CheckUpkeep, s.PerformUpkeep, s.FulfillRandomness, s.RetryPayout,
		s.GetState, s.GetEvents); err != nil {
		return nil, xerrors.New("couldn't register messages")
	}
	return s, nil
}
