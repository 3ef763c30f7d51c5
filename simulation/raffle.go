package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dedis/raffle/easyrand"
	"github.com/dedis/raffle/keeper"
	"github.com/dedis/raffle/raffle"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/simul/monitor"
	"golang.org/x/xerrors"
)

// SimulationService measures the rounds of a raffle hosted on the second
// server, drawing from an oracle on the root.
type SimulationService struct {
	onet.SimulationBFTree
	NumParticipants int
	EntranceFee     uint64
	NumWords        uint32
}

func init() {
	onet.SimulationRegister("Raffle", NewRaffleSimulation)
}

// NewRaffleSimulation decodes the simulation parameters.
func NewRaffleSimulation(config string) (onet.Simulation, error) {
	ss := &SimulationService{}
	_, err := toml.Decode(config, ss)
	if err != nil {
		return nil, err
	}
	if ss.EntranceFee == 0 {
		ss.EntranceFee = 10
	}
	return ss, nil
}

func (s *SimulationService) Setup(dir string,
	hosts []string) (*onet.SimulationConfig, error) {
	sc := &onet.SimulationConfig{}
	s.CreateRoster(sc, hosts, 2000)
	err := s.CreateTree(sc)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *SimulationService) Node(config *onet.SimulationConfig) error {
	index, _ := config.Roster.Search(config.Server.ServerIdentity.GetID())
	if index < 0 {
		log.Fatal("Didn't find this node in roster")
	}
	log.Lvl3("Initializing node-index", index)
	return s.SimulationBFTree.Node(config)
}

func (s *SimulationService) setup(roster *onet.Roster) (*raffle.Client, *easyrand.Client, error) {
	if len(roster.List) < 2 {
		return nil, nil, xerrors.New("need at least two servers")
	}
	randCl := easyrand.NewClient(roster.List[0])
	pub, err := randCl.InitOracle("")
	if err != nil {
		log.Errorf("initializing oracle: %v", err)
		return nil, nil, err
	}
	buf, err := easyrand.PublicToBytes(pub)
	if err != nil {
		return nil, nil, err
	}
	cl := raffle.NewClient(roster.List[1])
	_, err = cl.InitRaffle(&raffle.InitRaffleRequest{
		EntranceFee:  s.EntranceFee,
		NumWords:     s.NumWords,
		Vault:        "vault",
		Oracle:       roster.List[0],
		OraclePublic: buf,
		Operator:     key.NewKeyPair(cothority.Suite).Public,
	})
	if err != nil {
		log.Errorf("initializing raffle: %v", err)
		return nil, nil, err
	}
	return cl, randCl, nil
}

func (s *SimulationService) runRound(cl *raffle.Client, randCl *easyrand.Client,
	players []*key.Pair, round int) error {
	enterMonitor := monitor.NewTimeMeasure(fmt.Sprintf("r%d_enter", round))
	var wg sync.WaitGroup
	errs := make(chan error, len(players))
	for _, kp := range players {
		wg.Add(1)
		go func(kp *key.Pair) {
			defer wg.Done()
			// concurrent entries race for the signed player count
			var err error
			for try := 0; try < 50; try++ {
				if _, err = cl.Enter(kp, s.EntranceFee); err == nil {
					return
				}
				log.Lvl3("retrying entry:", err)
				time.Sleep(10 * time.Millisecond)
			}
			errs <- err
		}(kp)
	}
	wg.Wait()
	close(errs)
	if err, ok := <-errs; ok {
		return err
	}
	enterMonitor.Record()

	drawMonitor := monitor.NewTimeMeasure(fmt.Sprintf("r%d_draw", round))
	res, err := keeper.New(cl, 0).Tick()
	if err != nil {
		return err
	}
	if res != keeper.Performed {
		return xerrors.Errorf("round %d: upkeep not performed", round)
	}
	if _, err := randCl.Fulfill(0); err != nil {
		log.Errorf("fulfilling: %v", err)
		return err
	}
	st, err := cl.WaitEpoch(uint64(round+2), 10*time.Second)
	if err != nil {
		return err
	}
	drawMonitor.Record()
	log.Lvl1("round", round, "won by", st.Snapshot.WinnerAddress)
	return nil
}

func (s *SimulationService) Run(config *onet.SimulationConfig) error {
	cl, randCl, err := s.setup(config.Roster)
	if err != nil {
		return err
	}
	players := make([]*key.Pair, s.NumParticipants)
	for i := range players {
		players[i] = key.NewKeyPair(cothority.Suite)
		balance := uint64(s.Rounds) * s.EntranceFee
		if _, err := cl.Deposit(raffle.AddressOf(players[i].Public), balance); err != nil {
			return err
		}
	}
	for round := 0; round < s.Rounds; round++ {
		if err := s.runRound(cl, randCl, players, round); err != nil {
			log.Error(err)
			return err
		}
	}
	return nil
}
