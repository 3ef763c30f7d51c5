package main

import (
	"fmt"
	"os"

	"github.com/dedis/raffle/easyrand"
	"github.com/dedis/raffle/keeper"
	"github.com/dedis/raffle/raffle"
	"github.com/dedis/raffle/utils"
	"go.dedis.ch/onet/v3/app"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
	cli "gopkg.in/urfave/cli.v1"
)

func node(c *cli.Context) (*network.ServerIdentity, error) {
	if c.String("roster") == "" {
		return nil, xerrors.New("missing --roster")
	}
	return utils.Node(c.String("roster"), c.Int("index"))
}

func nodeStatus(c *cli.Context) error {
	si, err := node(c)
	if err != nil {
		return err
	}
	reply, err := raffle.NewClient(si).GetState()
	if err != nil {
		return err
	}
	s := reply.Snapshot
	fmt.Printf("epoch %d, %d players, pot %d, vault %d\n", s.Epoch,
		len(s.Participants), s.Pot, reply.VaultBalance)
	if s.HasWinner {
		fmt.Printf("recent winner: %s (%d)\n", s.WinnerAddress, s.WinnerAmount)
	}
	return nil
}

func nodeEvents(c *cli.Context) error {
	si, err := node(c)
	if err != nil {
		return err
	}
	events, err := raffle.NewClient(si).GetEvents(c.Uint64("since"))
	if err != nil {
		return err
	}
	for _, e := range events {
		fmt.Println(e.Seq, e.Type, e.Epoch, e.Payer, e.Winner, e.Amount)
	}
	return nil
}

func nodeUpkeep(c *cli.Context) error {
	si, err := node(c)
	if err != nil {
		return err
	}
	res, err := keeper.New(raffle.NewClient(si), 0).Tick()
	if err != nil {
		return err
	}
	switch res {
	case keeper.Performed:
		fmt.Fprintln(os.Stdout, "draw requested")
	default:
		fmt.Fprintln(os.Stdout, "no upkeep needed")
	}
	return nil
}

func nodeFulfill(c *cli.Context) error {
	si, err := node(c)
	if err != nil {
		return err
	}
	reply, err := easyrand.NewClient(si).Fulfill(0)
	if err != nil {
		return err
	}
	fmt.Println("delivered:", reply.Delivered)
	return nil
}

// nodeServe runs a node hosting the raffle and easyrand services.
func nodeServe(c *cli.Context) error {
	cfg := c.String("private")
	if cfg == "" {
		return xerrors.New("missing --private")
	}
	app.RunServer(cfg)
	return nil
}
