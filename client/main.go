package main

import (
	"context"
	"os"

	"github.com/dedis/raffle/state"
	"github.com/dedis/raffle/sys"
	"go.dedis.ch/onet/v3/log"
	cli "gopkg.in/urfave/cli.v1"
)

func loadConfig(c *cli.Context) (*sys.Config, error) {
	path := c.GlobalString("config")
	if path == "" {
		return sys.Default(), nil
	}
	return sys.LoadConfig(path)
}

func withStore(c *cli.Context, f func(*state.Store) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := state.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return f(store)
}

func main() {
	app := cli.NewApp()
	app.Name = "raffle"
	app.Usage = "run and inspect a verifiable periodic raffle"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "TOML configuration file",
		},
		cli.IntFlag{
			Name:  "debug, d",
			Usage: "debug level",
		},
	}
	app.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.Int("debug"))
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:  "simulate",
			Usage: "play the configured rounds with an in-process oracle and keeper",
			Action: func(c *cli.Context) error {
				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}
				return simulate(cfg, os.Stdout)
			},
		},
		{
			Name:  "play",
			Usage: "play the configured rounds in real time with a background keeper and oracle",
			Action: func(c *cli.Context) error {
				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}
				return play(context.Background(), cfg, os.Stdout)
			},
		},
		{
			Name:  "status",
			Usage: "print the stored round",
			Action: func(c *cli.Context) error {
				return withStore(c, func(s *state.Store) error {
					return printStatus(s, os.Stdout)
				})
			},
		},
		{
			Name:  "events",
			Usage: "print the stored audit log",
			Flags: []cli.Flag{
				cli.Uint64Flag{
					Name:  "since",
					Usage: "print events after this sequence number",
				},
			},
			Action: func(c *cli.Context) error {
				return withStore(c, func(s *state.Store) error {
					return printEvents(s, c.Uint64("since"), os.Stdout)
				})
			},
		},
	}
	nodeFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "roster, r",
			Usage: "group toml of the nodes",
		},
		cli.IntFlag{
			Name:  "index, i",
			Usage: "index of the node in the roster",
		},
	}
	app.Commands = append(app.Commands, cli.Command{
		Name:  "node",
		Usage: "talk to raffle and easyrand services of running nodes",
		Subcommands: []cli.Command{
			{
				Name:  "serve",
				Usage: "run a node with the raffle and easyrand services",
				Flags: []cli.Flag{
					cli.StringFlag{
						Name:  "private, p",
						Usage: "private toml of the node",
					},
				},
				Action: nodeServe,
			},
			{
				Name:   "status",
				Usage:  "print the round held by a raffle node",
				Flags:  nodeFlags,
				Action: nodeStatus,
			},
			{
				Name:  "events",
				Usage: "print the audit log of a raffle node",
				Flags: append(nodeFlags, cli.Uint64Flag{
					Name:  "since",
					Usage: "print events after this sequence number",
				}),
				Action: nodeEvents,
			},
			{
				Name:   "upkeep",
				Usage:  "run one keeper tick against a raffle node",
				Flags:  nodeFlags,
				Action: nodeUpkeep,
			},
			{
				Name:   "fulfill",
				Usage:  "deliver the pending requests of an easyrand node",
				Flags:  nodeFlags,
				Action: nodeFulfill,
			},
		},
	})
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
