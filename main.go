// Command p2pnet runs a standalone peer-to-peer networking node.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/nspcc-dev/p2pnet/cli/server"
)

func main() {
	app := cli.NewApp()
	app.Name = "p2pnet"
	app.Version = server.Version
	app.Usage = "peer-to-peer networking node"
	app.Commands = []cli.Command{
		server.NewCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
