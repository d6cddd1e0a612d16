// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/urfave/cli"

	"github.com/bitmark-inc/notaryd/configuration"
	"github.com/bitmark-inc/notaryd/version"
)

func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	app := cli.NewApp()
	app.Name = "notaryd"
	app.Usage = "transaction notarization daemon"
	app.Version = version.Version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "",
			Usage: "notaryd configuration `FILE`",
		},
		cli.BoolFlag{
			Name:  "quiet, q",
			Usage: "suppress console messages",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "generate-identity",
			Usage:  "create the notary signing key file named by the configuration",
			Action: runGenerateIdentity,
		},
		{
			Name:   "generate-mint-key",
			Usage:  "create a mint series signing key file named by the configuration",
			Action: runGenerateMintKeys,
		},
	}
	app.Action = runNotaryd

	if err := app.Run(os.Args); nil != err {
		exitwithstatus.Message("%s: error: %s", app.Name, err)
	}
}

// read and verify the configuration named by the global --config flag
func getConfiguration(c *cli.Context) (*configuration.Configuration, error) {
	file := c.GlobalString("config")
	if "" == file {
		return nil, fmt.Errorf("missing configuration file, use: %s --config FILE", c.App.Name)
	}
	cfg, err := configuration.GetConfiguration(file)
	if nil != err {
		return nil, fmt.Errorf("configuration file: %q  error: %s", file, err)
	}
	return cfg, nil
}
