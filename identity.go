// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/notaryd/party"
)

// key files hold one line of hex, the raw ed25519 private key
const keyFileMode = 0600

// loadSigningKey - read a private key file written by the generate commands
func loadSigningKey(test bool, fileName string) (*party.PrivateKey, error) {
	data, err := ioutil.ReadFile(fileName)
	if nil != err {
		return nil, err
	}
	buffer, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if nil != err {
		return nil, err
	}
	return party.PrivateKeyFromBytes(test, buffer)
}

// writeSigningKey - create a fresh keypair and store its private half
//
// refuses to overwrite so a live identity cannot be lost by a repeated
// setup command
func writeSigningKey(test bool, fileName string) (*party.Party, error) {
	p, key, err := party.GenerateKeypair(test)
	if nil != err {
		return nil, err
	}

	fh, err := os.OpenFile(fileName, os.O_WRONLY|os.O_EXCL|os.O_CREATE, keyFileMode)
	if nil != err {
		if os.IsExist(err) {
			return nil, fmt.Errorf("key file already exists: %q", fileName)
		}
		return nil, err
	}
	defer fh.Close()

	if _, err := fmt.Fprintf(fh, "%x\n", key.PrivateKey); nil != err {
		return nil, err
	}
	return p, nil
}

// generate-identity command
func runGenerateIdentity(c *cli.Context) error {
	cfg, err := getConfiguration(c)
	if nil != err {
		return err
	}

	p, err := writeSigningKey(cfg.IsTesting(), cfg.Notary.PrivateKeyFile)
	if nil != err {
		return err
	}
	fmt.Printf("notary key file: %s\n", cfg.Notary.PrivateKeyFile)
	fmt.Printf("notary party:    %s\n", p)
	return nil
}

// generate-mint-key command, one key file per configured series
func runGenerateMintKeys(c *cli.Context) error {
	cfg, err := getConfiguration(c)
	if nil != err {
		return err
	}
	if 0 == len(cfg.Mints) {
		return fmt.Errorf("no mint series configured")
	}

	for _, m := range cfg.Mints {
		p, err := writeSigningKey(cfg.IsTesting(), m.PrivateKeyFile)
		if nil != err {
			return fmt.Errorf("mint series %d: %s", m.Series, err)
		}
		fmt.Printf("mint series %d key file: %s\n", m.Series, m.PrivateKeyFile)
		fmt.Printf("mint series %d party:    %s\n", m.Series, p)
	}
	return nil
}
