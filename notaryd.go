// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/logger"
	"github.com/urfave/cli"

	"github.com/bitmark-inc/notaryd/account"
	"github.com/bitmark-inc/notaryd/configuration"
	"github.com/bitmark-inc/notaryd/cron"
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/mint"
	"github.com/bitmark-inc/notaryd/mode"
	"github.com/bitmark-inc/notaryd/notary"
	"github.com/bitmark-inc/notaryd/notify"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/sequence"
	"github.com/bitmark-inc/notaryd/storage"
	"github.com/bitmark-inc/notaryd/version"
)

// runNotaryd - bring up every subsystem in dependency order, switch
// the mode to Normal and wait for a termination signal
func runNotaryd(c *cli.Context) error {

	cfg, err := getConfiguration(c)
	if nil != err {
		return err
	}
	quiet := c.GlobalBool("quiet")

	// start logging
	if err := logger.Initialise(cfg.Logging); nil != err {
		exitwithstatus.Message("notaryd: logger setup failed with error: %s", err)
	}
	defer logger.Finalise()

	log := logger.New("main")
	defer log.Info("finished")
	log.Info("starting…")
	log.Infof("version: %s", version.Version)
	log.Debugf("configuration: %v", cfg)

	// optional PID file
	// use if not running under a supervisor program like daemon(8)
	if "" != cfg.PidFile {
		lockFile, err := os.OpenFile(cfg.PidFile, os.O_WRONLY|os.O_EXCL|os.O_CREATE, os.ModeExclusive|0600)
		if nil != err {
			if os.IsExist(err) {
				exitwithstatus.Message("notaryd: another instance is already running")
			}
			exitwithstatus.Message("notaryd: PID file: %q creation failed, error: %s", cfg.PidFile, err)
		}
		fmt.Fprintf(lockFile, "%d\n", os.Getpid())
		lockFile.Close()
		defer os.Remove(cfg.PidFile)
	}

	// set the initial system mode - before any background tasks are started
	if err := mode.Initialise(); nil != err {
		log.Criticalf("mode initialise error: %s", err)
		exitwithstatus.Message("mode initialise error: %s", err)
	}
	defer mode.Finalise()

	log.Infof("test mode: %v", cfg.IsTesting())
	log.Infof("database: %q", cfg.Database)

	// start the data storage
	log.Info("initialise storage")
	if err := storage.Initialise(filepath.Join(cfg.Database.Directory, cfg.Database.Name)); nil != err {
		log.Criticalf("storage initialise error: %s", err)
		exitwithstatus.Message("storage initialise error: %s", err)
	}
	defer storage.Finalise()

	// the notary signing identity
	key, err := loadSigningKey(cfg.IsTesting(), cfg.Notary.PrivateKeyFile)
	if nil != err {
		log.Criticalf("notary key: %q  error: %s", cfg.Notary.PrivateKeyFile, err)
		exitwithstatus.Message("notary key: %q  error: %s", cfg.Notary.PrivateKeyFile, err)
	}
	log.Infof("notary party: %s", key.Party())

	// transaction number source, high-water mark persisted in storage
	seq := sequence.New(storage.Pool.Sequence)

	log.Info("initialise mint")
	if err := mint.Initialise(); nil != err {
		log.Criticalf("mint initialise error: %s", err)
		exitwithstatus.Message("mint initialise error: %s", err)
	}
	defer mint.Finalise()

	log.Info("initialise cron")
	if err := cron.Initialise(cfg.Notary.MaxCronItemsPerParty, key, seq); nil != err {
		log.Criticalf("cron initialise error: %s", err)
		exitwithstatus.Message("cron initialise error: %s", err)
	}
	defer cron.Finalise()

	log.Info("initialise notify")
	if err := notify.Initialise(&notify.Configuration{Broadcast: cfg.Broadcasting.Broadcast}); nil != err {
		log.Criticalf("notify initialise error: %s", err)
		exitwithstatus.Message("notify initialise error: %s", err)
	}
	defer notify.Finalise()

	log.Info("initialise notary")
	if err := notary.Initialise(key, seq, notary.Limits{
		RatePerParty:        cfg.Notary.RatePerParty,
		RateBurst:           cfg.Notary.RateBurst,
		VoucherValidityDays: cfg.Notary.VoucherValidityDays,
	}); nil != err {
		log.Criticalf("notary initialise error: %s", err)
		exitwithstatus.Message("notary initialise error: %s", err)
	}
	defer notary.Finalise()

	// needs notary.NotaryID so must come after notary start up
	if err := registerMints(log, cfg, key); nil != err {
		log.Criticalf("mint registration error: %s", err)
		exitwithstatus.Message("mint registration error: %s", err)
	}

	// all data structures restored, accept requests
	mode.Set(mode.Normal)

	if !quiet {
		fmt.Printf("\n\nWaiting for CTRL-C (SIGINT) or 'kill <pid>' (SIGTERM)…")
	}

	// turn Signals into channel messages
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	log.Infof("received signal: %v", sig)
	if !quiet {
		fmt.Printf("\nreceived signal: %v\n", sig)
		fmt.Printf("\nshutting down…\n")
	}

	log.Info("shutting down…")
	mode.Set(mode.Stopped)
	return nil
}

// load every configured token series into the mint registry
//
// each series signs against its own key file and pays out of the cash
// reserve account of the configured asset
func registerMints(log *logger.L, cfg *configuration.Configuration, key *party.PrivateKey) error {

	now := time.Now()
	for _, m := range cfg.Mints {

		var assetID digest.Digest
		if err := assetID.UnmarshalText([]byte(m.Asset)); nil != err {
			return fmt.Errorf("mint series %d: asset: %q  error: %s", m.Series, m.Asset, err)
		}

		mintKey, err := loadSigningKey(cfg.IsTesting(), m.PrivateKeyFile)
		if nil != err {
			return fmt.Errorf("mint series %d: key: %q  error: %s", m.Series, m.PrivateKeyFile, err)
		}

		reserve := account.NewReference(key.Party(), assetID, notary.NotaryID(), "cash reserve")
		validity := time.Duration(m.ValidityDays) * 24 * time.Hour

		lm, err := mint.NewLocalMint(m.Series, assetID, notary.NotaryID(), mintKey, reserve, now, now.Add(validity), m.Denominations)
		if nil != err {
			return fmt.Errorf("mint series %d: error: %s", m.Series, err)
		}
		if err := mint.Register(assetID, lm); nil != err {
			return fmt.Errorf("mint series %d: register error: %s", m.Series, err)
		}
		log.Infof("mint registered: asset: %s  series: %d  denominations: %v", assetID, m.Series, m.Denominations)
	}
	return nil
}
