// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package configuration - read the notaryd Lua configuration file
package configuration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitmark-inc/logger"
)

// network names
const (
	Live    = "live"
	Testing = "testing"
)

// basic defaults (directories and files are relative to the "DataDirectory" from the configuration file)
const (
	defaultDataDirectory = "" // this will error; use "." for the same directory as the config file

	defaultNotaryKeyFile = "notary.private"

	defaultLevelDBDirectory = "data"
	defaultLiveDatabase     = Live + ".leveldb"
	defaultTestingDatabase  = Testing + ".leveldb"

	defaultLogDirectory = "log"
	defaultLogFile      = "notaryd.log"
	defaultLogCount     = 10          // number of log files retained
	defaultLogSize      = 1024 * 1024 // rotate when <logfile> exceeds this size

	defaultMaxCronItemsPerParty = 10
	defaultRatePerParty         = 10.0 // notarizations per second
	defaultRateBurst            = 20
	defaultVoucherValidityDays  = 180
)

// to hold log levels
type LoglevelMap map[string]string

// path expanded or calculated defaults
var (
	defaultLogLevels = LoglevelMap{
		logger.DefaultTag: "critical",
	}
)

type DatabaseType struct {
	Directory string `gluamapper:"directory" json:"directory"`
	Name      string `gluamapper:"name" json:"name"`
}

type NotaryType struct {
	PrivateKeyFile       string  `gluamapper:"private_key_file" json:"private_key_file"`
	MaxCronItemsPerParty int     `gluamapper:"max_cron_items_per_party" json:"max_cron_items_per_party"`
	RatePerParty         float64 `gluamapper:"rate_per_party" json:"rate_per_party"`
	RateBurst            int     `gluamapper:"rate_burst" json:"rate_burst"`
	VoucherValidityDays  int     `gluamapper:"voucher_validity_days" json:"voucher_validity_days"`
}

type MintType struct {
	Series         uint64  `gluamapper:"series" json:"series"`
	Asset          string  `gluamapper:"asset" json:"asset"` // hex asset id
	PrivateKeyFile string  `gluamapper:"private_key_file" json:"private_key_file"`
	Denominations  []int64 `gluamapper:"denominations" json:"denominations"`
	ValidityDays   int     `gluamapper:"validity_days" json:"validity_days"`
}

type BroadcastType struct {
	Broadcast string `gluamapper:"broadcast" json:"broadcast"`
}

type Configuration struct {
	DataDirectory string       `gluamapper:"data_directory" json:"data_directory"`
	PidFile       string       `gluamapper:"pidfile" json:"pidfile"`
	Network       string       `gluamapper:"network" json:"network"`
	Database      DatabaseType `gluamapper:"database" json:"database"`

	Notary       NotaryType           `gluamapper:"notary" json:"notary"`
	Mints        []MintType           `gluamapper:"mints" json:"mints"`
	Broadcasting BroadcastType        `gluamapper:"broadcasting" json:"broadcasting"`
	Logging      logger.Configuration `gluamapper:"logging" json:"logging"`
}

// IsTesting - test network selected
func (config *Configuration) IsTesting() bool {
	return Testing == config.Network
}

// GetConfiguration - read, decode and verify the configuration
func GetConfiguration(configurationFileName string) (*Configuration, error) {

	configurationFileName, err := filepath.Abs(filepath.Clean(configurationFileName))
	if nil != err {
		return nil, err
	}

	// absolute path to the main directory
	dataDirectory, _ := filepath.Split(configurationFileName)

	options := &Configuration{

		DataDirectory: defaultDataDirectory,
		PidFile:       "", // no PidFile by default
		Network:       Live,

		Database: DatabaseType{
			Directory: defaultLevelDBDirectory,
			Name:      defaultLiveDatabase,
		},

		Notary: NotaryType{
			PrivateKeyFile:       defaultNotaryKeyFile,
			MaxCronItemsPerParty: defaultMaxCronItemsPerParty,
			RatePerParty:         defaultRatePerParty,
			RateBurst:            defaultRateBurst,
			VoucherValidityDays:  defaultVoucherValidityDays,
		},

		Logging: logger.Configuration{
			Directory: defaultLogDirectory,
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Levels:    defaultLogLevels,
		},
	}

	if err := readLuaScript(configurationFileName, options); nil != err {
		return nil, err
	}

	// abort if the network name is not recognised, and switch the
	// database default on the test network
	options.Network = strings.ToLower(options.Network)
	switch options.Network {
	case Live:
		// already correct default
	case Testing:
		if options.Database.Name == defaultLiveDatabase {
			options.Database.Name = defaultTestingDatabase
		}
	default:
		return nil, errors.New(fmt.Sprintf("Network: %q is not supported", options.Network))
	}

	// ensure absolute data directory
	if "" == options.DataDirectory || "~" == options.DataDirectory {
		return nil, errors.New(fmt.Sprintf("Path: %q is not a valid directory", options.DataDirectory))
	} else if "." == options.DataDirectory {
		options.DataDirectory = dataDirectory // same directory as the configuration file
	} else {
		options.DataDirectory = filepath.Clean(options.DataDirectory)
	}

	// this directory must exist - i.e. must be created prior to running
	if fileInfo, err := os.Stat(options.DataDirectory); nil != err {
		return nil, err
	} else if !fileInfo.IsDir() {
		return nil, errors.New(fmt.Sprintf("Path: %q is not a directory", options.DataDirectory))
	}

	// force all relevant items to be absolute paths
	// if not, assign them to the data directory
	mustBeAbsolute := []*string{
		&options.Database.Directory,
		&options.Notary.PrivateKeyFile,
		&options.Logging.Directory,
	}
	for _, f := range mustBeAbsolute {
		*f = ensureAbsolute(options.DataDirectory, *f)
	}
	for i := range options.Mints {
		options.Mints[i].PrivateKeyFile = ensureAbsolute(options.DataDirectory, options.Mints[i].PrivateKeyFile)
	}

	// optional absolute paths i.e. blank or an absolute path
	optionalAbsolute := []*string{
		&options.PidFile,
	}
	for _, f := range optionalAbsolute {
		if "" != *f {
			*f = ensureAbsolute(options.DataDirectory, *f)
		}
	}

	return options, nil
}

// ensure the path is absolute, prepending the directory if not
func ensureAbsolute(directory string, filePath string) string {
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(directory, filePath)
	}
	return filepath.Clean(filePath)
}
