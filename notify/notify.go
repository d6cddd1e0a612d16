// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package notify - push events for committed box mutations
//
// delivery is best effort and entirely out of band from the commit:
// a full queue drops the event, a dropped event never rolls back an
// already committed notarization
package notify

import (
	"encoding/json"
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/notaryd/background"
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
)

// Event - one push event for one affected account
type Event struct {
	Party      string          `json:"party"` // base58 party id
	Account    digest.Digest   `json:"account"`
	ItemID     uint64          `json:"itemId"` // the triggering item's number
	Record     json.RawMessage `json:"record"` // serialized account
	Inbox      []byte          `json:"inbox"`
	InboxHash  digest.Digest   `json:"inboxHash"`
	Outbox     []byte          `json:"outbox"`
	OutboxHash digest.Digest   `json:"outboxHash"`
	Item       []byte          `json:"item"` // packed triggering item
}

// a block of configuration data
// this is read from the configuration file
type Configuration struct {
	Broadcast string `gluamapper:"broadcast" json:"broadcast"`
}

const queueSize = 256

// globals for background process
type notifyData struct {
	sync.RWMutex

	log *logger.L

	queue chan *Event

	// for background
	background *background.T

	// set once during initialise
	initialised bool
}

var globalData notifyData

// Initialise - start the broadcaster
//
// an empty broadcast address disables the socket, events are then
// accepted and discarded
func Initialise(configuration *Configuration) error {
	globalData.Lock()
	defer globalData.Unlock()

	if globalData.initialised {
		return fault.ErrAlreadyInitialised
	}

	globalData.log = logger.New("notify")
	globalData.log.Info("starting…")

	globalData.queue = make(chan *Event, queueSize)

	brdc := &broadcaster{
		log:     logger.New("broadcaster"),
		address: configuration.Broadcast,
		queue:   globalData.queue,
	}

	globalData.initialised = true

	processes := background.Processes{
		brdc,
	}
	globalData.background = background.Start(processes, nil)

	return nil
}

// Finalise - stop all background tasks
func Finalise() error {
	if !globalData.initialised {
		return fault.ErrNotInitialised
	}

	globalData.log.Info("shutting down…")
	globalData.background.Stop()

	globalData.initialised = false
	globalData.log.Flush()
	return nil
}

// Send - queue one event
//
// never blocks: a full queue or an uninitialised module drops the
// event silently apart from a log line
func Send(event *Event) {
	globalData.RLock()
	defer globalData.RUnlock()

	if !globalData.initialised {
		return
	}
	select {
	case globalData.queue <- event:
	default:
		globalData.log.Warnf("queue full, dropped event for party: %s", event.Party)
	}
}
