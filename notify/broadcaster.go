// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notify

import (
	"encoding/json"

	zmq "github.com/pebbe/zmq4"

	"github.com/bitmark-inc/logger"
)

// drains the event queue onto a PUB socket
//
// the subscription topic is the party id so clients filter their own
// accounts at the socket
type broadcaster struct {
	log     *logger.L
	address string
	queue   <-chan *Event
}

func (brdc *broadcaster) Run(args interface{}, shutdown <-chan struct{}) {
	log := brdc.log
	log.Info("starting…")

	var socket *zmq.Socket
	if "" != brdc.address {
		s, err := zmq.NewSocket(zmq.PUB)
		if nil != err {
			log.Errorf("create socket error: %s", err)
			return
		}
		if err := s.Bind(brdc.address); nil != err {
			log.Errorf("bind %q error: %s", brdc.address, err)
			s.Close()
			return
		}
		log.Infof("bound to: %s", brdc.address)
		socket = s
		defer socket.Close()
	}

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case event := <-brdc.queue:
			if nil == socket {
				continue loop
			}
			data, err := json.Marshal(event)
			if nil != err {
				log.Errorf("marshal error: %s", err)
				continue loop
			}
			// best effort, errors are logged and forgotten
			if _, err := socket.SendMessageDontwait(event.Party, data); nil != err {
				log.Warnf("send error: %s", err)
			}
		}
	}
	log.Info("shutting down…")
}
