/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package port implements the per-interface PTP message handler: the
// foreign-master bookkeeping, delay-measurement exchange, and
// state-transition driver of an ordinary/boundary clock's port. A Port
// is not safe for concurrent use — exactly one goroutine is expected to
// drive Dispatch/Event, mirroring the single-threaded cooperative model
// of the engine it reimplements.
package port

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stfl/linuxptp/foreignmaster"
	"github.com/stfl/linuxptp/message"
	"github.com/stfl/linuxptp/ptpclock"
	ptp "github.com/stfl/linuxptp/protocol"
	"github.com/stfl/linuxptp/transport"
)

// Well-known indices into a Port's file descriptor array (fda), per
// spec §4.7/§4.8.
const (
	FDAnnounceTimer = iota
	FDDelayTimer
	FDEvent
	FDGeneral
	fdaSize
)

// Port is the engine: it owns the foreign-master table, the held
// messages (delay_req, last_sync, last_follow_up), the timers, and
// drives the PTP port state machine.
type Port struct {
	cfg    Config
	ident  ptp.PortIdentity
	clock  *ptpclock.Clock
	tr     transport.Transport
	stats  *Stats
	log    *log.Entry

	state ptp.PortState
	seq   uint16

	logMinDelayReqInterval ptp.LogInterval

	delayReq     *message.Message
	lastSync     *message.Message
	lastFollowUp *message.Message

	foreignMasters *foreignmaster.Table
	best           *foreignmaster.Record

	announceTimer *timer
	delayTimer    *timer
	fda           [fdaSize]int
}

// New constructs a Port in PS_INITIALIZING. Call Dispatch with any event
// to drive it through Initialize and into LISTENING (or FAULTY).
func New(cfg Config, identity ptp.ClockIdentity, clock *ptpclock.Clock, tr transport.Transport, stats *Stats) (*Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid port config: %w", err)
	}
	ident := ptp.PortIdentity{ClockIdentity: identity, PortNumber: cfg.PortNumber}
	return &Port{
		cfg:                    cfg,
		ident:                  ident,
		clock:                  clock,
		tr:                     tr,
		stats:                  stats,
		log:                    log.WithField("port", ident.String()),
		state:                  ptp.PortStateInitializing,
		logMinDelayReqInterval: orDefault(cfg.LogMinDelayReqInterval, DefaultLogMinDelayReqInterval),
		foreignMasters:         foreignmaster.NewTable(),
	}, nil
}

func orDefault(v, def ptp.LogInterval) ptp.LogInterval {
	if v == 0 {
		return def
	}
	return v
}

// Identity returns this port's identity (clock identity + port number).
func (p *Port) Identity() ptp.PortIdentity { return p.ident }

// State returns the port's current PTP state.
func (p *Port) State() ptp.PortState { return p.state }

// initialize implements port_initialize (§4.7): it sets default
// intervals, creates the two monotonic timers, opens the transport, and
// registers fds at their well-known indices. Any failure unwinds all
// partially acquired resources.
func (p *Port) initialize() error {
	if p.cfg.LogAnnounceInterval == 0 {
		p.cfg.LogAnnounceInterval = DefaultLogAnnounceInterval
	}
	if p.cfg.AnnounceReceiptTimeout == 0 {
		p.cfg.AnnounceReceiptTimeout = DefaultAnnounceReceiptTimeout
	}
	if p.cfg.LogSyncInterval == 0 {
		p.cfg.LogSyncInterval = DefaultLogSyncInterval
	}
	if p.cfg.LogMinPdelayReqInterval == 0 {
		p.cfg.LogMinPdelayReqInterval = DefaultLogMinPdelayReqInterval
	}

	announceTimer, err := newTimer()
	if err != nil {
		return fmt.Errorf("creating announce timer: %w", err)
	}
	delayTimer, err := newTimer()
	if err != nil {
		announceTimer.Close()
		return fmt.Errorf("creating delay timer: %w", err)
	}

	eventFD, generalFD, err := p.tr.Open(p.cfg.Interface, p.cfg.Timestamping)
	if err != nil {
		announceTimer.Close()
		delayTimer.Close()
		return fmt.Errorf("opening transport on %s: %w", p.cfg.Interface, err)
	}

	p.announceTimer = announceTimer
	p.delayTimer = delayTimer
	p.fda[FDAnnounceTimer] = announceTimer.FD()
	p.fda[FDDelayTimer] = delayTimer.FD()
	p.fda[FDEvent] = eventFD
	p.fda[FDGeneral] = generalFD

	if err := p.armAnnounceTimer(); err != nil {
		p.teardown()
		return fmt.Errorf("arming announce timer: %w", err)
	}
	return nil
}

// FDA returns the port's file descriptor array for registration with
// the owning clock's poll loop (clock_install_fda in the spec).
func (p *Port) FDA() [fdaSize]int { return p.fda }

// Close implements port_close: it releases all retained messages,
// closes both timers, closes the transport, and leaves the port ready
// to be discarded.
func (p *Port) Close() error {
	p.releaseHeld()
	return p.teardown()
}

func (p *Port) teardown() error {
	var firstErr error
	if p.announceTimer != nil {
		if err := p.announceTimer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.delayTimer != nil {
		if err := p.delayTimer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := p.tr.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (p *Port) releaseHeld() {
	if p.delayReq != nil {
		p.delayReq.Put()
		p.delayReq = nil
	}
	if p.lastSync != nil {
		p.lastSync.Put()
		p.lastSync = nil
	}
	if p.lastFollowUp != nil {
		p.lastFollowUp.Put()
		p.lastFollowUp = nil
	}
}

func (p *Port) armAnnounceTimer() error {
	timeout := p.cfg.AnnounceReceiptTimeout
	if timeout == 0 {
		timeout = DefaultAnnounceReceiptTimeout
	}
	d := time.Duration(timeout) * p.cfg.LogAnnounceInterval.Duration()
	return p.announceTimer.arm(d)
}

func (p *Port) armDelayTimer() error {
	interval := p.logMinDelayReqInterval + 1
	return p.delayTimer.arm(interval.Duration())
}
