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

package port

import (
	"time"

	"github.com/stfl/linuxptp/foreignmaster"
	"github.com/stfl/linuxptp/fsm"
	"github.com/stfl/linuxptp/message"
	ptp "github.com/stfl/linuxptp/protocol"
)

// now is overridable by tests so scenarios can control staleness and
// timer-arming math without a real clock.
var now = time.Now

// Dispatch implements port_dispatch (§4.6): it feeds (state, event,
// decision) to the external state machine table, runs Initialize
// synchronously when requested, and otherwise arms/clears timers on
// state entry per the §4.6 table before committing the new state.
func (p *Port) Dispatch(event fsm.Event) {
	decision := p.decide(event)
	next := fsm.Next(p.state, event, decision)

	if next == ptp.PortStateInitializing {
		if err := p.initialize(); err != nil {
			p.log.WithError(err).Error("initializing port")
			p.state = ptp.PortStateFaulty
			p.stats.setState(p.state)
			return
		}
		p.state = ptp.PortStateListening
		p.stats.setState(p.state)
		return
	}

	if next == p.state {
		return
	}

	if err := p.armTimers(next); err != nil {
		p.log.WithError(err).Error("arming timers on state entry")
	}
	p.log.Infof("state change %s -> %s (event %s)", p.state, next, event)
	p.state = next
	p.stats.setState(p.state)
}

// decide runs the best-foreign-master selection for a state-decision
// event and translates its result into an fsm.Decision. Every other
// event is irrelevant to the state-decision algorithm. It never returns
// fsm.DecisionPassive: that verdict (IEEE 1588 M3) only applies when
// this node has multiple ports and this port's best candidate loses to
// one recommended on another of the node's ports, a cross-port
// comparison that belongs to a boundary-clock aggregator sitting above
// Port, not to a single port's engine.
func (p *Port) decide(event fsm.Event) fsm.Decision {
	if event != fsm.EventStateDecisionEvent {
		return fsm.DecisionNone
	}
	best, ok := foreignmaster.ComputeBest(p.foreignMasters, now(), p.clock.ParentIdentity())
	p.best = best
	if !ok {
		p.clock.SetParentIdentity(ptp.PortIdentity{})
		return fsm.DecisionMaster
	}
	p.clock.SetParentIdentity(best.Sender)
	return fsm.DecisionSlave
}

// armTimers applies the §4.6 timer-arming table for a transition into
// next.
func (p *Port) armTimers(next ptp.PortState) error {
	switch next {
	case ptp.PortStateInitializing, ptp.PortStateFaulty, ptp.PortStateDisabled:
		return firstErr(p.announceTimer.clear(), p.delayTimer.clear())
	case ptp.PortStateListening, ptp.PortStatePassive:
		return firstErr(p.armAnnounceTimer(), p.delayTimer.clear())
	case ptp.PortStatePreMaster, ptp.PortStateMaster, ptp.PortStateGrandMaster:
		return firstErr(p.announceTimer.clear(), p.delayTimer.clear())
	case ptp.PortStateUncalibrated, ptp.PortStateSlave:
		return firstErr(p.armAnnounceTimer(), p.armDelayTimer())
	default:
		return nil
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Event implements port_event (§4.8): it demultiplexes by fd slot and
// returns the state-machine event the occurrence implies.
func (p *Port) Event(fdIndex int) fsm.Event {
	switch fdIndex {
	case FDAnnounceTimer:
		return p.onAnnounceTimeout()
	case FDDelayTimer:
		return p.onDelayTimeout()
	case FDEvent, FDGeneral:
		return p.onTransportReadable(p.fda[fdIndex])
	default:
		return fsm.EventNone
	}
}

func (p *Port) onAnnounceTimeout() fsm.Event {
	p.announceTimer.drain()
	if p.best != nil {
		foreignmaster.Clear(p.best)
	}
	if err := p.armAnnounceTimer(); err != nil {
		p.log.WithError(err).Error("rearming announce timer")
		return fsm.EventFaultDetected
	}
	return fsm.EventAnnounceReceiptTimeoutExpires
}

func (p *Port) onDelayTimeout() fsm.Event {
	p.delayTimer.drain()
	if err := p.armDelayTimer(); err != nil {
		p.log.WithError(err).Error("rearming delay timer")
		return fsm.EventFaultDetected
	}
	if err := p.sendDelayRequest(); err != nil {
		p.log.WithError(err).Error("sending delay request")
		return fsm.EventFaultDetected
	}
	return fsm.EventNone
}

func (p *Port) onTransportReadable(fd int) fsm.Event {
	buf := make([]byte, 1500)
	n, hwts, err := p.tr.Recv(fd, buf)
	if err != nil || n <= 0 {
		return fsm.EventFaultDetected
	}

	pkt, err := ptp.DecodePacket(buf[:n])
	if err != nil {
		p.log.WithError(err).Debug("failed to parse incoming message")
		return fsm.EventNone
	}

	m := message.Allocate(pkt)
	m.PostRecv(hwts, now())
	p.stats.countRX(m.MessageType())
	defer m.Put()

	switch m.MessageType() {
	case ptp.MessageAnnounce:
		if p.handleAnnounce(m) {
			return fsm.EventStateDecisionEvent
		}
		return fsm.EventNone
	case ptp.MessageSync, ptp.MessageDelayReq:
		if m.MessageType() == ptp.MessageDelayReq {
			return p.handleDelayReq(m)
		}
		return p.handleSync(m)
	case ptp.MessageFollowUp:
		return p.handleFollowUp(m)
	case ptp.MessageDelayResp:
		return p.handleDelayResp(m)
	default:
		// PDELAY_*, SIGNALING, MANAGEMENT: silently ignored, per the
		// Non-goals.
		return fsm.EventNone
	}
}
