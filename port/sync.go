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
	"github.com/stfl/linuxptp/fsm"
	"github.com/stfl/linuxptp/message"
	ptp "github.com/stfl/linuxptp/protocol"
)

// inSlaveRole reports whether the port is in one of the two states that
// reassemble Sync/Follow_Up pairs.
func (p *Port) inSlaveRole() bool {
	return p.state == ptp.PortStateUncalibrated || p.state == ptp.PortStateSlave
}

// fromParent reports whether m originated from the clock's current
// parent, rejecting foreign sources (§4.4).
func (p *Port) fromParent(m *message.Message) bool {
	return m.SourcePortIdentity() == p.clock.ParentIdentity()
}

// handleSync implements the Sync half of §4.4.
func (p *Port) handleSync(m *message.Message) fsm.Event {
	if !p.inSlaveRole() || !p.fromParent(m) {
		return fsm.EventNone
	}

	if !m.IsTwoStep() {
		if err := p.clock.Synchronize(m.HWTS, m.PDUTimestamp, m.Correction(), 0); err != nil {
			p.log.WithError(err).Error("synchronizing on one-step sync")
		}
		return fsm.EventNone
	}

	if p.lastFollowUp != nil && p.lastFollowUp.SequenceID() == m.SequenceID() {
		if err := p.clock.Synchronize(m.HWTS, p.lastFollowUp.PDUTimestamp, m.Correction(), p.lastFollowUp.Correction()); err != nil {
			p.log.WithError(err).Error("synchronizing on sync/follow-up pair")
		}
		p.lastFollowUp.Put()
		p.lastFollowUp = nil
		return fsm.EventNone
	}

	if p.lastSync != nil {
		p.lastSync.Put()
	}
	p.lastSync = m.Get()
	return fsm.EventNone
}

// handleFollowUp implements the Follow_Up half of §4.4.
func (p *Port) handleFollowUp(m *message.Message) fsm.Event {
	if !p.inSlaveRole() || !p.fromParent(m) {
		return fsm.EventNone
	}

	if p.lastSync != nil && p.lastSync.SequenceID() == m.SequenceID() &&
		p.lastSync.SourcePortIdentity() == m.SourcePortIdentity() {
		if err := p.clock.Synchronize(p.lastSync.HWTS, m.PDUTimestamp, p.lastSync.Correction(), m.Correction()); err != nil {
			p.log.WithError(err).Error("synchronizing on sync/follow-up pair")
		}
		p.lastSync.Put()
		p.lastSync = nil
		return fsm.EventNone
	}

	if p.lastFollowUp != nil {
		p.lastFollowUp.Put()
	}
	p.lastFollowUp = m.Get()
	return fsm.EventNone
}
