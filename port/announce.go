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
	"github.com/stfl/linuxptp/foreignmaster"
	"github.com/stfl/linuxptp/message"
	ptp "github.com/stfl/linuxptp/protocol"
)

// handleAnnounce implements process_announce (§4.3). It returns whether
// the Announce is "interesting" enough to warrant a state-decision
// event.
func (p *Port) handleAnnounce(m *message.Message) bool {
	switch p.state {
	case ptp.PortStateInitializing, ptp.PortStateFaulty, ptp.PortStateDisabled:
		return false

	case ptp.PortStateListening, ptp.PortStatePreMaster, ptp.PortStateMaster,
		ptp.PortStateGrandMaster, ptp.PortStatePassive:
		return p.foreignMasters.Insert(m, now())

	case ptp.PortStateUncalibrated, ptp.PortStateSlave:
		return p.updateCurrentMaster(m)

	default:
		return false
	}
}

// updateCurrentMaster implements update_current_master (§4.3): an
// Announce from the currently selected parent rearms the announce timer
// and extends its record; an Announce from any other sender is handled
// as a plain foreign-master insert.
func (p *Port) updateCurrentMaster(m *message.Message) bool {
	if p.best == nil || m.SourcePortIdentity() != p.best.Sender {
		return p.foreignMasters.Insert(m, now())
	}
	if err := p.armAnnounceTimer(); err != nil {
		p.log.WithError(err).Error("rearming announce timer")
	}
	return foreignmaster.UpdateCurrent(p.best, m, now())
}
