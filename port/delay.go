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
	"fmt"
	"time"

	"github.com/stfl/linuxptp/fsm"
	"github.com/stfl/linuxptp/message"
	ptp "github.com/stfl/linuxptp/protocol"
)

// controlField values, IEEE 1588-2008 Table 23 (deprecated but still
// populated for interoperability with older stacks).
const (
	ctlSync      uint8 = 0
	ctlDelayReq  uint8 = 1
	ctlFollowUp  uint8 = 2
	ctlDelayResp uint8 = 3
	ctlOther     uint8 = 5
)

// logMessageIntervalUnspecified marks a Delay_Req's logMessageInterval,
// per Table 42.
const logMessageIntervalUnspecified ptp.LogInterval = 0x7f

// sendDelayRequest implements the request-emission half of §4.5: it
// builds and sends a Delay_Req, replacing any previously held one.
func (p *Port) sendDelayRequest() error {
	header := ptp.Header{
		SdoIDAndMsgType:    ptp.NewSdoIDAndMsgType(ptp.MessageDelayReq, 0),
		Version:            2,
		MessageLength:      44,
		DomainNumber:       p.clock.DomainNumber(),
		SourcePortIdentity: p.ident,
		SequenceID:         p.seq,
		ControlField:       ctlDelayReq,
		LogMessageInterval: logMessageIntervalUnspecified,
	}
	p.seq++

	pkt := &ptp.SyncDelayReq{Header: header}
	b, err := ptp.Bytes(pkt)
	if err != nil {
		return fmt.Errorf("marshaling delay request: %w", err)
	}

	hwts, err := p.tr.Send(b, true)
	if err != nil {
		return fmt.Errorf("sending delay request: %w", err)
	}
	p.stats.countTX(ptp.MessageDelayReq)

	m := message.Allocate(pkt)
	m.HWTS = hwts
	m.PreSend(now())

	if p.delayReq != nil {
		p.delayReq.Put()
	}
	p.delayReq = m
	return nil
}

// handleDelayReq implements process_delay_req (§4.5): only a
// MASTER/GRAND_MASTER port answers Delay_Req with a Delay_Resp.
func (p *Port) handleDelayReq(m *message.Message) fsm.Event {
	if p.state != ptp.PortStateMaster && p.state != ptp.PortStateGrandMaster {
		return fsm.EventNone
	}

	req, ok := m.Packet.(*ptp.SyncDelayReq)
	if !ok {
		return fsm.EventNone
	}

	sec, nsec := splitHWTS(m.HWTS)
	resp := &ptp.DelayResp{
		Header: ptp.Header{
			SdoIDAndMsgType:     ptp.NewSdoIDAndMsgType(ptp.MessageDelayResp, 0),
			Version:             2,
			MessageLength:       54,
			DomainNumber:        req.Header.DomainNumber,
			CorrectionField:     req.Header.CorrectionField,
			SourcePortIdentity:  p.ident,
			SequenceID:          req.Header.SequenceID,
			ControlField:        ctlDelayResp,
			LogMessageInterval:  p.logMinDelayReqInterval,
		},
		DelayRespBody: ptp.DelayRespBody{
			ReceiveTimestamp:       ptp.Timestamp{Seconds: sec, Nanoseconds: nsec},
			RequestingPortIdentity: req.Header.SourcePortIdentity,
		},
	}

	b, err := ptp.Bytes(resp)
	if err != nil {
		p.log.WithError(err).Error("marshaling delay response")
		return fsm.EventNone
	}
	if _, err := p.tr.Send(b, false); err != nil {
		p.log.WithError(err).Error("sending delay response")
		return fsm.EventFaultDetected
	}
	p.stats.countTX(ptp.MessageDelayResp)
	return fsm.EventNone
}

// handleDelayResp implements process_delay_resp (§4.5): it matches the
// response against the held delay_req by source identity and sequence
// id, feeds the round trip sample to the clock, and adopts the peer's
// logMinDelayReqInterval when it validly differs from this port's own.
func (p *Port) handleDelayResp(m *message.Message) fsm.Event {
	if p.delayReq == nil || !p.inSlaveRole() {
		return fsm.EventNone
	}
	resp, ok := m.Packet.(*ptp.DelayResp)
	if !ok {
		return fsm.EventNone
	}
	if resp.RequestingPortIdentity != p.delayReq.SourcePortIdentity() {
		return fsm.EventNone
	}
	if resp.Header.SequenceID != p.delayReq.SequenceID() {
		return fsm.EventNone
	}

	p.clock.PathDelay(p.delayReq.HWTS, m.PDUTimestamp, m.Correction())

	if resp.Header.LogMessageInterval != p.logMinDelayReqInterval {
		if clamped, ok := clampLogInterval(resp.Header.LogMessageInterval); ok {
			p.logMinDelayReqInterval = clamped
		} else {
			p.log.Warnf("peer logMinDelayReqInterval %d out of range, keeping %d",
				resp.Header.LogMessageInterval, p.logMinDelayReqInterval)
		}
	}

	return fsm.EventNone
}

func splitHWTS(t time.Time) (ptp.PTPSeconds, uint32) {
	sec, nsec := t.Unix(), t.Nanosecond()
	var s ptp.PTPSeconds
	s[0] = byte(sec >> 40)
	s[1] = byte(sec >> 32)
	s[2] = byte(sec >> 24)
	s[3] = byte(sec >> 16)
	s[4] = byte(sec >> 8)
	s[5] = byte(sec)
	return s, uint32(nsec)
}
