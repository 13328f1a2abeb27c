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

// Package message wraps a decoded PTP packet with its timestamps and an
// explicit reference count. The port core holds messages in several
// places at once (a foreign-master queue, last_sync, last_follow_up, the
// pending delay request) and the spec's testable properties are phrased
// in terms of those holds, so the refcount is tracked even though Go's
// garbage collector would reclaim the backing memory regardless.
package message

import (
	"sync/atomic"
	"time"

	ptp "github.com/stfl/linuxptp/protocol"
)

// Message is a reference-counted, immutable-once-received PTP packet.
type Message struct {
	Packet ptp.Packet

	// HWTS is the hardware (or best-available software) timestamp the
	// transport captured for this message: egress time for sent
	// messages, ingress time for received ones.
	HWTS time.Time

	// PDUTimestamp is the origin/precise-origin/receive timestamp
	// carried inside the message body itself, when the message type
	// has one.
	PDUTimestamp time.Time

	// HostTimestamp is the local wall/monotonic time the message was
	// handed to this package, used for FMR staleness checks.
	HostTimestamp time.Time

	refs int32
}

// Allocate wraps a freshly decoded packet with a single reference.
func Allocate(p ptp.Packet) *Message {
	return &Message{Packet: p, refs: 1}
}

// Get increments the reference count and returns the message, so callers
// can write `held = m.Get()` at the point they adopt a transient message.
func (m *Message) Get() *Message {
	atomic.AddInt32(&m.refs, 1)
	return m
}

// Put decrements the reference count. It is a caller error to Put a
// message more times than it was Get/Allocated; in that case Put is a
// no-op rather than a panic, since a stray extra Put must never crash
// the dispatch loop (§7, error kind 1).
func (m *Message) Put() {
	for {
		cur := atomic.LoadInt32(&m.refs)
		if cur <= 0 {
			return
		}
		if atomic.CompareAndSwapInt32(&m.refs, cur, cur-1) {
			return
		}
	}
}

// Refs reports the current reference count, for tests asserting on
// lifetime properties (P2, P3).
func (m *Message) Refs() int32 {
	return atomic.LoadInt32(&m.refs)
}

// MessageType returns the PTP message type of the wrapped packet.
func (m *Message) MessageType() ptp.MessageType {
	return m.Packet.MessageType()
}

// SequenceID returns the sequenceId of the wrapped packet's header.
func (m *Message) SequenceID() uint16 {
	return headerOf(m.Packet).SequenceID
}

// SourcePortIdentity returns the source port identity of the wrapped
// packet's header.
func (m *Message) SourcePortIdentity() ptp.PortIdentity {
	return headerOf(m.Packet).SourcePortIdentity
}

// LogMessageInterval returns the logMessageInterval of the wrapped
// packet's header.
func (m *Message) LogMessageInterval() ptp.LogInterval {
	return headerOf(m.Packet).LogMessageInterval
}

// Correction returns the correctionField of the wrapped packet's header.
func (m *Message) Correction() ptp.Correction {
	return headerOf(m.Packet).CorrectionField
}

// IsTwoStep reports whether the wrapped packet's header has the
// two-step flag set.
func (m *Message) IsTwoStep() bool {
	return headerOf(m.Packet).FlagField&ptp.FlagTwoStep != 0
}

// headerOf extracts the embedded Header from any of the concrete packet
// types DecodePacket can return.
func headerOf(p ptp.Packet) ptp.Header {
	switch v := p.(type) {
	case *ptp.Announce:
		return v.Header
	case *ptp.SyncDelayReq:
		return v.Header
	case *ptp.FollowUp:
		return v.Header
	case *ptp.DelayResp:
		return v.Header
	case *ptp.Signaling:
		return v.Header
	default:
		return ptp.Header{}
	}
}

// PreSend finalizes a message immediately before handing it to the
// transport: it stamps HostTimestamp so staleness checks on sent
// messages (the held delay_req) are consistent with received ones.
func (m *Message) PreSend(now time.Time) {
	m.HostTimestamp = now
}

// PostRecv finalizes a freshly decoded message: the message's own PDU
// timestamp field (origin/precise-origin/receive timestamp) is recorded
// alongside the host and hardware receive times.
func (m *Message) PostRecv(hwts, host time.Time) {
	m.HWTS = hwts
	m.HostTimestamp = host
	m.PDUTimestamp = pduTimestamp(m.Packet)
}

// pduTimestamp extracts the timestamp embedded in a packet's body, for
// the message kinds that carry one.
func pduTimestamp(p ptp.Packet) time.Time {
	switch v := p.(type) {
	case *ptp.Announce:
		return v.AnnounceBody.OriginTimestamp.Time()
	case *ptp.SyncDelayReq:
		return v.SyncDelayReqBody.OriginTimestamp.Time()
	case *ptp.FollowUp:
		return v.FollowUpBody.PreciseOriginTimestamp.Time()
	case *ptp.DelayResp:
		return v.DelayRespBody.ReceiveTimestamp.Time()
	default:
		return time.Time{}
	}
}
