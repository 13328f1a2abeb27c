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

// Package foreignmaster tracks, per remote source port, the recent
// Announce history a PTP port uses to run the best master clock
// algorithm, mirroring linuxptp's foreign_clock record.
package foreignmaster

import (
	"container/list"
	"time"

	"github.com/stfl/linuxptp/dataset"
	"github.com/stfl/linuxptp/message"
	ptp "github.com/stfl/linuxptp/protocol"
)

// Threshold is FOREIGN_MASTER_THRESHOLD: the number of qualifying
// Announce messages a foreign master needs before it is eligible for
// BMC comparison.
const Threshold = 2

// Record is a Foreign-Master Record (FMR): the bounded Announce history
// for one remote source port, plus the dataset materialized from its
// newest message.
type Record struct {
	Sender   ptp.PortIdentity
	messages *list.List // of *message.Message, newest at Front
	Dataset  *dataset.Dataset
}

func newRecord(sender ptp.PortIdentity) *Record {
	return &Record{Sender: sender, messages: list.New()}
}

// Len reports the number of retained Announce messages (n_messages).
func (r *Record) Len() int {
	return r.messages.Len()
}

// Qualified reports whether this record has received enough Announces
// to be considered in BMC comparison.
func (r *Record) Qualified() bool {
	return r.Len() >= Threshold
}

// newest returns the most recently inserted message, or nil if empty.
func (r *Record) newest() *message.Message {
	if e := r.messages.Front(); e != nil {
		return e.Value.(*message.Message)
	}
	return nil
}

// isCurrent reports whether m is still "current": received less than
// 4*2^logMessageInterval seconds ago, relative to now.
func isCurrent(m *message.Message, now time.Time) bool {
	window := 4 * m.LogMessageInterval().Duration()
	return now.Sub(m.HostTimestamp) < window
}

// prune drops excess and stale messages from the tail of r: first down
// to Threshold entries, then any trailing non-current ones.
func prune(r *Record, now time.Time) {
	for r.messages.Len() > Threshold {
		dropTail(r)
	}
	for {
		back := r.messages.Back()
		if back == nil {
			return
		}
		m := back.Value.(*message.Message)
		if isCurrent(m, now) {
			return
		}
		dropTail(r)
	}
}

func dropTail(r *Record) {
	back := r.messages.Back()
	if back == nil {
		return
	}
	m := back.Value.(*message.Message)
	r.messages.Remove(back)
	m.Put()
}

// Clear drops all retained messages, releasing their references; the
// record itself (and its cached sender) remains. Exported so the port
// engine can clear its best record's messages on announce-receipt
// timeout (§4.8).
func Clear(r *Record) {
	clear(r)
}

// clear is Clear's unexported implementation, used internally by
// ComputeBest to drop losing records.
func clear(r *Record) {
	for {
		front := r.messages.Front()
		if front == nil {
			return
		}
		m := front.Value.(*message.Message)
		r.messages.Remove(front)
		m.Put()
	}
}

// announceCompare byte-compares the contiguous grandmaster attribute
// tuple of two Announce bodies, in the same order used on the wire:
// priority1, clock quality, priority2, grandmaster identity, steps
// removed. It returns true iff the tuples differ.
func announceCompare(a, b *ptp.Announce) bool {
	ab, bb := a.AnnounceBody, b.AnnounceBody
	return ab.GrandmasterPriority1 != bb.GrandmasterPriority1 ||
		ab.GrandmasterClockQuality != bb.GrandmasterClockQuality ||
		ab.GrandmasterPriority2 != bb.GrandmasterPriority2 ||
		ab.GrandmasterIdentity != bb.GrandmasterIdentity ||
		ab.StepsRemoved != bb.StepsRemoved
}

// Table is the set of Foreign-Master Records known to a port, one per
// distinct source port identity.
type Table struct {
	records map[ptp.PortIdentity]*Record
}

// NewTable returns an empty foreign-master table.
func NewTable() *Table {
	return &Table{records: make(map[ptp.PortIdentity]*Record)}
}

// Get returns the record for sender, if one exists.
func (t *Table) Get(sender ptp.PortIdentity) (*Record, bool) {
	r, ok := t.records[sender]
	return r, ok
}

// Insert records a newly received Announce m, creating a Record for its
// sender if this is the first Announce seen from it. It returns true iff
// the insert is "interesting" — worth emitting a state-decision event
// for — per PTP 9.5.3(b): a foreign master's first-ever Announce never
// counts towards qualification, so a brand-new record always returns
// false; subsequent inserts return true exactly when they just crossed
// the qualification threshold or changed the grandmaster attributes of
// the newest Announce.
func (t *Table) Insert(m *message.Message, now time.Time) bool {
	a, ok := m.Packet.(*ptp.Announce)
	if !ok {
		return false
	}
	sender := m.SourcePortIdentity()
	r, exists := t.records[sender]
	if !exists {
		// PTP 9.5.3(b): a foreign master's first-ever Announce creates
		// its record but is not itself retained or counted, mirroring
		// add_foreign_master's bare "fc = malloc(); return" with no
		// TAILQ_INSERT_HEAD/n_messages++ on first sight.
		t.records[sender] = newRecord(sender)
		return false
	}

	prune(r, now)
	brokeThreshold := r.Len() == Threshold-1

	prevNewest := r.newest()
	r.messages.PushFront(m.Get())

	diff := false
	if prevNewest != nil {
		if prevAnnounce, ok := prevNewest.Packet.(*ptp.Announce); ok {
			diff = announceCompare(prevAnnounce, a)
		}
	}

	return brokeThreshold || diff
}

// UpdateCurrent implements the branch of update_current_master taken
// when an Announce arrives from the currently selected master: prune
// best, append m to its queue, and report whether the grandmaster
// attributes changed relative to the previous newest Announce (or false
// if this is best's first message).
func UpdateCurrent(best *Record, m *message.Message, now time.Time) bool {
	a, ok := m.Packet.(*ptp.Announce)
	if !ok {
		return false
	}
	prune(best, now)
	prevNewest := best.newest()
	best.messages.PushFront(m.Get())
	if prevNewest == nil {
		return false
	}
	prevAnnounce, ok := prevNewest.Packet.(*ptp.Announce)
	if !ok {
		return false
	}
	return announceCompare(prevAnnounce, a)
}

// ComputeBest runs port_compute_best: for every record, it prunes stale
// entries, skips records that aren't yet qualified, and otherwise
// materializes a dataset from the newest Announce. It returns the
// record whose dataset the BMC comparator ranks highest, clearing every
// other qualified record's messages in the process (FMRs that lose are
// cleared, bounding retention to the winner plus identity-only losers).
func ComputeBest(t *Table, now time.Time, receiver ptp.PortIdentity) (*Record, bool) {
	var best *Record
	for _, r := range t.records {
		prune(r, now)
		if !r.Qualified() {
			r.Dataset = nil
			continue
		}
		newest := r.newest()
		a := newest.Packet.(*ptp.Announce)
		r.Dataset = dataset.FromAnnounce(a, receiver)

		switch {
		case best == nil:
			best = r
		case dataset.Compare(r.Dataset, best.Dataset) > 0:
			clear(best)
			best = r
		default:
			clear(r)
		}
	}
	return best, best != nil
}
