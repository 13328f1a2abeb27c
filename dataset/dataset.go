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

// Package dataset implements the best master clock dataset comparison
// (dscmp) as a pure function over the abstract dataset the port core
// feeds it, independent of wire-message shape.
package dataset

import (
	ptp "github.com/stfl/linuxptp/protocol"
)

// Dataset is the summary of an Announce relevant to BMC ordering, plus
// the identities of who sent it and who the local clock currently
// follows.
type Dataset struct {
	Priority1           uint8
	ClockQuality        ptp.ClockQuality
	Priority2           uint8
	GrandmasterIdentity ptp.ClockIdentity
	StepsRemoved        uint16
	Sender              ptp.PortIdentity
	Receiver            ptp.PortIdentity
}

// FromAnnounce materializes a Dataset from an Announce message, recording
// sender as the message's source port identity and receiver as the
// clock's parent identity at the time of observation.
func FromAnnounce(a *ptp.Announce, receiver ptp.PortIdentity) *Dataset {
	return &Dataset{
		Priority1:           a.AnnounceBody.GrandmasterPriority1,
		ClockQuality:        a.AnnounceBody.GrandmasterClockQuality,
		Priority2:           a.AnnounceBody.GrandmasterPriority2,
		GrandmasterIdentity: a.AnnounceBody.GrandmasterIdentity,
		StepsRemoved:        a.AnnounceBody.StepsRemoved,
		Sender:              a.Header.SourcePortIdentity,
		Receiver:            receiver,
	}
}

// Compare implements dscmp: it returns a positive value if a is strictly
// better than b, a negative value if b is strictly better, and 0 if they
// are indistinguishable. The comparison order follows IEEE 1588 9.3.4:
// grandmaster identity equality falls through to a topology tie-break
// (stepsRemoved, then sender port identity); otherwise priority1, clock
// class, clock accuracy, offset scaled log variance, priority2 and
// finally grandmaster identity decide it.
func Compare(a, b *Dataset) int {
	if *a == *b {
		return 0
	}
	if a.GrandmasterIdentity == b.GrandmasterIdentity {
		return compareTopology(a, b)
	}

	if a.Priority1 != b.Priority1 {
		return cmpLowerWins(a.Priority1, b.Priority1)
	}
	if a.ClockQuality.ClockClass != b.ClockQuality.ClockClass {
		return cmpLowerWins(a.ClockQuality.ClockClass, b.ClockQuality.ClockClass)
	}
	if a.ClockQuality.ClockAccuracy != b.ClockQuality.ClockAccuracy {
		return cmpLowerWins(a.ClockQuality.ClockAccuracy, b.ClockQuality.ClockAccuracy)
	}
	if a.ClockQuality.OffsetScaledLogVariance != b.ClockQuality.OffsetScaledLogVariance {
		return cmpLowerWins(a.ClockQuality.OffsetScaledLogVariance, b.ClockQuality.OffsetScaledLogVariance)
	}
	if a.Priority2 != b.Priority2 {
		return cmpLowerWins(a.Priority2, b.Priority2)
	}
	if a.GrandmasterIdentity < b.GrandmasterIdentity {
		return 1
	}
	return -1
}

// compareTopology breaks a tie between two datasets advertising the same
// grandmaster, by steps removed first and then by sender port identity.
func compareTopology(a, b *Dataset) int {
	if a.StepsRemoved+1 < b.StepsRemoved {
		return 1
	}
	if b.StepsRemoved+1 < a.StepsRemoved {
		return -1
	}
	switch a.Sender.Compare(b.Sender) {
	case -1:
		return 1
	case 1:
		return -1
	default:
		return 0
	}
}

type ordered interface {
	~uint8 | ~uint16 | ~int8
}

// cmpLowerWins returns a positive value when x is numerically lower than
// y (lower values win every field in this comparison: smaller priority,
// smaller clock class, etc. are "better").
func cmpLowerWins[T ordered](x, y T) int {
	if x < y {
		return 1
	}
	return -1
}
