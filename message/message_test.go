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

package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ptp "github.com/stfl/linuxptp/protocol"
)

func TestAllocateStartsWithOneRef(t *testing.T) {
	m := Allocate(&ptp.Announce{})
	require.EqualValues(t, 1, m.Refs())
}

func TestGetPutSymmetry(t *testing.T) {
	m := Allocate(&ptp.Announce{})
	m.Get()
	m.Get()
	require.EqualValues(t, 3, m.Refs())

	m.Put()
	require.EqualValues(t, 2, m.Refs())
	m.Put()
	m.Put()
	require.EqualValues(t, 0, m.Refs())
}

func TestPutBelowZeroIsNoop(t *testing.T) {
	m := Allocate(&ptp.Announce{})
	m.Put()
	require.EqualValues(t, 0, m.Refs())
	m.Put()
	m.Put()
	require.EqualValues(t, 0, m.Refs(), "extra Put must not go negative or panic")
}

func TestIsTwoStep(t *testing.T) {
	oneStep := Allocate(&ptp.Announce{Header: ptp.Header{FlagField: 0}})
	require.False(t, oneStep.IsTwoStep())

	twoStep := Allocate(&ptp.Announce{Header: ptp.Header{FlagField: ptp.FlagTwoStep}})
	require.True(t, twoStep.IsTwoStep())
}

func TestHeaderAccessors(t *testing.T) {
	sender := ptp.PortIdentity{ClockIdentity: 7, PortNumber: 3}
	p := &ptp.Announce{
		Header: ptp.Header{
			SourcePortIdentity: sender,
			SequenceID:         99,
			LogMessageInterval: 1,
			CorrectionField:    ptp.NewCorrection(1500),
		},
	}
	m := Allocate(p)

	require.Equal(t, ptp.MessageAnnounce, m.MessageType())
	require.Equal(t, uint16(99), m.SequenceID())
	require.Equal(t, sender, m.SourcePortIdentity())
	require.Equal(t, ptp.LogInterval(1), m.LogMessageInterval())
	require.Equal(t, ptp.NewCorrection(1500), m.Correction())
}

func TestPostRecvStampsTimestamps(t *testing.T) {
	m := Allocate(&ptp.Announce{})
	hwts := time.Unix(100, 0)
	host := time.Unix(100, 500)
	m.PostRecv(hwts, host)

	require.Equal(t, hwts, m.HWTS)
	require.Equal(t, host, m.HostTimestamp)
}

func TestPreSendStampsHostTimestamp(t *testing.T) {
	m := Allocate(&ptp.SyncDelayReq{})
	host := time.Unix(200, 0)
	m.PreSend(host)
	require.Equal(t, host, m.HostTimestamp)
}
