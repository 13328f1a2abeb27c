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

package ptpclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ptp "github.com/stfl/linuxptp/protocol"
)

func TestNewDefaultsParentToZeroValue(t *testing.T) {
	c := New(Config{Identity: 1, DomainNumber: 0}, &FreeRunningDiscipline{})
	require.Equal(t, ptp.PortIdentity{}, c.ParentIdentity())
	require.Equal(t, ptp.ClockIdentity(1), c.Identity())
}

func TestSetParentIdentityRoundTrips(t *testing.T) {
	c := New(Config{Identity: 1}, &FreeRunningDiscipline{})
	parent := ptp.PortIdentity{ClockIdentity: 9, PortNumber: 1}
	c.SetParentIdentity(parent)
	require.Equal(t, parent, c.ParentIdentity())
}

func TestSynchronizeDisciplinesWithoutError(t *testing.T) {
	c := New(Config{Identity: 1}, &FreeRunningDiscipline{})
	eventTS := time.Unix(1000, 1000)
	originTS := time.Unix(1000, 0)
	err := c.Synchronize(eventTS, originTS, ptp.NewCorrection(0), ptp.NewCorrection(0))
	require.NoError(t, err)
}

func TestPathDelayComputesRoundTrip(t *testing.T) {
	c := New(Config{Identity: 1}, &FreeRunningDiscipline{})
	t3 := time.Unix(1000, 0)
	t4 := time.Unix(1000, 2000)
	delay := c.PathDelay(t3, t4, ptp.NewCorrection(0))
	require.Equal(t, 2000*time.Nanosecond, delay)
}

func TestPathDelayClampsNegativeToZero(t *testing.T) {
	c := New(Config{Identity: 1}, &FreeRunningDiscipline{})
	t3 := time.Unix(1000, 5000)
	t4 := time.Unix(1000, 0)
	delay := c.PathDelay(t3, t4, ptp.NewCorrection(0))
	require.Equal(t, time.Duration(0), delay)
}

func TestFreeRunningDisciplineIsANoop(t *testing.T) {
	d := &FreeRunningDiscipline{}
	require.NoError(t, d.AdjFreqPPB(123))
	require.NoError(t, d.Step(time.Second))
	freq, err := d.FrequencyPPB()
	require.NoError(t, err)
	require.Zero(t, freq)
}
