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

package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeSendRecordsOutgoingBytes(t *testing.T) {
	f := NewFake()
	f.NextHWTS = time.Unix(42, 0)

	hwts, err := f.Send([]byte("event"), true)
	require.NoError(t, err)
	require.Equal(t, f.NextHWTS, hwts)

	hwts, err = f.Send([]byte("general"), false)
	require.NoError(t, err)
	require.True(t, hwts.IsZero(), "general messages are not hardware timestamped")

	require.Len(t, f.Sent, 2)
	require.Equal(t, "event", string(f.Sent[0].Bytes))
	require.True(t, f.Sent[0].IsEvent)
	require.False(t, f.Sent[1].IsEvent)
}

func TestFakeInjectAndRecv(t *testing.T) {
	f := NewFake()
	f.NextHWTS = time.Unix(7, 0)
	f.Inject(f.EventFD, []byte("hello"))

	buf := make([]byte, 16)
	n, hwts, err := f.Recv(f.EventFD, buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf[:n]))
	require.Equal(t, f.NextHWTS, hwts)
}

func TestFakeRecvEmptyQueueReturnsZero(t *testing.T) {
	f := NewFake()
	buf := make([]byte, 16)
	n, _, err := f.Recv(f.EventFD, buf)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestFakeFailSend(t *testing.T) {
	f := NewFake()
	boom := errors.New("boom")
	f.FailSend(boom)

	_, err := f.Send([]byte("x"), true)
	require.ErrorIs(t, err, boom)
}

func TestFakeFailRecvIsOneShot(t *testing.T) {
	f := NewFake()
	boom := errors.New("boom")
	f.FailRecv(f.EventFD, boom)
	f.Inject(f.EventFD, []byte("after"))

	buf := make([]byte, 16)
	_, _, err := f.Recv(f.EventFD, buf)
	require.ErrorIs(t, err, boom)

	n, _, err := f.Recv(f.EventFD, buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
}
