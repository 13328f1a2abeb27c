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
	"time"

	"github.com/stfl/linuxptp/timestamp"
)

// Fake is an in-memory Transport for tests: Sent captures every outgoing
// datagram, and Inject queues bytes for the next Recv on a given fd.
type Fake struct {
	EventFD   int
	GeneralFD int

	Sent []FakeSent

	// NextHWTS is returned as the egress timestamp for every event-socket
	// Send call (general-socket sends return the zero time), and as the
	// ingress timestamp for every Recv call.
	NextHWTS time.Time

	recvQueue map[int][][]byte
	sendErr   error
	recvErr   map[int]error
}

// FakeSent records one call to Send.
type FakeSent struct {
	Bytes   []byte
	IsEvent bool
}

// NewFake returns a ready-to-use Fake transport with fds 100/101.
func NewFake() *Fake {
	return &Fake{
		EventFD:   100,
		GeneralFD: 101,
		recvQueue: make(map[int][][]byte),
		recvErr:   make(map[int]error),
	}
}

// Open implements Transport.
func (f *Fake) Open(string, timestamp.Timestamp) (int, int, error) {
	return f.EventFD, f.GeneralFD, nil
}

// Close implements Transport.
func (f *Fake) Close() error { return nil }

// Send implements Transport.
func (f *Fake) Send(b []byte, isEvent bool) (time.Time, error) {
	if f.sendErr != nil {
		return time.Time{}, f.sendErr
	}
	cp := append([]byte(nil), b...)
	f.Sent = append(f.Sent, FakeSent{Bytes: cp, IsEvent: isEvent})
	if !isEvent {
		return time.Time{}, nil
	}
	return f.NextHWTS, nil
}

// Recv implements Transport.
func (f *Fake) Recv(fd int, buf []byte) (int, time.Time, error) {
	if err, ok := f.recvErr[fd]; ok && err != nil {
		delete(f.recvErr, fd)
		return 0, time.Time{}, err
	}
	q := f.recvQueue[fd]
	if len(q) == 0 {
		return 0, time.Time{}, nil
	}
	b := q[0]
	f.recvQueue[fd] = q[1:]
	n := copy(buf, b)
	return n, f.NextHWTS, nil
}

// Inject queues b to be returned by the next Recv call on fd.
func (f *Fake) Inject(fd int, b []byte) {
	f.recvQueue[fd] = append(f.recvQueue[fd], b)
}

// FailSend makes the next Send call return err.
func (f *Fake) FailSend(err error) { f.sendErr = err }

// FailRecv makes the next Recv call on fd return err.
func (f *Fake) FailRecv(fd int, err error) {
	if f.recvErr == nil {
		f.recvErr = make(map[int]error)
	}
	f.recvErr[fd] = err
}
