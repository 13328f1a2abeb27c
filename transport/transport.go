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

// Package transport implements the port's network boundary: opening the
// event and general sockets for an interface, sending with an egress
// hardware timestamp, and receiving with an ingress timestamp.
package transport

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/stfl/linuxptp/timestamp"
)

// well-known PTP-over-UDP-IPv4 ports and multicast group (IEEE 1588
// Annex D).
const (
	EventPort   = 319
	GeneralPort = 320
)

var primaryMulticastIP = net.IPv4(224, 0, 1, 129)

// Transport is the port's send/recv/open/close boundary. Implementations
// need not be safe for concurrent use; the port core only ever calls it
// from its single dispatch goroutine.
type Transport interface {
	// Open binds the event and general sockets on iface with the
	// requested timestamping mode and returns their file descriptors,
	// in that order, for registration into the port's fda.
	Open(iface string, ts timestamp.Timestamp) (eventFD, generalFD int, err error)
	// Close releases both sockets.
	Close() error
	// Send transmits b on the event socket (if isEvent) or the general
	// socket, and returns the egress timestamp captured for it. Only
	// the event socket's timestamp is meaningful; general-socket sends
	// return the zero time.
	Send(b []byte, isEvent bool) (time.Time, error)
	// Recv reads one datagram from fd (which must be one of the fds
	// Open returned) into buf, returning the number of bytes read and
	// the ingress timestamp captured for it.
	Recv(fd int, buf []byte) (n int, hwts time.Time, err error)
}

// UDPTransport is a Transport over IPv4 multicast UDP, the default PTP
// transport (IEEE 1588 Annex D).
type UDPTransport struct {
	eventFD   int
	generalFD int
	dst       unix.Sockaddr
}

// NewUDPTransport constructs an unopened UDPTransport.
func NewUDPTransport() *UDPTransport {
	return &UDPTransport{}
}

// Open implements Transport.
func (u *UDPTransport) Open(iface string, ts timestamp.Timestamp) (int, int, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return 0, 0, fmt.Errorf("looking up interface %s: %w", iface, err)
	}

	eventFD, err := listenMulticastUDP(EventPort)
	if err != nil {
		return 0, 0, fmt.Errorf("opening event socket: %w", err)
	}
	if err := timestamp.EnableTimestamps(ts, eventFD, ifi); err != nil {
		unix.Close(eventFD)
		return 0, 0, fmt.Errorf("enabling timestamps on event socket: %w", err)
	}

	generalFD, err := listenMulticastUDP(GeneralPort)
	if err != nil {
		unix.Close(eventFD)
		return 0, 0, fmt.Errorf("opening general socket: %w", err)
	}

	u.eventFD = eventFD
	u.generalFD = generalFD
	u.dst = timestamp.IPToSockaddr(primaryMulticastIP, EventPort)
	return eventFD, generalFD, nil
}

// Close implements Transport.
func (u *UDPTransport) Close() error {
	err1 := unix.Close(u.eventFD)
	err2 := unix.Close(u.generalFD)
	if err1 != nil {
		return err1
	}
	return err2
}

// Send implements Transport.
func (u *UDPTransport) Send(b []byte, isEvent bool) (time.Time, error) {
	fd := u.generalFD
	dst := u.dst
	if isEvent {
		fd = u.eventFD
	} else {
		dst = timestamp.IPToSockaddr(primaryMulticastIP, GeneralPort)
	}

	if !isEvent {
		if err := unix.Sendto(fd, b, 0, dst); err != nil {
			return time.Time{}, fmt.Errorf("sending on general socket: %w", err)
		}
		return time.Time{}, nil
	}

	if err := unix.Sendto(fd, b, 0, dst); err != nil {
		return time.Time{}, fmt.Errorf("sending on event socket: %w", err)
	}
	hwts, _, err := timestamp.ReadTXtimestamp(fd)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading TX timestamp: %w", err)
	}
	return hwts, nil
}

// Recv implements Transport.
func (u *UDPTransport) Recv(fd int, buf []byte) (int, time.Time, error) {
	oob := make([]byte, timestamp.ControlSizeBytes)
	n, _, hwts, err := timestamp.ReadPacketWithRXTimestampBuf(fd, buf, oob)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("reading from socket: %w", err)
	}
	return n, hwts, nil
}

func listenMulticastUDP(port int) (int, error) {
	connFD, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return 0, fmt.Errorf("creating socket: %w", err)
	}
	if err := unix.SetsockoptInt(connFD, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		unix.Close(connFD)
		return 0, fmt.Errorf("setting SO_REUSEPORT: %w", err)
	}
	if err := unix.SetNonblock(connFD, false); err != nil {
		unix.Close(connFD)
		return 0, fmt.Errorf("setting blocking mode: %w", err)
	}
	localAddr := timestamp.IPToSockaddr(net.IPv4zero, port)
	if err := unix.Bind(connFD, localAddr); err != nil {
		unix.Close(connFD)
		return 0, fmt.Errorf("binding to port %d: %w", port, err)
	}
	mreq := &unix.IPMreq{}
	copy(mreq.Multiaddr[:], primaryMulticastIP.To4())
	if err := unix.SetsockoptIPMreq(connFD, unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq); err != nil {
		unix.Close(connFD)
		return 0, fmt.Errorf("joining multicast group: %w", err)
	}
	return connFD, nil
}
