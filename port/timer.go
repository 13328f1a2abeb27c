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

	"golang.org/x/sys/unix"
)

// timer is a monotonic, one-shot, edge-triggered timer backed by a Linux
// timerfd, matching the "timers as file descriptors" design note: the
// port's poll loop waits on this fd exactly like a socket fd.
type timer struct {
	fd int
}

func newTimer() (*timer, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, 0)
	if err != nil {
		return nil, fmt.Errorf("creating timerfd: %w", err)
	}
	return &timer{fd: fd}, nil
}

// FD returns the underlying file descriptor for registration into the
// port's fda.
func (t *timer) FD() int {
	return t.fd
}

// arm sets the timer to fire once after d.
func (t *timer) arm(d time.Duration) error {
	spec := &unix.ItimerSpec{
		Value:    unix.NsecToTimespec(d.Nanoseconds()),
		Interval: unix.Timespec{},
	}
	if err := unix.TimerfdSettime(t.fd, 0, spec, nil); err != nil {
		return fmt.Errorf("arming timer: %w", err)
	}
	return nil
}

// clear disarms the timer.
func (t *timer) clear() error {
	if err := unix.TimerfdSettime(t.fd, 0, &unix.ItimerSpec{}, nil); err != nil {
		return fmt.Errorf("clearing timer: %w", err)
	}
	return nil
}

// drain consumes the expiration count so the fd stops being readable
// until the next arm.
func (t *timer) drain() {
	var buf [8]byte
	unix.Read(t.fd, buf[:])
}

func (t *timer) Close() error {
	return unix.Close(t.fd)
}
