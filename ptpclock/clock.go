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

// Package ptpclock implements the logical PTP clock a port's engine
// calls into: the thing that owns identity/domain/parent bookkeeping
// and disciplines a backing OS or hardware clock from Sync and
// Delay_Resp samples via a PI servo.
package ptpclock

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	osclock "github.com/stfl/linuxptp/clock"
	"github.com/stfl/linuxptp/phc"
	ptp "github.com/stfl/linuxptp/protocol"
	"github.com/stfl/linuxptp/servo"

	"golang.org/x/sys/unix"
)

// Discipline is the interface to whatever clock device backs this
// logical clock: a PHC, the host system clock, or nothing (free
// running).
type Discipline interface {
	AdjFreqPPB(freq float64) error
	Step(step time.Duration) error
	FrequencyPPB() (float64, error)
	MaxFreqPPB() (float64, error)
}

// PHCDiscipline disciplines a PTP hardware clock device.
type PHCDiscipline struct {
	devicePath string
}

// NewPHCDiscipline resolves iface to its PHC device and returns a
// Discipline backed by it.
func NewPHCDiscipline(iface string) (*PHCDiscipline, error) {
	device, err := phc.IfaceToPHCDevice(iface)
	if err != nil {
		return nil, fmt.Errorf("mapping iface to PHC device: %w", err)
	}
	return &PHCDiscipline{devicePath: device}, nil
}

// AdjFreqPPB adjusts the PHC's frequency.
func (p *PHCDiscipline) AdjFreqPPB(freq float64) error { return phc.ClockAdjFreq(p.devicePath, freq) }

// Step jumps the PHC's time.
func (p *PHCDiscipline) Step(step time.Duration) error { return phc.ClockStep(p.devicePath, step) }

// FrequencyPPB returns the PHC's current frequency offset.
func (p *PHCDiscipline) FrequencyPPB() (float64, error) {
	return phc.FrequencyPPBFromDevice(p.devicePath)
}

// MaxFreqPPB returns the PHC's maximum supported frequency adjustment.
func (p *PHCDiscipline) MaxFreqPPB() (float64, error) {
	return phc.MaxFreqAdjPPBFromDevice(p.devicePath)
}

// SysDiscipline disciplines CLOCK_REALTIME via adjtimex.
type SysDiscipline struct{}

// AdjFreqPPB adjusts the system clock's frequency.
func (c *SysDiscipline) AdjFreqPPB(freqPPB float64) error {
	state, err := osclock.AdjFreqPPB(unix.CLOCK_REALTIME, freqPPB)
	if err == nil && state != unix.TIME_OK {
		log.Warningf("clock state %d is not TIME_OK after adjusting frequency", state)
	}
	return err
}

// Step jumps the system clock's time.
func (c *SysDiscipline) Step(step time.Duration) error {
	state, err := osclock.Step(unix.CLOCK_REALTIME, step)
	if err == nil && state != unix.TIME_OK {
		log.Warningf("clock state %d is not TIME_OK after stepping", state)
	}
	return err
}

// FrequencyPPB returns the system clock's current frequency offset.
func (c *SysDiscipline) FrequencyPPB() (float64, error) {
	freqPPB, state, err := osclock.FrequencyPPB(unix.CLOCK_REALTIME)
	if err == nil && state != unix.TIME_OK {
		log.Warningf("clock state %d is not TIME_OK after getting current frequency", state)
	}
	return freqPPB, err
}

// MaxFreqPPB returns the system clock's maximum supported frequency
// adjustment.
func (c *SysDiscipline) MaxFreqPPB() (float64, error) {
	freqPPB, state, err := osclock.MaxFreqPPB(unix.CLOCK_REALTIME)
	if err == nil && state != unix.TIME_OK {
		log.Warningf("clock state %d is not TIME_OK after getting max frequency", state)
	}
	return freqPPB, err
}

// FreeRunningDiscipline does nothing; useful for tests and dry runs.
type FreeRunningDiscipline struct{}

// AdjFreqPPB is a no-op.
func (c *FreeRunningDiscipline) AdjFreqPPB(float64) error { return nil }

// Step is a no-op.
func (c *FreeRunningDiscipline) Step(time.Duration) error { return nil }

// FrequencyPPB always reports zero.
func (c *FreeRunningDiscipline) FrequencyPPB() (float64, error) { return 0, nil }

// MaxFreqPPB always reports zero.
func (c *FreeRunningDiscipline) MaxFreqPPB() (float64, error) { return 0, nil }

// Clock is the logical PTP clock shared by every port of a node. It is
// the spec's external "clock" collaborator: ports report path delays and
// synchronize samples into it, and query its identity/domain/parent.
//
// Clock is safe for concurrent use: unlike a Port, which is only ever
// driven by its single owning goroutine, a Clock is shared by every
// port's goroutine, so its mutable fields are guarded by a mutex.
type Clock struct {
	mu sync.Mutex

	identity     ptp.ClockIdentity
	domainNumber uint8
	parent       ptp.PortIdentity

	discipline Discipline
	pi         *servo.PiServo
}

// Config configures a Clock at construction time.
type Config struct {
	Identity     ptp.ClockIdentity `yaml:"identity"`
	DomainNumber uint8             `yaml:"domain_number"`
}

// New constructs a Clock that disciplines the given Discipline with a
// default PI servo.
func New(cfg Config, discipline Discipline) *Clock {
	maxFreq, err := discipline.MaxFreqPPB()
	if err != nil || maxFreq <= 0 {
		maxFreq = 500000000
	}
	piCfg := servo.DefaultPiServoCfg()
	cfg2 := servo.DefaultServoConfig()
	pi := servo.NewPiServo(cfg2, piCfg, 0)
	pi.SetMaxFreq(maxFreq)

	return &Clock{
		identity:     cfg.Identity,
		domainNumber: cfg.DomainNumber,
		discipline:   discipline,
		pi:           pi,
	}
}

// Identity returns the clock identity of the local node.
func (c *Clock) Identity() ptp.ClockIdentity {
	return c.identity
}

// DomainNumber returns the PTP domain this clock operates in.
func (c *Clock) DomainNumber() uint8 {
	return c.domainNumber
}

// ParentIdentity returns the port identity this clock currently follows
// as a slave, or the zero value if it has none (e.g. while MASTER).
func (c *Clock) ParentIdentity() ptp.PortIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parent
}

// SetParentIdentity updates the port identity this clock follows,
// called by a port when it becomes the selected path to the
// grandmaster.
func (c *Clock) SetParentIdentity(p ptp.PortIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parent = p
}

// Synchronize delivers one Sync sample: eventTS is the local hardware
// receive time of the Sync (or, one-step, is also its origin carrier),
// originTS is the master's origin timestamp, and c1/c2 are the
// correction fields of the Sync and its Follow_Up (c2 is zero for
// one-step). Asymmetry correction is intentionally not applied, per the
// open question this behavior resolves.
func (c *Clock) Synchronize(eventTS, originTS time.Time, c1, c2 ptp.Correction) error {
	offset := eventTS.Sub(originTS) - c1.Duration() - c2.Duration()

	c.mu.Lock()
	freq, state := c.pi.Sample(int64(offset), uint64(eventTS.UnixNano()))
	c.mu.Unlock()

	if state == servo.StateJump {
		if err := c.discipline.Step(-offset); err != nil {
			return fmt.Errorf("stepping clock: %w", err)
		}
		return nil
	}
	if err := c.discipline.AdjFreqPPB(-freq); err != nil {
		return fmt.Errorf("adjusting clock frequency: %w", err)
	}
	return nil
}

// PathDelay delivers one Delay_Req/Delay_Resp round trip sample:
// t3 is the local hardware send time of the Delay_Req, t4 is the
// master's receive timestamp carried in the Delay_Resp, and correction
// is the Delay_Resp's correction field.
func (c *Clock) PathDelay(t3, t4 time.Time, correction ptp.Correction) time.Duration {
	delay := t4.Sub(t3) - correction.Duration()
	if delay < 0 {
		return 0
	}
	return delay
}
