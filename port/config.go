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

	"gopkg.in/yaml.v2"

	ptp "github.com/stfl/linuxptp/protocol"
	"github.com/stfl/linuxptp/timestamp"
)

// Default protocol timing constants (spec §4.7 / original_source port.c).
const (
	DefaultLogMinDelayReqInterval ptp.LogInterval = 0
	DefaultLogAnnounceInterval    ptp.LogInterval = 1
	DefaultAnnounceReceiptTimeout uint8           = 3
	DefaultLogSyncInterval        ptp.LogInterval = 0
	DefaultLogMinPdelayReqInterval ptp.LogInterval = 2
)

// logIntervalClampMin and logIntervalClampMax bound a peer-supplied
// logMessageInterval adopted as logMinDelayReqInterval (open question
// resolved in DESIGN.md).
const (
	logIntervalClampMin ptp.LogInterval = -7
	logIntervalClampMax ptp.LogInterval = 7
)

// DelayMechanism selects how this port measures path delay. Only E2E is
// implemented; P2P messages are decoded by the wire codec but otherwise
// ignored by this engine, per the spec's Non-goals.
type DelayMechanism uint8

const (
	// DelayMechanismE2E is the end-to-end delay request/response
	// mechanism.
	DelayMechanismE2E DelayMechanism = iota
	// DelayMechanismP2P is the peer delay mechanism; this port decodes
	// but ignores PDelay_* messages.
	DelayMechanismP2P
)

// Config configures a Port at construction time. It is plain data, loaded
// by a host program (e.g. from YAML via gopkg.in/yaml.v2) and passed to
// New; this package itself never reads a config file.
type Config struct {
	// Interface is the network interface this port binds to.
	Interface string `yaml:"interface"`
	// PortNumber is the 1-based port number within the local clock.
	PortNumber uint16 `yaml:"port_number"`
	// DomainNumber is the PTP domain this port operates in.
	DomainNumber uint8 `yaml:"domain_number"`
	// Timestamping selects hardware or software timestamping.
	Timestamping timestamp.Timestamp `yaml:"timestamping"`
	// DelayMechanism selects E2E or P2P (see DelayMechanism).
	DelayMechanism DelayMechanism `yaml:"delay_mechanism"`

	LogMinDelayReqInterval  ptp.LogInterval `yaml:"log_min_delay_req_interval"`
	LogAnnounceInterval     ptp.LogInterval `yaml:"log_announce_interval"`
	AnnounceReceiptTimeout  uint8           `yaml:"announce_receipt_timeout"`
	LogSyncInterval         ptp.LogInterval `yaml:"log_sync_interval"`
	LogMinPdelayReqInterval ptp.LogInterval `yaml:"log_min_pdelay_req_interval"`
}

// LoadConfig reads a Config from YAML and validates it.
func LoadConfig(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing port config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks Config for missing/out-of-range fields and fills in
// DefaultAnnounceReceiptTimeout when AnnounceReceiptTimeout is zero. The
// other timing fields are left as they are here; the port applies their
// defaults when it is created and initialized.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("interface name is required")
	}
	if c.PortNumber == 0 {
		return fmt.Errorf("port number must be >= 1")
	}
	if c.AnnounceReceiptTimeout == 0 {
		c.AnnounceReceiptTimeout = DefaultAnnounceReceiptTimeout
	}
	return nil
}

// clampLogInterval bounds a peer-supplied logMessageInterval to
// [-7, +7]; out-of-range values are rejected by returning ok=false, in
// which case the caller should keep its previous value.
func clampLogInterval(v ptp.LogInterval) (ptp.LogInterval, bool) {
	if v < logIntervalClampMin || v > logIntervalClampMax {
		return 0, false
	}
	return v, true
}
