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
	"github.com/prometheus/client_golang/prometheus"

	ptp "github.com/stfl/linuxptp/protocol"
)

// Stats exposes per-port counters to Prometheus. A nil *Stats is valid
// everywhere it's used: every method is a no-op on a nil receiver, so a
// Port works identically with or without one wired in.
type Stats struct {
	portLabel string
	rx        *prometheus.CounterVec
	tx        *prometheus.CounterVec
	state     *prometheus.GaugeVec
}

// NewStats creates and registers a Stats against reg, labeling every
// metric it records with portLabel.
func NewStats(reg prometheus.Registerer, portLabel string) *Stats {
	s := &Stats{
		portLabel: portLabel,
		rx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ptp_port_messages_received_total",
		}, []string{"port", "type"}),
		tx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ptp_port_messages_sent_total",
		}, []string{"port", "type"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ptp_port_state",
		}, []string{"port"}),
	}
	reg.MustRegister(s.rx, s.tx, s.state)
	return s
}

func (s *Stats) countRX(t ptp.MessageType) {
	if s == nil {
		return
	}
	s.rx.WithLabelValues(s.portLabel, t.String()).Inc()
}

func (s *Stats) countTX(t ptp.MessageType) {
	if s == nil {
		return
	}
	s.tx.WithLabelValues(s.portLabel, t.String()).Inc()
}

func (s *Stats) setState(st ptp.PortState) {
	if s == nil {
		return
	}
	s.state.WithLabelValues(s.portLabel).Set(float64(st))
}
