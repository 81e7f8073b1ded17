// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trustee

import (
	"github.com/prometheus/client_golang/prometheus"
)

type stepMetrics struct {
	steps             prometheus.Counter
	stepFailures      prometheus.Counter
	messagesAdded     prometheus.Counter
	actionsExecuted   prometheus.Counter
	overwriteAttempts prometheus.Counter
	boardStatements   prometheus.Gauge
}

func newStepMetrics(registerer prometheus.Registerer) (*stepMetrics, error) {
	m := &stepMetrics{
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "braid_trustee_steps",
			Help: "Number of protocol steps run",
		}),
		stepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "braid_trustee_step_failures",
			Help: "Number of protocol steps that failed",
		}),
		messagesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "braid_trustee_messages_added",
			Help: "Number of messages added to the local board",
		}),
		actionsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "braid_trustee_actions_executed",
			Help: "Number of actions executed",
		}),
		overwriteAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "braid_trustee_overwrite_attempts",
			Help: "Number of dropped board overwrite attempts",
		}),
		boardStatements: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "braid_trustee_board_statements",
			Help: "Number of statements on the local board",
		}),
	}
	if registerer == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.steps,
		m.stepFailures,
		m.messagesAdded,
		m.actionsExecuted,
		m.overwriteAttempts,
		m.boardStatements,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
