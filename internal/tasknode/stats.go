package tasknode

import (
	"github.com/prometheus/client_golang/prometheus"
)

type processorStats struct {
	transactionsIngested prometheus.Counter
	memosMaterialized    prometheus.Counter
	transfersApplied     prometheus.Counter
	materializeFailures  prometheus.Counter
}

func newProcessorStats() *processorStats {
	return &processorStats{
		transactionsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasknode_transactions_ingested_total",
			Help: "Number of raw transactions written to the cache",
		}),
		memosMaterialized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasknode_memos_materialized_total",
			Help: "Number of decoded memo rows inserted or refreshed",
		}),
		transfersApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasknode_transfers_applied_total",
			Help: "Number of transfers folded into the balance ledger",
		}),
		materializeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasknode_materialize_failures_total",
			Help: "Number of transactions whose memo could not be materialized",
		}),
	}
}

func (s *processorStats) register(registerer prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{
		s.transactionsIngested,
		s.memosMaterialized,
		s.transfersApplied,
		s.materializeFailures,
	} {
		if err := registerer.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
