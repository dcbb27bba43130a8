// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mentorly/backend/internal/models"
)

var SettlementOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mentorly",
	Subsystem: "settlement",
	Name:      "operations_total",
	Help:      "Booking settlement operations by operation and result.",
}, []string{"operation", "result"})

var CreditsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mentorly",
	Subsystem: "settlement",
	Name:      "credits_total",
	Help:      "Credits moved by settlement kind (hold, release, refund, reversal).",
}, []string{"kind"})

var PayoutTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mentorly",
	Subsystem: "payout",
	Name:      "transitions_total",
	Help:      "Payout state transitions by target status.",
}, []string{"status"})

var PayoutErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mentorly",
	Subsystem: "payout",
	Name:      "errors_total",
	Help:      "Rejected payout operations by operation.",
}, []string{"operation"})

var CommissionsRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "mentorly",
	Subsystem: "commission",
	Name:      "recorded_total",
	Help:      "Provider commissions created.",
})

var CommissionCredits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "mentorly",
	Subsystem: "commission",
	Name:      "credits_total",
	Help:      "Credits added to provider payable balances by commissions.",
})

var IntegrityFindings = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "mentorly",
	Subsystem: "audit",
	Name:      "integrity_findings",
	Help:      "Findings of the last integrity run by kind.",
}, []string{"kind"})

var NetPositionUSD = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "mentorly",
	Subsystem: "audit",
	Name:      "net_position_usd",
	Help:      "Cash-in minus cash-out minus liabilities at the last solvency run.",
})

// Result labels an operation outcome for the *_total counters.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, models.ErrConflict) {
		return "conflict"
	}
	return "error"
}
