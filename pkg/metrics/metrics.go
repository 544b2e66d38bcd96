package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "zzik",
		Subsystem: "missions",
		Name:      "runs_started_total",
		Help:      "Number of mission runs started.",
	})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zzik",
		Subsystem: "missions",
		Name:      "verifications_total",
		Help:      "Verification step outcomes by step and result.",
	}, []string{"step", "result"})

	RewardsPaid = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "zzik",
		Subsystem: "wallet",
		Name:      "rewards_paid_total",
		Help:      "Number of mission rewards credited.",
	})

	RewardAmount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "zzik",
		Subsystem: "wallet",
		Name:      "reward_amount_total",
		Help:      "Total reward amount credited, in the smallest currency unit.",
	})
)

func VerificationOK(step string) {
	Verifications.WithLabelValues(step, "ok").Inc()
}

func VerificationRejected(step string) {
	Verifications.WithLabelValues(step, "rejected").Inc()
}
