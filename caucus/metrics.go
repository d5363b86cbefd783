package caucus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "caucus",
		Name:      "writes_total",
		Help:      "Writes issued to the shared store, by operation.",
	}, []string{"op"})
	skippedWritesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "caucus",
		Name:      "skipped_writes_total",
		Help:      "Entries left untouched by a reconciliation because they did not change.",
	})
	notificationsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "caucus",
		Name:      "notifications_total",
		Help:      "Notifications dispatched to observers, by interest.",
	}, []string{"interest"})
)
