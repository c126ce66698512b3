package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GroupJoins counts join attempts by outcome (joined, full, rejected).
	GroupJoins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salome_group_joins_total",
		Help: "Group join attempts by outcome",
	}, []string{"outcome"})

	// PaymentNotifications counts webhook deliveries by result
	// (settled, duplicate, mismatch, cancelled, failed, ignored).
	PaymentNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salome_payment_notifications_total",
		Help: "Payment gateway notifications by reconciliation result",
	}, []string{"result"})

	// BroadcastsSent counts dispatched broadcasts.
	BroadcastsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salome_broadcasts_sent_total",
		Help: "Broadcasts dispatched to members",
	})

	// ExpiredMemberships counts members removed by the payment deadline sweep.
	ExpiredMemberships = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salome_expired_memberships_total",
		Help: "Members removed for missing the payment deadline",
	})
)
