package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var outcomeCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "support_moderation_outcomes",
	Help: "Number of group messages by moderation outcome",
}, []string{"outcome"})

var memberActionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "support_moderation_member_actions",
	Help: "Number of member actions issued, by action and result",
}, []string{"action", "result"})
