package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var webhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "support_webhook_requests",
	Help: "Number of webhook deliveries by acknowledgement result",
}, []string{"result"})
