package complaint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var complaintCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "support_complaints_submitted",
	Help: "Number of complaints submitted, by persistence outcome",
}, []string{"outcome"})
