package board

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	navigationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roster_navigations_total",
			Help: "Total number of page navigation actions",
		},
		[]string{"action"},
	)

	pageRedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roster_page_redirects_total",
			Help: "Total number of page corrections by cause",
		},
		[]string{"reason"},
	)

	sharesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roster_share_links_total",
			Help: "Total number of share links built",
		},
	)
)
