package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var refreshExchangesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_refresh_exchanges_total",
		Help: "Total number of refresh token exchanges by result",
	},
	[]string{"result"},
)
