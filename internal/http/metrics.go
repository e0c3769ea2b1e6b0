package http

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	checkIns *prometheus.CounterVec
	distance prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_checkins_total",
			Help: "Check-in attempts by outcome (status label or rejection kind).",
		}, []string{"outcome"}),
		distance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_checkin_distance_meters",
			Help:    "Distance from the geofence center of geofence-checked submissions.",
			Buckets: []float64{5, 10, 25, 50, 75, 100, 150, 250, 500, 1000},
		}),
	}
	reg.MustRegister(m.checkIns, m.distance)
	return m
}
