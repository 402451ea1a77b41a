package logic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"time"
)

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_metrics.go -package mocks fedipress/logic IMetrics,IRequestObserver

type IRequestObserver interface {
	Finish()
}

type IMetrics interface {
	ServiceStarted()
	StartApubRequestIn(label string) IRequestObserver
	StartApubRequestOut(label string) IRequestObserver
	ActivityDelivered()
	DeliveryFailed()
	InboxActivity(verb string)
	TotalFollowers(count int)
	JobRun(name string)
}

type metrics struct {
	serviceStartedCounter  prometheus.Counter
	apubRequestsIn         *prometheus.HistogramVec
	apubRequestsOut        *prometheus.HistogramVec
	activitiesDelivered    prometheus.Counter
	deliveriesFailed       prometheus.Counter
	inboxActivities        *prometheus.CounterVec
	totalFollowersGauge    prometheus.Gauge
	jobRuns                *prometheus.CounterVec
}

func NewMetrics() IMetrics {

	serviceStartedCounter := promauto.NewCounter(prometheus.CounterOpts{
		Name: "fedipress_service_started",
		Help: "Incremented once at startup",
	})
	apubRequestsIn := promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fedipress_apub_requests_in",
		Help:    "Incoming ActivityPub requests served",
		Buckets: []float64{0.01, 0.1, 0.5, 2.5},
	}, []string{"endpoint"})
	apubRequestsOut := promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fedipress_apub_requests_out",
		Help:    "Outgoing ActivityPub requests made",
		Buckets: []float64{0.01, 0.1, 0.5, 2.5},
	}, []string{"endpoint"})
	activitiesDelivered := promauto.NewCounter(prometheus.CounterOpts{
		Name: "fedipress_activities_delivered",
		Help: "Activities successfully delivered to remote inboxes",
	})
	deliveriesFailed := promauto.NewCounter(prometheus.CounterOpts{
		Name: "fedipress_deliveries_failed",
		Help: "Activity deliveries that failed",
	})
	inboxActivities := promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fedipress_inbox_activities",
		Help: "Incoming activities accepted for processing, by verb",
	}, []string{"verb"})
	totalFollowersGauge := promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fedipress_total_followers",
		Help: "Total number of followers across all local actors",
	})
	jobRuns := promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fedipress_job_runs",
		Help: "Scheduled jobs executed, by name",
	}, []string{"name"})

	return &metrics{
		serviceStartedCounter: serviceStartedCounter,
		apubRequestsIn:        apubRequestsIn,
		apubRequestsOut:       apubRequestsOut,
		activitiesDelivered:   activitiesDelivered,
		deliveriesFailed:      deliveriesFailed,
		inboxActivities:       inboxActivities,
		totalFollowersGauge:   totalFollowersGauge,
		jobRuns:               jobRuns,
	}
}

type requestObserver struct {
	start time.Time
	hist  prometheus.Observer
}

func (ro *requestObserver) Finish() {
	elapsed := time.Since(ro.start)
	ro.hist.Observe(elapsed.Seconds())
}

func (m *metrics) ServiceStarted() {
	m.serviceStartedCounter.Inc()
}

func (m *metrics) StartApubRequestIn(label string) IRequestObserver {
	return &requestObserver{
		start: time.Now(),
		hist:  m.apubRequestsIn.WithLabelValues(label),
	}
}

func (m *metrics) StartApubRequestOut(label string) IRequestObserver {
	return &requestObserver{
		start: time.Now(),
		hist:  m.apubRequestsOut.WithLabelValues(label),
	}
}

func (m *metrics) ActivityDelivered() {
	m.activitiesDelivered.Inc()
}

func (m *metrics) DeliveryFailed() {
	m.deliveriesFailed.Inc()
}

func (m *metrics) InboxActivity(verb string) {
	m.inboxActivities.WithLabelValues(verb).Inc()
}

func (m *metrics) TotalFollowers(count int) {
	m.totalFollowersGauge.Set(float64(count))
}

func (m *metrics) JobRun(name string) {
	m.jobRuns.WithLabelValues(name).Inc()
}
