package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// liocfgCollector implements prometheus.Collector, reading engine
// counters on each scrape.
type liocfgCollector struct {
	srv *Server

	commitsTotal       *prometheus.Desc
	undosTotal         *prometheus.Desc
	parseErrorsTotal   *prometheus.Desc
	applyStepsTotal    *prometheus.Desc
	applyFailuresTotal *prometheus.Desc
	snapshots          *prometheus.Desc
	objects            *prometheus.Desc
}

func newCollector(srv *Server) *liocfgCollector {
	return &liocfgCollector{
		srv: srv,

		commitsTotal: prometheus.NewDesc(
			"liocfg_commits_total",
			"Total committed configuration changes.",
			nil, nil,
		),
		undosTotal: prometheus.NewDesc(
			"liocfg_undos_total",
			"Total undo operations.",
			nil, nil,
		),
		parseErrorsTotal: prometheus.NewDesc(
			"liocfg_parse_errors_total",
			"Total rejected configuration texts.",
			nil, nil,
		),
		applyStepsTotal: prometheus.NewDesc(
			"liocfg_apply_steps_total",
			"Total backend operations performed by apply.",
			nil, nil,
		),
		applyFailuresTotal: prometheus.NewDesc(
			"liocfg_apply_failures_total",
			"Total failed backend operations during apply.",
			nil, nil,
		),
		snapshots: prometheus.NewDesc(
			"liocfg_snapshots",
			"Current snapshot stack depth.",
			nil, nil,
		),
		objects: prometheus.NewDesc(
			"liocfg_objects",
			"Current number of configured objects per class.",
			[]string{"class"}, nil,
		),
	}
}

func (c *liocfgCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.commitsTotal
	ch <- c.undosTotal
	ch <- c.parseErrorsTotal
	ch <- c.applyStepsTotal
	ch <- c.applyFailuresTotal
	ch <- c.snapshots
	ch <- c.objects
}

func (c *liocfgCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.srv.store.Stats()
	ch <- prometheus.MustNewConstMetric(c.commitsTotal, prometheus.CounterValue,
		float64(stats.Commits))
	ch <- prometheus.MustNewConstMetric(c.undosTotal, prometheus.CounterValue,
		float64(stats.Undos))
	ch <- prometheus.MustNewConstMetric(c.parseErrorsTotal, prometheus.CounterValue,
		float64(stats.ParseErrors))
	ch <- prometheus.MustNewConstMetric(c.applyStepsTotal, prometheus.CounterValue,
		float64(stats.ApplySteps))
	ch <- prometheus.MustNewConstMetric(c.applyFailuresTotal, prometheus.CounterValue,
		float64(stats.ApplyFailures))
	ch <- prometheus.MustNewConstMetric(c.snapshots, prometheus.GaugeValue,
		float64(c.srv.store.Depth()))
	for class, count := range c.srv.store.ObjectCounts() {
		ch <- prometheus.MustNewConstMetric(c.objects, prometheus.GaugeValue,
			float64(count), class)
	}
}
