// Package metrics 提取管线的 Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector 管线指标集合
type Collector struct {
	SamplesProcessed prometheus.Counter
	SamplesFailed    *prometheus.CounterVec
	SamplesSkipped   prometheus.Counter
	ExtractDuration  prometheus.Histogram
}

// NewCollector 创建并注册指标
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		SamplesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "krono",
			Subsystem: "extract",
			Name:      "samples_processed_total",
			Help:      "Number of samples that produced a feature row",
		}),
		SamplesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "krono",
			Subsystem: "extract",
			Name:      "samples_failed_total",
			Help:      "Number of failed samples by reason",
		}, []string{"reason"}),
		SamplesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "krono",
			Subsystem: "extract",
			Name:      "samples_skipped_total",
			Help:      "Number of samples skipped because the checkpoint already contains them",
		}),
		ExtractDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "krono",
			Subsystem: "extract",
			Name:      "sample_duration_seconds",
			Help:      "Wall time spent extracting one sample",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}

	if reg != nil {
		reg.MustRegister(c.SamplesProcessed, c.SamplesFailed, c.SamplesSkipped, c.ExtractDuration)
	}
	return c
}
