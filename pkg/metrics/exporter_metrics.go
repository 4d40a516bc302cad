package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NewReadErrorsTotal 寄存器读取失败次数
// 标签 register: 寄存器 ID
func (f *MetricFactory) NewReadErrorsTotal() *prometheus.CounterVec {
	return promauto.With(f.reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "deye_exporter_register_read_errors_total",
			Help: "Total number of failed register reads",
		},
		[]string{"register"},
	)
}

// NewLastReadTimestamp 寄存器最近一次成功读取的时间（unix 秒）
func (f *MetricFactory) NewLastReadTimestamp() *prometheus.GaugeVec {
	return promauto.With(f.reg).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deye_exporter_register_last_success_timestamp_seconds",
			Help: "Unix time of the last successful read per register",
		},
		[]string{"register"},
	)
}

// NewCycleDurationSeconds 单次采集周期耗时分布
// 分桶：0.1s ~ 51.2s，覆盖慢速 RS485 链路的整轮读取
func (f *MetricFactory) NewCycleDurationSeconds() *prometheus.HistogramVec {
	return promauto.With(f.reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deye_exporter_cycle_duration_seconds",
			Help:    "Duration of one collection cycle",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"collector"},
	)
}

// NewCycleFailuresTotal 采集周期级别的故障（panic 或整体错误）
func (f *MetricFactory) NewCycleFailuresTotal() *prometheus.CounterVec {
	return promauto.With(f.reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "deye_exporter_cycle_failures_total",
			Help: "Total number of collection cycles that failed or panicked",
		},
		[]string{"collector"},
	)
}
