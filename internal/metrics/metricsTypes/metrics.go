package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
	Flush()
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_TraceStarted       = "trace.started"
	Metric_Incr_TraceCompleted     = "trace.completed"
	Metric_Incr_TraceFailed        = "trace.failed"
	Metric_Incr_DepositQualified   = "trace.depositQualified"
	Metric_Incr_DepositUnpriced    = "valuation.depositUnpriced"
	Metric_Incr_PriceLookupRetried = "valuation.priceLookupRetried"

	Metric_Gauge_CandidatesChecked = "trace.candidatesChecked"
	Metric_Gauge_TotalScore        = "score.total"

	Metric_Timing_TraceDuration     = "trace.duration"
	Metric_Timing_ValuationDuration = "valuation.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name: Metric_Incr_TraceStarted,
			Labels: []string{
				"chain",
				"casino",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_TraceCompleted,
			Labels: []string{
				"chain",
				"casino",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_TraceFailed,
			Labels: []string{
				"chain",
				"casino",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_DepositQualified,
			Labels: []string{
				"chain",
				"casino",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_DepositUnpriced,
			Labels: []string{
				"asset",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_PriceLookupRetried,
			Labels: []string{
				"asset",
			},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name: Metric_Gauge_CandidatesChecked,
			Labels: []string{
				"chain",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Gauge_TotalScore,
			Labels: []string{
				"chain",
				"casino",
			},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name: Metric_Timing_TraceDuration,
			Labels: []string{
				"chain",
				"casino",
				"hasError",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Timing_ValuationDuration,
			Labels: []string{
				"chain",
			},
		},
	},
}
