// Package metrics assembles the configured metric sinks behind the single
// IMetricsClient interface the engine emits to.
package metrics

import (
	"time"

	"github.com/vampfi/bonus-engine/internal/config"
	"github.com/vampfi/bonus-engine/internal/metrics/dogstatsd"
	"github.com/vampfi/bonus-engine/internal/metrics/metricsTypes"
	"github.com/vampfi/bonus-engine/internal/metrics/prometheus"
	"go.uber.org/zap"
)

// MultiMetricsClient fans each emission out to every enabled sink. With no
// sinks enabled every call is a no-op, so callers never need nil checks.
type MultiMetricsClient struct {
	clients []metricsTypes.IMetricsClient
}

func (mmc *MultiMetricsClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	for _, c := range mmc.clients {
		if err := c.Incr(name, labels, value); err != nil {
			return err
		}
	}
	return nil
}

func (mmc *MultiMetricsClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	for _, c := range mmc.clients {
		if err := c.Gauge(name, value, labels); err != nil {
			return err
		}
	}
	return nil
}

func (mmc *MultiMetricsClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	for _, c := range mmc.clients {
		if err := c.Timing(name, value, labels); err != nil {
			return err
		}
	}
	return nil
}

func (mmc *MultiMetricsClient) Flush() {
	for _, c := range mmc.clients {
		c.Flush()
	}
}

// InitMetricsSinksFromConfig builds the composite metrics client from the
// enabled sinks in cfg.
func InitMetricsSinksFromConfig(cfg *config.Config, l *zap.Logger) (metricsTypes.IMetricsClient, error) {
	clients := make([]metricsTypes.IMetricsClient, 0)

	if cfg.PrometheusConfig.Enabled {
		pmc, err := prometheus.NewPrometheusMetricsClient(&prometheus.PrometheusMetricsConfig{
			Metrics: metricsTypes.MetricTypes,
		}, l)
		if err != nil {
			return nil, err
		}
		clients = append(clients, pmc)
	}

	if cfg.StatsdConfig.Enabled {
		dsc, err := dogstatsd.NewDogStatsdMetricsClient(cfg.StatsdConfig.Url, cfg.StatsdConfig.SampleRate, l)
		if err != nil {
			return nil, err
		}
		clients = append(clients, dsc)
	}

	return &MultiMetricsClient{clients: clients}, nil
}
