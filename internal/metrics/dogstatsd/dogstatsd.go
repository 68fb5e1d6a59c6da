package dogstatsd

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/vampfi/bonus-engine/internal/metrics/metricsTypes"
	"go.uber.org/zap"
)

// DogStatsdMetricsClient ships metrics to a datadog-agent statsd endpoint.
// Unlike the Prometheus sink it is schemaless, so no label validation happens
// here; unknown metrics are simply forwarded.
type DogStatsdMetricsClient struct {
	client     *statsd.Client
	sampleRate float64
	logger     *zap.Logger
}

func NewDogStatsdMetricsClient(url string, sampleRate float64, l *zap.Logger) (*DogStatsdMetricsClient, error) {
	client, err := statsd.New(url,
		statsd.WithNamespace("bonusEngine"),
	)
	if err != nil {
		return nil, err
	}
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1
	}
	return &DogStatsdMetricsClient{
		client:     client,
		sampleRate: sampleRate,
		logger:     l,
	}, nil
}

func formatTags(labels []metricsTypes.MetricsLabel) []string {
	tags := make([]string, 0, len(labels))
	for _, label := range labels {
		tags = append(tags, fmt.Sprintf("%s:%s", label.Name, label.Value))
	}
	return tags
}

func (dsc *DogStatsdMetricsClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	return dsc.client.Count(name, int64(value), formatTags(labels), dsc.sampleRate)
}

func (dsc *DogStatsdMetricsClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	return dsc.client.Gauge(name, value, formatTags(labels), dsc.sampleRate)
}

func (dsc *DogStatsdMetricsClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	return dsc.client.Timing(name, value, formatTags(labels), dsc.sampleRate)
}

func (dsc *DogStatsdMetricsClient) Flush() {
	if err := dsc.client.Flush(); err != nil {
		dsc.logger.Sugar().Warnw("failed to flush statsd client", zap.Error(err))
	}
}
