// Package progressBus fans trace progress events out to subscribed consumers
// (progress bars, UI state) without coupling the engine to display logic.
package progressBus

import (
	"github.com/vampfi/bonus-engine/pkg/progressBus/progressBusTypes"
	"go.uber.org/zap"
)

// Bus distributes progress events to registered consumers. Publishing is
// non-blocking and safe to call from concurrent batch tasks.
type Bus struct {
	consumers *progressBusTypes.ConsumerList
	logger    *zap.Logger
}

func NewBus(l *zap.Logger) *Bus {
	return &Bus{
		consumers: progressBusTypes.NewConsumerList(),
		logger:    l,
	}
}

// Subscribe registers a consumer to receive progress events.
func (b *Bus) Subscribe(consumer *progressBusTypes.Consumer) {
	b.consumers.Add(consumer)
}

// Unsubscribe removes a consumer from the bus.
func (b *Bus) Unsubscribe(consumer *progressBusTypes.Consumer) {
	b.consumers.Remove(consumer)
}

// Publish sends an event to all consumers. Events are dropped for consumers
// whose channel is full or nil; a slow display must never stall a trace.
func (b *Bus) Publish(event *progressBusTypes.ProgressEvent) {
	for _, consumer := range b.consumers.GetAll() {
		if consumer.Channel == nil {
			continue
		}
		select {
		case consumer.Channel <- event:
		default:
			b.logger.Sugar().Debugw("dropping progress event, consumer channel full",
				zap.String("consumerId", string(consumer.Id)),
				zap.Float64("percent", event.Percent),
			)
		}
	}
}

// Sink returns a publish function suitable for injecting into the tracer.
func (b *Bus) Sink() func(percent float64, message string) {
	return func(percent float64, message string) {
		b.Publish(&progressBusTypes.ProgressEvent{
			Percent: percent,
			Message: message,
		})
	}
}
