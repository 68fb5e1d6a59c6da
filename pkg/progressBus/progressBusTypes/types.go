package progressBusTypes

import (
	"sync"
)

// Status messages emitted during a trace. The empty string clears the status.
const (
	Status_ScanningWallets     = "Scanning wallets"
	Status_FetchingAllDeposits = "Fetching all deposits"
	Status_Done                = ""
)

// ProgressEvent is one coarse-grained progress update for a running trace.
type ProgressEvent struct {
	// Percent is the approximate completion percentage, rounded to two
	// decimal places. Batches run concurrently, so treat this as
	// monotonic-ish rather than a precise sequence counter.
	Percent float64
	// Message is a short human-readable status line
	Message string
}

type ConsumerId string

// Consumer receives progress events on its channel. A full or nil channel
// causes events to be dropped for that consumer, never to block the trace.
type Consumer struct {
	Id      ConsumerId
	Channel chan *ProgressEvent
}

// ConsumerList is a thread-safe list of consumers.
type ConsumerList struct {
	mu        sync.RWMutex
	consumers []*Consumer
}

func NewConsumerList() *ConsumerList {
	return &ConsumerList{
		consumers: make([]*Consumer, 0),
	}
}

func (cl *ConsumerList) Add(c *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.consumers = append(cl.consumers, c)
}

func (cl *ConsumerList) Remove(c *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	remaining := make([]*Consumer, 0, len(cl.consumers))
	for _, existing := range cl.consumers {
		if existing.Id != c.Id {
			remaining = append(remaining, existing)
		}
	}
	cl.consumers = remaining
}

func (cl *ConsumerList) GetAll() []*Consumer {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	out := make([]*Consumer, len(cl.consumers))
	copy(out, cl.consumers)
	return out
}
