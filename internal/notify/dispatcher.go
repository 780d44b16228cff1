package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/metrics"
)

// deliveryTimeout bounds a single sink call.
const deliveryTimeout = 5 * time.Second

// Dispatcher is an asynchronous Notifier. Events are queued and handed to
// every sink by a single worker. When the queue is full the event is dropped.
type Dispatcher struct {
	queue   chan Delivery
	sinks   []Sink
	metrics *metrics.Metrics
	done    chan struct{}
}

// NewDispatcher creates a Dispatcher with a queue of queueSize events.
func NewDispatcher(queueSize int, m *metrics.Metrics, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		queue:   make(chan Delivery, queueSize),
		sinks:   sinks,
		metrics: m,
		done:    make(chan struct{}),
	}
}

// NotifyUser queues e for every connection of userID.
func (d *Dispatcher) NotifyUser(userID int64, e Event) {
	d.enqueue(Delivery{UserID: userID, Event: e})
}

// Broadcast queues e for every connection.
func (d *Dispatcher) Broadcast(e Event) {
	d.enqueue(Delivery{Broadcast: true, Event: e})
}

func (d *Dispatcher) enqueue(dl Delivery) {
	select {
	case d.queue <- dl:
		d.metrics.NotificationsQueued.WithLabelValues(string(dl.Event.Type)).Inc()
	default:
		d.metrics.NotificationsDropped.Inc()
		log.Warn().
			Str("event_id", dl.Event.ID).
			Str("type", string(dl.Event.Type)).
			Int64("user_id", dl.UserID).
			Msg("Notification queue full, event dropped")
	}
}

// Run delivers queued events until ctx is cancelled, then flushes what is
// still queued and returns.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case dl := <-d.queue:
			d.deliver(ctx, dl)
		case <-ctx.Done():
			d.flush()
			return
		}
	}
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	for {
		select {
		case dl := <-d.queue:
			d.deliver(ctx, dl)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, dl Delivery) {
	for _, s := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		err := s.Deliver(sctx, dl)
		cancel()
		if err != nil {
			d.metrics.NotificationErrors.WithLabelValues(s.Name()).Inc()
			log.Error().
				Err(err).
				Str("sink", s.Name()).
				Str("event_id", dl.Event.ID).
				Str("type", string(dl.Event.Type)).
				Msg("Failed to deliver notification")
		}
	}
}

var _ Notifier = (*Dispatcher)(nil)
