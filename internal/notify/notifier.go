package notify

import (
	"context"
	"sync"
)

// Notifier is the fanout port used by the services. Calls never block on
// delivery and never fail the caller.
type Notifier interface {
	NotifyUser(userID int64, e Event)
	Broadcast(e Event)
}

// Delivery is an event addressed to one user or to everyone.
type Delivery struct {
	UserID    int64 `json:"userId,omitempty"`
	Broadcast bool  `json:"broadcast,omitempty"`
	Event     Event `json:"event"`
}

// Sink receives deliveries from the Dispatcher.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, d Delivery) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) NotifyUser(int64, Event) {}
func (Nop) Broadcast(Event)         {}

// Recorder keeps every delivery in memory. It serves as a synchronous
// Notifier in service tests and as a Sink in dispatcher tests.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) NotifyUser(userID int64, e Event) {
	r.record(Delivery{UserID: userID, Event: e})
}

func (r *Recorder) Broadcast(e Event) {
	r.record(Delivery{Broadcast: true, Event: e})
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Deliver(_ context.Context, d Delivery) error {
	r.record(d)
	return nil
}

func (r *Recorder) record(d Delivery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
}

// Deliveries returns a copy of everything recorded so far.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// ForUser returns the events addressed to userID.
func (r *Recorder) ForUser(userID int64) []Event {
	var out []Event
	for _, d := range r.Deliveries() {
		if !d.Broadcast && d.UserID == userID {
			out = append(out, d.Event)
		}
	}
	return out
}

// Broadcasts returns the broadcast events.
func (r *Recorder) Broadcasts() []Event {
	var out []Event
	for _, d := range r.Deliveries() {
		if d.Broadcast {
			out = append(out, d.Event)
		}
	}
	return out
}

// Reset forgets all recorded deliveries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = nil
}

var (
	_ Notifier = Nop{}
	_ Notifier = (*Recorder)(nil)
	_ Sink     = (*Recorder)(nil)
)
