// Package sse implements a Server-Sent Events broker for plant, photo and
// reminder updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/plantcare/internal/metrics"
	"github.com/starford/plantcare/internal/watering"
)

// Event types.
const (
	EventPlantSaved    = "plant.saved"
	EventPlantDeleted  = "plant.deleted"
	EventPlantWatered  = "plant.watered"
	EventPhotosUpdated = "photos.updated"
	EventGardenUpdated = "garden.updated"
	EventReminders     = "reminders"
	EventNotification  = "notification"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type plantEventReq struct {
	kind string
	name string
}

// RemindersPayload is the data of a reminders event. Message joins every
// reminder line so a client can surface it as one notification.
type RemindersPayload struct {
	Message   string              `json:"message"`
	Reminders []watering.Reminder `json:"reminders"`
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop goroutine owns the client set and the garden.updated
// throttle timestamp; public methods talk to it over channels.
type Broker struct {
	gardenMin time.Duration
	metrics   *metrics.Metrics

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	plantEventCh  chan plantEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits garden.updated at most once per
// gardenThrottle. m may be nil.
func NewBroker(gardenThrottle time.Duration, m *metrics.Metrics) *Broker {
	if gardenThrottle <= 0 {
		gardenThrottle = 2 * time.Second
	}

	b := &Broker{
		gardenMin:     gardenThrottle,
		metrics:       m,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		plantEventCh:  make(chan plantEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastGarden time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than block the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.plantEventCh:
			broadcast(Event{Type: req.kind, Data: map[string]string{"plantName": req.name}})

			now := time.Now()
			if now.Sub(lastGarden) >= b.gardenMin {
				lastGarden = now
				broadcast(Event{Type: EventGardenUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the event loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PlantChanged publishes a plant event of the given type followed by a
// throttled garden.updated.
func (b *Broker) PlantChanged(kind, name string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.plantEventCh <- plantEventReq{kind: kind, name: name}:
	case <-b.stopped:
	}
}

// PhotosChanged publishes photos.updated for a plant.
func (b *Broker) PhotosChanged(name string) {
	b.Publish(Event{Type: EventPhotosUpdated, Data: map[string]string{"plantName": name}})
}

// Notify publishes a user-facing notification.
func (b *Broker) Notify(level, message string) {
	b.Publish(Event{Type: EventNotification, Data: map[string]string{"level": level, "message": message}})
}

// PublishReminders publishes one reminders event for a non-empty batch.
func (b *Broker) PublishReminders(reminders []watering.Reminder) {
	if len(reminders) == 0 {
		return
	}
	lines := make([]string, len(reminders))
	for i, r := range reminders {
		lines[i] = r.Message
	}
	b.Publish(Event{Type: EventReminders, Data: RemindersPayload{
		Message:   strings.Join(lines, "\n\n"),
		Reminders: reminders,
	}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	b.metrics.SSEConnected(1)
	defer b.metrics.SSEConnected(-1)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
