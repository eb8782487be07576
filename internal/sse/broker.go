// Package sse streams index lifecycle events to HTTP clients.
package sse

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"sync/atomic"

	"github.com/starford/archgraph/internal/report"
)

// Event types sent to clients.
const (
	EventCorpusChanged = "corpus.changed"
	EventIndexRebuilt  = "index.rebuilt"
	EventIndexFailed   = "index.failed"
	EventReportChanged = "report.changed"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Rebuild describes one finished engine run.
type Rebuild struct {
	RunID   string         `json:"run_id"`
	Summary report.Summary `json:"summary"`
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop owns the client set and the last seen report
// summary. Public methods talk to it through channels.
type Broker struct {
	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	rebuildCh     chan Rebuild
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker and starts its loop.
func NewBroker() *Broker {
	b := &Broker{
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		rebuildCh:     make(chan Rebuild, 16),
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
	var last *report.Summary

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
				// Slow client; drop rather than stall the loop.
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

		case rb := <-b.rebuildCh:
			broadcast(Event{Type: EventIndexRebuilt, Data: rb})
			if last == nil || !sameSummary(*last, rb.Summary) {
				s := rb.Summary
				last = &s
				broadcast(Event{Type: EventReportChanged, Data: rb.Summary})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes all client channels.
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

// PublishChanges announces a batch of changed corpus paths.
func (b *Broker) PublishChanges(paths []string) {
	b.Publish(Event{Type: EventCorpusChanged, Data: map[string][]string{"paths": paths}})
}

// PublishFailure announces a run that aborted with a fatal error.
func (b *Broker) PublishFailure(err error) {
	b.Publish(Event{Type: EventIndexFailed, Data: map[string]string{"error": err.Error()}})
}

// PublishRebuild announces a finished run. report.changed follows only when
// the summary differs from the previous run's.
func (b *Broker) PublishRebuild(rb Rebuild) {
	if b.closed.Load() {
		return
	}
	select {
	case b.rebuildCh <- rb:
	case <-b.stopped:
	}
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
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

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

func sameSummary(a, b report.Summary) bool {
	return a.OK == b.OK && a.Errors == b.Errors && a.Warnings == b.Warnings &&
		a.Diagnostics == b.Diagnostics && maps.Equal(a.ByKind, b.ByKind)
}
