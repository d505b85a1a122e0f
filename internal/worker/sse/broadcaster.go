// Package sse streams session lifecycle events to connected browsers.
package sse

import (
	"fmt"
	"net/http"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// clientBuffer bounds the per-client queue; a client that cannot keep up is
// dropped instead of blocking the broadcast path.
const clientBuffer = 16

type client struct {
	id string
	ch chan []byte
}

// Broadcaster fans session events out to every connected SSE client.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[string]*client
	nextID  int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[string]*client)}
}

func (b *Broadcaster) subscribe() *client {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	c := &client{
		id: fmt.Sprintf("client-%d", b.nextID),
		ch: make(chan []byte, clientBuffer),
	}
	b.clients[c.id] = c
	log.Debug().Str("client_id", c.id).Int("clients", len(b.clients)).Msg("sse client connected")
	return c
}

func (b *Broadcaster) unsubscribe(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[c.id]; !ok {
		return
	}
	delete(b.clients, c.id)
	close(c.ch)
	log.Debug().Str("client_id", c.id).Int("clients", len(b.clients)).Msg("sse client disconnected")
}

// Broadcast queues an event for every client. Clients with a full queue are
// dropped.
func (b *Broadcaster) Broadcast(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("sse payload marshal failed")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, c := range b.clients {
		select {
		case c.ch <- payload:
		default:
			delete(b.clients, id)
			close(c.ch)
			log.Warn().Str("client_id", id).Msg("sse client too slow, dropped")
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// ServeHTTP streams events to one client until it disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := b.subscribe()
	defer b.unsubscribe(c)

	fmt.Fprintf(w, "data: {\"kind\":\"connected\",\"client_id\":%q}\n\n", c.id)
	flusher.Flush()

	for {
		select {
		case payload, open := <-c.ch:
			if !open {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
