// Package trace implements SPEC_FULL §10's optional live instruction
// trace: when the VM is run with a trace address, every executed
// instruction is fanned out as a JSON text frame to any connected
// gorilla/websocket client, mirroring
// internal/network/websocket_server.go's server/upgrader/client-map
// shape from the teacher repo. With no address configured, Emit is a
// nil-receiver no-op and costs the VM's hot path one nil check.
package trace

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"dpl/internal/bytecode"
)

// Event is one instruction-trace record, encoded as JSON for transport.
type Event struct {
	IP         int    `json:"ip"`
	Op         string `json:"op"`
	StackDepth int    `json:"stack_depth"`
}

// Broadcaster owns one HTTP server upgrading every request on its path
// to a websocket connection and fanning Emit calls out to all of them.
type Broadcaster struct {
	upgrader websocket.Upgrader
	server   *http.Server

	mu      sync.RWMutex
	clients map[string]*websocket.Conn
	nextID  int
}

// NewBroadcaster starts an HTTP server at addr and begins accepting
// websocket clients at "/trace" in the background. The server runs
// until Close is called; a failure to bind is reported asynchronously
// through the standard logger, matching the teacher's fire-and-forget
// `go server.Server.ListenAndServe()` pattern.
func NewBroadcaster(addr string) *Broadcaster {
	b := &Broadcaster{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[string]*websocket.Conn),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/trace", b.handleUpgrade)
	b.server = &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("trace: broadcaster on %s stopped: %v", addr, err)
		}
	}()

	return b
}

func (b *Broadcaster) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	id := fmt.Sprintf("trace-client-%d", b.nextID)
	b.nextID++
	b.clients[id] = conn
	b.mu.Unlock()
}

// Emit JSON-encodes ev and writes it to every connected client,
// dropping (and unregistering) any client whose write fails. Safe to
// call on a nil *Broadcaster.
func (b *Broadcaster) Emit(ip int, op bytecode.OpCode, stackDepth int) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(Event{IP: ip, Op: op.String(), StackDepth: stackDepth})
	if err != nil {
		return
	}

	b.mu.RLock()
	targets := make(map[string]*websocket.Conn, len(b.clients))
	for id, c := range b.clients {
		targets[id] = c
	}
	b.mu.RUnlock()

	var dead []string
	for id, c := range targets {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			dead = append(dead, id)
		}
	}
	if len(dead) == 0 {
		return
	}
	b.mu.Lock()
	for _, id := range dead {
		if c, ok := b.clients[id]; ok {
			c.Close()
			delete(b.clients, id)
		}
	}
	b.mu.Unlock()
}

// Close stops accepting new clients and closes the HTTP server. Safe to
// call on a nil *Broadcaster.
func (b *Broadcaster) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	for id, c := range b.clients {
		c.Close()
		delete(b.clients, id)
	}
	b.mu.Unlock()
	return b.server.Close()
}
