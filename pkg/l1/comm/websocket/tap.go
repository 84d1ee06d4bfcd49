// Package websocket streams monitored serial traffic to websocket clients.
package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/picoload/pkg/l1/link"
)

// Tap broadcasts every chunk as a binary message to connected clients.
type Tap struct {
	lock    sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

var _ link.ChunkHandler = (*Tap)(nil)

// tapBacklog is the number of chunks queued per client before dropping.
const tapBacklog = 64

// NewTap creates Tap.
func NewTap() *Tap {
	return &Tap{clients: make(map[*websocket.Conn]chan []byte)}
}

// Handler returns the http.Handler accepting websocket clients.
func (t *Tap) Handler() http.Handler {
	return websocket.Handler(t.serve)
}

// Clients returns the number of connected clients.
func (t *Tap) Clients() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.clients)
}

// HandleChunk implements link.ChunkHandler. Slow clients lose chunks.
func (t *Tap) HandleChunk(ctx context.Context, c link.Chunk) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	for conn, ch := range t.clients {
		select {
		case ch <- c.Data:
		default:
			glog.Warningf("ws %s: dropped %d bytes", conn.Request().RemoteAddr, len(c.Data))
		}
	}
	return nil
}

func (t *Tap) serve(conn *websocket.Conn) {
	ch := make(chan []byte, tapBacklog)
	t.lock.Lock()
	t.clients[conn] = ch
	t.lock.Unlock()
	addr := conn.Request().RemoteAddr
	glog.V(1).Infof("ws %s connected", addr)
	defer func() {
		t.lock.Lock()
		delete(t.clients, conn)
		t.lock.Unlock()
		conn.Close()
		glog.V(1).Infof("ws %s disconnected", addr)
	}()

	// Reads only detect the client going away.
	closed := make(chan struct{})
	go func() {
		var discard []byte
		for websocket.Message.Receive(conn, &discard) == nil {
		}
		close(closed)
	}()

	for {
		select {
		case data := <-ch:
			if err := websocket.Message.Send(conn, data); err != nil {
				glog.V(1).Infof("ws %s: %v", addr, err)
				return
			}
		case <-closed:
			return
		}
	}
}
