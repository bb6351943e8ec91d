package statsio

import (
	"bytes"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nexus-arch/coresim/internal/logging"
	"github.com/sony/gobreaker"
)

// client is one connected dashboard websocket, guarded by its own
// circuit breaker so a wedged send can't stall the flush path every
// other subsystem depends on at phase boundaries.
type client struct {
	conn    *websocket.Conn
	breaker *gobreaker.CircuitBreaker
}

func newClient(conn *websocket.Conn, name string) *client {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	}
	return &client{conn: conn, breaker: gobreaker.NewCircuitBreaker(st)}
}

func (c *client) send(payload []byte) error {
	_, err := c.breaker.Execute(func() (any, error) {
		c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		return nil, c.conn.WriteMessage(websocket.BinaryMessage, payload)
	})
	return err
}

// Stream fans out periodic binary tree snapshots to connected dashboard
// clients.
type Stream struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     *logging.Logger
}

// NewStream builds an empty push stream.
func NewStream(log *logging.Logger) *Stream {
	return &Stream{clients: make(map[*client]struct{}), log: log}
}

// Add registers a new accepted websocket connection for pushes.
func (s *Stream) Add(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[newClient(conn, conn.RemoteAddr().String())] = struct{}{}
}

// Broadcast serializes t's binary tabular dump and sends it to every
// connected client, dropping (and closing) any whose breaker is open or
// whose send fails outright.
func (s *Stream) Broadcast(t *Tree) {
	var buf bytes.Buffer
	if err := WriteBinary(&buf, t); err != nil {
		if s.log != nil {
			s.log.Error("statsio: encoding snapshot for stream", logging.Err(err))
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if err := c.send(buf.Bytes()); err != nil {
			if s.log != nil {
				s.log.Warn("statsio: dropping stalled stats client", logging.Err(err))
			}
			c.conn.Close()
			delete(s.clients, c)
		}
	}
}
