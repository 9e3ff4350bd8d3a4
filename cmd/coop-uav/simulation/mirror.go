package simulation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/picogrid/swarm-autonomy/pkg/client"
	"github.com/picogrid/swarm-autonomy/pkg/logger"
	"github.com/picogrid/swarm-autonomy/pkg/models"
	"github.com/picogrid/swarm-autonomy/pkg/wire"
)

const (
	observerQueueSize = 256
	requestQueueSize  = 64
	writeTimeout      = 5 * time.Second
)

// MirrorRequest is an observer request waiting for the simulation loop.
// Requests are served between ticks so the loop never races the mirror.
type MirrorRequest struct {
	ObserverID     uint64
	Type           wire.Type
	AgentID        int
	RealtimeFactor float64
}

// MirrorServer streams a read-only view of a run to websocket observers.
// Every observer gets WorldInit on connect and then whatever is broadcast.
// A slow observer loses frames; it never slows the simulation.
type MirrorServer struct {
	hello    models.WorldInit
	codec    *wire.Codec
	upgrader websocket.Upgrader
	log      logger.Logger

	mu        sync.Mutex
	observers map[uint64]chan []byte
	closed    bool

	nextID   atomic.Uint64
	dropped  atomic.Int64
	requests chan MirrorRequest
	srv      *http.Server
}

// NewMirrorServer creates a mirror that greets observers with hello
func NewMirrorServer(hello models.WorldInit, compress bool) (*MirrorServer, error) {
	codec, err := wire.NewCodec(compress)
	if err != nil {
		return nil, err
	}
	return &MirrorServer{
		hello: hello,
		codec: codec,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:       logger.WithPrefix("mirror"),
		observers: make(map[uint64]chan []byte),
		requests:  make(chan MirrorRequest, requestQueueSize),
	}, nil
}

// Handler serves the mirror endpoint
func (m *MirrorServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(client.MirrorPath, m.serveObserver)
	return mux
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr asks for port 0.
func (m *MirrorServer) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	m.srv = &http.Server{Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Errorf("Mirror server stopped: %v", err)
		}
	}()
	bound := ln.Addr().String()
	logger.Networkf("Mirror listening on ws://%s%s", bound, client.MirrorPath)
	return bound, nil
}

// Requests delivers observer requests in arrival order
func (m *MirrorServer) Requests() <-chan MirrorRequest {
	return m.requests
}

// Observers returns the IDs of connected observers
func (m *MirrorServer) Observers() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint64, 0, len(m.observers))
	for id := range m.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Dropped returns how many frames were dropped for slow observers
func (m *MirrorServer) Dropped() int64 { return m.dropped.Load() }

// Broadcast sends v to every observer
func (m *MirrorServer) Broadcast(t wire.Type, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || len(m.observers) == 0 {
		return nil
	}
	frame, err := m.codec.Marshal(t, v)
	if err != nil {
		return err
	}
	for id, out := range m.observers {
		m.enqueue(id, out, frame)
	}
	return nil
}

// Reply sends v to one observer. A departed observer is ignored.
func (m *MirrorServer) Reply(observerID uint64, t wire.Type, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, ok := m.observers[observerID]
	if !ok {
		return nil
	}
	frame, err := m.codec.Marshal(t, v)
	if err != nil {
		return err
	}
	m.enqueue(observerID, out, frame)
	return nil
}

func (m *MirrorServer) enqueue(id uint64, out chan []byte, frame []byte) {
	select {
	case out <- frame:
	default:
		if n := m.dropped.Add(1); n == 1 || n%100 == 0 {
			m.log.Warnf("Observer %d is slow, %d frames dropped so far", id, n)
		}
	}
}

// Shutdown tells every observer the run is over, closes their streams and
// stops the listener
func (m *MirrorServer) Shutdown(ctx context.Context, reason string, tick int64) error {
	if err := m.Broadcast(wire.TypeShutdown, models.Shutdown{Reason: reason, Tick: tick}); err != nil {
		m.log.Warnf("Failed to encode shutdown: %v", err)
	}

	m.mu.Lock()
	if !m.closed {
		m.closed = true
		for id, out := range m.observers {
			close(out)
			delete(m.observers, id)
		}
	}
	m.mu.Unlock()

	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}

func (m *MirrorServer) register() (uint64, chan []byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, nil, false
	}
	initFrame, err := m.codec.Marshal(wire.TypeWorldInit, m.hello)
	if err != nil {
		m.log.Errorf("Failed to encode world init: %v", err)
		return 0, nil, false
	}
	id := m.nextID.Add(1)
	out := make(chan []byte, observerQueueSize)
	out <- initFrame
	m.observers[id] = out
	return id, out, true
}

func (m *MirrorServer) unregister(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if out, ok := m.observers[id]; ok {
		close(out)
		delete(m.observers, id)
	}
}

func (m *MirrorServer) serveObserver(rw http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id, out, ok := m.register()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "simulation finished"), time.Now().Add(time.Second))
		return
	}
	m.log.Infof("Observer %d connected from %s", id, r.RemoteAddr)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for frame := range out {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				m.log.Debugf("Observer %d write failed: %v", id, err)
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"), time.Now().Add(time.Second))
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		m.handleFrame(id, data)
	}

	m.unregister(id)
	select {
	case <-writerDone:
	case <-time.After(500 * time.Millisecond):
	}
	m.log.Infof("Observer %d disconnected", id)
}

func (m *MirrorServer) handleFrame(id uint64, data []byte) {
	t, payload, err := m.codec.Unmarshal(data)
	if err != nil {
		m.log.Debugf("Observer %d sent a bad frame: %v", id, err)
		return
	}

	req := MirrorRequest{ObserverID: id, Type: t}
	switch t {
	case wire.TypeBeliefViewRequest:
		var msg models.BeliefViewRequest
		if err := wire.Decode(payload, &msg); err != nil {
			return
		}
		req.AgentID = msg.AgentID
	case wire.TypeSetStepRate:
		var msg models.SetStepRate
		if err := wire.Decode(payload, &msg); err != nil {
			return
		}
		req.RealtimeFactor = msg.RealtimeFactor
	default:
		m.log.Debugf("Observer %d sent unexpected %s", id, t)
		return
	}

	select {
	case m.requests <- req:
	default:
		m.log.Warnf("Request queue full, dropping %s from observer %d", t, id)
	}
}
