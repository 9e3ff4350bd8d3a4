package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/picogrid/swarm-autonomy/pkg/logger"
	"github.com/picogrid/swarm-autonomy/pkg/models"
	"github.com/picogrid/swarm-autonomy/pkg/wire"
)

// MirrorPath is the websocket endpoint served by a running simulation
const MirrorPath = "/mirror"

// Config holds the configuration for an observer connection
type Config struct {
	Addr        string
	DialTimeout time.Duration
}

// Observer is a read-mostly connection to a simulation's mirror
type Observer struct {
	conn  *websocket.Conn
	codec *wire.Codec

	writeMu sync.Mutex
}

// Handlers receives decoded mirror messages. Nil handlers are skipped.
type Handlers struct {
	WorldInit  func(models.WorldInit)
	SimTime    func(models.SimTime)
	State      func(models.StateUpdate)
	BeliefView func(models.BeliefViewResponse)
	Shutdown   func(models.Shutdown)
}

// Dial connects to the mirror at cfg.Addr (host:port)
func Dial(ctx context.Context, cfg Config) (*Observer, error) {
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	u := url.URL{Scheme: "ws", Host: cfg.Addr, Path: MirrorPath}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mirror %s: %w", u.String(), err)
	}

	codec, err := wire.NewCodec(false)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Networkf("Connected to mirror at %s", u.String())
	return &Observer{conn: conn, codec: codec}, nil
}

// Close terminates the connection
func (o *Observer) Close() error {
	o.writeMu.Lock()
	_ = o.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	o.writeMu.Unlock()
	o.codec.Close()
	return o.conn.Close()
}

// Next blocks until the next frame arrives
func (o *Observer) Next() (wire.Type, []byte, error) {
	_, data, err := o.conn.ReadMessage()
	if err != nil {
		return 0, nil, err
	}
	return o.codec.Unmarshal(data)
}

// RequestBelief asks the simulation for an agent's belief view. The response
// arrives asynchronously through Next or Watch.
func (o *Observer) RequestBelief(agentID int) error {
	return o.send(wire.TypeBeliefViewRequest, models.BeliefViewRequest{AgentID: agentID})
}

// SetStepRate asks the simulation to pace ticks at factor times real time
func (o *Observer) SetStepRate(factor float64) error {
	return o.send(wire.TypeSetStepRate, models.SetStepRate{RealtimeFactor: factor})
}

func (o *Observer) send(t wire.Type, v any) error {
	frame, err := o.codec.Marshal(t, v)
	if err != nil {
		return err
	}
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	if err := o.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to send %s: %w", t, err)
	}
	return nil
}

// Watch dispatches frames to h until the simulation shuts down, the
// connection closes, or ctx is cancelled.
func (o *Observer) Watch(ctx context.Context, h Handlers) error {
	go func() {
		<-ctx.Done()
		_ = o.conn.SetReadDeadline(time.Now())
	}()

	for {
		t, payload, err := o.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("mirror read failed: %w", err)
		}

		done, err := dispatch(t, payload, h)
		if err != nil {
			logger.Warnf("Dropping %s frame: %v", t, err)
			continue
		}
		if done {
			return nil
		}
	}
}

func dispatch(t wire.Type, payload []byte, h Handlers) (bool, error) {
	switch t {
	case wire.TypeWorldInit:
		var m models.WorldInit
		if err := wire.Decode(payload, &m); err != nil {
			return false, err
		}
		if h.WorldInit != nil {
			h.WorldInit(m)
		}
	case wire.TypeSimTime:
		var m models.SimTime
		if err := wire.Decode(payload, &m); err != nil {
			return false, err
		}
		if h.SimTime != nil {
			h.SimTime(m)
		}
	case wire.TypeStateUpdate:
		var m models.StateUpdate
		if err := wire.Decode(payload, &m); err != nil {
			return false, err
		}
		if h.State != nil {
			h.State(m)
		}
	case wire.TypeBeliefViewResponse:
		var m models.BeliefViewResponse
		if err := wire.Decode(payload, &m); err != nil {
			return false, err
		}
		if h.BeliefView != nil {
			h.BeliefView(m)
		}
	case wire.TypeShutdown:
		var m models.Shutdown
		if err := wire.Decode(payload, &m); err != nil {
			return false, err
		}
		if h.Shutdown != nil {
			h.Shutdown(m)
		}
		return true, nil
	default:
		return false, errors.New("unexpected message type from simulation")
	}
	return false, nil
}
