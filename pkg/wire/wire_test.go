package wire

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/swarm-autonomy/pkg/models"
)

func newCodec(t *testing.T, compress bool) *Codec {
	t.Helper()
	c, err := NewCodec(compress)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestHeaderLayout(t *testing.T) {
	c := newCodec(t, false)

	frame, err := c.Marshal(TypeSimTime, models.SimTime{Tick: 3, TimeMs: 300})
	require.NoError(t, err)

	size := binary.BigEndian.Uint32(frame[0:4])
	assert.Equal(t, len(frame)-HeaderSize, int(size))
	assert.Equal(t, byte(TypeSimTime), frame[4])
	assert.Equal(t, byte(0), frame[5])
	assert.JSONEq(t, `{"tick":3,"time_ms":300}`, string(frame[HeaderSize:]))
}

func TestCompressedStreamRoundTrip(t *testing.T) {
	c := newCodec(t, true)

	update := models.StateUpdate{Tick: 9, TimeMs: 900}
	for i := 0; i < 50; i++ {
		update.Agents = append(update.Agents, models.AgentState{ID: i, Mode: "search", TargetID: -1})
	}

	var buf bytes.Buffer
	require.NoError(t, c.WriteFrame(&buf, TypeStateUpdate, update))
	require.NoError(t, c.WriteFrame(&buf, TypeShutdown, models.Shutdown{Reason: "done", Tick: 9}))

	raw := buf.Bytes()
	assert.Equal(t, FlagCompressed, raw[5]&FlagCompressed)

	typ, payload, err := c.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, TypeStateUpdate, typ)
	var got models.StateUpdate
	require.NoError(t, Decode(payload, &got))
	assert.Equal(t, update, got)

	typ, payload, err = c.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, TypeShutdown, typ)
	var bye models.Shutdown
	require.NoError(t, Decode(payload, &bye))
	assert.Equal(t, "done", bye.Reason)
}

func TestUnmarshalRejectsMalformedFrames(t *testing.T) {
	c := newCodec(t, false)

	_, _, err := c.Unmarshal([]byte{0, 0})
	assert.ErrorIs(t, err, ErrShortFrame)

	frame, err := c.Marshal(TypeBeliefViewRequest, models.BeliefViewRequest{AgentID: 2})
	require.NoError(t, err)

	_, _, err = c.Unmarshal(frame[:len(frame)-1])
	assert.ErrorIs(t, err, ErrSizeMismatch)

	bad := append([]byte(nil), frame...)
	bad[4] = 0xFF
	_, _, err = c.Unmarshal(bad)
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = c.Marshal(Type(0), nil)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestSmallPayloadStaysUncompressed(t *testing.T) {
	c := newCodec(t, true)

	frame, err := c.Marshal(TypeSetStepRate, models.SetStepRate{RealtimeFactor: 2})
	require.NoError(t, err)
	assert.Equal(t, byte(0), frame[5])

	typ, payload, err := c.Unmarshal(frame)
	require.NoError(t, err)
	assert.Equal(t, TypeSetStepRate, typ)
	assert.True(t, strings.Contains(string(payload), "realtime_factor"))
}
