// Package wire frames mirror messages exchanged between a running simulation
// and its observers.
//
// A frame is a 6-byte header followed by the payload:
//
//	[0:4] payload size, big endian
//	[4]   message type
//	[5]   flags (bit 0: payload is zstd compressed)
//
// Payloads are JSON encodings of the types in pkg/models.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Type identifies the payload of a frame
type Type uint8

const (
	TypeWorldInit Type = iota + 1
	TypeSimTime
	TypeStateUpdate
	TypeBeliefViewRequest
	TypeBeliefViewResponse
	TypeSetStepRate
	TypeShutdown
)

func (t Type) String() string {
	switch t {
	case TypeWorldInit:
		return "world_init"
	case TypeSimTime:
		return "sim_time"
	case TypeStateUpdate:
		return "state_update"
	case TypeBeliefViewRequest:
		return "belief_view_request"
	case TypeBeliefViewResponse:
		return "belief_view_response"
	case TypeSetStepRate:
		return "set_step_rate"
	case TypeShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

const (
	// HeaderSize is the fixed frame header length
	HeaderSize = 6

	// FlagCompressed marks a zstd-compressed payload
	FlagCompressed byte = 1 << 0

	// MaxPayloadSize bounds both encoded and decoded payloads
	MaxPayloadSize = 16 << 20

	// compressThreshold is the smallest payload worth compressing
	compressThreshold = 512
)

var (
	ErrShortFrame    = errors.New("wire: frame shorter than header")
	ErrFrameTooLarge = errors.New("wire: payload exceeds maximum size")
	ErrSizeMismatch  = errors.New("wire: payload size does not match header")
	ErrUnknownType   = errors.New("wire: unknown message type")
)

// Codec encodes and decodes frames. A Codec is safe for concurrent use.
type Codec struct {
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// NewCodec creates a codec. When compress is true, payloads above a small
// threshold are zstd compressed; compressed frames are always accepted.
func NewCodec(compress bool) (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxPayloadSize))
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Codec{compress: compress, enc: enc, dec: dec}, nil
}

// Close releases the compression resources
func (c *Codec) Close() {
	_ = c.enc.Close()
	c.dec.Close()
}

// Marshal encodes v as a complete frame of type t
func (c *Codec) Marshal(t Type, v any) ([]byte, error) {
	if !t.valid() {
		return nil, ErrUnknownType
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}

	var flags byte
	if c.compress && len(payload) >= compressThreshold {
		payload = c.enc.EncodeAll(payload, make([]byte, 0, len(payload)/2))
		flags |= FlagCompressed
	}
	if len(payload) > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}

	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(payload)))
	frame[4] = byte(t)
	frame[5] = flags
	copy(frame[HeaderSize:], payload)
	return frame, nil
}

// Unmarshal splits a complete frame into its type and decompressed payload
func (c *Codec) Unmarshal(frame []byte) (Type, []byte, error) {
	if len(frame) < HeaderSize {
		return 0, nil, ErrShortFrame
	}
	size := binary.BigEndian.Uint32(frame[0:4])
	if size > MaxPayloadSize {
		return 0, nil, ErrFrameTooLarge
	}
	if int(size) != len(frame)-HeaderSize {
		return 0, nil, ErrSizeMismatch
	}
	return c.payload(Type(frame[4]), frame[5], frame[HeaderSize:])
}

// WriteFrame encodes v and writes the frame to w
func (c *Codec) WriteFrame(w io.Writer, t Type, v any) error {
	frame, err := c.Marshal(t, v)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", t, err)
	}
	return nil
}

// ReadFrame reads exactly one frame from r
func (c *Codec) ReadFrame(r io.Reader) (Type, []byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	size := binary.BigEndian.Uint32(header[0:4])
	if size > MaxPayloadSize {
		return 0, nil, ErrFrameTooLarge
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("failed to read frame payload: %w", err)
	}
	return c.payload(Type(header[4]), header[5], body)
}

func (c *Codec) payload(t Type, flags byte, body []byte) (Type, []byte, error) {
	if !t.valid() {
		return 0, nil, ErrUnknownType
	}
	if flags&FlagCompressed == 0 {
		return t, body, nil
	}
	out, err := c.dec.DecodeAll(body, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to decompress %s payload: %w", t, err)
	}
	return t, out, nil
}

func (t Type) valid() bool {
	return t >= TypeWorldInit && t <= TypeShutdown
}

// Decode unmarshals a payload returned by Unmarshal or ReadFrame
func Decode(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}
