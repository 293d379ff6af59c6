package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
)

// LengthPrefixSize is the width of the big-endian length header of every frame.
const LengthPrefixSize = 8

// MaxFrameSize bounds the body of a single frame. Ship layouts are tiny, anything
// larger is treated as garbage.
const MaxFrameSize = 1024 * 1024

var (
	ErrFrameTooShort  = errors.New("frame shorter than length prefix")
	ErrFrameTooLarge  = errors.New("frame exceeds maximum size")
	ErrMalformedFrame = errors.New("malformed frame")
)

// Frame is one request or response on the wire.
// PlayerID is 0 only for the initial connect request.
type Frame struct {
	PlayerID int             `json:"id"`
	Command  Command         `json:"command"`
	Payload  json.RawMessage `json:"payload"`
}

// NewFrame marshals payload into a frame. A nil payload is sent as an empty object.
func NewFrame(playerID int, command Command, payload any) (Frame, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{PlayerID: playerID, Command: command, Payload: raw}, nil
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage(`{}`), nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		if len(raw) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return raw, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T payload: %w", payload, err)
	}
	return data, nil
}

// Bind decodes the frame payload into v.
func (f Frame) Bind(v any) error {
	if len(f.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("%w: payload of %s: %v", ErrMalformedFrame, f.Command, err)
	}
	return nil
}

// Encode renders the frame as length prefix + JSON body.
func Encode(f Frame) ([]byte, error) {
	if f.Payload == nil {
		f.Payload = json.RawMessage(`{}`)
	}
	body, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	if len(body) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, LengthPrefixSize+len(body))
	binary.BigEndian.PutUint64(buf[:LengthPrefixSize], uint64(len(body)))
	copy(buf[LengthPrefixSize:], body)
	return buf, nil
}

// Decode parses a complete frame produced by Encode.
func Decode(data []byte) (Frame, error) {
	if len(data) < LengthPrefixSize {
		return Frame{}, ErrFrameTooShort
	}
	size := binary.BigEndian.Uint64(data[:LengthPrefixSize])
	if size > MaxFrameSize {
		return Frame{}, ErrFrameTooLarge
	}
	body := data[LengthPrefixSize:]
	if uint64(len(body)) != size {
		return Frame{}, fmt.Errorf("%w: announced %d bytes, got %d", ErrMalformedFrame, size, len(body))
	}
	return decodeBody(body)
}

func decodeBody(body []byte) (Frame, error) {
	var wire struct {
		PlayerID *int            `json:"id"`
		Command  *Command        `json:"command"`
		Payload  json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if wire.PlayerID == nil || wire.Command == nil {
		return Frame{}, fmt.Errorf("%w: missing id or command", ErrMalformedFrame)
	}
	if len(wire.Payload) == 0 || wire.Payload[0] != '{' {
		return Frame{}, fmt.Errorf("%w: payload must be an object", ErrMalformedFrame)
	}
	return Frame{PlayerID: *wire.PlayerID, Command: *wire.Command, Payload: wire.Payload}, nil
}

// WriteFrame writes one encoded frame to w.
func WriteFrame(w io.Writer, f Frame) error {
	data, err := Encode(f)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFrame reads exactly one frame from r. Partial reads are looped until the
// announced length is satisfied; a missing or short prefix is an error.
func ReadFrame(r io.Reader) (Frame, error) {
	var prefix [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, fmt.Errorf("%w: %v", ErrFrameTooShort, err)
		}
		return Frame{}, err
	}
	size := binary.BigEndian.Uint64(prefix[:])
	if size > MaxFrameSize {
		return Frame{}, ErrFrameTooLarge
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, fmt.Errorf("%w: truncated body: %v", ErrMalformedFrame, err)
		}
		return Frame{}, err
	}
	return decodeBody(body)
}

// closeWriter is implemented by *net.TCPConn and *net.UnixConn.
type closeWriter interface {
	CloseWrite() error
}

// SendRequest writes a frame and signals end-of-message by half-closing the write side
// when the connection supports it.
func SendRequest(conn net.Conn, f Frame) error {
	if err := WriteFrame(conn, f); err != nil {
		return err
	}
	if cw, ok := conn.(closeWriter); ok {
		if err := cw.CloseWrite(); err != nil {
			return fmt.Errorf("failed to half-close connection: %w", err)
		}
	}
	return nil
}
