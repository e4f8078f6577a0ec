// Package wire implements the broker's framed binary protocol: a fixed
// 6-byte header followed by a bounded payload, shared verbatim between the
// server and the client library.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
)

// HeaderSize is the constant size of a frame header: role(1) + action(1) + payload_length(4).
const HeaderSize = 6

// MaxPayload bounds the payload_length field; larger declared sizes are a protocol error.
const MaxPayload = 10 * 1024 * 1024

// Header is the decoded fixed part of a frame.
type Header struct {
	Role         byte
	Action       byte
	PayloadLen   uint32
}

// Type returns the two-byte (role, action) pair as a string, e.g. "LO".
func (h Header) Type() string {
	return string([]byte{h.Role, h.Action})
}

// Encode produces a single buffer of exactly HeaderSize+len(payload) bytes.
// The caller is responsible for keeping len(payload) within MaxPayload;
// Encode writes len(payload) into the 32-bit length field without checking it.
func Encode(role, action byte, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = role
	buf[1] = action
	binary.BigEndian.PutUint32(buf[2:6], uint32(len(payload)))
	copy(buf[6:], payload)
	return buf
}

// DecodeHeader parses a 6-byte header. The caller must supply exactly HeaderSize bytes.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, errors.New("wire: short header")
	}
	return Header{
		Role:       buf[0],
		Action:     buf[1],
		PayloadLen: binary.BigEndian.Uint32(buf[2:6]),
	}, nil
}

// ErrDisconnect indicates the peer closed the connection cleanly (EOF with no bytes consumed).
var ErrDisconnect = errors.New("wire: peer disconnected")

// ErrPayloadTooLarge indicates a declared payload_length exceeding MaxPayload.
var ErrPayloadTooLarge = errors.New("wire: payload too large")

// ReadExact reads exactly len(buf) bytes from r, looping across short reads.
// It returns ErrDisconnect if the peer closed before any byte of this call was
// read, and wraps any other error as a network error. Partial reads are never
// returned to the caller: either the full buffer is filled or an error is returned.
func ReadExact(r io.Reader, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		read += n
		if err != nil {
			if err == io.EOF && read == 0 {
				return ErrDisconnect
			}
			if err == io.EOF {
				return errors.Wrap(io.ErrUnexpectedEOF, "wire: connection closed mid-frame")
			}
			return errors.Wrap(err, "wire: read failed")
		}
	}
	return nil
}

// ReadFrame reads and decodes one full frame (header + payload) from r.
// A declared payload_length over MaxPayload is reported as ErrPayloadTooLarge
// before any payload buffer is allocated, per the codec's bound contract.
func ReadFrame(r io.Reader) (Header, []byte, error) {
	var hdrBuf [HeaderSize]byte
	if err := ReadExact(r, hdrBuf[:]); err != nil {
		return Header{}, nil, err
	}
	hdr, err := DecodeHeader(hdrBuf[:])
	if err != nil {
		return Header{}, nil, err
	}
	if hdr.PayloadLen > MaxPayload {
		return hdr, nil, ErrPayloadTooLarge
	}
	payload := make([]byte, hdr.PayloadLen)
	if hdr.PayloadLen > 0 {
		if err := ReadExact(r, payload); err != nil {
			return hdr, nil, err
		}
	}
	return hdr, payload, nil
}

// WriteFrame encodes and writes one frame to w in a single Write call.
func WriteFrame(w io.Writer, role, action byte, payload []byte) error {
	_, err := w.Write(Encode(role, action, payload))
	if err != nil {
		return errors.Wrap(err, "wire: write failed")
	}
	return nil
}
