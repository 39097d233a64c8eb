package proto

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// HeaderWidth is the number of ASCII decimal digits preceding every payload.
const HeaderWidth = 10

// maxHeaderValue is the largest length a HeaderWidth-digit header can carry.
const maxHeaderValue uint64 = 9_999_999_999

var (
	// ErrFraming reports a malformed or truncated frame.
	ErrFraming = errors.New("framing error")
	// ErrMessageTooLarge reports a payload above the configured maximum.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrConnectionClosed reports that the peer went away mid-conversation.
	ErrConnectionClosed = errors.New("connection closed")
)

// Framer encodes and decodes length-prefixed frames:
// [HeaderWidth ASCII digits, zero padded][payload].
type Framer struct {
	// MaxSize bounds payload length in bytes. Zero or negative means only the
	// header width limits it.
	MaxSize int
}

// NewFramer returns a framer enforcing maxSize.
func NewFramer(maxSize int) Framer {
	return Framer{MaxSize: maxSize}
}

func (f Framer) limit() uint64 {
	if f.MaxSize <= 0 {
		return maxHeaderValue
	}
	return uint64(f.MaxSize)
}

// Encode returns header+payload in a single buffer.
func (f Framer) Encode(payload []byte) ([]byte, error) {
	n := uint64(len(payload))
	if n > f.limit() {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrMessageTooLarge, n, f.limit())
	}

	buf := make([]byte, 0, HeaderWidth+len(payload))
	buf = fmt.Appendf(buf, "%0*d", HeaderWidth, n)
	buf = append(buf, payload...)
	return buf, nil
}

// WriteFrame encodes payload and writes it to w in one call.
func (f Framer) WriteFrame(w io.Writer, payload []byte) error {
	frame, err := f.Encode(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame blocks until one full frame is read from r.
//
// It returns io.EOF when the stream ends cleanly before any header byte,
// ErrFraming when the header is malformed or the stream ends mid-frame,
// and ErrMessageTooLarge when the declared length exceeds MaxSize. The
// payload of an oversized frame is not consumed.
func (f Framer) ReadFrame(r io.Reader) ([]byte, error) {
	var header [HeaderWidth]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, fmt.Errorf("%w: stream closed inside header", ErrFraming)
		default:
			return nil, fmt.Errorf("read header: %w", err)
		}
	}

	n, err := parseHeader(header[:])
	if err != nil {
		return nil, err
	}
	if n > f.limit() {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrMessageTooLarge, n, f.limit())
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: stream closed inside %d byte payload", ErrFraming, n)
		}
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return payload, nil
}

func parseHeader(header []byte) (uint64, error) {
	for _, b := range header {
		if b < '0' || b > '9' {
			return 0, fmt.Errorf("%w: header %q is not a decimal length", ErrFraming, header)
		}
	}
	n, err := strconv.ParseUint(string(header), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: header %q: %v", ErrFraming, header, err)
	}
	return n, nil
}
