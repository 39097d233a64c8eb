package proto

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFramerRoundTrip(t *testing.T) {
	const max = 1024
	f := NewFramer(max)

	sizes := []int{0, 1, 9, 10, 11, 255, 1023, max}
	for _, size := range sizes {
		payload := bytes.Repeat([]byte{'x'}, size)
		frame, err := f.Encode(payload)
		if err != nil {
			t.Fatalf("encode %d bytes: %v", size, err)
		}
		if len(frame) != HeaderWidth+size {
			t.Fatalf("frame for %d bytes has length %d", size, len(frame))
		}

		got, err := f.ReadFrame(bytes.NewReader(frame))
		if err != nil {
			t.Fatalf("decode %d bytes: %v", size, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("round trip mismatch for %d bytes", size)
		}
	}
}

func TestFramerUTF8Payload(t *testing.T) {
	f := NewFramer(0)
	payload := []byte("привет, 世界 👋")

	frame, err := f.Encode(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := string(frame[:HeaderWidth]); got != "0000000025" {
		t.Fatalf("header counts bytes, got %q", got)
	}

	got, err := f.ReadFrame(bytes.NewReader(frame))
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("unexpected decode %q err=%v", got, err)
	}
}

func TestFramerSequentialFrames(t *testing.T) {
	f := NewFramer(64)
	var buf bytes.Buffer
	for _, s := range []string{"alice", "", "/people", "hi"} {
		if err := f.WriteFrame(&buf, []byte(s)); err != nil {
			t.Fatalf("write %q: %v", s, err)
		}
	}

	for _, want := range []string{"alice", "", "/people", "hi"} {
		got, err := f.ReadFrame(&buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(got) != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
	if _, err := f.ReadFrame(&buf); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after last frame, got %v", err)
	}
}

func TestFramerErrors(t *testing.T) {
	f := NewFramer(16)

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "clean close", input: "", want: io.EOF},
		{name: "partial header", input: "00000", want: ErrFraming},
		{name: "non digit header", input: "00000abc12hello", want: ErrFraming},
		{name: "signed header", input: "+000000005hello", want: ErrFraming},
		{name: "space padded header", input: "         5hello", want: ErrFraming},
		{name: "truncated payload", input: "0000000010short", want: ErrFraming},
		{name: "header only", input: "0000000003", want: ErrFraming},
		{name: "too large", input: "0000000017" + strings.Repeat("x", 17), want: ErrMessageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ReadFrame(strings.NewReader(tt.input))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFramerEncodeRejectsOversized(t *testing.T) {
	f := NewFramer(4)
	if _, err := f.Encode([]byte("hello")); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}

	var buf bytes.Buffer
	if err := f.WriteFrame(&buf, []byte("hello")); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge from WriteFrame, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written for oversized payload")
	}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestFramerPropagatesTransportErrors(t *testing.T) {
	boom := errors.New("reset by peer")
	_, err := NewFramer(0).ReadFrame(errReader{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected transport error to be wrapped, got %v", err)
	}
	if errors.Is(err, ErrFraming) {
		t.Fatalf("transport errors are not framing errors: %v", err)
	}
}
