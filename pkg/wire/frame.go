package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"

	"github.com/dd0wney/cluso-graphquery/pkg/pools"
)

const (
	// DefaultMaxFrameBytes bounds a single frame payload
	DefaultMaxFrameBytes = 16 << 20

	// compressedFlag marks a snappy block payload in the high bit of the length word
	compressedFlag = 1 << 31
)

// ErrFrameTooLarge is returned for frames above the configured maximum
var ErrFrameTooLarge = errors.New("frame too large")

// Framer reads and writes length-prefixed frames:
//
//	[length:4 little-endian][payload:length]
//
// When Compress is set the payload is snappy encoded and the high bit of the
// length word is set. Readers accept both forms.
type Framer struct {
	MaxFrameBytes int
	Compress      bool
}

// NewFramer returns a Framer with the given limit; a non-positive limit uses the default.
func NewFramer(maxFrameBytes int, compress bool) *Framer {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	return &Framer{MaxFrameBytes: maxFrameBytes, Compress: compress}
}

// Encode wraps a payload for a message-oriented transport (no length word is needed
// there, only the compression marker).
func (f *Framer) Encode(payload []byte) []byte {
	if !f.Compress {
		out := make([]byte, 1+len(payload))
		copy(out[1:], payload)
		return out
	}
	enc := snappy.Encode(nil, payload)
	out := make([]byte, 1+len(enc))
	out[0] = 1
	copy(out[1:], enc)
	return out
}

// Decode reverses Encode
func (f *Framer) Decode(msg []byte) ([]byte, error) {
	if len(msg) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrMalformed)
	}
	switch msg[0] {
	case 0:
		if len(msg)-1 > f.MaxFrameBytes {
			return nil, ErrFrameTooLarge
		}
		return msg[1:], nil
	case 1:
		return f.decompress(msg[1:])
	default:
		return nil, fmt.Errorf("%w: unknown message flag %d", ErrMalformed, msg[0])
	}
}

// WriteFrame writes one frame
func (f *Framer) WriteFrame(w io.Writer, payload []byte) error {
	word := uint32(0)
	if f.Compress {
		scratch := pools.GetBytes(snappy.MaxEncodedLen(len(payload)))
		defer pools.PutBytes(scratch)
		payload = snappy.Encode(scratch, payload)
		word = compressedFlag
	}
	if len(payload) > f.MaxFrameBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFrameTooLarge, len(payload), f.MaxFrameBytes)
	}
	word |= uint32(len(payload))

	buf := pools.GetBytes(4 + len(payload))
	defer pools.PutBytes(buf)
	binary.LittleEndian.PutUint32(buf, word)
	copy(buf[4:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame. io.EOF is returned unchanged when the stream ends
// cleanly between frames.
func (f *Framer) ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	word := binary.LittleEndian.Uint32(hdr[:])
	compressed := word&compressedFlag != 0
	size := int(word &^ compressedFlag)
	if size > f.MaxFrameBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFrameTooLarge, size, f.MaxFrameBytes)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if !compressed {
		return payload, nil
	}
	return f.decompress(payload)
}

func (f *Framer) decompress(data []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if n > f.MaxFrameBytes {
		return nil, fmt.Errorf("%w: %d decoded bytes exceeds %d", ErrFrameTooLarge, n, f.MaxFrameBytes)
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}
