package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/wagiedev/forkcheck-go/internal/errors"
)

// MaxFrameSize is the default limit on a frame body.
const MaxFrameSize = 1024 * 1024 // 1MB

// lengthPrefixSize is the size of the length header in the length-prefixed framing.
const lengthPrefixSize = 4

// frameHeadSize is how much of a skipped frame is kept for diagnostics.
const frameHeadSize = 256

// Framing selects how frames are delimited.
type Framing string

const (
	// FramingNDJSON delimits frames with newlines.
	FramingNDJSON Framing = "ndjson"
	// FramingLengthPrefixed prefixes frames with a big-endian uint32 length.
	FramingLengthPrefixed Framing = "length-prefixed"
)

// ParseFraming parses a framing name. The empty string selects ndjson.
func ParseFraming(s string) (Framing, error) {
	switch Framing(s) {
	case "", FramingNDJSON:
		return FramingNDJSON, nil
	case FramingLengthPrefixed:
		return FramingLengthPrefixed, nil
	default:
		return "", fmt.Errorf("unknown framing %q", s)
	}
}

// Writer writes whole frames. It is safe for concurrent use; frames from
// different goroutines never interleave.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	framing Framing
	max     int
}

// NewWriter returns a frame writer over w with the default frame limit.
func NewWriter(w io.Writer, framing Framing) *Writer {
	return NewWriterSize(w, framing, MaxFrameSize)
}

// NewWriterSize returns a frame writer that refuses bodies larger than
// maxSize. A non-positive maxSize selects MaxFrameSize.
func NewWriterSize(w io.Writer, framing Framing, maxSize int) *Writer {
	if maxSize <= 0 {
		maxSize = MaxFrameSize
	}

	return &Writer{w: w, framing: framing, max: maxSize}
}

// WriteFrame writes body as a single frame. A body over the limit is not
// written and the error wraps errors.ErrFrameTooLarge.
func (fw *Writer) WriteFrame(body []byte) error {
	if len(body) > fw.max {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", errors.ErrFrameTooLarge, len(body), fw.max)
	}

	var frame []byte

	switch fw.framing {
	case FramingLengthPrefixed:
		frame = make([]byte, lengthPrefixSize+len(body))
		binary.BigEndian.PutUint32(frame[:lengthPrefixSize], uint32(len(body)))
		copy(frame[lengthPrefixSize:], body)
	default:
		if bytes.IndexByte(body, '\n') >= 0 {
			return fmt.Errorf("ndjson frame contains a newline")
		}

		// Copy to avoid mutating the caller's backing array.
		frame = make([]byte, len(body)+1)
		copy(frame, body)
		frame[len(body)] = '\n'
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fw.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// Reader reads whole frames. It is not safe for concurrent use.
type Reader struct {
	framing Framing
	r       *bufio.Reader
	max     int
	line    []byte
}

// NewReader returns a frame reader over r with the default frame limit.
func NewReader(r io.Reader, framing Framing) *Reader {
	return NewReaderSize(r, framing, MaxFrameSize)
}

// NewReaderSize returns a frame reader that skips bodies larger than
// maxSize. A non-positive maxSize selects MaxFrameSize.
func NewReaderSize(r io.Reader, framing Framing, maxSize int) *Reader {
	if maxSize <= 0 {
		maxSize = MaxFrameSize
	}

	return &Reader{
		framing: framing,
		r:       bufio.NewReaderSize(r, 64*1024),
		max:     maxSize,
	}
}

// ReadFrame returns the next frame body. It returns io.EOF at a clean end of
// stream. The returned slice is only valid until the next call.
//
// A frame over the limit is consumed and skipped: ReadFrame returns a
// *errors.FrameDecodeError wrapping errors.ErrFrameTooLarge, carrying the
// first bytes of the frame, and the next call continues with the following
// frame. Any other error leaves the stream unusable.
func (fr *Reader) ReadFrame() ([]byte, error) {
	if fr.framing == FramingLengthPrefixed {
		return fr.readLengthPrefixed()
	}

	return fr.readLine()
}

func (fr *Reader) readLine() ([]byte, error) {
	for {
		fr.line = fr.line[:0]
		size := 0

		for {
			chunk, err := fr.r.ReadSlice('\n')
			size += len(chunk)

			// Past the limit only the head is kept.
			if len(fr.line) <= fr.max {
				fr.line = append(fr.line, chunk...)
			}

			if err == nil {
				size-- // newline

				break
			}

			if err == bufio.ErrBufferFull {
				continue
			}

			if err == io.EOF {
				if size == 0 {
					return nil, io.EOF
				}

				break
			}

			return nil, fmt.Errorf("read frame: %w", err)
		}

		if size > fr.max {
			return nil, fr.tooLarge(int64(size), fr.line)
		}

		line := bytes.TrimSpace(fr.line)
		if len(line) == 0 {
			continue
		}

		return line, nil
	}
}

func (fr *Reader) readLengthPrefixed() ([]byte, error) {
	var header [lengthPrefixSize]byte

	if _, err := io.ReadFull(fr.r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("read frame header: %w", err)
		}

		return nil, err
	}

	size := int64(binary.BigEndian.Uint32(header[:]))

	if size > int64(fr.max) {
		head := make([]byte, min(size, frameHeadSize))
		if _, err := io.ReadFull(fr.r, head); err != nil {
			return nil, fmt.Errorf("read frame body: %w", err)
		}

		if _, err := io.CopyN(io.Discard, fr.r, size-int64(len(head))); err != nil {
			return nil, fmt.Errorf("skip frame body: %w", err)
		}

		return nil, fr.tooLarge(size, head)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	return body, nil
}

func (fr *Reader) tooLarge(size int64, head []byte) error {
	if len(head) > frameHeadSize {
		head = head[:frameHeadSize]
	}

	return &errors.FrameDecodeError{
		RawData: string(head),
		Err:     fmt.Errorf("%w: %d bytes exceeds limit of %d", errors.ErrFrameTooLarge, size, fr.max),
	}
}
