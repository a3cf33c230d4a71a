package encoding

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"

	"agui-stream/internal/events"
)

type sseCodec struct{}

func (sseCodec) ContentType() string { return ContentTypeSSE }

func (sseCodec) EncodeFrame(ev events.Event) ([]byte, error) {
	data, err := EncodeJSON(ev)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(data)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// DecodeFrame accepts either a whole SSE block or the data payload returned by the
// frame reader.
func (sseCodec) DecodeFrame(frame []byte) (events.Event, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return DecodeJSON(trimmed)
	}
	data, err := newSSEReader(bytes.NewReader(frame)).ReadFrame()
	if err != nil {
		return nil, malformed("no data in sse frame")
	}
	return DecodeJSON(data)
}

func (sseCodec) NewFrameReader(r io.Reader) FrameReader {
	return newSSEReader(r)
}

// MaxSSEFrameSize bounds the data bytes of one SSE event and the length of any line
const MaxSSEFrameSize = 16 << 20

type sseReader struct {
	r     *bufio.Reader
	limit int
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{r: bufio.NewReader(r), limit: MaxSSEFrameSize}
}

// readLine returns the next line without its terminator. Lines longer than the limit
// are a decode error.
func (s *sseReader) readLine() (string, error) {
	var line []byte
	for {
		chunk, err := s.r.ReadSlice('\n')
		if len(line)+len(chunk) > s.limit+2 {
			return "", malformed("sse line exceeds %d bytes", s.limit)
		}
		line = append(line, chunk...)
		switch {
		case err == nil:
			return strings.TrimRight(string(line), "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(bytes.TrimRight(line, "\r\n")) > 0 {
				return "", io.ErrUnexpectedEOF
			}
			return "", io.EOF
		default:
			return "", err
		}
	}
}

// ReadFrame returns the joined data lines of the next event. Comment lines and the
// event, id and retry fields are skipped.
func (s *sseReader) ReadFrame() ([]byte, error) {
	var data []byte
	var seen bool
	for {
		line, err := s.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) && seen {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if line == "" {
			if !seen {
				continue
			}
			return data, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		after, ok := strings.CutPrefix(line, "data:")
		if !ok {
			// event:, id: and retry: carry nothing the decoder needs
			continue
		}
		after = strings.TrimPrefix(after, " ")
		if seen {
			data = append(data, '\n')
		}
		if len(data)+len(after) > s.limit {
			return nil, malformed("sse event data exceeds %d bytes", s.limit)
		}
		data = append(data, after...)
		seen = true
	}
}
