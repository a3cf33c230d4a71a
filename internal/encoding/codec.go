// Package encoding maps AG-UI events to transport frames and back.
//
// Two encodings are supported. The SSE encoding writes each event as a JSON object in a
// server-sent-event "data:" line and is the default, since it can be read with curl. The
// proto encoding writes each event as a length-prefixed google.protobuf.Struct and is
// selected with the application/vnd.ag-ui.event+proto media type.
package encoding

import (
	"errors"
	"io"
	"mime"
	"strconv"
	"strings"

	"agui-stream/internal/events"
)

const (
	ContentTypeSSE   = "text/event-stream"
	ContentTypeProto = "application/vnd.ag-ui.event+proto"
)

// Codec converts events to frames of one encoding
type Codec interface {
	// ContentType labels responses carrying frames of this encoding
	ContentType() string
	// EncodeFrame returns the complete frame for ev
	EncodeFrame(ev events.Event) ([]byte, error)
	// DecodeFrame parses a frame produced by EncodeFrame or yielded by a FrameReader
	DecodeFrame(frame []byte) (events.Event, error)
	// NewFrameReader splits a byte stream into frames
	NewFrameReader(r io.Reader) FrameReader
}

// FrameReader yields frames from a stream. ReadFrame returns io.EOF after the last
// complete frame and io.ErrUnexpectedEOF when the stream ends inside a frame.
type FrameReader interface {
	ReadFrame() ([]byte, error)
}

var (
	SSE   Codec = sseCodec{}
	Proto Codec = protoCodec{}
)

// Codecs lists the supported codecs, default first
func Codecs() []Codec { return []Codec{SSE, Proto} }

// ForContentType returns the codec for a response Content-Type header
func ForContentType(contentType string) (Codec, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, false
	}
	for _, c := range Codecs() {
		if mediaType == c.ContentType() {
			return c, true
		}
	}
	return nil, false
}

// Negotiate picks the codec for an Accept header. Media ranges are ranked by q-value and
// then by position. SSE is returned when the header is empty or names nothing supported.
func Negotiate(accept string) Codec {
	best, bestQ := SSE, -1.0
	for _, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mediaType, params, err := mime.ParseMediaType(part)
		if err != nil {
			continue
		}
		q := 1.0
		if raw, ok := params["q"]; ok {
			if q, err = strconv.ParseFloat(raw, 64); err != nil {
				continue
			}
		}
		if q <= 0 || q <= bestQ {
			continue
		}
		if c := match(mediaType); c != nil {
			best, bestQ = c, q
		}
	}
	return best
}

func match(mediaType string) Codec {
	switch mediaType {
	case "*/*", "text/*":
		return SSE
	case "application/*":
		return Proto
	}
	for _, c := range Codecs() {
		if mediaType == c.ContentType() {
			return c
		}
	}
	return nil
}

// Decoder reads events from a stream of frames
type Decoder struct {
	codec  Codec
	frames FrameReader
}

// NewDecoder returns a decoder reading frames of codec from r
func NewDecoder(codec Codec, r io.Reader) *Decoder {
	return &Decoder{codec: codec, frames: codec.NewFrameReader(r)}
}

// Next returns the next event. It returns io.EOF when the stream ended cleanly between
// frames. Any other error is either a *DecodeError or a read error.
func (d *Decoder) Next() (events.Event, error) {
	frame, err := d.frames.ReadFrame()
	if err != nil {
		return nil, err
	}
	return d.codec.DecodeFrame(frame)
}

// IsDecodeError reports whether err is a frame decoding failure rather than an I/O failure
func IsDecodeError(err error) bool {
	var derr *DecodeError
	return errors.As(err, &derr)
}
