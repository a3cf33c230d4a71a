package encoding

import (
	"encoding/binary"
	"fmt"
	"io"

	"agui-stream/internal/domain"
	"agui-stream/internal/events"
	json "github.com/goccy/go-json"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// MaxProtoFrameSize bounds the payload length accepted from a length prefix
const MaxProtoFrameSize = 16 << 20

const protoPrefixLen = 4

type protoCodec struct{}

func (protoCodec) ContentType() string { return ContentTypeProto }

func (protoCodec) EncodeFrame(ev events.Event) ([]byte, error) {
	st, err := ToStruct(ev)
	if err != nil {
		return nil, err
	}
	payload, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}
	frame := make([]byte, protoPrefixLen, protoPrefixLen+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	return append(frame, payload...), nil
}

func (protoCodec) DecodeFrame(frame []byte) (events.Event, error) {
	if len(frame) < protoPrefixLen {
		return nil, malformed("proto frame shorter than its length prefix")
	}
	n := binary.BigEndian.Uint32(frame)
	if int(n) != len(frame)-protoPrefixLen {
		return nil, malformed("proto frame length %d does not match payload length %d", n, len(frame)-protoPrefixLen)
	}
	st := &structpb.Struct{}
	if err := proto.Unmarshal(frame[protoPrefixLen:], st); err != nil {
		return nil, malformed("proto payload: %v", err)
	}
	return FromStruct(st)
}

func (protoCodec) NewFrameReader(r io.Reader) FrameReader {
	return &protoReader{r: r}
}

type protoReader struct {
	r io.Reader
}

func (p *protoReader) ReadFrame() ([]byte, error) {
	var prefix [protoPrefixLen]byte
	if _, err := io.ReadFull(p.r, prefix[:]); err != nil {
		// io.ReadFull reports EOF only when nothing was read
		return nil, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxProtoFrameSize {
		return nil, malformed("proto frame of %d bytes exceeds limit", n)
	}
	frame := make([]byte, protoPrefixLen+int(n))
	copy(frame, prefix[:])
	if _, err := io.ReadFull(p.r, frame[protoPrefixLen:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

// ToStruct converts an event to a google.protobuf.Struct holding its JSON object form.
// The Connect transport uses it for request and response messages.
func ToStruct(ev events.Event) (*structpb.Struct, error) {
	data, err := EncodeJSON(ev)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}
	return st, nil
}

// FromStruct is the inverse of ToStruct
func FromStruct(st *structpb.Struct) (events.Event, error) {
	if st == nil {
		return nil, malformed("empty struct")
	}
	data, err := json.Marshal(st.AsMap())
	if err != nil {
		return nil, malformed("struct payload: %v", err)
	}
	return DecodeJSON(data)
}

// InputToStruct converts a run input to the Struct sent over Connect
func InputToStruct(input domain.RunInput) (*structpb.Struct, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal run input: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("marshal run input: %w", err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("marshal run input: %w", err)
	}
	return st, nil
}

// InputFromStruct is the inverse of InputToStruct
func InputFromStruct(st *structpb.Struct) (domain.RunInput, error) {
	var input domain.RunInput
	if st == nil {
		return input, nil
	}
	data, err := json.Marshal(st.AsMap())
	if err != nil {
		return input, fmt.Errorf("unmarshal run input: %w", err)
	}
	if err := json.Unmarshal(data, &input); err != nil {
		return input, fmt.Errorf("unmarshal run input: %w", err)
	}
	return input, nil
}
