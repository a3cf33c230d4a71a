package client

import (
	"context"
	"io"
	"net/http"
	"strings"

	"agui-stream/internal/domain"
	"agui-stream/internal/encoding"
	"agui-stream/internal/events"
	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// RunAgentProcedure is the Connect server-streaming procedure serving runs
const RunAgentProcedure = "/agui.v1.AGUIService/RunAgent"

// ConnectTransport runs agents over Connect. Requests and responses are
// google.protobuf.Struct messages holding the JSON form of the run input and events.
type ConnectTransport struct {
	client  *connect.Client[structpb.Struct, structpb.Struct]
	headers http.Header
}

// NewConnectTransport returns a transport calling RunAgentProcedure on baseURL
func NewConnectTransport(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ConnectTransport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ConnectTransport{
		client:  connect.NewClient[structpb.Struct, structpb.Struct](httpClient, strings.TrimRight(baseURL, "/")+RunAgentProcedure, opts...),
		headers: http.Header{},
	}
}

// Header returns the headers sent with every call
func (t *ConnectTransport) Header() http.Header { return t.headers }

// Clone copies the transport, including its headers
func (t *ConnectTransport) Clone() Transport {
	return &ConnectTransport{client: t.client, headers: t.headers.Clone()}
}

func (t *ConnectTransport) Open(ctx context.Context, input domain.RunInput) (EventStream, error) {
	msg, err := encoding.InputToStruct(input)
	if err != nil {
		return nil, err
	}
	req := connect.NewRequest(msg)
	for k, vs := range t.headers {
		for _, v := range vs {
			req.Header().Add(k, v)
		}
	}
	stream, err := t.client.CallServerStream(ctx, req)
	if err != nil {
		return nil, &TransportError{Op: "open", Err: err}
	}
	return &connectStream{stream: stream}, nil
}

type connectStream struct {
	stream *connect.ServerStreamForClient[structpb.Struct]
}

func (s *connectStream) Next() (events.Event, error) {
	if !s.stream.Receive() {
		if err := s.stream.Err(); err != nil {
			return nil, &TransportError{Op: "read", Err: err}
		}
		return nil, io.EOF
	}
	return encoding.FromStruct(s.stream.Msg())
}

func (s *connectStream) Close() error {
	return s.stream.Close()
}
