package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"agui-stream/internal/domain"
	"agui-stream/internal/encoding"
	"agui-stream/internal/events"
	json "github.com/goccy/go-json"
)

// Transport opens the event stream of one run
type Transport interface {
	Open(ctx context.Context, input domain.RunInput) (EventStream, error)
}

// EventStream yields the decoded events of one run. Next returns io.EOF when the stream
// ended between frames.
type EventStream interface {
	Next() (events.Event, error)
	Close() error
}

// cloner is implemented by transports holding mutable configuration
type cloner interface {
	Clone() Transport
}

// HTTPTransport posts the run input as JSON and reads the streamed response
type HTTPTransport struct {
	Endpoint string
	Client   *http.Client
	Headers  http.Header
	// Accept is sent as the Accept header. Empty means SSE.
	Accept string
}

// NewHTTPTransport returns a transport for endpoint using http.DefaultClient
func NewHTTPTransport(endpoint string) *HTTPTransport {
	return &HTTPTransport{Endpoint: endpoint, Client: http.DefaultClient, Headers: http.Header{}}
}

// Clone copies the transport, including its headers
func (t *HTTPTransport) Clone() Transport {
	c := *t
	c.Headers = t.Headers.Clone()
	return &c
}

func (t *HTTPTransport) Open(ctx context.Context, input domain.RunInput) (EventStream, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal run input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "open", Err: err}
	}
	for k, vs := range t.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	accept := t.Accept
	if accept == "" {
		accept = encoding.ContentTypeSSE
	}
	req.Header.Set("Accept", accept)

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "open", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &TransportError{
			Op:         "open",
			StatusCode: resp.StatusCode,
			Err:        errors.New(string(bytes.TrimSpace(msg))),
		}
	}

	ct := resp.Header.Get("Content-Type")
	codec, ok := encoding.ForContentType(ct)
	if !ok {
		resp.Body.Close()
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("unsupported content type %q", ct)}
	}
	return &decoderStream{body: resp.Body, dec: encoding.NewDecoder(codec, resp.Body)}, nil
}

type decoderStream struct {
	body io.ReadCloser
	dec  *encoding.Decoder
}

func (s *decoderStream) Next() (events.Event, error) {
	ev, err := s.dec.Next()
	if err == nil || errors.Is(err, io.EOF) || encoding.IsDecodeError(err) {
		return ev, err
	}
	return nil, &TransportError{Op: "read", Err: err}
}

func (s *decoderStream) Close() error {
	return s.body.Close()
}
