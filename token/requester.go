package token

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxResponseBytes = 1 << 20

// Response is the status and body returned by the authorization server.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Requester performs the HTTP calls of a token exchange.
// Implementations may retry transport failures; the token service never does.
type Requester interface {
	// PostForm sends body as application/x-www-form-urlencoded.
	PostForm(ctx context.Context, uri string, headers http.Header, body string) (*Response, error)
	Get(ctx context.Context, uri string, headers http.Header) (*Response, error)
}

// HTTPRequester implements Requester with a net/http client.
type HTTPRequester struct {
	client *http.Client
}

var _ Requester = (*HTTPRequester)(nil)

// NewHTTPRequester wraps client. A nil client gets a new http.Client without a timeout;
// deadlines come from the request context.
func NewHTTPRequester(client *http.Client) *HTTPRequester {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPRequester{client: client}
}

func (r *HTTPRequester) PostForm(ctx context.Context, uri string, headers http.Header, body string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	copyHeaders(req, headers)
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return r.do(req)
}

func (r *HTTPRequester) Get(ctx context.Context, uri string, headers http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	copyHeaders(req, headers)
	return r.do(req)
}

func (r *HTTPRequester) do(req *http.Request) (*Response, error) {
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func copyHeaders(req *http.Request, headers http.Header) {
	for k, values := range headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
}
