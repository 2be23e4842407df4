package reolink

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Transport is the capability set the request pipeline needs from an HTTP
// client
type Transport interface {
	NewRequest(method string, u *url.URL) RequestBuilder
	Do(ctx context.Context, req Request) (*Response, error)
}

// RequestBuilder accumulates a request's query parameters, body and timeout
type RequestBuilder interface {
	Query(key, value string) RequestBuilder
	JSON(body interface{}) RequestBuilder
	Timeout(d time.Duration) RequestBuilder
	Build() (Request, error)
}

// Request is a finalised request.  Its URL may still be rewritten before
// execution.
type Request interface {
	URL() *url.URL
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// HTTPTransport implements Transport on top of a net/http client
type HTTPTransport struct {
	client    *http.Client
	userAgent string
}

func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}

	return &HTTPTransport{client: client}
}

// WithUserAgent sets the User-Agent header sent with every request
func (t *HTTPTransport) WithUserAgent(ua string) *HTTPTransport {
	t.userAgent = ua
	return t
}

// HTTPRequest is the Request produced by HTTPTransport
type HTTPRequest struct {
	Method  string
	Body    []byte
	Timeout time.Duration

	url *url.URL
}

func (r *HTTPRequest) URL() *url.URL {
	return r.url
}

type httpRequestBuilder struct {
	method  string
	url     url.URL
	query   []string
	body    interface{}
	timeout time.Duration
}

func (t *HTTPTransport) NewRequest(method string, u *url.URL) RequestBuilder {
	b := &httpRequestBuilder{method: method}
	if u != nil {
		b.url = *u
	}
	return b
}

// Query parameters keep the order they were added in
func (b *httpRequestBuilder) Query(key, value string) RequestBuilder {
	b.query = append(b.query, url.QueryEscape(key)+"="+url.QueryEscape(value))
	return b
}

func (b *httpRequestBuilder) JSON(body interface{}) RequestBuilder {
	b.body = body
	return b
}

func (b *httpRequestBuilder) Timeout(d time.Duration) RequestBuilder {
	b.timeout = d
	return b
}

func (b *httpRequestBuilder) Build() (Request, error) {
	if b.url.Scheme == "" || b.url.Host == "" {
		return nil, errors.Errorf("request URL [%s] is not absolute", b.url.String())
	}

	u := b.url
	if len(b.query) > 0 {
		qs := strings.Join(b.query, "&")
		if u.RawQuery != "" {
			qs = u.RawQuery + "&" + qs
		}
		u.RawQuery = qs
	}

	req := &HTTPRequest{
		Method:  b.method,
		Timeout: b.timeout,
		url:     &u,
	}

	if b.body != nil {
		body, err := json.Marshal(b.body)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
		req.Body = body
	}

	return req, nil
}

func (t *HTTPTransport) Do(ctx context.Context, r Request) (*Response, error) {
	req, ok := r.(*HTTPRequest)
	if !ok {
		return nil, errors.Errorf("unsupported request type %T", r)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	// The normalised query must reach the wire verbatim, so the URL is set
	// directly rather than re-parsed from a string
	u := *req.url
	base := url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, base.String(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	httpReq.URL = &u
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json, */*")
	if t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "executing request")
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
