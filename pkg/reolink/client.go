package reolink

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jake-scott/reolink/internal/pkg/logging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	apiPath = "cgi-bin/api.cgi"

	defaultTimeout         = time.Second * 15
	defaultDownloadTimeout = time.Minute * 5
)

// ErrClosed is returned by operations on a Client handle after Close
var ErrClosed = errors.New("reolink: client is closed")

// State shared by a Client and all of its clones
type session struct {
	creds *Credentials
	refs  int32
}

// Client talks to one device with one account.  It is safe for concurrent use;
// Clone gives out further handles on the same session.
type Client struct {
	baseURL         *url.URL
	transport       Transport
	timeout         time.Duration
	downloadTimeout time.Duration
	strict          bool
	logger          *logrus.Entry

	session *session
	closed  int32
}

type Option func(c *Client)

// WithTransport replaces the default net/http transport
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithHTTPClient runs requests through a specific http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.transport = NewHTTPTransport(hc)
	}
}

// WithTimeout sets the timeout of JSON requests, 0 to disable
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithDownloadTimeout sets the timeout of binary requests, 0 to disable
func WithDownloadTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.downloadTimeout = d
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithStrictDecoding makes unknown members of a response payload an error
func WithStrictDecoding(strict bool) Option {
	return func(c *Client) {
		c.strict = strict
	}
}

// NewClient returns a client for the device at baseURL, eg. http://192.168.1.10
func NewClient(baseURL, login, password string, opts ...Option) (*Client, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:         u,
		transport:       NewHTTPTransport(nil),
		timeout:         defaultTimeout,
		downloadTimeout: defaultDownloadTimeout,
		session: &session{
			creds: NewCredentials(login, password),
			refs:  1,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func parseBaseURL(s string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSuffix(s, "/"))
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("invalid device URL [%s]", s), Err: err}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ConfigError{Msg: fmt.Sprintf("device URL [%s] must use http or https", s)}
	}
	if u.Host == "" {
		return nil, &ConfigError{Msg: fmt.Sprintf("device URL [%s] has no host", s)}
	}

	u.Path = u.Path + "/" + apiPath
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""

	return u, nil
}

// URL returns the API endpoint URL
func (c *Client) URL() string {
	return c.baseURL.String()
}

// Credentials returns the credentials shared by this client and its clones
func (c *Client) Credentials() *Credentials {
	return c.session.creds
}

func (c *Client) log(ctx context.Context) *logrus.Entry {
	if c.logger != nil {
		return c.logger
	}
	return logging.Logger(ctx)
}

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) != 0
}

// Login makes sure a fresh token is held, logging in when there is none or
// when it is about to expire
func (c *Client) Login(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}

	return c.session.creds.EnsureValid(ctx, c.login)
}

// Called with the credentials write-locked: must not touch the token
func (c *Client) login(ctx context.Context) (string, time.Duration, error) {
	creds := c.session.creds

	body, err := c.execJSON(ctx, Login.Cmd, Login.Auth, NewLoginRequest(creds.login, creds.password), false)
	if err != nil {
		return "", 0, err
	}

	res, err := decodeResponse[LoginResult](Login.Cmd, body, c.strict)
	if err != nil {
		return "", 0, err
	}

	c.log(ctx).Debugf("logged in as %s, lease %ds", creds.login, res.Token.LeaseTime)
	return res.Token.Name, time.Duration(res.Token.LeaseTime) * time.Second, nil
}

// Logout releases the session token if one is held.  The token is forgotten
// even when the device could not be told.
func (c *Client) Logout(ctx context.Context) error {
	creds := c.session.creds
	defer creds.Invalidate()

	tok, ok := creds.ReadToken()
	if !ok || tok.IsExpired(creds.now()) {
		return nil
	}

	body, err := c.execJSON(ctx, Logout.Cmd, Logout.Auth, LogoutRequest{}, false)
	if err != nil {
		return err
	}

	_, err = decodeResponse[SimpleResult](Logout.Cmd, body, c.strict)
	return err
}

// Clone returns a new handle sharing this client's session
func (c *Client) Clone() *Client {
	atomic.AddInt32(&c.session.refs, 1)

	return &Client{
		baseURL:         c.baseURL,
		transport:       c.transport,
		timeout:         c.timeout,
		downloadTimeout: c.downloadTimeout,
		strict:          c.strict,
		logger:          c.logger,
		session:         c.session,
	}
}

// Close releases this handle.  Closing the last open handle of a session logs
// out; a failure to do so is logged.  Close may be called more than once.
func (c *Client) Close(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return
	}

	if atomic.AddInt32(&c.session.refs, -1) > 0 {
		return
	}

	if err := c.Logout(ctx); err != nil {
		c.log(ctx).WithError(err).Warn("Failed to log out of the device")
	}
}

type tokenSource struct {
	ctx context.Context
	c   *Client
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	if err := ts.c.Login(ts.ctx); err != nil {
		return nil, err
	}

	tok, ok := ts.c.session.creds.ReadToken()
	if !ok {
		return nil, &AuthError{Cmd: Login.Cmd}
	}

	return &oauth2.Token{
		AccessToken: tok.Value,
		TokenType:   "Reolink",
		Expiry:      tok.Expiry,
	}, nil
}

// TokenSource exposes the session token, logging in as needed
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return tokenSource{ctx: ctx, c: c}
}

func (c *Client) params(cmd string, auth AuthType, timeout time.Duration) requestParams {
	return requestParams{
		transport: c.transport,
		baseURL:   c.baseURL,
		cmd:       cmd,
		auth:      auth,
		creds:     c.session.creds,
		timeout:   timeout,
		now:       c.session.creds.now(),
	}
}

// Token endpoints get a token up front, the request builder never logs in
func (c *Client) prepare(ctx context.Context, auth AuthType) error {
	if c.isClosed() {
		return ErrClosed
	}

	if auth == AuthToken {
		return c.Login(ctx)
	}

	return nil
}

func (c *Client) execJSON(ctx context.Context, cmd string, auth AuthType, payload interface{}, details bool) ([]byte, error) {
	req, err := buildJSONRequest(c.params(cmd, auth, c.timeout), payload, details)
	if err != nil {
		return nil, err
	}

	resp, err := c.roundTrip(ctx, cmd, req)
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

func (c *Client) roundTrip(ctx context.Context, cmd string, req Request) (*Response, error) {
	log := c.log(ctx)
	log.Debugf("sending '%s' to %s", cmd, redactURL(req.URL()))

	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "sending '%s'", cmd)
	}

	log.Debugf("'%s' response: %s, %d bytes", cmd, resp.Status, len(resp.Body))

	if !resp.OK() {
		return nil, &StatusError{
			Cmd:        cmd,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       resp.Body,
		}
	}

	return resp, nil
}

// The password and token query parameters are masked in logs
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	ru := *u
	pairs := strings.Split(ru.RawQuery, "&")
	for i, kv := range pairs {
		if strings.HasPrefix(kv, "password=") || strings.HasPrefix(kv, "token=") {
			pairs[i] = kv[:strings.IndexByte(kv, '=')+1] + "xxxxx"
		}
	}
	ru.RawQuery = strings.Join(pairs, "&")

	return ru.String()
}

// Exec runs a JSON endpoint and decodes its main result
func Exec[Req, Resp, Initial, Range any](ctx context.Context, c *Client, ep JSONEndpoint[Req, Resp, Initial, Range], req Req) (Resp, error) {
	var resp Resp

	if err := c.prepare(ctx, ep.Auth); err != nil {
		return resp, err
	}

	body, err := c.execJSON(ctx, ep.Cmd, ep.Auth, req, false)
	if err != nil {
		return resp, err
	}

	return decodeResponse[Resp](ep.Cmd, body, c.strict)
}

// ExecWithDetails runs a JSON endpoint asking for the initial and range values
// too
func ExecWithDetails[Req, Resp, Initial, Range any](ctx context.Context, c *Client, ep JSONEndpoint[Req, Resp, Initial, Range], req Req) (Detailed[Resp, Initial, Range], error) {
	var out Detailed[Resp, Initial, Range]

	if err := c.prepare(ctx, ep.Auth); err != nil {
		return out, err
	}

	body, err := c.execJSON(ctx, ep.Cmd, ep.Auth, req, true)
	if err != nil {
		return out, err
	}

	return decodeDetailedResponse[Resp, Initial, Range](ep.Cmd, body, c.strict)
}

// Download runs a binary endpoint and returns the raw response body
func Download[Req any](ctx context.Context, c *Client, ep BinaryEndpoint[Req], req Req) ([]byte, error) {
	if err := c.prepare(ctx, ep.Auth); err != nil {
		return nil, err
	}

	r, err := buildBinaryRequest(c.params(ep.Cmd, ep.Auth, c.downloadTimeout), req)
	if err != nil {
		return nil, err
	}

	resp, err := c.roundTrip(ctx, ep.Cmd, r)
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}
