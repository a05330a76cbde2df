// Package gateway talks to the backend REST API and folds every outcome,
// transport failures included, into a Result.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"taskdesk/apicode"
	"taskdesk/obs"
	"taskdesk/store"
)

const maxBodyBytes = 10 << 20

// Result is the uniform outcome of a backend call.
type Result struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals Data into v. Empty data leaves v untouched.
func (r Result) Decode(v any) error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	base  *url.URL
	http  *http.Client
	jar   *persistentJar
	codes *apicode.Table
	log   *slog.Logger
}

type Option func(*clientOptions)

type clientOptions struct {
	timeout   time.Duration
	transport http.RoundTripper
	codes     *apicode.Table
	cookieKV  store.KV
	logger    *slog.Logger
}

func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithTransport replaces the base round tripper. It is still wrapped for tracing.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.transport = rt }
}

func WithCodeTable(t *apicode.Table) Option {
	return func(o *clientOptions) { o.codes = t }
}

// WithCookieStore persists session cookies into kv under CookieKey.
func WithCookieStore(kv store.KV) Option {
	return func(o *clientOptions) { o.cookieKV = kv }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("API base 为空")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse API base: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("API base 协议不支持: %q", u.Scheme)
	}

	o := clientOptions{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if o.codes == nil {
		o.codes = apicode.New(apicode.DefaultLang)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	jar, err := newPersistentJar(u, o.cookieKV)
	if err != nil {
		return nil, fmt.Errorf("init cookie jar: %w", err)
	}

	return &Client{
		base: u,
		http: &http.Client{
			Timeout:   o.timeout,
			Transport: obs.WrapTransport(o.transport, u.Path),
			Jar:       jar,
		},
		jar:   jar,
		codes: o.codes,
		log:   o.logger,
	}, nil
}

func (c *Client) Codes() *apicode.Table { return c.codes }

// ClearCookies forgets the backend session locally.
func (c *Client) ClearCookies() {
	if c != nil && c.jar != nil {
		c.jar.Reset()
	}
}

// Call performs a request whose success requires code 200.
func (c *Client) Call(ctx context.Context, method, path string, body any) Result {
	return c.do(ctx, method, path, body, false)
}

// CallStrict additionally requires the success message. Only login uses it.
func (c *Client) CallStrict(ctx context.Context, method, path string, body any) Result {
	return c.do(ctx, method, path, body, true)
}

func (c *Client) do(ctx context.Context, method, path string, body any, strict bool) Result {
	start := time.Now()
	res, outcome := c.roundTrip(ctx, method, path, body, strict)
	obs.RecordAPICall(method, path, outcome, start)
	if !res.Success {
		c.log.Debug("api call failed", "method", method, "path", path, "code", res.Code, "message", res.Message, "outcome", outcome)
	}
	return res
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, strict bool) (Result, string) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.log.Error("encode request body failed", "path", path, "err", err)
			return Result{Code: apicode.Network, Message: c.codes.OperationFailed()}, "network"
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rd)
	if err != nil {
		c.log.Error("build request failed", "path", path, "err", err)
		return Result{Code: apicode.Network, Message: c.codes.NetworkError(false)}, "network"
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("api request error", "method", method, "path", path, "err", err)
		return Result{Code: apicode.Network, Message: c.codes.NetworkError(isRefused(err))}, "network"
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Warn("response is not JSON", "path", path, "status", resp.StatusCode)
		env = envelope{}
	}
	if string(env.Data) == "null" {
		env.Data = nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code := resp.StatusCode
		if env.Code != nil && *env.Code != 0 {
			code = *env.Code
		}
		msg := env.Message
		if msg == "" && env.Code != nil {
			msg, _ = c.codes.Lookup(*env.Code)
		}
		if msg == "" {
			msg = c.codes.RequestFailed(resp.StatusCode)
		}
		return Result{Code: code, Message: msg}, "http"
	}

	if env.Code == nil || *env.Code != apicode.Success {
		code := 0
		if env.Code != nil {
			code = *env.Code
		}
		msg, ok := c.codes.Lookup(code)
		if !ok {
			msg = env.Message
		}
		if msg == "" {
			msg = c.codes.OperationFailed()
		}
		return Result{Code: code, Message: msg, Data: env.Data}, "business"
	}

	if strict && env.Message != apicode.SuccessMessage {
		msg := env.Message
		if msg == "" {
			msg = c.codes.OperationFailedCode(apicode.Success)
		}
		return Result{Code: apicode.Success, Message: msg, Data: env.Data}, "business"
	}

	msg := env.Message
	if msg == "" {
		msg = c.codes.OK()
	}
	return Result{Success: true, Code: apicode.Success, Message: msg, Data: env.Data}, "ok"
}

// isRefused reports a failure to reach the host at all, as opposed to a
// broken or slow exchange.
func isRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
