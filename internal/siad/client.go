package siad

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
	"time"

	"golang.org/x/time/rate"

	"siactl/internal/logging"
)

const (
	// DefaultAddress is where siad serves its API unless configured otherwise.
	DefaultAddress = "localhost:9980"
	// DefaultUserAgent is the header siad requires on every API request.
	DefaultUserAgent = "Sia-Agent"
	// DefaultCallTimeout bounds an ordinary API call.
	DefaultCallTimeout = 10 * time.Second
	// DefaultProbeTimeout bounds a liveness probe. siad can take minutes to
	// answer while it loads the consensus set.
	DefaultProbeTimeout = 600 * time.Second
	// DefaultProbePath is the endpoint used to detect a running daemon.
	DefaultProbePath = "/gateway"
	// DefaultMaxSockets caps concurrent connections to one daemon.
	DefaultMaxSockets = 20

	maxErrorBody = 1 << 20
)

// ConnectionSettings tell a Client how to reach siad.
type ConnectionSettings struct {
	Address      string
	UserAgent    string
	Password     string
	CallTimeout  time.Duration
	ProbeTimeout time.Duration
	ProbePath    string
	MaxSockets   int
	// RateLimit is the sustained request rate per second. Zero disables
	// limiting.
	RateLimit float64
	RateBurst int
}

// DefaultConnectionSettings returns settings for a local daemon.
func DefaultConnectionSettings() ConnectionSettings {
	return ConnectionSettings{}.withDefaults()
}

func (s ConnectionSettings) withDefaults() ConnectionSettings {
	if strings.TrimSpace(s.Address) == "" {
		s.Address = DefaultAddress
	}
	if s.UserAgent == "" {
		s.UserAgent = DefaultUserAgent
	}
	if s.CallTimeout <= 0 {
		s.CallTimeout = DefaultCallTimeout
	}
	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = DefaultProbeTimeout
	}
	if s.ProbePath == "" {
		s.ProbePath = DefaultProbePath
	}
	if !strings.HasPrefix(s.ProbePath, "/") {
		s.ProbePath = "/" + s.ProbePath
	}
	if s.MaxSockets <= 0 {
		s.MaxSockets = DefaultMaxSockets
	}
	if s.RateLimit > 0 && s.RateBurst <= 0 {
		s.RateBurst = 1
	}
	return s
}

// Client relays calls to the siad HTTP API. It is safe for concurrent use and
// every call shares one bounded connection pool.
type Client struct {
	settings   ConnectionSettings
	httpClient *http.Client
	transport  *http.Transport
	limiter    *rate.Limiter
	logger     *slog.Logger
	hooks      Hooks
}

// NewClient builds a client from settings. Zero fields take their defaults.
func NewClient(settings ConnectionSettings, opts ...Option) *Client {
	o := buildOptions(opts)
	return newClient(settings, o)
}

func newClient(settings ConnectionSettings, o options) *Client {
	settings = settings.withDefaults()
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        settings.MaxSockets,
		MaxIdleConnsPerHost: settings.MaxSockets,
		MaxConnsPerHost:     settings.MaxSockets,
		IdleConnTimeout:     90 * time.Second,
	}
	client := &Client{
		settings:   settings,
		httpClient: &http.Client{Transport: transport},
		transport:  transport,
		logger:     logging.NewComponentLogger(o.logger, "siad-client"),
		hooks:      o.hooks,
	}
	if settings.RateLimit > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(settings.RateLimit), settings.RateBurst)
	}
	return client
}

// Address returns the host:port the client talks to.
func (c *Client) Address() string {
	return c.settings.Address
}

// Settings returns the effective connection settings.
func (c *Client) Settings() ConnectionSettings {
	return c.settings
}

// Close releases idle connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

// Call sends spec to siad and returns the decoded response body. A 2xx body
// that is not JSON (siad answers some POSTs with "success") comes back as a
// JSON string; an empty body comes back as null.
func (c *Client) Call(ctx context.Context, spec CallSpec) (json.RawMessage, error) {
	if spec == nil {
		return nil, errors.New("siad call: nil request")
	}
	req := spec.request()
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.settings.CallTimeout
	}
	status, body, err := c.do(ctx, req, timeout)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, newAPIError(status, body)
	}
	return normalizeBody(body), nil
}

// CallJSON sends spec and decodes a successful response into out.
func (c *Client) CallJSON(ctx context.Context, spec CallSpec, out any) error {
	raw, err := c.Call(ctx, spec)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", spec.request().Path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, req Request, timeout time.Duration) (int, []byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.url(req.Path, req.Query)
	start := time.Now()
	status, body, err := c.send(ctx, req, target)
	elapsed := time.Since(start)
	c.hooks.CallCompleted(req.Method, req.Path, status, elapsed, err)
	if c.logger.Enabled(ctx, slog.LevelDebug) {
		attrs := []logging.Attr{
			logging.String("method", req.Method),
			logging.String("path", req.Path),
			logging.Int("status", status),
			logging.Duration("elapsed", elapsed),
		}
		if err != nil {
			attrs = append(attrs, logging.Error(err))
		}
		c.logger.DebugContext(ctx, "siad call", logging.Args(attrs...)...)
	}
	return status, body, err
}

func (c *Client) send(ctx context.Context, req Request, target string) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("siad %s %s: rate limit: %w", req.Method, target, err)
		}
	}

	payload, contentType, err := encodeBody(req)
	if err != nil {
		return 0, nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, payload)
	if err != nil {
		return 0, nil, fmt.Errorf("build siad request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.settings.UserAgent)
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if c.settings.Password != "" {
		httpReq.SetBasicAuth("", c.settings.Password)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, &ConnectionError{Method: req.Method, URL: target, Err: err}
	}
	defer drainAndClose(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody(resp.StatusCode)))
	if err != nil {
		return resp.StatusCode, nil, &ConnectionError{Method: req.Method, URL: target, Err: err}
	}
	return resp.StatusCode, body, nil
}

func (c *Client) url(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target := "http://" + c.settings.Address + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

func encodeBody(req Request) (io.Reader, string, error) {
	switch {
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", fmt.Errorf("encode siad request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	case len(req.Form) > 0:
		return strings.NewReader(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	default:
		return nil, "", nil
	}
}

func maxResponseBody(status int) int64 {
	if status >= 200 && status <= 299 {
		return 1 << 30
	}
	return maxErrorBody
}

// drainAndClose consumes what is left of body so the connection returns to
// the pool.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	_ = body.Close()
}

func normalizeBody(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	encoded, _ := json.Marshal(string(trimmed))
	return json.RawMessage(encoded)
}
