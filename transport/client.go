package transport

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ctrl-q/ctrlq/errors"
	"github.com/ctrl-q/ctrlq/logger"
)

// Idempotency classifies a request for the retry policy (§4.1). Creation
// calls are NonIdempotent: the importer (C6) is responsible for not
// resubmitting them, so the transport only retries those on
// connection-level failure, never on an application 4xx/5xx.
type Idempotency int

const (
	Idempotent Idempotency = iota
	NonIdempotent
)

// Request describes one REST call against the Repository or Engine proxy.
type Request struct {
	Method      string
	Path        string // e.g. "/qrs/task/full"
	Query       url.Values
	Body        []byte
	Idempotency Idempotency
}

// Response is the transport's surfaced result; decoding body as JSON is the
// caller's responsibility (C2's job, not C1's).
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Client issues authenticated, rate-limited, retrying REST calls against a
// single QSEoW cluster.
type Client struct {
	cfg        *Config
	httpClient *http.Client
	retry      retryPolicy
	log        *zap.SugaredLogger
	scheme     string // "https" in production; tests targeting httptest.Server override to "http"
}

// NewClient builds a Client from a validated Config.
func NewClient(cfg *Config, log *zap.SugaredLogger) (*Client, error) {
	if log == nil {
		log = logger.ComponentLogger("transport")
	}
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, errors.Wrap(err, "building TLS config")
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: &http.Transport{TLSClientConfig: tlsCfg},
		},
		retry:  defaultRetryPolicy(),
		log:    log,
		scheme: "https",
	}, nil
}

// RepositoryURL builds the absolute URL for a Repository (QRS) path.
func (c *Client) RepositoryURL(path string) string {
	return c.baseURL(c.cfg.RepositoryPort, path)
}

func (c *Client) baseURL(port int, path string) string {
	var b strings.Builder
	b.WriteString(c.scheme)
	b.WriteString("://")
	b.WriteString(c.cfg.Host)
	b.WriteString(":")
	b.WriteString(strconv.Itoa(port))
	if c.cfg.VirtualProxyPrefix != "" {
		b.WriteString("/")
		b.WriteString(strings.Trim(c.cfg.VirtualProxyPrefix, "/"))
	}
	if !strings.HasPrefix(path, "/") {
		b.WriteString("/")
	}
	b.WriteString(path)
	return b.String()
}

// Do issues req, appending the Xrfkey query parameter and matching header
// on every call, attaching mutual-TLS or bearer credentials, and applying
// the retry policy of §4.1.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	xrfkey, err := newXrfkey()
	if err != nil {
		return nil, errors.Wrap(err, "generating xrfkey")
	}

	query := url.Values{}
	for k, vs := range req.Query {
		query[k] = vs
	}
	query.Set("xrfkey", xrfkey)

	fullURL := c.RepositoryURL(req.Path) + "?" + query.Encode()

	for attempt := 1; ; attempt++ {
		resp, err := c.doOnce(ctx, req, fullURL, xrfkey)
		if err == nil && !isRetryableStatus(resp.Status) {
			return resp, nil
		}

		if !c.retry.shouldRetry(req.Idempotency, err, statusOf(err, resp), attempt) {
			if err != nil {
				return nil, err
			}
			return resp, nil
		}

		wait := c.retry.backoff(attempt, retryAfterOf(resp))
		c.log.Debugw("retrying request",
			logger.FieldHTTPMethod, req.Method, logger.FieldHTTPPath, req.Path,
			logger.FieldAttempt, attempt, logger.FieldDurationMS, wait.Milliseconds())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func statusOf(err error, resp *Response) int {
	if err != nil || resp == nil {
		return 0
	}
	return resp.Status
}

func retryAfterOf(resp *Response) time.Duration {
	if resp == nil {
		return 0
	}
	ra := resp.Headers.Get("Retry-After")
	if ra == "" {
		return 0
	}
	if secs, err := time.ParseDuration(ra + "s"); err == nil {
		return secs
	}
	return 0
}

func (c *Client) doOnce(ctx context.Context, req Request, fullURL, xrfkey string) (*Response, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, bodyReader)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	httpReq.Header.Set("X-Qlik-Xrfkey", xrfkey)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Length", strconv.Itoa(len(req.Body)))
	}

	switch {
	case c.cfg.Bearer != nil:
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.Bearer.Token)
	case c.cfg.Cert != nil:
		// Mutual TLS is attached at the transport (http.Transport.TLSClientConfig).
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.Path)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading response body for %s %s", req.Method, req.Path)
	}

	return &Response{Status: httpResp.StatusCode, Headers: httpResp.Header, Body: body}, nil
}

func newXrfkey() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil // 16 hex chars, matching the header's required length
}
