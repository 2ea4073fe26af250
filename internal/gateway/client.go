package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nexusmsg/campaign-engine/internal/metrics"
)

type ErrorKind string

const (
	KindUnreachable ErrorKind = "unreachable"
	KindTimeout     ErrorKind = "timeout"
	KindUnknown     ErrorKind = "unknown"
)

// Error is a typed gateway failure. Unreachable and Timeout mean the gateway
// process itself is in trouble (the runner aborts the whole run); Unknown is
// a per-request rejection and stays target-level.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether the failure aborts a dispatch run rather than a
// single target.
func (e *Error) Fatal() bool {
	return e.Kind == KindUnreachable || e.Kind == KindTimeout
}

// Recoverer is the Dependency Supervisor seen from the client's side:
// a bounded, cooldown-gated attempt to bring the gateway back. Returns true
// when the gateway answers its health check afterwards.
type Recoverer interface {
	Recover(ctx context.Context) bool
}

// ConnectionStatus mirrors the gateway's status payload for one connection.
type ConnectionStatus struct {
	Status      string  `json:"status"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
}

// Connected reports whether the connection can send messages.
func (s ConnectionStatus) Connected() bool { return s.Status == "connected" }

// Client wraps the external messaging gateway's HTTP surface with timeouts,
// typed failures, and a single recovery-then-retry on connection trouble.
// The retry budget is capped at one so an outage is not amplified by every
// in-flight campaign retrying in a storm.
type Client struct {
	baseURL      string
	http         *http.Client
	recoverer    Recoverer
	logger       *slog.Logger
	sendTimeout  time.Duration
	startTimeout time.Duration
}

func NewClient(baseURL string, recoverer Recoverer, logger *slog.Logger, sendTimeout, startTimeout time.Duration) *Client {
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	if startTimeout <= 0 {
		// Connection start spins up a session on the gateway side and is
		// inherently slower than a send.
		startTimeout = 120 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		http:         &http.Client{}, // per-call timeouts via context
		recoverer:    recoverer,
		logger:       logger.With("component", "gateway_client"),
		sendTimeout:  sendTimeout,
		startTimeout: startTimeout,
	}
}

// Start asks the gateway to bring up a connection session.
func (c *Client) Start(ctx context.Context, connectionID string) error {
	path := fmt.Sprintf("/connections/%s/start", connectionID)
	return c.withRetry(ctx, "start", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, path, nil, nil, c.startTimeout)
	})
}

// Status fetches the connection state. No retry: callers poll this.
func (c *Client) Status(ctx context.Context, connectionID string) (ConnectionStatus, error) {
	var out ConnectionStatus
	path := fmt.Sprintf("/connections/%s/status", connectionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, c.sendTimeout); err != nil {
		return ConnectionStatus{}, err
	}
	return out, nil
}

// Health reports whether the gateway process answers at all.
func (c *Client) Health(ctx context.Context) bool {
	err := c.do(ctx, http.MethodGet, "/health", nil, nil, 5*time.Second)
	return err == nil
}

type sendRequest struct {
	GroupID     string  `json:"groupId"`
	Message     string  `json:"message"`
	ImageBase64 *string `json:"imageBase64,omitempty"`
	Caption     *string `json:"caption,omitempty"`
}

// Send delivers one message to one recipient group. media may be nil.
func (c *Client) Send(ctx context.Context, connectionID, groupID, text string, media []byte) error {
	body := sendRequest{GroupID: groupID, Message: text}
	if len(media) > 0 {
		enc := base64.StdEncoding.EncodeToString(media)
		body.ImageBase64 = &enc
		body.Caption = &text
	}
	path := fmt.Sprintf("/connections/%s/send", connectionID)
	return c.withRetry(ctx, "send", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, path, body, nil, c.sendTimeout)
	})
}

// Disconnect tears down the session but keeps the connection registered.
func (c *Client) Disconnect(ctx context.Context, connectionID string) error {
	path := fmt.Sprintf("/connections/%s/disconnect", connectionID)
	return c.do(ctx, http.MethodPost, path, nil, nil, c.sendTimeout)
}

// Teardown removes the connection from the gateway entirely.
func (c *Client) Teardown(ctx context.Context, connectionID string) error {
	path := fmt.Sprintf("/connections/%s", connectionID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, c.sendTimeout)
}

// withRetry runs op once; on a fatal failure it asks the supervisor for one
// recovery attempt and, only if the gateway came back, retries exactly once.
func (c *Client) withRetry(ctx context.Context, opName string, op func(ctx context.Context) error) error {
	err := op(ctx)
	if err == nil {
		return nil
	}
	var gerr *Error
	if !errors.As(err, &gerr) || !gerr.Fatal() || c.recoverer == nil {
		return err
	}

	c.logger.Warn("gateway call failed, requesting recovery", "op", opName, "kind", gerr.Kind, "error", err)
	if !c.recoverer.Recover(ctx) {
		return err
	}

	if retryErr := op(ctx); retryErr != nil {
		return retryErr
	}
	c.logger.Info("gateway call succeeded after recovery", "op", opName)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, timeout time.Duration) error {
	start := time.Now()
	err := c.doOnce(ctx, method, path, body, out, timeout)

	result := "ok"
	if err != nil {
		var gerr *Error
		if errors.As(err, &gerr) {
			result = string(gerr.Kind)
		} else {
			result = "error"
		}
	}
	metrics.GatewayRequestDuration.WithLabelValues(method+" "+path4Metrics(path), result).Observe(time.Since(start).Seconds())
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any, out any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindUnknown, Op: path, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindUnknown, Op: path, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: classify(err), Op: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &Error{
			Kind: KindUnknown,
			Op:   path,
			Err:  fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(payload)),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Kind: KindUnknown, Op: path, Err: fmt.Errorf("decode response: %w", err)}
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body) // drain so the connection can be reused
	}
	return nil
}

func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindUnreachable
	}
	if errors.Is(err, io.EOF) {
		return KindUnreachable
	}
	return KindUnknown
}

// path4Metrics collapses per-connection paths to keep label cardinality flat.
func path4Metrics(path string) string {
	// /connections/<id>/send → /connections/:id/send
	parts := bytes.Split([]byte(path), []byte("/"))
	if len(parts) >= 3 && string(parts[1]) == "connections" {
		parts[2] = []byte(":id")
	}
	return string(bytes.Join(parts, []byte("/")))
}
