// Package remote is the HTTP client for the storefront cart API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/validator"
	"github.com/utafrali/storefront/services/cartsync/internal/domain"
	"github.com/utafrali/storefront/services/cartsync/internal/session"
)

const (
	fetchPath = "/cart/"
	addPath   = "/cart/add"

	// maxCartBody caps how much of a cart response is read.
	maxCartBody = 4 << 20
)

// Config configures the cart API client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Breaker    httpclient.CircuitBreakerConfig
}

// DefaultConfig returns defaults for the given base URL: 10s timeout, no retries.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
		Breaker: httpclient.DefaultCircuitBreakerConfig("cart-api"),
	}
}

// Client calls the cart API through a circuit breaker.
type Client struct {
	http    *httpclient.CircuitBreakerClient
	baseURL string
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New builds a Client and its underlying HTTP client from cfg.
func New(cfg Config, logger *slog.Logger) *Client {
	hcfg := httpclient.DefaultConfig()
	if cfg.Timeout > 0 {
		hcfg.Timeout = cfg.Timeout
	}
	hcfg.MaxRetries = cfg.MaxRetries
	if cfg.Breaker.Name == "" {
		cfg.Breaker = httpclient.DefaultCircuitBreakerConfig("cart-api")
	}
	cb := httpclient.NewCircuitBreakerClient(httpclient.New(hcfg), cfg.Breaker, logger)
	return NewWithHTTP(cfg.BaseURL, cb, logger)
}

// NewWithHTTP builds a Client over an existing breaker client.
func NewWithHTTP(baseURL string, hc *httpclient.CircuitBreakerClient, logger *slog.Logger) *Client {
	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		tracer:  otel.Tracer("github.com/utafrali/storefront/services/cartsync/remote"),
	}
}

// FetchCart returns the server cart for cred's session.
func (c *Client) FetchCart(ctx context.Context, cred *session.Credential) (cart *domain.ServerCart, err error) {
	ctx, finish := c.start(ctx, opFetch)
	defer func() { finish(err) }()

	if !cred.Valid() {
		return nil, domain.AuthRequired("")
	}

	q := url.Values{"session-id": {cred.SessionID}}
	req, err := c.newRequest(ctx, http.MethodGet, fetchPath+"?"+q.Encode(), nil, cred)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCartBody))
	if err != nil {
		return nil, domain.NetworkFailure(fmt.Errorf("read cart body: %w", err))
	}

	cart, err = decodeCart(body)
	if err != nil {
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "unusable cart response",
			slog.Int("status", resp.StatusCode),
			slog.String("content_type", resp.Header.Get("Content-Type")),
		)
		return nil, err
	}
	if cart.Malformed {
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "malformed cart response, using defaults",
			slog.Int("status", resp.StatusCode),
			slog.Int("lines", len(cart.Lines)),
		)
	}
	return cart, nil
}

// AddItem posts an addition to the cart API. The response body is not used:
// callers refresh to see the server's view.
func (c *Client) AddItem(ctx context.Context, cred *session.Credential, add domain.AddRequest) (err error) {
	ctx, finish := c.start(ctx, opAdd)
	defer func() { finish(err) }()

	if !cred.Valid() {
		return domain.AuthRequired("")
	}
	add.SessionID = cred.SessionID
	if verr := validator.Validate(add); verr != nil {
		rej := domain.Rejected(0, "VALIDATION_ERROR", verr.Error())
		rej.Err = verr
		return rej
	}

	body, err := json.Marshal(add)
	if err != nil {
		return fmt.Errorf("marshal add request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, addPath, body, cred)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxCartBody))
	return nil
}

// Healthy returns an error while the breaker is open.
func (c *Client) Healthy(context.Context) error {
	if c.http.Open() {
		return fmt.Errorf("cart api circuit %s is open", c.http.Name())
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte, cred *session.Credential) (*http.Request, error) {
	var rdr io.Reader = http.NoBody
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", cred.AuthorizationHeader())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.CorrelationHeader, id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, nil
}

// start opens a client span and returns a func recording the outcome.
func (c *Client) start(ctx context.Context, op string) (context.Context, func(error)) {
	began := time.Now()
	ctx, span := c.tracer.Start(ctx, "cartapi."+op, trace.WithSpanKind(trace.SpanKindClient))

	return ctx, func(err error) {
		remoteDuration.WithLabelValues(op).Observe(time.Since(began).Seconds())
		remoteRequests.WithLabelValues(op, outcome(err)).Inc()

		if err != nil {
			var de *domain.Error
			if errors.As(err, &de) {
				span.SetAttributes(attribute.String("cart.error_kind", string(de.Kind)))
				if de.Status != 0 {
					span.SetAttributes(attribute.Int("http.status_code", de.Status))
				}
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
