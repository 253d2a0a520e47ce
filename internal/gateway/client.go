package gateway

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

	"cartsync/internal/metrics"
	"cartsync/internal/model"
	"cartsync/internal/normalize"
)

// =============================================================================
// CART BACKEND CLIENT
// =============================================================================
//
// The backend exposes a single cart resource per signed-in user:
//
//   GET    /Cart/{cartId}                  load by identity
//   POST   /Cart/Update-Cart               full replace, returns {id}
//   DELETE /Cart/Remove-From-Cart/{pid}    remove one line
//   DELETE /Cart/clear/{cartId}            delete the cart
//
// Auth is a bearer token injected by the HTTP transport; the client only
// consults the IsAuthenticated predicate to skip replace calls for guests.
// =============================================================================

const (
	pathCart       = "/Cart/"
	pathUpdateCart = "/Cart/Update-Cart"
	pathRemoveItem = "/Cart/Remove-From-Cart/"
	pathClearCart  = "/Cart/clear/"

	userAgent = "cartsync/1.0"

	// maxErrorBody caps how much of an error response is kept for logs.
	maxErrorBody = 512
)

// Config holds client settings.
type Config struct {
	BaseURL          string
	DeliveryMethodID int
	ShippingPrice    float64

	// HTTPClient carries the bearer-token transport. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// IsAuthenticated gates ReplaceCart. Nil means always signed out.
	IsAuthenticated func() bool

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Client is the HTTP implementation of Gateway.
type Client struct {
	baseURL          string
	deliveryMethodID int
	shippingPrice    float64
	httpClient       *http.Client
	isAuthenticated  func() bool
	metrics          *metrics.Metrics
	logger           *slog.Logger
}

// New creates a cart backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	isAuthenticated := cfg.IsAuthenticated
	if isAuthenticated == nil {
		isAuthenticated = func() bool { return false }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		deliveryMethodID: cfg.DeliveryMethodID,
		shippingPrice:    cfg.ShippingPrice,
		httpClient:       httpClient,
		isAuthenticated:  isAuthenticated,
		metrics:          cfg.Metrics,
		logger:           logger,
	}, nil
}

// FetchCart implements Gateway.
func (c *Client) FetchCart(ctx context.Context, cartID string) (items []model.CartItem, err error) {
	const op = "fetch_cart"
	defer c.observe(op, time.Now(), &err)

	req, err := c.newRequest(ctx, http.MethodGet, pathCart+url.PathEscape(cartID), nil)
	if err != nil {
		return nil, fmt.Errorf("creating fetch cart request: %w", err)
	}

	var resp model.CartResponse
	if err := c.do(op, req, &resp); err != nil {
		return nil, err
	}

	return normalize.NormalizeAll(resp.CartItems, normalize.KindCartItem), nil
}

// ReplaceCart implements Gateway.
func (c *Client) ReplaceCart(ctx context.Context, items []model.CartItem) (id string, err error) {
	if !c.isAuthenticated() {
		return "", model.ErrUnauthenticated
	}

	const op = "replace_cart"
	defer c.observe(op, time.Now(), &err)

	body := &model.UpdateCartRequest{
		DeliveryMethodID: c.deliveryMethodID,
		ShippingPrice:    c.shippingPrice,
		CartItems:        normalize.ToWire(items),
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathUpdateCart, body)
	if err != nil {
		return "", fmt.Errorf("creating replace cart request: %w", err)
	}

	var resp model.CartResponse
	if err := c.do(op, req, &resp); err != nil {
		return "", err
	}

	return normalize.Identifier(resp.ID), nil
}

// DeleteItem implements Gateway.
func (c *Client) DeleteItem(ctx context.Context, productID string) (err error) {
	const op = "delete_item"
	defer c.observe(op, time.Now(), &err)

	req, err := c.newRequest(ctx, http.MethodDelete, pathRemoveItem+url.PathEscape(productID), nil)
	if err != nil {
		return fmt.Errorf("creating delete item request: %w", err)
	}

	return c.do(op, req, nil)
}

// DeleteCart implements Gateway.
func (c *Client) DeleteCart(ctx context.Context, cartID string) (err error) {
	const op = "delete_cart"
	defer c.observe(op, time.Now(), &err)

	req, err := c.newRequest(ctx, http.MethodDelete, pathClearCart+url.PathEscape(cartID), nil)
	if err != nil {
		return fmt.Errorf("creating delete cart request: %w", err)
	}

	return c.do(op, req, nil)
}

// === HTTP Helpers ===

// newRequest creates a JSON request against the backend base URL.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	return req, nil
}

// do executes the request and decodes the response.
func (c *Client) do(op string, req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.NetworkError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return parseError(op, resp.StatusCode, body)
	}

	// Delete endpoints may answer with an empty body. Numbers stay
	// json.Number so large numeric ids survive intact.
	if result != nil && len(body) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(result); err != nil {
			return fmt.Errorf("parsing %s response: %w", op, err)
		}
	}

	return nil
}

// parseError converts a backend error response to *model.HTTPError.
func parseError(op string, statusCode int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return &model.HTTPError{Op: op, Status: statusCode, Body: text}
}

func (c *Client) observe(op string, start time.Time, errp *error) {
	elapsed := time.Since(start)
	c.metrics.ObserveGateway(op, elapsed, *errp)
	if *errp != nil {
		c.logger.Debug("cart backend call failed", "op", op, "duration", elapsed, "error", *errp)
		return
	}
	c.logger.Debug("cart backend call", "op", op, "duration", elapsed)
}

// Verify Client implements Gateway interface at compile time.
var _ Gateway = (*Client)(nil)
