// Package backend talks to the store's admin REST API: catalog search, order
// creation, order status and QR code generation.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fz-pos-api/internal/config"
	"fz-pos-api/internal/logger"
	"fz-pos-api/internal/model"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

const maxBodySize = 4 << 20

// ErrUnavailable wraps transport failures after retries are exhausted.
var ErrUnavailable = errors.New("backend unavailable")

// Error is a non-2xx answer from the backend.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// Client is a retrying client for the admin backend.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

// New creates a client from cfg.
func New(cfg config.BackendConfig) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.Log.Debugf("[Backend] Retry %d for %s %s", attempt, req.Method, req.URL.Path)
		}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    rc,
	}
}

type noRetryKey struct{}

// checkRetry never repeats a POST. A transport failure carries no response,
// so the request is marked through its context instead.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if once, _ := ctx.Value(noRetryKey{}).(bool); once {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// SearchProducts queries the POS product search. The query matches names,
// SKUs and QR codes.
func (c *Client) SearchProducts(ctx context.Context, query string) ([]model.CatalogProduct, error) {
	path := "/admin/pos/products"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	list := payload(body)
	if !list.IsArray() {
		list = list.Get("data")
	}

	products := make([]model.CatalogProduct, 0, len(list.Array()))
	list.ForEach(func(_, v gjson.Result) bool {
		products = append(products, parseProduct(v))
		return true
	})
	return products, nil
}

// CreateOrder submits a POS order.
func (c *Client) CreateOrder(ctx context.Context, req model.OrderRequest) (*model.Order, error) {
	body, err := c.do(ctx, http.MethodPost, "/admin/pos/orders", req)
	if err != nil {
		return nil, err
	}
	order := parseOrder(payload(body))
	return &order, nil
}

// GetOrder reads the current status of an order.
func (c *Client) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	body, err := c.do(ctx, http.MethodGet, "/admin/orders/"+strconv.FormatInt(orderID, 10), nil)
	if err != nil {
		return nil, err
	}
	order := parseOrder(payload(body))
	return &order, nil
}

// GenerateQR asks the backend to assign QR codes to products that lack one.
// It returns the number of products updated.
func (c *Client) GenerateQR(ctx context.Context) (int, error) {
	body, err := c.do(ctx, http.MethodPost, "/admin/pos/generate-qr", nil)
	if err != nil {
		return 0, err
	}
	r := gjson.GetBytes(body, "count")
	if !r.Exists() {
		r = gjson.GetBytes(body, "data.count")
	}
	return int(r.Int()), nil
}

func (c *Client) do(ctx context.Context, method, path string, in interface{}) ([]byte, error) {
	var reqBody interface{}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	if method == http.MethodPost {
		ctx = context.WithValue(ctx, noRetryKey{}, true)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// payload unwraps a {"data": ...} envelope when present.
func payload(body []byte) gjson.Result {
	root := gjson.ParseBytes(body)
	if d := root.Get("data"); d.Exists() && (d.IsObject() || d.IsArray()) {
		return d
	}
	return root
}

func errorMessage(body []byte) string {
	for _, path := range []string{"message", "error.message", "error"} {
		if r := gjson.GetBytes(body, path); r.Exists() && r.Type == gjson.String {
			return r.Str
		}
	}
	return ""
}

func parseProduct(v gjson.Result) model.CatalogProduct {
	p := model.CatalogProduct{
		ID:          v.Get("id").Int(),
		SKU:         v.Get("sku").String(),
		QRCode:      v.Get("qr_code").String(),
		Name:        v.Get("name").String(),
		Price:       v.Get("price").Float(),
		ProductType: model.ProductType(v.Get("product_type").String()),
		Stock:       int(v.Get("stock").Int()),
		ReservedQty: int(v.Get("reserved_qty").Int()),
	}
	if p.ProductType == "" {
		p.ProductType = model.ProductReady
	}
	return p
}

func parseOrder(v gjson.Result) model.Order {
	paymentURL := v.Get("payment_url").String()
	if o := v.Get("order"); o.IsObject() {
		v = o
		if u := v.Get("payment_url").String(); u != "" {
			paymentURL = u
		}
	}
	return model.Order{
		ID:            v.Get("id").Int(),
		OrderNumber:   v.Get("order_number").String(),
		Status:        v.Get("status").String(),
		PaymentStatus: v.Get("payment_status").String(),
		PaymentURL:    paymentURL,
	}
}
