package client

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

	"restopos/internal/models"

	"github.com/redis/go-redis/v9"
)

// APIError is a non-2xx answer from the POS API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client calls the POS HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// New constructs a client with baseURL, API key and extra header. Empty
// credentials are not sent.
func New(baseURL, apiKey, apiExtra string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiExtra:   apiExtra,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithHTTPClient swaps the underlying transport client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// UseRedisCache caches menu catalog reads for ttl. Orders are never cached.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

type CompleteResult struct {
	Order *models.Order `json:"order"`
	Bill  *models.Bill  `json:"bill"`
}

type PayItemsResult struct {
	Order *models.OrderWithItems `json:"order"`
	Bill  *models.Bill           `json:"bill"`
}

// Tables

func (c *Client) ListTables(ctx context.Context) ([]models.Table, error) {
	var out []models.Table
	if err := c.doJSON(ctx, http.MethodGet, "/api/tables", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetActiveOrder returns nil when the table has no active order.
func (c *Client) GetActiveOrder(ctx context.Context, tableID int64) (*models.OrderWithItems, error) {
	var out *models.OrderWithItems
	if err := c.doJSON(ctx, http.MethodGet, "/api/tables/"+itoa(tableID)+"/active-order", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Orders

func (c *Client) OpenOrder(ctx context.Context, tableID int64) (*models.Order, error) {
	var out models.Order
	body := map[string]int64{"tableId": tableID}
	if err := c.doJSON(ctx, http.MethodPost, "/api/orders", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID int64) (*models.OrderWithItems, error) {
	var out models.OrderWithItems
	if err := c.doJSON(ctx, http.MethodGet, "/api/orders/"+itoa(orderID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddItem(ctx context.Context, orderID, menuItemID, quantity int64, note *string) (*models.OrderWithItems, error) {
	body := map[string]any{"menuItemId": menuItemID, "quantity": quantity}
	if note != nil {
		body["note"] = *note
	}
	var out models.OrderWithItems
	if err := c.doJSON(ctx, http.MethodPost, "/api/orders/"+itoa(orderID)+"/items", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateItem(ctx context.Context, itemID int64, patch models.LineItemPatch) (*models.OrderWithItems, error) {
	var out models.OrderWithItems
	if err := c.doJSON(ctx, http.MethodPut, "/api/order-items/"+itoa(itemID), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveItem(ctx context.Context, itemID int64) (*models.OrderWithItems, error) {
	var out models.OrderWithItems
	if err := c.doJSON(ctx, http.MethodDelete, "/api/order-items/"+itoa(itemID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompleteOrder(ctx context.Context, orderID int64, paymentMethod string, discount int64) (*CompleteResult, error) {
	body := map[string]any{"paymentMethod": paymentMethod, "discount": discount}
	var out CompleteResult
	if err := c.doJSON(ctx, http.MethodPut, "/api/orders/"+itoa(orderID)+"/complete", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PayItems(ctx context.Context, orderID int64, itemIDs []int64, paymentMethod string) (*PayItemsResult, error) {
	body := map[string]any{"itemIds": itemIDs, "paymentMethod": paymentMethod}
	var out PayItemsResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/orders/"+itoa(orderID)+"/pay-items", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var out models.Order
	if err := c.doJSON(ctx, http.MethodPut, "/api/orders/"+itoa(orderID)+"/cancel", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SyncOrder(ctx context.Context, orderID int64) error {
	return c.doJSON(ctx, http.MethodPost, "/api/sync-to-sheets", map[string]int64{"orderId": orderID}, nil)
}

// Menu

func (c *Client) ListMenuCollections(ctx context.Context) ([]models.MenuCollection, error) {
	const path = "/api/menu-collections"
	var out []models.MenuCollection
	if c.readCache(ctx, cacheKey(path), &out) {
		return out, nil
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey(path), out)
	return out, nil
}

func (c *Client) ListMenuItems(ctx context.Context, filter models.MenuFilter) ([]models.MenuItem, error) {
	q := url.Values{}
	if filter.CollectionID > 0 {
		q.Set("collectionId", itoa(filter.CollectionID))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		q.Set("search", s)
	}
	if filter.AvailableOnly {
		q.Set("available", "true")
	}
	path := "/api/menu-items"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []models.MenuItem
	if c.readCache(ctx, cacheKey(path), &out) {
		return out, nil
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey(path), out)
	return out, nil
}

// Revenue

func (c *Client) DailyRevenue(ctx context.Context, date string) (*models.DailyRevenue, error) {
	var out models.DailyRevenue
	if err := c.doJSON(ctx, http.MethodGet, "/api/revenue/daily"+dateQuery(date), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RevenueByTable(ctx context.Context, date string) ([]models.TableRevenue, error) {
	var out []models.TableRevenue
	if err := c.doJSON(ctx, http.MethodGet, "/api/revenue/by-table"+dateQuery(date), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func dateQuery(date string) string {
	if date == "" {
		return ""
	}
	return "?date=" + url.QueryEscape(date)
}

func cacheKey(path string) string {
	return "restopos:client:" + path
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Message
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	return dec.Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}
}
