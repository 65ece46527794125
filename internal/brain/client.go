package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/dinein-backend/internal/orders"
	"github.com/angelmondragon/dinein-backend/internal/tabs"
	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dinein-backend/pkg/errors"
	"github.com/angelmondragon/dinein-backend/pkg/types"
	"github.com/google/uuid"
)

const (
	defaultTimeout       = 10 * time.Second
	errorBodyReadLimit   = 1024
	idempotencyKeyHeader = "Idempotency-Key"
)

// Client calls the brain command endpoint and the read API over HTTP. It
// satisfies the command and store interfaces of tablesync and tabsync.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures optional client behavior.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken sends a staff bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("brain base url is required")
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type idempotencyKey struct{}

// WithIdempotencyKey attaches a key that idempotent operations send along,
// so a retried call replays the first response.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *types.APIError `json:"error"`
}

func (c *Client) call(ctx context.Context, op string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode "+op+" request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/brain/"+op, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build "+op+" request")
	}
	req.Header.Set("Content-Type", "application/json")
	if key, ok := ctx.Value(idempotencyKey{}).(string); ok && key != "" && IdempotentOps[op] {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	return c.do(req, op, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build read request")
	}
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, what string, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "brain unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read "+what+" response")
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		snippet := raw
		if len(snippet) > errorBodyReadLimit {
			snippet = snippet[:errorBodyReadLimit]
		}
		code := pkgerrors.CodeForStatus(resp.StatusCode)
		if resp.StatusCode < 300 {
			code = pkgerrors.CodeDependency
		}
		return pkgerrors.Wrap(code, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), what+" returned an unexpected body")
	}

	if !env.Success || resp.StatusCode >= 300 {
		if env.Error == nil {
			return pkgerrors.Newf(pkgerrors.CodeForStatus(resp.StatusCode), "%s failed with status %d", what, resp.StatusCode)
		}
		typed := pkgerrors.New(pkgerrors.ParseCode(env.Error.Code, resp.StatusCode), env.Error.Message)
		if env.Error.Details != nil {
			typed = typed.WithDetails(env.Error.Details)
		}
		return typed
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+what+" response")
	}
	return nil
}

func (c *Client) CreateOrder(ctx context.Context, input orders.CreateOrderInput) (uuid.UUID, error) {
	var out OrderCreated
	if err := c.call(ctx, OpCreateOrder, input, &out); err != nil {
		return uuid.Nil, err
	}
	return out.OrderID, nil
}

func (c *Client) AddItem(ctx context.Context, input orders.AddItemInput) (uuid.UUID, error) {
	var out ItemAdded
	if err := c.call(ctx, OpAddItemToOrder, input, &out); err != nil {
		return uuid.Nil, err
	}
	return out.ItemID, nil
}

func (c *Client) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	return c.call(ctx, OpRemoveItemFromOrder, ItemRef{ItemID: itemID}, nil)
}

func (c *Client) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return c.call(ctx, OpUpdateItemQuantity, QuantityRequest{ItemID: itemID, Quantity: quantity}, nil)
}

func (c *Client) UpdateGuestCount(ctx context.Context, orderID uuid.UUID, guests int) error {
	return c.call(ctx, OpUpdateGuestCount, GuestCountRequest{OrderID: orderID, GuestCount: guests}, nil)
}

func (c *Client) SendToKitchen(ctx context.Context, orderID uuid.UUID) (int, error) {
	var out SentToKitchen
	if err := c.call(ctx, OpSendToKitchen, OrderRef{OrderID: orderID}, &out); err != nil {
		return 0, err
	}
	return out.SentItems, nil
}

func (c *Client) RequestCheck(ctx context.Context, orderID uuid.UUID) error {
	return c.call(ctx, OpRequestCheck, OrderRef{OrderID: orderID}, nil)
}

func (c *Client) MarkPaid(ctx context.Context, input orders.MarkPaidInput) error {
	return c.call(ctx, OpMarkPaid, input, nil)
}

func (c *Client) UpdateLinkedTables(ctx context.Context, input orders.LinkTablesInput) (uuid.UUID, error) {
	var out TablesLinked
	if err := c.call(ctx, OpUpdateLinkedTables, input, &out); err != nil {
		return uuid.Nil, err
	}
	return out.TableGroupID, nil
}

func (c *Client) UnlinkTables(ctx context.Context, groupID uuid.UUID) error {
	return c.call(ctx, OpUnlinkTables, GroupRef{TableGroupID: groupID}, nil)
}

func (c *Client) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	return c.call(ctx, OpCancelOrder, OrderRef{OrderID: orderID}, nil)
}

func (c *Client) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status enums.ItemStatus) error {
	return c.call(ctx, OpUpdateItemStatus, ItemStatusRequest{ItemID: itemID, Status: status}, nil)
}

func (c *Client) CreateTab(ctx context.Context, input tabs.CreateTabInput) (uuid.UUID, error) {
	var out TabCreated
	if err := c.call(ctx, OpCreateCustomerTab, input, &out); err != nil {
		return uuid.Nil, err
	}
	return out.TabID, nil
}

func (c *Client) AddItems(ctx context.Context, tabID uuid.UUID, itemIDs []uuid.UUID) error {
	return c.call(ctx, OpAddItemsToCustomerTab, TabItemsRequest{TabID: tabID, ItemIDs: itemIDs}, nil)
}

// UpdateTab sends only the fields that are set; an absent tip or discount
// is left untouched by the server while an explicit null resets it.
func (c *Client) UpdateTab(ctx context.Context, input tabs.UpdateTabInput) error {
	body := map[string]any{"tab_id": input.TabID}
	if input.Name != nil {
		body["name"] = *input.Name
	}
	if input.Tip.Valid {
		body["tip"] = input.Tip
	}
	if input.Discount.Valid {
		body["discount"] = input.Discount
	}
	return c.call(ctx, OpUpdateCustomerTab, body, nil)
}

func (c *Client) CloseTab(ctx context.Context, input tabs.CloseTabInput) error {
	return c.call(ctx, OpCloseCustomerTab, input, nil)
}

func (c *Client) SplitTab(ctx context.Context, input tabs.SplitTabInput) (uuid.UUID, error) {
	var out TabSplit
	if err := c.call(ctx, OpSplitCustomerTab, input, &out); err != nil {
		return uuid.Nil, err
	}
	return out.NewTabID, nil
}

func (c *Client) MergeTabs(ctx context.Context, sourceID, targetID uuid.UUID) error {
	return c.call(ctx, OpMergeCustomerTabs, MergeTabsRequest{SourceTabID: sourceID, TargetTabID: targetID}, nil)
}

func (c *Client) MoveItems(ctx context.Context, input tabs.MoveItemsInput) error {
	return c.call(ctx, OpMoveItemsBetweenTabs, input, nil)
}

// ActiveOrderForTable returns nil when the table has no open order.
func (c *Client) ActiveOrderForTable(ctx context.Context, tableID uuid.UUID) (*models.Order, error) {
	var out *models.Order
	if err := c.get(ctx, "/api/v1/tables/"+tableID.String()+"/active-order", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) EnrichedItems(ctx context.Context, orderID uuid.UUID) ([]orders.EnrichedItem, error) {
	var out []orders.EnrichedItem
	if err := c.get(ctx, "/api/v1/orders/"+orderID.String()+"/items", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ActiveTabsByTable(ctx context.Context, tableNumber int) ([]models.CustomerTab, error) {
	var out []models.CustomerTab
	if err := c.get(ctx, fmt.Sprintf("/api/v1/tables/number/%d/tabs", tableNumber), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RealtimeURL is the websocket change stream served next to the endpoint.
func (c *Client) RealtimeURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/realtime"
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/realtime"
	}
	return c.baseURL + "/realtime"
}

// Header carries the bearer token for the websocket handshake.
func (c *Client) Header() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}
