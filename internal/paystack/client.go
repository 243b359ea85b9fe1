package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	fastshot "github.com/opus-domini/fast-shot"
)

const DefaultBaseURL = "https://api.paystack.co"

// APIError is returned when the provider answers with a non-2xx status or
// with status=false in its envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack: status %d: %s", e.StatusCode, e.Message)
}

// DuplicateReference reports whether the provider refused the request because
// the transaction reference was already used.
func (e *APIError) DuplicateReference() bool {
	return strings.Contains(strings.ToLower(e.Message), "duplicate transaction reference")
}

var ErrTransport = errors.New("paystack: request failed")

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	baseURL   string
	secretKey string
	timeout   time.Duration
}

func NewClient(secretKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		timeout:   timeout,
	}
}

func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeData, error) {
	var data InitializeData
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*TransactionData, error) {
	var data TransactionData
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ChargeAuthorization charges a stored authorization code off-session.
// A declined charge is not an error: inspect TransactionData.Status.
func (c *Client) ChargeAuthorization(ctx context.Context, req ChargeRequest) (*TransactionData, error) {
	var data TransactionData
	if err := c.do(ctx, http.MethodPost, "/transaction/charge_authorization", req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error) {
	var data Customer
	if err := c.do(ctx, http.MethodPost, "/customer", req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) CreateDedicatedAccount(ctx context.Context, req DedicatedAccountRequest) (*DedicatedAccount, error) {
	var data DedicatedAccount
	if err := c.do(ctx, http.MethodPost, "/dedicated_account", req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) CreatePlan(ctx context.Context, req PlanRequest) (*Plan, error) {
	var data Plan
	if err := c.do(ctx, http.MethodPost, "/plan", req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) UpdatePlan(ctx context.Context, planCode string, req PlanRequest) error {
	return c.do(ctx, http.MethodPut, "/plan/"+url.PathEscape(planCode), req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client := fastshot.NewClient(c.baseURL).
		Config().SetTimeout(c.timeout).
		Header().Add("Authorization", "Bearer "+c.secretKey).
		Header().Add("Accept", "application/json").
		Build()

	var res fastshot.Response
	var sendErr error
	switch method {
	case http.MethodGet:
		res, sendErr = client.GET(path).
			Context().Set(ctx).
			Send()
	case http.MethodPost:
		res, sendErr = client.POST(path).
			Context().Set(ctx).
			Body().AsJSON(payload).
			Send()
	case http.MethodPut:
		res, sendErr = client.PUT(path).
			Context().Set(ctx).
			Body().AsJSON(payload).
			Send()
	default:
		return fmt.Errorf("paystack: unsupported method %s", method)
	}

	raw := res.RawResponse
	if raw == nil {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
		}
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, sendErr)
	}
	defer raw.Body.Close()

	return decode(raw, out)
}

func decode(raw *http.Response, out any) error {
	body, err := io.ReadAll(raw.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if raw.StatusCode >= 300 {
			return &APIError{StatusCode: raw.StatusCode, Message: strings.TrimSpace(string(body))}
		}
		return fmt.Errorf("%w: invalid response: %v", ErrTransport, err)
	}

	if raw.StatusCode >= 300 || !env.Status {
		return &APIError{StatusCode: raw.StatusCode, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: invalid response data: %v", ErrTransport, err)
	}
	return nil
}
