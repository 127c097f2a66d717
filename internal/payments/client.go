package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// Authorizer starts asynchronous payment authorization. The call returns as
// soon as the provider acknowledges; the outcome arrives later on the
// webhook, so orders wait in confirmed instead of blocking a goroutine.
type Authorizer interface {
	Authorize(ctx context.Context, orderID uuid.UUID, amountPaise int64) error
	RequestRefund(ctx context.Context, orderID uuid.UUID, amountPaise int64) error
}

type client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds the payment collaborator client.
func NewClient(baseURL string, timeout time.Duration) (Authorizer, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("payments base url required")
	}
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.HTTPClient.Timeout = timeout
	retryClient.Logger = nil
	return &client{baseURL: baseURL, http: retryClient.StandardClient()}, nil
}

type authorizeRequest struct {
	OrderID     uuid.UUID `json:"order_id"`
	AmountPaise int64     `json:"amount_paise"`
}

func (c *client) Authorize(ctx context.Context, orderID uuid.UUID, amountPaise int64) error {
	return c.post(ctx, "/v1/authorizations", authorizeRequest{OrderID: orderID, AmountPaise: amountPaise})
}

func (c *client) RequestRefund(ctx context.Context, orderID uuid.UUID, amountPaise int64) error {
	return c.post(ctx, "/v1/refunds", authorizeRequest{OrderID: orderID, AmountPaise: amountPaise})
}

func (c *client) post(ctx context.Context, path string, payload authorizeRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payment request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling payment service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("payment service returned %d for order %s", resp.StatusCode, payload.OrderID)
	}
	return nil
}
