package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/models"
)

// APIClient opens payment authorizations through the storefront API.
type APIClient struct {
	BaseURL string
	// Token is the shopper's bearer token.
	Token string
	HTTP  *http.Client
}

// APIError is a non-2xx response from the storefront API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// intentBody omits the session key: the server derives its own from the
// signed-in user and the manifest.
type intentBody struct {
	Amount decimal.Decimal       `json:"amount"`
	Items  []models.ManifestItem `json:"items"`
}

type intentReply struct {
	ClientSecret string          `json:"clientSecret"`
	IntentID     string          `json:"paymentIntentId"`
	Amount       decimal.Decimal `json:"amount"`
	Error        string          `json:"error"`
}

func (c *APIClient) CreateIntent(ctx context.Context, req IntentRequest) (*Handle, error) {
	body, err := json.Marshal(intentBody{Amount: req.Amount, Items: req.Items})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/api/create-payment-intent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to request payment intent: %w", err)
	}
	defer resp.Body.Close()

	var reply intentReply
	decodeErr := json.NewDecoder(resp.Body).Decode(&reply)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := reply.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode payment intent: %w", decodeErr)
	}
	if reply.ClientSecret == "" {
		return nil, fmt.Errorf("payment intent response has no client secret")
	}
	return &Handle{IntentID: reply.IntentID, ClientSecret: reply.ClientSecret, Amount: reply.Amount}, nil
}
