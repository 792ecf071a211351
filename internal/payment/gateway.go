// Package payment talks to the hosted payment gateway. Only two calls are
// consumed: creating an authorization intent and voiding one.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrDeclined = errors.New("payment: authorization declined")

// Intent is the gateway's record that funds are reserved but not captured.
// ClientSecret is handed to the browser to confirm the intent; ID stays
// server-side.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

type Client struct {
	HTTP    *http.Client
	BaseURL string
	Secret  string
}

func NewClient(baseURL, secret string) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		BaseURL: baseURL,
		Secret:  secret,
	}
}

type createIntentRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type gatewayError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateIntent reserves amount (in minor currency units) and returns the
// opaque intent handles.
func (c *Client) CreateIntent(ctx context.Context, amount int64, currency, description string, metadata map[string]string) (*Intent, error) {
	body, _ := json.Marshal(createIntentRequest{
		Amount:      amount,
		Currency:    currency,
		Description: description,
		Metadata:    metadata,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Secret)

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment: gateway unreachable: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusPaymentRequired || res.StatusCode == http.StatusForbidden {
		return nil, ErrDeclined
	}
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		var ge gatewayError
		if err := json.NewDecoder(res.Body).Decode(&ge); err == nil && ge.Error.Message != "" {
			return nil, fmt.Errorf("payment: gateway error (%d): %s", res.StatusCode, ge.Error.Message)
		}
		return nil, fmt.Errorf("payment: gateway error: %s", res.Status)
	}

	var in Intent
	if err := json.NewDecoder(res.Body).Decode(&in); err != nil {
		return nil, fmt.Errorf("payment: parse response: %w", err)
	}
	if in.ID == "" {
		return nil, errors.New("payment: gateway returned empty intent id")
	}
	return &in, nil
}

// CancelIntent voids a previously created authorization. Used as the
// compensating action when order persistence fails after authorization.
func (c *Client) CancelIntent(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/payment_intents/"+id+"/cancel", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Secret)

	res, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("payment: gateway unreachable: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("payment: cancel intent %s: %s", id, res.Status)
	}
	return nil
}
