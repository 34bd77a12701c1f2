// Package charge talks to the external charge authority (Stripe payment intents).
package charge

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/yigit/classmarket/internal/pkg/apperrors"
)

// Intent statuses returned by the provider
const (
	StatusSucceeded = "succeeded"
)

// IntentRequest asks for a payment handle of Amount minor units
type IntentRequest struct {
	Amount         int64
	Currency       string
	IdempotencyKey string
}

// Intent is the provider's payment handle
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// Authority creates and inspects payment intents
type Authority interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
}

// Config holds the provider connection settings
type Config struct {
	SecretKey  string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type providerError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StripeClient implements Authority on the Stripe REST API
type StripeClient struct {
	client  *resty.Client
	timeout time.Duration
}

// NewStripeClient creates a client; retries only cover transport errors, 429 and 5xx
// and always resend the same Idempotency-Key.
func NewStripeClient(cfg Config) *StripeClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.SecretKey).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError
		})

	return &StripeClient{client: client, timeout: cfg.Timeout}
}

// SetRetryWait overrides the backoff bounds
func (c *StripeClient) SetRetryWait(minWait, maxWait time.Duration) *StripeClient {
	c.client.SetRetryWaitTime(minWait).SetRetryMaxWaitTime(maxWait)
	return c
}

// CreateIntent requests a card payment intent for req.Amount
func (c *StripeClient) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if req.Amount <= 0 {
		return nil, apperrors.NewBadRequestError("amount must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var intent Intent
	var perr providerError
	r := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"amount":                 strconv.FormatInt(req.Amount, 10),
			"currency":               req.Currency,
			"payment_method_types[]": "card",
		}).
		SetResult(&intent).
		SetError(&perr)
	if req.IdempotencyKey != "" {
		r.SetHeader("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := r.Post("/v1/payment_intents")
	if err := check("create payment intent", resp, err, &perr); err != nil {
		return nil, err
	}
	return &intent, nil
}

// RetrieveIntent loads an existing intent
func (c *StripeClient) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var intent Intent
	var perr providerError
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&intent).
		SetError(&perr).
		Get("/v1/payment_intents/{id}")
	if err := check("retrieve payment intent", resp, err, &perr); err != nil {
		return nil, err
	}
	return &intent, nil
}

func check(op string, resp *resty.Response, err error, perr *providerError) error {
	if err != nil {
		return apperrors.NewUpstreamError(fmt.Sprintf("%s: charge authority unreachable", op), err)
	}
	if !resp.IsError() {
		return nil
	}

	msg := perr.Error.Message
	if msg == "" {
		msg = resp.Status()
	}
	switch resp.StatusCode() {
	case http.StatusBadRequest, http.StatusPaymentRequired, http.StatusNotFound:
		return apperrors.NewBadRequestError(fmt.Sprintf("%s: %s", op, msg))
	default:
		return apperrors.NewUpstreamError(fmt.Sprintf("%s: %s", op, msg),
			fmt.Errorf("charge authority returned %d", resp.StatusCode()))
	}
}
