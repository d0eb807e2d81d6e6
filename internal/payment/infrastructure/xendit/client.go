package xendit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/museo-app/marketplace/internal/payment/domain"
)

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	Status    int
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("xendit: %d %s: %s", e.Status, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("xendit: http %d", e.Status)
}

func (e *APIError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type Client struct {
	log        *slog.Logger
	baseURL    string
	secretKey  string
	http       *http.Client
	maxElapsed time.Duration
	firstRetry time.Duration
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithMaxElapsed caps the total time spent retrying one call.
func WithMaxElapsed(d time.Duration) Option {
	return func(cl *Client) { cl.maxElapsed = d }
}

func NewClient(log *slog.Logger, baseURL, secretKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		log:       log,
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxElapsed: 15 * time.Second,
		firstRetry: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type refundMetadata struct {
	Reason string `json:"reason,omitempty"`
}

type refundBody struct {
	InvoiceID   string         `json:"invoice_id"`
	ReferenceID string         `json:"reference_id"`
	Amount      float64        `json:"amount"`
	Reason      string         `json:"reason"`
	Metadata    refundMetadata `json:"metadata"`
}

type refundResponse struct {
	ID     string  `json:"id"`
	Amount float64 `json:"amount"`
	Status string  `json:"status"`
}

// CreateRefund refunds a paid invoice. The idempotency key is sent on every
// attempt so a retried request cannot refund twice.
func (c *Client) CreateRefund(ctx context.Context, req domain.RefundRequest) (domain.Refund, error) {
	if req.PaymentReference == "" {
		return domain.Refund{}, errors.New("xendit: refund needs a payment reference")
	}
	body := refundBody{
		InvoiceID:   req.PaymentReference,
		ReferenceID: req.IdempotencyKey,
		Amount:      float64(req.Amount) / 100,
		Reason:      "CANCELLATION",
		Metadata:    refundMetadata{Reason: req.Reason},
	}

	var out refundResponse
	if err := c.do(ctx, http.MethodPost, "/refunds", req.IdempotencyKey, body, &out); err != nil {
		return domain.Refund{}, err
	}
	c.log.Info("refund created", "refund_id", out.ID, "status", out.Status, "invoice_id", req.PaymentReference)
	return domain.Refund{
		ID:     out.ID,
		Amount: int64(math.Round(out.Amount * 100)),
		Status: domain.RefundStatus(strings.ToUpper(out.Status)),
	}, nil
}

// CancelPaymentLink expires an unpaid invoice so the buyer can no longer pay it.
func (c *Client) CancelPaymentLink(ctx context.Context, invoiceID string) error {
	return c.do(ctx, http.MethodPost, "/invoices/"+url.PathEscape(invoiceID)+"/expire!", "", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, idemKey string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = b
	}

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth(c.secretKey, "")
		req.Header.Set("Content-Type", "application/json")
		if idemKey != "" {
			req.Header.Set("Idempotency-key", idemKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.log.Warn("xendit request failed", "path", path, "attempt", attempt, "err", err)
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode >= 300 {
			apiErr := &APIError{Status: resp.StatusCode}
			_ = json.Unmarshal(raw, apiErr)
			if apiErr.retryable() {
				c.log.Warn("xendit retryable status", "path", path, "attempt", attempt, "status", resp.StatusCode)
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return backoff.Permanent(fmt.Errorf("xendit: decode %s: %w", path, err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.firstRetry
	b.MaxElapsedTime = c.maxElapsed
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}
