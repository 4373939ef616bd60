package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RazorpayClient is a Gateway backed by the Razorpay REST API.
type RazorpayClient struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

func NewRazorpayClient(baseURL, keyID, keySecret string, timeout time.Duration) *RazorpayClient {
	return &RazorpayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *RazorpayClient) CreateIntent(ctx context.Context, amountMinor int64, currency, receipt string) (Intent, error) {
	req := map[string]any{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}
	var intent Intent
	if err := c.do(ctx, http.MethodPost, "/v1/orders", req, &intent); err != nil {
		return Intent{}, err
	}
	return intent, nil
}

func (c *RazorpayClient) FetchPayment(ctx context.Context, paymentID string) (Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &p); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// Refund refunds amountMinor of paymentID. Razorpay keeps receipt only as a
// merchant reference, so a retry after an unrecorded success is rejected;
// when the call fails Refund looks for an earlier refund carrying the same
// receipt and returns it instead.
func (c *RazorpayClient) Refund(ctx context.Context, paymentID string, amountMinor int64, receipt string) (Refund, error) {
	req := map[string]any{
		"amount":  amountMinor,
		"receipt": receipt,
	}
	var r Refund
	path := "/v1/payments/" + url.PathEscape(paymentID) + "/refund"
	if err := c.do(ctx, http.MethodPost, path, req, &r); err != nil {
		prior, found, ferr := c.findRefund(ctx, paymentID, receipt)
		if ferr != nil || !found {
			return Refund{}, err
		}
		r = prior
	}
	if r.PaymentID == "" {
		r.PaymentID = paymentID
	}
	return r, nil
}

type refundCollection struct {
	Count int      `json:"count"`
	Items []Refund `json:"items"`
}

// findRefund returns the refund of paymentID created with receipt.
func (c *RazorpayClient) findRefund(ctx context.Context, paymentID, receipt string) (Refund, bool, error) {
	if receipt == "" {
		return Refund{}, false, nil
	}
	var list refundCollection
	path := "/v1/payments/" + url.PathEscape(paymentID) + "/refunds?count=100"
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return Refund{}, false, err
	}
	for _, r := range list.Items {
		if r.Receipt == receipt {
			return r, true, nil
		}
	}
	return Refund{}, false, nil
}

func (c *RazorpayClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var rerr razorpayError
		desc := http.StatusText(resp.StatusCode)
		if json.Unmarshal(raw, &rerr) == nil && rerr.Error.Description != "" {
			desc = rerr.Error.Description
		}
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUnavailable, method, path, resp.StatusCode, desc)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}
