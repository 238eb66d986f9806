// Package paypal adapts the PayPal Checkout v2 and Payouts v1 APIs to the
// provider contract. PayPal cannot carry the canonical transaction
// reference as its primary identifier: it mints its own order id, so every
// Initialize reports a reissued reference and the canonical one rides in
// the purchase unit's custom_id.
package paypal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Yab112/art-store-backend-sub001/internal/logger"
	"github.com/Yab112/art-store-backend-sub001/internal/payment/provider"
)

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	webhookID    string
	production   bool
	http         *http.Client
	log          *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func New(baseURL, clientID, clientSecret, webhookID string, production bool, log *logger.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		webhookID:    webhookID,
		production:   production,
		http:         &http.Client{Timeout: 30 * time.Second},
		log:          log,
	}
}

func (c *Client) Name() string { return "paypal" }

func (c *Client) Initialize(ctx context.Context, req provider.InitializeRequest) (*provider.InitializeResult, error) {
	if req.Amount <= 0 {
		return nil, &provider.InitializationError{Provider: c.Name(), Message: "amount must be positive"}
	}
	if len(req.Currency) != 3 {
		return nil, &provider.InitializationError{Provider: c.Name(), Message: fmt.Sprintf("invalid currency %q", req.Currency)}
	}

	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"custom_id": req.TxRef,
			"amount": map[string]string{
				"currency_code": strings.ToUpper(req.Currency),
				"value":         fmt.Sprintf("%.2f", req.Amount),
			},
		}},
		"application_context": map[string]string{
			"return_url": req.ReturnURL,
			"cancel_url": req.CancelURL,
		},
	}

	var order struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := c.call(ctx, http.MethodPost, "/v2/checkout/orders", body, &order); err != nil {
		return nil, &provider.InitializationError{Provider: c.Name(), Message: err.Error(), Err: err}
	}

	approveURL := ""
	for _, link := range order.Links {
		if link.Rel == "approve" {
			approveURL = link.Href
		}
	}
	if approveURL == "" || order.ID == "" {
		return nil, &provider.InitializationError{Provider: c.Name(), Message: "provider returned no approval link"}
	}

	return &provider.InitializeResult{
		CheckoutURL: approveURL,
		ProviderRef: order.ID,
		RefReissued: true,
	}, nil
}

type orderDetails struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
		Amount   struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
	} `json:"purchase_units"`
	Payer struct {
		EmailAddress string `json:"email_address"`
		Name         struct {
			GivenName string `json:"given_name"`
			Surname   string `json:"surname"`
		} `json:"name"`
	} `json:"payer"`
}

// Verify reads the PayPal order and, when it is only APPROVED, runs the
// capture. APPROVED alone is not success: funds move at capture, and a
// failed capture is an error rather than a pending status.
func (c *Client) Verify(ctx context.Context, providerRef string) (*provider.VerifyResult, error) {
	var order orderDetails
	if err := c.call(ctx, http.MethodGet, "/v2/checkout/orders/"+providerRef, nil, &order); err != nil {
		return nil, fmt.Errorf("paypal order lookup failed for %s: %w", providerRef, err)
	}

	if order.Status == "APPROVED" {
		var captured orderDetails
		err := c.call(ctx, http.MethodPost, "/v2/checkout/orders/"+providerRef+"/capture", map[string]string{}, &captured)
		if err != nil {
			return nil, fmt.Errorf("paypal capture for %s: %w: %v", providerRef, provider.ErrCaptureFailed, err)
		}
		captured.Payer = order.Payer
		if len(captured.PurchaseUnits) == 0 {
			captured.PurchaseUnits = order.PurchaseUnits
		}
		order = captured
	}

	result := &provider.VerifyResult{
		CustomerEmail: order.Payer.EmailAddress,
		CustomerName:  strings.TrimSpace(order.Payer.Name.GivenName + " " + order.Payer.Name.Surname),
	}
	if len(order.PurchaseUnits) > 0 {
		result.Currency = order.PurchaseUnits[0].Amount.CurrencyCode
		result.Amount, _ = strconv.ParseFloat(order.PurchaseUnits[0].Amount.Value, 64)
	}

	switch order.Status {
	case "COMPLETED":
		result.Status = provider.VerifySuccess
	case "CREATED", "SAVED", "PAYER_ACTION_REQUIRED", "APPROVED":
		result.Status = provider.VerifyPending
	default:
		result.Status = provider.VerifyFailed
	}
	return result, nil
}

func (c *Client) Payout(ctx context.Context, destination string, amount float64, currency string) (*provider.PayoutResult, error) {
	batchID := fmt.Sprintf("artstore-%d", time.Now().UnixNano())
	body := map[string]interface{}{
		"sender_batch_header": map[string]string{
			"sender_batch_id": batchID,
			"email_subject":   "You have a payout from Art Store",
		},
		"items": []map[string]interface{}{{
			"recipient_type": "EMAIL",
			"receiver":       destination,
			"amount": map[string]string{
				"value":    fmt.Sprintf("%.2f", amount),
				"currency": strings.ToUpper(currency),
			},
		}},
	}

	var payout struct {
		BatchHeader struct {
			PayoutBatchID string `json:"payout_batch_id"`
			BatchStatus   string `json:"batch_status"`
		} `json:"batch_header"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/payments/payouts", body, &payout); err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "INSUFFICIENT_FUNDS"):
			return nil, fmt.Errorf("paypal payout: %w", provider.ErrInsufficientFunds)
		case strings.Contains(msg, "RECEIVER_UNREGISTERED"), strings.Contains(msg, "RECEIVER_UNABLE"):
			return nil, fmt.Errorf("paypal payout: %w", provider.ErrInvalidDestination)
		}
		return nil, fmt.Errorf("paypal payout failed: %w", err)
	}

	return &provider.PayoutResult{
		PayoutBatchID: payout.BatchHeader.PayoutBatchID,
		ItemStatus:    payout.BatchHeader.BatchStatus,
	}, nil
}

// VerifyWebhookSignature calls PayPal's verify-webhook-signature endpoint.
// Outside production any delivery is accepted, because sandbox webhook
// simulations do not carry verifiable signatures. Known, intentional gap.
func (c *Client) VerifyWebhookSignature(payload []byte, headers http.Header) bool {
	if !c.production {
		return true
	}

	body := map[string]interface{}{
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(payload),
	}

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	err := c.call(context.Background(), http.MethodPost, "/v1/notifications/verify-webhook-signature", body, &result)
	if err != nil {
		c.log.Error("PAYPAL", fmt.Sprintf("webhook signature verification call failed: %v", err))
		return false
	}
	return result.VerificationStatus == "SUCCESS"
}

func (c *Client) ParseWebhook(payload []byte) (*provider.WebhookEvent, error) {
	var event struct {
		EventType string `json:"event_type"`
		Resource  struct {
			BatchHeader struct {
				PayoutBatchID string `json:"payout_batch_id"`
				BatchStatus   string `json:"batch_status"`
			} `json:"batch_header"`
			PayoutBatchID     string `json:"payout_batch_id"`
			TransactionID     string `json:"transaction_id"`
			TransactionStatus string `json:"transaction_status"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode paypal webhook: %w", err)
	}

	normalized := &provider.WebhookEvent{Type: provider.EventOther, RawType: event.EventType}

	switch {
	case strings.HasPrefix(event.EventType, "PAYMENT.PAYOUTSBATCH."):
		normalized.Type = provider.EventPayoutBatch
		normalized.PayoutBatchID = event.Resource.BatchHeader.PayoutBatchID
		normalized.BatchStatus = event.Resource.BatchHeader.BatchStatus
	case strings.HasPrefix(event.EventType, "PAYMENT.PAYOUTS-ITEM."):
		normalized.Type = provider.EventPayoutItem
		normalized.PayoutBatchID = event.Resource.PayoutBatchID
		normalized.TransactionID = event.Resource.TransactionID
		normalized.TransactionStatus = event.Resource.TransactionStatus
	}
	return normalized, nil
}

// call handles auth, JSON round-trips and PayPal's error body shape.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paypal request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read paypal response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Name    string `json:"name"`
			Message string `json:"message"`
			Details []struct {
				Issue string `json:"issue"`
			} `json:"details"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		issue := apiErr.Name
		if len(apiErr.Details) > 0 {
			issue = issue + " " + apiErr.Details[0].Issue
		}
		return fmt.Errorf("paypal error (HTTP %d): %s %s", resp.StatusCode, issue, apiErr.Message)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode paypal response: %w", err)
		}
	}
	return nil
}

// token returns a cached client-credentials access token, refreshing it a
// minute before expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("paypal auth failed (HTTP %d)", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode paypal token response: %w", err)
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return c.accessToken, nil
}
