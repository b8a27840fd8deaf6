package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/internal/pkg/env"
	"github.com/ManuelReschke/PayDemo/internal/pkg/secrets"
	"github.com/ManuelReschke/PayDemo/internal/pkg/signature"
)

const defaultRazorpayAPIBaseURL = "https://api.razorpay.com"

// CredentialSource yields the current API key pair.
type CredentialSource interface {
	CurrentCredentials(ctx context.Context) (secrets.Credentials, error)
}

// ProviderOrder is the provider's view of a freshly created order.
type ProviderOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
	Status   string `json:"status,omitempty"`
	Mock     bool   `json:"mock,omitempty"`
}

type RazorpayClient struct {
	Credentials CredentialSource
	APIBaseURL  string
	// AllowMock returns a local reference instead of failing when no
	// credentials are configured.
	AllowMock bool

	HTTPClient *http.Client
}

func NewRazorpayClientFromEnv(creds CredentialSource) *RazorpayClient {
	return &RazorpayClient{
		Credentials: creds,
		APIBaseURL:  strings.TrimSpace(env.GetEnv("RAZORPAY_API_BASE_URL", defaultRazorpayAPIBaseURL)),
		AllowMock:   env.IsDev(),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateOrder registers order with the provider and returns the provider's
// order reference.
func (c *RazorpayClient) CreateOrder(ctx context.Context, order *models.Order) (*ProviderOrder, error) {
	if order == nil || order.TotalAmountCents <= 0 {
		return nil, errors.New("order amount must be positive")
	}
	currency := order.Currency
	if currency == "" {
		currency = "INR"
	}

	creds, err := c.Credentials.CurrentCredentials(ctx)
	if err != nil {
		if errors.Is(err, secrets.ErrConfigurationMissing) && c.AllowMock {
			mockID := fmt.Sprintf("order_local_%d", time.Now().UnixNano())
			log.Warnf("[Razorpay] API keys missing, using mock order id %s", mockID)
			return &ProviderOrder{ID: mockID, Amount: order.TotalAmountCents, Currency: currency, Receipt: order.ID, Mock: true}, nil
		}
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"amount":          order.TotalAmountCents,
		"currency":        currency,
		"receipt":         order.ID,
		"payment_capture": 1,
		"notes":           map[string]string{"order_id": order.ID},
	})
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(c.APIBaseURL, "/") + "/v1/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(creds.KeyID, creds.KeySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("razorpay order creation failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out ProviderOrder
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("razorpay order creation returned empty id")
	}
	return &out, nil
}

// VerifyPaymentSignature checks the signature the checkout widget hands back
// after a payment, computed over "<order id>|<payment id>" with the API key
// secret.
func (c *RazorpayClient) VerifyPaymentSignature(ctx context.Context, providerOrderID, paymentID, sig string) (bool, error) {
	if strings.TrimSpace(providerOrderID) == "" || strings.TrimSpace(paymentID) == "" {
		return false, nil
	}
	creds, err := c.Credentials.CurrentCredentials(ctx)
	if err != nil {
		return false, err
	}
	res := signature.Verify([]byte(providerOrderID+"|"+paymentID), sig, []byte(creds.KeySecret))
	return res.Outcome == signature.Verified, nil
}
