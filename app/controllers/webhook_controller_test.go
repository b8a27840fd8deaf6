package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/internal/pkg/payments"
	"github.com/ManuelReschke/PayDemo/internal/pkg/provider"
	"github.com/ManuelReschke/PayDemo/internal/pkg/secrets"
	"github.com/ManuelReschke/PayDemo/internal/pkg/signature"
	"github.com/ManuelReschke/PayDemo/internal/pkg/testutil"
	"github.com/ManuelReschke/PayDemo/internal/pkg/usercontext"
)

const testSecret = "whsec_controller_test"

type stubCreator struct{}

func (stubCreator) CreateOrder(ctx context.Context, order *models.Order) (*provider.ProviderOrder, error) {
	return &provider.ProviderOrder{ID: "order_" + order.ID[:8], Amount: order.TotalAmountCents, Currency: order.Currency}, nil
}

type testApp struct {
	app      *fiber.App
	db       *gorm.DB
	services *payments.Services
}

// newTestApp mounts the handlers the way the routers do. The capability
// comes from the X-Test-Role header instead of an operator key.
func newTestApp(t *testing.T, static secrets.Static) testApp {
	t.Helper()
	db := testutil.SetupTestDB(t)
	s := payments.New(db, payments.Options{Static: static, LockWait: time.Second, Creator: stubCreator{}})

	app := fiber.New()
	wc := NewWebhookController(s.Pipeline)
	app.Post("/webhooks/razorpay", wc.HandleRazorpayWebhook)

	v1 := app.Group("/api/v1", func(c *fiber.Ctx) error {
		switch c.Get("X-Test-Role") {
		case "admin":
			usercontext.SetCapability(c, usercontext.Capability{Operator: "ops", Privileged: true})
		case "viewer":
			usercontext.SetCapability(c, usercontext.Capability{Operator: "support"})
		}
		return c.Next()
	})
	ac := NewAdminWebhookController(s.Inspector, s.Replay)
	v1.Get("/webhooks/events", ac.HandleListEvents)
	v1.Get("/webhooks/events/:id", ac.HandleGetEvent)
	v1.Post("/webhooks/events/:id/replay", ac.HandleReplayEvent)
	dc := NewDeveloperConfigController(s.Config)
	v1.Get("/developer-config", dc.HandleGetConfig)
	v1.Put("/developer-config", dc.HandleUpdateConfig)
	v1.Get("/developer-config/history", dc.HandleConfigHistory)
	v1.Post("/orders", NewOrderController(s.Checkout).HandleCreateOrder)

	return testApp{app: app, db: db, services: s}
}

func (ta testApp) postWebhook(t *testing.T, payload []byte, sig string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/razorpay", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventIDHeader, testutil.RandomRef("evt"))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if sig != "" {
		req.Header.Set(SignatureHeader, sig)
	}
	return ta.do(t, req)
}

func (ta testApp) do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &out), string(body))
	}
	return resp, out
}

func sign(payload []byte) string {
	return signature.Sign(payload, []byte(testSecret))
}

func TestWebhookAppliesVerifiedDelivery(t *testing.T) {
	ta := newTestApp(t, secrets.Static{WebhookSecret: testSecret})
	order := testutil.CreateTestOrder(t, ta.db, "order_W1", 49900)
	payload := testutil.PaymentPayload("payment.captured", "order_W1", "pay_w1", "captured", 49900)

	resp, body := ta.postWebhook(t, payload, sign(payload))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, models.ProcessingApplied, body["outcome"])
	assert.Equal(t, models.OrderStatusPaid, testutil.ReloadOrder(t, ta.db, order.ID).Status)

	var ev models.WebhookEvent
	require.NoError(t, ta.db.First(&ev, uint(body["id"].(float64))).Error)
	assert.Equal(t, payload, ev.RawPayload)
	assert.Equal(t, "203.0.113.7", ev.SourceIP)
	assert.Contains(t, ev.HeadersJSON, "X-Razorpay-Event-Id")
}

func TestWebhookRejectedDeliveriesAnswer200(t *testing.T) {
	ta := newTestApp(t, secrets.Static{WebhookSecret: testSecret})
	order := testutil.CreateTestOrder(t, ta.db, "order_W2", 100)
	payload := testutil.PaymentPayload("payment.captured", "order_W2", "pay_w2", "captured", 100)

	resp, body := ta.postWebhook(t, payload, signature.Sign(payload, []byte("wrong")))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, models.VerificationUnverified, body["verification"])
	assert.Equal(t, models.ProcessingRejected, body["outcome"])

	resp, body = ta.postWebhook(t, payload, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, models.VerificationMalformed, body["verification"])

	unknown := testutil.PaymentPayload("payment.captured", "order_nope", "pay_x", "captured", 100)
	resp, body = ta.postWebhook(t, unknown, sign(unknown))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, models.ProcessingRejected, body["outcome"])

	assert.Equal(t, models.OrderStatusCreated, testutil.ReloadOrder(t, ta.db, order.ID).Status)
}

func TestWebhookWithoutSecretAsksForRetry(t *testing.T) {
	ta := newTestApp(t, secrets.Static{})
	payload := testutil.PaymentPayload("payment.captured", "order_W3", "pay_w3", "captured", 100)

	resp, body := ta.postWebhook(t, payload, sign(payload))
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "30", resp.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, "configuration_missing", body["error"])
	assert.NotNil(t, body["id"])
}

func TestGetClientIP(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(GetClientIP(c))
	})

	tests := []struct {
		header string
		value  string
		want   string
	}{
		{"CF-Connecting-IP", "198.51.100.1", "198.51.100.1"},
		{"X-Forwarded-For", "198.51.100.2, 10.0.0.1", "198.51.100.2"},
		{"X-Real-IP", "2001:db8::1", "2001:db8::1"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(tt.header, tt.value)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, tt.want, string(body))
	}
}
