package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/internal/pkg/secrets"
	"github.com/ManuelReschke/PayDemo/internal/pkg/signature"
)

type fixedCredentials struct {
	creds secrets.Credentials
	err   error
}

func (f fixedCredentials) CurrentCredentials(ctx context.Context) (secrets.Credentials, error) {
	return f.creds, f.err
}

func TestCreateOrderPostsToOrdersAPI(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "rzp_test_secret", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_N1","entity":"order","amount":49900,"currency":"INR","receipt":"o-1","status":"created"}`))
	}))
	defer srv.Close()

	c := &RazorpayClient{
		Credentials: fixedCredentials{creds: secrets.Credentials{KeyID: "rzp_test_key", KeySecret: "rzp_test_secret"}},
		APIBaseURL:  srv.URL + "/",
		HTTPClient:  srv.Client(),
	}
	out, err := c.CreateOrder(context.Background(), &models.Order{ID: "o-1", TotalAmountCents: 49900, Currency: "INR"})
	require.NoError(t, err)
	assert.Equal(t, "order_N1", out.ID)
	assert.False(t, out.Mock)

	assert.EqualValues(t, 49900, got["amount"])
	assert.Equal(t, "INR", got["currency"])
	assert.EqualValues(t, 1, got["payment_capture"])
	assert.Equal(t, map[string]any{"order_id": "o-1"}, got["notes"])
}

func TestCreateOrderProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR"}}`))
	}))
	defer srv.Close()

	c := &RazorpayClient{
		Credentials: fixedCredentials{creds: secrets.Credentials{KeyID: "k", KeySecret: "s"}},
		APIBaseURL:  srv.URL,
		HTTPClient:  srv.Client(),
	}
	_, err := c.CreateOrder(context.Background(), &models.Order{ID: "o-2", TotalAmountCents: 100})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status=400"))
}

func TestCreateOrderWithoutCredentials(t *testing.T) {
	order := &models.Order{ID: "o-3", TotalAmountCents: 500}
	missing := fixedCredentials{err: secrets.ErrConfigurationMissing}

	c := &RazorpayClient{Credentials: missing}
	_, err := c.CreateOrder(context.Background(), order)
	assert.ErrorIs(t, err, secrets.ErrConfigurationMissing)

	c.AllowMock = true
	out, err := c.CreateOrder(context.Background(), order)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.ID, "order_local_"))
	assert.True(t, out.Mock)
	assert.EqualValues(t, 500, out.Amount)
	assert.Equal(t, "INR", out.Currency)
}

func TestCreateOrderRejectsEmptyAmount(t *testing.T) {
	c := &RazorpayClient{Credentials: fixedCredentials{}}
	_, err := c.CreateOrder(context.Background(), &models.Order{ID: "o-4"})
	assert.Error(t, err)
}

func TestVerifyPaymentSignature(t *testing.T) {
	c := &RazorpayClient{Credentials: fixedCredentials{creds: secrets.Credentials{KeyID: "k", KeySecret: "key_secret"}}}
	sig := signature.Sign([]byte("order_N1|pay_9"), []byte("key_secret"))

	ok, err := c.VerifyPaymentSignature(context.Background(), "order_N1", "pay_9", sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.VerifyPaymentSignature(context.Background(), "order_N1", "pay_8", sig)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.VerifyPaymentSignature(context.Background(), "", "pay_9", sig)
	require.NoError(t, err)
	assert.False(t, ok)
}
