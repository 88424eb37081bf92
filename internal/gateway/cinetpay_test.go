package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCinetPay_Initialize(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/", r.URL.Path)
		assert.Equal(t, "paymentInitialization", r.URL.Query().Get("method"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"code":"201","message":"CREATED","data":{"payment_url":"https://pay/abc","payment_token":"tok123"}}`))
	}))
	defer srv.Close()

	c := NewCinetPay("key", "site", srv.URL)
	res, err := c.Initialize(context.Background(), InitRequest{
		TransactionID: "KOLIA_1_1", Amount: 82940, Currency: "CDF", CustomerCity: "Bukavu",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://pay/abc", res.PaymentURL)
	assert.Equal(t, "tok123", res.PaymentToken)
	assert.Equal(t, "key", got["apikey"])
	assert.Equal(t, "site", got["site_id"])
	assert.Equal(t, "KOLIA_1_1", got["transaction_id"])
	assert.EqualValues(t, 82940, got["amount"])
	assert.Equal(t, "Bukavu", got["customer_city"])
}

func TestCinetPay_InitializeRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"608","message":"MINIMUM_REQUIRED_FIELDS"}`))
	}))
	defer srv.Close()

	_, err := NewCinetPay("key", "site", srv.URL).Initialize(context.Background(), InitRequest{})
	assert.ErrorContains(t, err, "608")
}

func TestCinetPay_InitializeWithoutCredentials(t *testing.T) {
	_, err := NewCinetPay("", "", "http://127.0.0.1:0").Initialize(context.Background(), InitRequest{})
	assert.Error(t, err)
}

func TestCinetPay_CheckStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "checkPayStatus", r.URL.Query().Get("method"))
		_, _ = w.Write([]byte(`{"code":"00","message":"SUCCES","data":{"amount":"82940","currency":"CDF"}}`))
	}))
	defer srv.Close()

	res, err := NewCinetPay("key", "site", srv.URL).CheckStatus(context.Background(), "KOLIA_1_1")

	require.NoError(t, err)
	assert.True(t, res.Accepted())
	assert.Equal(t, "82940", res.Amount)
	assert.Equal(t, "CDF", res.Currency)
	assert.Contains(t, string(res.Raw), "SUCCES")
}

func TestCinetPay_CheckStatusRefusedIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"627","message":"TRANSACTION_CANCEL","data":{}}`))
	}))
	defer srv.Close()

	res, err := NewCinetPay("key", "site", srv.URL).CheckStatus(context.Background(), "KOLIA_1_1")

	require.NoError(t, err)
	assert.False(t, res.Accepted())
}

func TestCinetPay_GarbageResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "<html>bad gateway</html>", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewCinetPay("key", "site", srv.URL).CheckStatus(context.Background(), "x")
	assert.ErrorContains(t, err, "unexpected response")
}
