package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"kolia/internal/config"
	"kolia/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMessage(t *testing.T) {
	msg, ok := StatusMessage(42, domain.StatusOutForDelivery)
	require.True(t, ok)
	assert.Equal(t, "Votre commande est en cours de livraison - Commande #42", msg)

	_, ok = StatusMessage(42, domain.StatusPending)
	assert.False(t, ok)
}

func TestOrderCreatedMessage(t *testing.T) {
	assert.Equal(t, "Votre commande #7 a été confirmée. Total: 82940FC", OrderCreatedMessage(7, "82940"))
}

func TestLogDispatcherIsMock(t *testing.T) {
	res := LogDispatcher{}.Send(context.Background(), "+243970000000", "hi")
	assert.True(t, res.Success)
	assert.True(t, res.IsMock)
}

func TestWhatsAppDispatcher_Send(t *testing.T) {
	var got whatsAppMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := NewWhatsAppDispatcher(srv.URL+"/", "tok").Send(context.Background(), "+243970000000", "bonjour")

	assert.True(t, res.Success)
	assert.False(t, res.IsMock)
	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "text", got.Type)
	assert.Equal(t, "+243970000000", got.To)
	assert.Equal(t, "bonjour", got.Text.Body)
}

func TestWhatsAppDispatcher_FailureIsReturnedNotRaised(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	res := NewWhatsAppDispatcher(srv.URL, "tok").Send(context.Background(), "+243970000000", "x")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "401")

	res = NewWhatsAppDispatcher("", "").Send(context.Background(), "+243970000000", "x")
	assert.False(t, res.Success)
}

type fakeChannel struct {
	exchange string
	msg      amqp.Publishing
	err      error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, _ string, _, _ bool, msg amqp.Publishing) error {
	f.exchange = exchange
	f.msg = msg
	return f.err
}

func TestAMQPDispatcher_Send(t *testing.T) {
	ch := &fakeChannel{}
	d := &AMQPDispatcher{ch: ch, exchange: "notifications_fanout"}

	res := d.Send(context.Background(), "+243970000000", "hello")

	require.True(t, res.Success)
	assert.Equal(t, "notifications_fanout", ch.exchange)
	var n Notification
	require.NoError(t, json.Unmarshal(ch.msg.Body, &n))
	assert.Equal(t, "+243970000000", n.Phone)
	assert.Equal(t, "hello", n.Message)

	ch.err = errors.New("channel closed")
	res = d.Send(context.Background(), "+243970000000", "hello")
	assert.False(t, res.Success)
	assert.Equal(t, "channel closed", res.Error)
}

func TestNew_FallsBackToLog(t *testing.T) {
	assert.IsType(t, LogDispatcher{}, New(&config.Config{NotifyDriver: "log"}))
	assert.IsType(t, LogDispatcher{}, New(&config.Config{NotifyDriver: "whatsapp"}))
	assert.IsType(t, LogDispatcher{}, New(&config.Config{NotifyDriver: "amqp"}))
	assert.IsType(t, &WhatsAppDispatcher{}, New(&config.Config{NotifyDriver: "whatsapp", WhatsAppAPIURL: "http://x", WhatsAppAPIToken: "t"}))
}
