package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// WhatsAppDispatcher sends text messages through the WhatsApp Business API
type WhatsAppDispatcher struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewWhatsAppDispatcher(baseURL, token string) *WhatsAppDispatcher {
	return &WhatsAppDispatcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

func (w *WhatsAppDispatcher) Send(ctx context.Context, phone, message string) Result {
	if w.baseURL == "" || w.token == "" {
		return Result{Error: "whatsapp not configured"}
	}
	body, err := json.Marshal(whatsAppMessage{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "text",
		Text:             whatsAppText{Body: message},
	})
	if err != nil {
		return w.fail(phone, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return w.fail(phone, err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return w.fail(phone, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return w.fail(phone, fmt.Errorf("whatsapp api status %d: %s", resp.StatusCode, raw))
	}
	return Result{Success: true}
}

func (w *WhatsAppDispatcher) fail(phone string, err error) Result {
	logrus.WithFields(logrus.Fields{"phone": phone, "error": err.Error()}).Error("WhatsApp send failed")
	return Result{Error: err.Error()}
}
