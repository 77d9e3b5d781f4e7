package channelworker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/notifybridge/pipeline/internal/notifypipe"
)

func TestEmailSender_Send_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/send", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message_id":"provider-msg-1"}`))
	}))
	defer srv.Close()

	sender := NewEmailSender(EmailSenderConfig{APIKey: "test-key", BaseURL: srv.URL, Timeout: time.Second})
	assert.Equal(t, notifypipe.ChannelEmail, sender.Channel())

	body, _ := json.Marshal(notifypipe.EmailMessage{
		NotificationID: "n-1",
		To:             "a@b.com",
		Subject:        "hi",
		Content:        "<p>hi</p>",
	})

	result := sender.Send(context.Background(), body)
	assert.True(t, result.Success)
	assert.Equal(t, "provider-msg-1", result.ProviderMessageID)
	assert.Equal(t, http.StatusAccepted, result.ProviderStatusCode)
	assert.NoError(t, result.Err)
}

func TestEmailSender_Send_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sender := NewEmailSender(EmailSenderConfig{APIKey: "test-key", BaseURL: srv.URL, Timeout: time.Second})
	body, _ := json.Marshal(notifypipe.EmailMessage{To: "a@b.com", Subject: "hi"})

	result := sender.Send(context.Background(), body)
	assert.False(t, result.Success)
	assert.Equal(t, http.StatusServiceUnavailable, result.ProviderStatusCode)
	assert.Error(t, result.Err)
}

func TestEmailSender_Send_InvalidBody(t *testing.T) {
	sender := NewEmailSender(EmailSenderConfig{APIKey: "test-key", BaseURL: "http://unused"})
	result := sender.Send(context.Background(), []byte("not json"))
	assert.False(t, result.Success)
	assert.Error(t, result.Err)
}
