package channelworker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/notifybridge/pipeline/internal/notifypipe"
)

// PushSenderConfig configures a PushSender.
type PushSenderConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// PushSender delivers PushMessages via a synchronous call to a push
// notification API, masking its API key before logging it.
type PushSender struct {
	apiKey     string
	maskedKey  string
	baseURL    string
	httpClient *http.Client
}

// NewPushSender constructs a PushSender.
func NewPushSender(cfg PushSenderConfig) *PushSender {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	masked := "***"
	if len(cfg.APIKey) > 5 {
		masked = cfg.APIKey[:5] + "***"
	}
	return &PushSender{
		apiKey:     cfg.APIKey,
		maskedKey:  masked,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *PushSender) Channel() notifypipe.Channel { return notifypipe.ChannelPush }

// Send posts a PushMessage to the provider; success is a normal return
// carrying an assigned message id.
func (s *PushSender) Send(ctx context.Context, body []byte) SendResult {
	var msg notifypipe.PushMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return SendResult{Success: false, Err: fmt.Errorf("decode push message: %w", err)}
	}

	reqBody, err := json.Marshal(map[string]interface{}{
		"to":    msg.Target,
		"title": msg.Title,
		"body":  msg.Body,
		"data":  msg.Data,
	})
	if err != nil {
		return SendResult{Success: false, Err: fmt.Errorf("encode provider request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/push", bytes.NewReader(reqBody))
	if err != nil {
		return SendResult{Success: false, Err: fmt.Errorf("build provider request for key %s: %w", s.maskedKey, err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return SendResult{Success: false, Err: s.categorizeNetworkError(err)}
	}
	defer func() { _ = resp.Body.Close() }()

	var parsed struct {
		MessageID string `json:"message_id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&parsed)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return SendResult{
			Success:            true,
			ProviderMessageID:  parsed.MessageID,
			ProviderStatusCode: resp.StatusCode,
		}
	}

	return SendResult{
		Success:            false,
		ProviderStatusCode: resp.StatusCode,
		Err:                fmt.Errorf("push provider returned %d", resp.StatusCode),
	}
}

func (s *PushSender) categorizeNetworkError(err error) error {
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return fmt.Errorf("push provider timeout: %w", err)
	}
	return fmt.Errorf("push provider transport error: %w", err)
}
