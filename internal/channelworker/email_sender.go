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

// EmailSenderConfig configures an EmailSender.
type EmailSenderConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// EmailSender delivers EmailMessages via a synchronous HTTP POST to a
// third-party mail API, masking its API key before logging it.
type EmailSender struct {
	apiKey     string
	maskedKey  string
	baseURL    string
	httpClient *http.Client
}

// NewEmailSender constructs an EmailSender.
func NewEmailSender(cfg EmailSenderConfig) *EmailSender {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	masked := "***"
	if len(cfg.APIKey) > 5 {
		masked = cfg.APIKey[:5] + "***"
	}
	return &EmailSender{
		apiKey:     cfg.APIKey,
		maskedKey:  masked,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *EmailSender) Channel() notifypipe.Channel { return notifypipe.ChannelEmail }

// Send posts an EmailMessage to the provider; success is any 2xx
// response.
func (s *EmailSender) Send(ctx context.Context, body []byte) SendResult {
	var msg notifypipe.EmailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return SendResult{Success: false, Err: fmt.Errorf("decode email message: %w", err)}
	}

	reqBody, err := json.Marshal(map[string]interface{}{
		"to":          msg.To,
		"subject":     msg.Subject,
		"html":        msg.Content,
		"template_id": msg.TemplateID,
	})
	if err != nil {
		return SendResult{Success: false, Err: fmt.Errorf("encode provider request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/send", bytes.NewReader(reqBody))
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
		Err:                fmt.Errorf("email provider returned %d", resp.StatusCode),
	}
}

func (s *EmailSender) categorizeNetworkError(err error) error {
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return fmt.Errorf("email provider timeout: %w", err)
	}
	return fmt.Errorf("email provider transport error: %w", err)
}
