package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/notifybridge/pipeline/internal/apperrors"
	"github.com/notifybridge/pipeline/internal/breaker"
	"github.com/notifybridge/pipeline/internal/notifypipe"
)

// TemplateClient is the render(template_key, data) capability.
type TemplateClient struct {
	baseURL        string
	internalSecret string
	httpClient     *http.Client
	breaker        *breaker.Breaker
}

// TemplateClientConfig configures a TemplateClient.
type TemplateClientConfig struct {
	BaseURL        string
	InternalSecret string
	Timeout        time.Duration
}

// NewTemplateClient constructs a TemplateClient with the same breaker
// policy as the profile client.
func NewTemplateClient(cfg TemplateClientConfig) *TemplateClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &TemplateClient{
		baseURL:        cfg.BaseURL,
		internalSecret: cfg.InternalSecret,
		httpClient:     &http.Client{Timeout: timeout},
		breaker:        breaker.New(breaker.DefaultSettings("template-client")),
	}
}

type renderRequest struct {
	TemplateKey string                 `json:"template_key"`
	MessageData map[string]interface{} `json:"message_data"`
}

// Render renders templateKey with data into the {subject, body_text,
// body_html} triple.
func (c *TemplateClient) Render(ctx context.Context, templateKey string, data map[string]interface{}) (*notifypipe.RenderedContent, error) {
	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return c.doRender(ctx, templateKey, data)
	})
	if err != nil {
		return nil, err
	}
	rendered, _ := result.(*notifypipe.RenderedContent)
	return rendered, nil
}

func (c *TemplateClient) doRender(ctx context.Context, templateKey string, data map[string]interface{}) (*notifypipe.RenderedContent, error) {
	reqBody, err := json.Marshal(renderRequest{TemplateKey: templateKey, MessageData: data})
	if err != nil {
		return nil, apperrors.NewInternal("encode render request", err)
	}

	url := fmt.Sprintf("%s/v1/templates/render", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, apperrors.NewInternal("build render request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Secret", c.internalSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewTransportTimeout("render", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewTransportTimeout("render read body", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NewNotFound("template")
	case resp.StatusCode == http.StatusBadRequest:
		var payload struct {
			Placeholder string `json:"placeholder"`
		}
		_ = json.Unmarshal(body, &payload)
		return nil, apperrors.NewMissingTemplateData(payload.Placeholder)
	case resp.StatusCode >= 500:
		return nil, apperrors.NewTransportTimeout("render", fmt.Errorf("template service returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, apperrors.NewInternal(fmt.Sprintf("unexpected render status %d", resp.StatusCode), nil)
	}

	var rendered notifypipe.RenderedContent
	if err := json.Unmarshal(body, &rendered); err != nil {
		return nil, apperrors.NewInternal("decode render response", err)
	}
	return &rendered, nil
}
