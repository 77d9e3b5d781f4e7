// Package clients implements the Profile Client and Template Client
// capabilities: thin HTTP callers to the out-of-scope profile and
// template services, each protected by its own circuit breaker.
package clients

import (
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

// Profile is the recipient-lookup response shape.
type Profile struct {
	RecipientID string                 `json:"recipient_id"`
	Email       string                 `json:"email,omitempty"`
	Phone       string                 `json:"phone,omitempty"`
	PushToken   string                 `json:"push_token,omitempty"`
	Language    string                 `json:"language,omitempty"`
	Preferences map[string]interface{} `json:"preferences,omitempty"`
}

// ProfileClient is the get_profile(id) capability.
type ProfileClient struct {
	baseURL        string
	internalSecret string
	httpClient     *http.Client
	breaker        *breaker.Breaker
}

// ProfileClientConfig configures a ProfileClient.
type ProfileClientConfig struct {
	BaseURL        string
	InternalSecret string
	Timeout        time.Duration
}

// NewProfileClient constructs a ProfileClient with its default breaker
// policy (5 consecutive connection-class failures, 60s open).
func NewProfileClient(cfg ProfileClientConfig) *ProfileClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &ProfileClient{
		baseURL:        cfg.BaseURL,
		internalSecret: cfg.InternalSecret,
		httpClient:     &http.Client{Timeout: timeout},
		breaker:        breaker.New(breaker.DefaultSettings("profile-client")),
	}
}

// GetProfile fetches a recipient's profile by id.
func (c *ProfileClient) GetProfile(ctx context.Context, recipientID string) (*Profile, error) {
	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return c.doGetProfile(ctx, recipientID)
	})
	if err != nil {
		return nil, err
	}
	profile, _ := result.(*Profile)
	return profile, nil
}

func (c *ProfileClient) doGetProfile(ctx context.Context, recipientID string) (*Profile, error) {
	url := fmt.Sprintf("%s/v1/users/%s", c.baseURL, recipientID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewInternal("build profile request", err)
	}
	req.Header.Set("X-Internal-Secret", c.internalSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewTransportTimeout("get_profile", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewTransportTimeout("get_profile read body", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NewNotFound("profile")
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperrors.New(apperrors.KindInternal, "PROFILE_UNAUTHORIZED",
			"profile service rejected internal secret").WithHTTPStatus(http.StatusInternalServerError)
	case resp.StatusCode >= 500:
		return nil, apperrors.NewTransportTimeout("get_profile", fmt.Errorf("profile service returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, apperrors.NewInternal(fmt.Sprintf("unexpected profile status %d", resp.StatusCode), nil)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, apperrors.NewInternal("decode profile response", err)
	}
	return &profile, nil
}

// ToDeliveryTargets projects a Profile onto the delivery targets an
// envelope carries.
func (p *Profile) ToDeliveryTargets() notifypipe.DeliveryTargets {
	return notifypipe.DeliveryTargets{
		Email:     p.Email,
		Phone:     p.Phone,
		PushToken: p.PushToken,
	}
}
