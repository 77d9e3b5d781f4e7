package notifypipe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryTargets_HasAnyTarget(t *testing.T) {
	tests := []struct {
		name     string
		targets  DeliveryTargets
		expected bool
	}{
		{"empty", DeliveryTargets{}, false},
		{"email only", DeliveryTargets{Email: "a@b.com"}, true},
		{"phone only", DeliveryTargets{Phone: "+15555550100"}, true},
		{"push token only", DeliveryTargets{PushToken: "tok"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.targets.HasAnyTarget())
		})
	}
}

func TestRenderedContent_UnmarshalJSON_FieldDrift(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"canonical body_html", `{"subject":"s","body_text":"t","body_html":"<p>canonical</p>"}`, "<p>canonical</p>"},
		{"html alias", `{"subject":"s","body_text":"t","html":"<p>html</p>"}`, "<p>html</p>"},
		{"html_body alias", `{"subject":"s","body_text":"t","html_body":"<p>html_body</p>"}`, "<p>html_body</p>"},
		{"content alias", `{"subject":"s","body_text":"t","content":"<p>content</p>"}`, "<p>content</p>"},
		{"body_html wins over aliases", `{"subject":"s","body_text":"t","body_html":"<p>canonical</p>","html":"<p>html</p>"}`, "<p>canonical</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rc RenderedContent
			require.NoError(t, json.Unmarshal([]byte(tt.body), &rc))
			assert.Equal(t, tt.expected, rc.BodyHTML)
			assert.Equal(t, "s", rc.Subject)
			assert.Equal(t, "t", rc.BodyText)
		})
	}
}

func TestEnvelope_Validate(t *testing.T) {
	tests := []struct {
		name    string
		env     Envelope
		wantErr string
	}{
		{
			name:    "empty subject rejected",
			env:     Envelope{DeliveryTargets: DeliveryTargets{Email: "a@b.com"}},
			wantErr: "envelope has empty rendered.subject",
		},
		{
			name: "no delivery target rejected",
			env: Envelope{
				Rendered: RenderedContent{Subject: "hi"},
			},
			wantErr: "envelope has no delivery target (email, push_token, or phone)",
		},
		{
			name: "valid envelope",
			env: Envelope{
				Rendered:        RenderedContent{Subject: "hi"},
				DeliveryTargets: DeliveryTargets{Email: "a@b.com"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestFailedEnvelope_JSONRoundTrip(t *testing.T) {
	fe := FailedEnvelope{
		Channel:    ChannelEmail,
		Body:       json.RawMessage(`{"notification_id":"n-1"}`),
		RetryCount: 2,
		LastError:  "smtp timeout",
		FailedAt:   1700000000,
	}

	raw, err := json.Marshal(fe)
	require.NoError(t, err)

	var decoded FailedEnvelope
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, fe.Channel, decoded.Channel)
	assert.Equal(t, fe.RetryCount, decoded.RetryCount)
	assert.JSONEq(t, string(fe.Body), string(decoded.Body))
}
