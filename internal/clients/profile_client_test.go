package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifybridge/pipeline/internal/apperrors"
)

func TestProfileClient_GetProfile_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/recipient-1", r.URL.Path)
		assert.Equal(t, "shh", r.Header.Get("X-Internal-Secret"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"recipient_id":"recipient-1","email":"a@b.com","push_token":"tok-1"}`))
	}))
	defer srv.Close()

	client := NewProfileClient(ProfileClientConfig{BaseURL: srv.URL, InternalSecret: "shh", Timeout: time.Second})
	profile, err := client.GetProfile(context.Background(), "recipient-1")

	require.NoError(t, err)
	assert.Equal(t, "recipient-1", profile.RecipientID)
	assert.Equal(t, "a@b.com", profile.Email)

	targets := profile.ToDeliveryTargets()
	assert.Equal(t, "a@b.com", targets.Email)
	assert.Equal(t, "tok-1", targets.PushToken)
}

func TestProfileClient_GetProfile_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewProfileClient(ProfileClientConfig{BaseURL: srv.URL, Timeout: time.Second})
	profile, err := client.GetProfile(context.Background(), "missing")

	assert.Nil(t, profile)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestProfileClient_GetProfile_UpstreamServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewProfileClient(ProfileClientConfig{BaseURL: srv.URL, Timeout: time.Second})
	_, err := client.GetProfile(context.Background(), "recipient-1")

	assert.True(t, apperrors.Is(err, apperrors.KindTransportTimeout))
}
