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

func TestTemplateClient_Render_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/templates/render", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"subject":"Hi there","body_text":"hello","body_html":"<p>hello</p>"}`))
	}))
	defer srv.Close()

	client := NewTemplateClient(TemplateClientConfig{BaseURL: srv.URL, Timeout: time.Second})
	rendered, err := client.Render(context.Background(), "welcome_email", map[string]interface{}{"first_name": "Ada"})

	require.NoError(t, err)
	assert.Equal(t, "Hi there", rendered.Subject)
	assert.Equal(t, "hello", rendered.BodyText)
	assert.Equal(t, "<p>hello</p>", rendered.BodyHTML)
}

func TestTemplateClient_Render_MissingTemplateData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"placeholder":"first_name"}`))
	}))
	defer srv.Close()

	client := NewTemplateClient(TemplateClientConfig{BaseURL: srv.URL, Timeout: time.Second})
	rendered, err := client.Render(context.Background(), "welcome_email", map[string]interface{}{})

	assert.Nil(t, rendered)
	require.True(t, apperrors.Is(err, apperrors.KindMissingTemplateData))
	appErr, _ := err.(*apperrors.AppError)
	assert.Equal(t, "first_name", appErr.Metadata["placeholder"])
}

func TestTemplateClient_Render_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewTemplateClient(TemplateClientConfig{BaseURL: srv.URL, Timeout: time.Second})
	_, err := client.Render(context.Background(), "missing_template", nil)

	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}
