package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notifybridge/pipeline/internal/apperrors"
	"github.com/notifybridge/pipeline/internal/notifypipe"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		req      notifypipe.SubmissionRequest
		wantKind apperrors.Kind
		wantOK   bool
	}{
		{
			name:   "valid request",
			req:    notifypipe.SubmissionRequest{RecipientID: "r-1", TemplateKey: "welcome_email"},
			wantOK: true,
		},
		{
			name:     "missing recipient_id",
			req:      notifypipe.SubmissionRequest{TemplateKey: "welcome_email"},
			wantKind: apperrors.KindValidation,
		},
		{
			name:     "missing template_key",
			req:      notifypipe.SubmissionRequest{RecipientID: "r-1"},
			wantKind: apperrors.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(tt.req)
			if tt.wantOK {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperrors.Is(err, tt.wantKind))
		})
	}
}
