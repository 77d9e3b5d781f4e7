package submission

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsResponse_JSONShape(t *testing.T) {
	resp := StatsResponse{Queues: map[string]int{"notifications": 3, "email.queue": 1}}

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"queues":{"notifications":3,"email.queue":1}}`, string(raw))
}
