package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/config"
)

func TestNotifier_DeliversPayload(t *testing.T) {
	received := make(chan Payload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		received <- p
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewNotifier(config.WebhookConfig{Enabled: true, URL: server.URL}, zap.NewNop())
	notifier.Notify(context.Background(), "unit-status-changed", map[string]string{"unitId": "u1"})

	p := <-received
	assert.Equal(t, "unit-status-changed", p.Event)
	assert.False(t, p.Timestamp.IsZero())
}

func TestNotifier_DisabledIsNoop(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	notifier := NewNotifier(config.WebhookConfig{Enabled: false, URL: server.URL}, zap.NewNop())
	notifier.Notify(context.Background(), "unit-status-changed", nil)
	assert.False(t, called)
}
