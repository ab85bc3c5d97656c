package slack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smallbiznis/paylink/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestAPIProviderPostsMessage(t *testing.T) {
	var got postMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	p := NewAPIProvider(config.SlackConfig{BaseURL: srv.URL, Token: "xoxb-test"}, nil)
	require.NoError(t, p.PostMessage(context.Background(), "#payments", "boom"))
	assert.Equal(t, "Payment Service Error", got.Username)
	assert.Equal(t, ":interrobang:", got.IconEmoji)
	assert.Equal(t, "#payments", got.Channel)
	assert.Equal(t, "boom", got.Text)
}

func TestAPIProviderReportsSlackError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	p := NewAPIProvider(config.SlackConfig{BaseURL: srv.URL}, nil)
	err := p.PostMessage(context.Background(), "#missing", "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

type failingProvider struct{ calls int }

func (p *failingProvider) PostMessage(context.Context, string, string) error {
	p.calls++
	return errors.New("down")
}

func TestAlerterSwallowsDeliveryErrors(t *testing.T) {
	provider := &failingProvider{}
	a := NewAlerter(provider, config.Config{Slack: config.SlackConfig{Channel: "#payments"}}, zaptest.NewLogger(t))
	a.Alert(context.Background(), "Processing Noon payment webhook request failed, x")
	assert.Equal(t, 1, provider.calls)
}

func TestNewFromConfigFallsBackToNoOp(t *testing.T) {
	_, ok := NewFromConfig(config.Config{}).(*NoOpProvider)
	assert.True(t, ok)
	_, ok = NewFromConfig(config.Config{Slack: config.SlackConfig{Token: "t", Channel: "c"}}).(*APIProvider)
	assert.True(t, ok)
}
