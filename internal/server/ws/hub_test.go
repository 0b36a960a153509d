package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/perpdex/internal/cache/memory"
	"github.com/alanyoungcy/perpdex/internal/domain"
)

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHubRelaysEvents(t *testing.T) {
	bus := memory.NewSignalBus()
	hub := NewHub(bus, Config{Cluster: "devnet", Markets: []domain.Symbol{"ETH", "SOL"}}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	status := readEnvelope(t, conn)
	assert.Equal(t, "engine_status", status.Type)
	assert.Contains(t, string(status.Payload), `"cluster":"devnet"`)

	require.Eventually(t, func() bool {
		return bus.Subscribers(domain.ChannelSimulations) > 0
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, bus.Publish(ctx, domain.ChannelSimulations, []byte(`{"event":"simulate_open"}`)))

	env := readEnvelope(t, conn)
	assert.Equal(t, "event", env.Type)
	assert.Equal(t, domain.ChannelSimulations, env.Channel)
	assert.JSONEq(t, `{"event":"simulate_open"}`, string(env.Payload))
}

func TestClientSubscriptions(t *testing.T) {
	c := &client{subs: map[string]bool{domain.ChannelPositions: true}}
	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{domain.ChannelPositions}})
	assert.False(t, c.isSubscribed(domain.ChannelPositions))
	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{domain.ChannelSimulations}})
	assert.True(t, c.isSubscribed(domain.ChannelSimulations))
}

