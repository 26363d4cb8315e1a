package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gridwatch/internal/model"
	"gridwatch/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDevice = "8018052b-45f8-46c3-b2fd-3ac2c15cd6f4"

func newFeedServer(t *testing.T) (*realtime.Hub, string) {
	t.Helper()
	hub := realtime.NewHub(zap.NewNop().Sugar())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		realtime.ServeWS(hub, "", w, r)
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestClientReceivesSeedAndLiveEvents(t *testing.T) {
	hub, url := newFeedServer(t)

	hub.PublishReading(model.Reading{ID: 1, DeviceID: testDevice, Power: 100})

	c := NewClient(url, "", zap.NewNop())
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()
	require.NoError(t, c.Subscribe(ctx, testDevice))

	seed := waitEvent(t, c)
	assert.Equal(t, "seed", seed.Event)
	assert.Equal(t, testDevice, seed.DeviceID)

	var window []model.Reading
	require.NoError(t, json.Unmarshal(seed.Readings, &window))
	require.Len(t, window, 1)
	assert.Equal(t, int64(1), window[0].ID)

	hub.PublishReading(model.Reading{ID: 2, DeviceID: testDevice, Power: 150})
	live := waitEvent(t, c)
	assert.Equal(t, "reading", live.Event)

	var r model.Reading
	require.NoError(t, json.Unmarshal(live.Reading, &r))
	assert.Equal(t, int64(2), r.ID)

	hub.PublishAlert(model.Alert{DeviceID: testDevice, Type: model.AlertTheft})
	alert := waitEvent(t, c)
	assert.Equal(t, "alert", alert.Event)
}

func TestClientSubscribeBeforeConnect(t *testing.T) {
	_, url := newFeedServer(t)

	c := NewClient(url, "", zap.NewNop())
	assert.Error(t, c.Subscribe(context.Background(), testDevice))
}

func TestClientClose(t *testing.T) {
	_, url := newFeedServer(t)

	c := NewClient(url, "", zap.NewNop())
	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done must be closed after Close")
	}

	// closing twice is fine
	assert.NoError(t, c.Close())
}
