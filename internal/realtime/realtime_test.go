package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topup-store/internal/auth"
	"topup-store/internal/logging"
	"topup-store/internal/metrics"
)

func TestNewChangeEncodesNilAsEmptyObject(t *testing.T) {
	c, err := NewChange(EventInsert, map[string]string{"id": "o1"}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"o1"}`, string(c.New))
	assert.JSONEq(t, `{}`, string(c.Old))

	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"eventType":"INSERT","new":{"id":"o1"},"old":{}}`, string(b))

	_, err = NewChange("TRUNCATE", nil, nil)
	require.Error(t, err)
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "orders:user:u1", OrdersChannel("u1"))
	assert.Equal(t, "deposits:user:u1", DepositsChannel("u1"))
	assert.True(t, validChannel("orders:user:u1"))
	assert.False(t, validChannel("orders:user:"))
	assert.False(t, validChannel("other:u1"))
}

func TestMemoryBrokerRoutesByChannel(t *testing.T) {
	m := metrics.NewUnregistered("test")
	b := NewMemoryBroker(4, logging.Discard(), m)
	mine := b.Subscribe(UserChannels("u1")...)
	theirs := b.Subscribe(UserChannels("u2")...)
	defer mine.Close()
	defer theirs.Close()

	c, err := NewChange(EventUpdate, map[string]string{"status": "approved"}, map[string]string{"status": "pending"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), OrdersChannel("u1"), c))

	select {
	case msg := <-mine.C:
		assert.Equal(t, "orders:user:u1", msg.Channel)
		assert.Equal(t, EventUpdate, msg.Payload.EventType)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
	select {
	case msg := <-theirs.C:
		t.Fatalf("unexpected message for other user: %+v", msg)
	default:
	}
}

func TestMemoryBrokerDropsSlowSubscriber(t *testing.T) {
	b := NewMemoryBroker(1, logging.Discard(), nil)
	slow := b.Subscribe(OrdersChannel("u1"))

	c, err := NewChange(EventInsert, nil, nil)
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), OrdersChannel("u1"), c))
	require.NoError(t, b.Publish(context.Background(), OrdersChannel("u1"), c))

	assert.True(t, slow.Dropped())
	_, ok := <-slow.C
	assert.True(t, ok, "buffered message is still readable")
	_, ok = <-slow.C
	assert.False(t, ok, "channel closed after drop")

	slow.Close()
}

func TestHandlerStreamsOwnChanges(t *testing.T) {
	b := NewMemoryBroker(8, logging.Discard(), nil)
	h := NewHandler(b, logging.Discard(), nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithPrincipal(r.Context(), auth.Principal{UserID: "u1"})
		h.ServeHTTP(w, r.WithContext(ctx))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	c, err := NewChange(EventInsert, map[string]string{"id": "d1"}, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return len(b.subs[DepositsChannel("u1")]) == 1
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, b.Publish(context.Background(), DepositsChannel("u1"), c))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "deposits:user:u1", msg.Channel)
	assert.JSONEq(t, `{"id":"d1"}`, string(msg.Payload.New))
}

func TestHandlerRejectsAnonymous(t *testing.T) {
	h := NewHandler(NewMemoryBroker(1, logging.Discard(), nil), logging.Discard(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/realtime", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
