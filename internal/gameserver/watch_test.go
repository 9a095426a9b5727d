package gameserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/duel/internal/resolution"
)

func dialWatch(t *testing.T, srv *httptest.Server, battleID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/battles/" + battleID + "/watch"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitWatchers(t *testing.T, hub *Hub, battleID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Watchers(battleID) == n },
		2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishesToBattleWatchers(t *testing.T) {
	hub := NewHub(zap.NewNop(), time.Second)
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)

	watching := dialWatch(t, srv, "b-1")
	other := dialWatch(t, srv, "b-2")
	waitWatchers(t, hub, "b-1", 1)
	waitWatchers(t, hub, "b-2", 1)

	hub.Publish(context.Background(), resolution.Record{
		BattleID:       "b-1",
		Kind:           resolution.KindTurn,
		Turn:           3,
		Version:        4,
		Token:          "tok",
		Logs:           []string{"Rattata used Tackle!"},
		StateHashAfter: "blake2b:00",
		CommittedAt:    epoch,
	})

	require.NoError(t, watching.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := watching.ReadMessage()
	require.NoError(t, err)

	var got structpb.Struct
	require.NoError(t, protojson.Unmarshal(msg, &got))
	assert.Equal(t, "turn", got.Fields["kind"].GetStringValue())
	assert.Equal(t, float64(3), got.Fields["turn"].GetNumberValue())
	assert.Equal(t, "tok", got.Fields["idempotencyToken"].GetStringValue())
	assert.Equal(t, "2026-03-01T09:00:00Z", got.Fields["committedAtServerTime"].GetStringValue())

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub := NewHub(zap.NewNop(), time.Second)
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)

	conn := dialWatch(t, srv, "b-1")
	waitWatchers(t, hub, "b-1", 1)

	require.NoError(t, conn.Close())
	waitWatchers(t, hub, "b-1", 0)
}

func TestHub_CloseRefusesWatchers(t *testing.T) {
	hub := NewHub(zap.NewNop(), time.Second)
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)

	conn := dialWatch(t, srv, "b-1")
	waitWatchers(t, hub, "b-1", 1)
	hub.Close()
	assert.Equal(t, 0, hub.Watchers("b-1"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestNewHub_RejectsZeroTimeout(t *testing.T) {
	assert.Panics(t, func() { NewHub(zap.NewNop(), 0) })
}
