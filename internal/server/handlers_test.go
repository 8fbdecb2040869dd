package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uno/internal/database"
	"uno/internal/game"
	"uno/internal/model"
)

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T, origins ...string) (*httptest.Server, *Handler) {
	t.Helper()
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	log := zerolog.Nop()
	ledger := database.NewLedger(database.NewJSONStore(filepath.Join(t.TempDir(), "players.json")), log)
	hub := NewHub(log)
	m := game.NewManager(game.Options{Rules: game.DefaultRules()}, hub, ledger, log)
	h := NewHandler(m, ledger, hub, origins, log)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(func() {
		srv.Close()
		m.Shutdown()
	})
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// expect reads until a message of type typ arrives.
func expect(t *testing.T, conn *websocket.Conn, typ string) inbound {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg inbound
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", typ)
		if msg.Type == typ {
			return msg
		}
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "UNO Server is running", string(body))
}

func TestPlayersAndRooms(t *testing.T) {
	srv, h := newTestServer(t)
	h.Ledger.RecordRound("ann", []string{"bob"})

	resp, err := http.Get(srv.URL + "/players")
	require.NoError(t, err)
	var players map[string]model.PlayerStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&players))
	resp.Body.Close()
	assert.Equal(t, model.PlayerStats{Wins: 1}, players["ann"])

	resp, err = http.Get(srv.URL + "/rooms")
	require.NoError(t, err)
	var rooms []model.RoomSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	resp.Body.Close()
	assert.Empty(t, rooms)
}

func TestWebSocketGame(t *testing.T) {
	srv, h := newTestServer(t)
	ann := dial(t, srv)
	bob := dial(t, srv)

	require.NoError(t, ann.WriteJSON(model.Action{Type: model.ActionJoin, Room: "t1", Name: "ann"}))
	joined := expect(t, ann, model.MsgJoined)
	var jp model.JoinedPayload
	require.NoError(t, json.Unmarshal(joined.Payload, &jp))
	assert.Len(t, jp.YourHand, 7)

	require.NoError(t, bob.WriteJSON(model.Action{Type: model.ActionJoin, Room: "t1", Name: "bob"}))
	expect(t, bob, model.MsgJoined)
	turn := expect(t, ann, model.MsgUpdateTurn)
	var tp model.TurnPayload
	require.NoError(t, json.Unmarshal(turn.Payload, &tp))
	assert.Equal(t, "ann", tp.CurrentTurn)

	require.NoError(t, bob.WriteJSON(model.Action{Type: model.ActionChat, Text: "gl hf"}))
	chat := expect(t, ann, model.MsgChat)
	assert.JSONEq(t, `{"identity":"bob","text":"gl hf"}`, string(chat.Payload))

	require.NoError(t, ann.WriteJSON(model.Action{Type: model.ActionDrawCard}))
	expect(t, ann, model.MsgUpdateHand)
	expect(t, bob, model.MsgUpdateTurn)

	bob.Close()
	require.Eventually(t, func() bool {
		list := h.Manager.Summaries()
		return len(list) == 1 && list[0].PlayerCount == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketMalformedMessage(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
	msg := expect(t, conn, model.MsgRejected)
	assert.Contains(t, string(msg.Payload), "malformed")

	require.NoError(t, conn.WriteJSON(model.Action{Type: model.ActionJoin, Room: "t1", Name: "ann"}))
	expect(t, conn, model.MsgJoined)
}

func TestWebSocketOriginCheck(t *testing.T) {
	srv, _ := newTestServer(t, "https://uno.example")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://uno.example"}})
	require.NoError(t, err)
	conn.Close()
}

func TestHubDropsUnknownConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Send("nobody", model.Message{Type: model.MsgChat})
	assert.Zero(t, hub.Len())

	c := &client{id: "c1", send: make(chan []byte, 1)}
	hub.register(c)
	hub.Send("c1", model.Message{Type: model.MsgChat, Payload: "one"})
	hub.Send("c1", model.Message{Type: model.MsgChat, Payload: "two"})
	assert.Len(t, c.send, 1, "full queue drops")

	hub.unregister("c1")
	hub.unregister("c1")
	_, open := <-c.send
	assert.True(t, open, "buffered message still readable")
	_, open = <-c.send
	assert.False(t, open)
}
