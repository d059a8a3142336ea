package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T, upstream string) (*ClientManager, *httptest.Server) {
	t.Helper()
	presence := NewPresence()
	m := NewClientManager(
		presence,
		NewBubbleStore(afterFunc),
		NewRoomDirectory(presence, 0),
		NewDirectRouter(presence, true),
		Options{SweepInterval: time.Hour},
		discardLogger(),
	)
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)

	geocoder := NewGeocoder(upstream, "secret", "paris", time.Second, discardLogger())
	srv := httptest.NewServer(newRouter(m, geocoder, discardLogger()))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-m.Done()
	})
	return m, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// expect reads frames until one with the given event arrives.
func expect(t *testing.T, conn *websocket.Conn, event string) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var r received
		require.NoError(t, conn.ReadJSON(&r))
		if r.Event == event {
			return r
		}
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHTTP_Status_And_Bubbles_Reflect_Relay_State(t *testing.T) {
	req := require.New(t)
	_, srv := startRelay(t, "http://127.0.0.1:1")

	var status Status
	getJSON(t, srv.URL+"/api/status", &status)
	req.Equal(Status{}, status)

	// When a participant connects, announces and publishes
	conn := dial(t, srv)
	send(t, conn, EventAnnounce, map[string]any{"participantId": "u1", "nickname": "alice"})
	expect(t, conn, EventContentSnapshot)
	send(t, conn, EventPublishContent, map[string]any{"title": "picnic", "duration": 600})
	published := decodeData[Bubble](t, expect(t, conn, EventContentPublished))

	// Then the HTTP façade sees both
	getJSON(t, srv.URL+"/api/status", &status)
	req.Equal(Status{Online: 1, Bubbles: 1}, status)

	var bubbles []Bubble
	getJSON(t, srv.URL+"/api/bubbles", &bubbles)
	req.Len(bubbles, 1)
	req.Equal(published.ID, bubbles[0].ID)
	req.Equal("u1", bubbles[0].Author)
}

func TestHTTP_Disconnect_Drops_Presence(t *testing.T) {
	req := require.New(t)
	_, srv := startRelay(t, "http://127.0.0.1:1")

	conn := dial(t, srv)
	send(t, conn, EventAnnounce, map[string]any{"participantId": "u1"})
	expect(t, conn, EventPresenceCount)
	req.NoError(conn.Close())

	req.Eventually(func() bool {
		var status Status
		getJSON(t, srv.URL+"/api/status", &status)
		return status.Online == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestHTTP_Conversation_Log(t *testing.T) {
	req := require.New(t)
	_, srv := startRelay(t, "http://127.0.0.1:1")

	alice := dial(t, srv)
	bob := dial(t, srv)
	send(t, alice, EventAnnounce, map[string]any{"participantId": "alice"})
	expect(t, alice, EventContentSnapshot)
	send(t, bob, EventAnnounce, map[string]any{"participantId": "bob"})
	expect(t, bob, EventContentSnapshot)

	send(t, alice, EventDirectMessage, map[string]any{"targetParticipantId": "bob", "content": "hey"})
	got := decodeData[DirectMessage](t, expect(t, bob, EventDirectMessageDelivered))
	req.Equal("hey", got.Content)
	echo := decodeData[DirectMessage](t, expect(t, alice, EventDirectMessageDelivered))
	req.Equal(got, echo)

	var log []DirectMessage
	getJSON(t, srv.URL+"/api/conversations/bob/alice", &log)
	req.Len(log, 1)
	req.Equal("alice", log[0].From)
}

func TestHTTP_Healthz(t *testing.T) {
	req := require.New(t)
	_, srv := startRelay(t, "http://127.0.0.1:1")

	resp, err := http.Get(srv.URL + "/healthz")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
}

func TestHTTP_Room_History(t *testing.T) {
	req := require.New(t)
	_, srv := startRelay(t, "http://127.0.0.1:1")

	resp, err := http.Get(srv.URL + "/api/rooms/lobby/history")
	req.NoError(err)
	resp.Body.Close()
	req.Equal(http.StatusNotFound, resp.StatusCode)

	// When a participant joins and posts
	conn := dial(t, srv)
	send(t, conn, EventAnnounce, map[string]any{"participantId": "u1", "nickname": "alice"})
	expect(t, conn, EventContentSnapshot)
	send(t, conn, EventJoinRoom, map[string]any{"roomId": "lobby"})
	expect(t, conn, EventRoomHistory)
	send(t, conn, EventRoomMessage, map[string]any{"roomId": "lobby", "content": "hi all"})
	expect(t, conn, EventRoomMessagePosted)

	// Then the history is readable over HTTP
	var history []RoomMessage
	getJSON(t, srv.URL+"/api/rooms/lobby/history", &history)
	req.Len(history, 1)
	req.Equal("alice", history[0].Nickname)
	req.Equal("hi all", history[0].Content)
}
