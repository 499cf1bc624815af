package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func startServer(t *testing.T, f *fixture, opts Options) (*Server, string) {
	t.Helper()
	srv := NewServer(f.hub, f.validator, f.members, f.recorder, opts)
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readWire(t *testing.T, conn *websocket.Conn) wire {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var w wire
	require.NoError(t, conn.ReadJSON(&w))
	return w
}

func requireClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
}

func TestServer_EndToEnd(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.member(1, 42)
	f.member(2, 42)
	f.recorder.EXPECT().Record(gomock.Any(), domain.ChatID(42), domain.UserID(1), "hi", gomock.Any()).
		Return(domain.ChatMessage{ID: 1, ChatID: 42, SenderID: 1, Content: "hi", TimeStamp: time.Now().UTC()}, nil)
	_, url := startServer(t, f, Options{PingEvery: time.Second})

	// Given A and B connected to chat 42
	a, b := dial(t, url), dial(t, url)
	req.NoError(a.WriteMessage(websocket.TextMessage, initFrame(1, 42)))
	req.Equal(wire{Type: TypeInfo, Text: textConnected}, readWire(t, a))
	req.NoError(b.WriteMessage(websocket.TextMessage, initFrame(2, 42)))
	req.Equal(wire{Type: TypeInfo, Text: textConnected}, readWire(t, b))

	// When A says hi
	req.NoError(a.WriteMessage(websocket.TextMessage, msgFrame("tok-1", "hi")))

	// Then B gets it
	req.Equal(wire{Type: TypeChatMessage, ChatID: 42, Sender: "1", Message: "hi"}, readWire(t, b))

	// And A's exit closes A only
	req.NoError(a.WriteMessage(websocket.TextMessage, frame(`{"type":"exit","token":"tok-1"}`)))
	requireClosed(t, a)

	req.Eventually(func() bool { return len(f.hub.Targets(42)) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_InitTimeout(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	_, url := startServer(t, f, Options{InitTimeout: 100 * time.Millisecond})

	conn := dial(t, url)

	req.Equal(wire{Type: TypeError, Text: textInitTimeout}, readWire(t, conn))
	requireClosed(t, conn)
}

func TestServer_RejectedInitClosesConnection(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.validator.EXPECT().Validate(gomock.Any(), "tok-1").Return(domain.Session{UserID: 1}, nil)
	f.members.EXPECT().IsMember(gomock.Any(), domain.ChatID(7), domain.UserID(1)).Return(false, nil)
	_, url := startServer(t, f, Options{})

	conn := dial(t, url)
	req.NoError(conn.WriteMessage(websocket.TextMessage, initFrame(1, 7)))

	req.Equal(wire{Type: TypeError, Text: textNotMember}, readWire(t, conn))
	requireClosed(t, conn)
	req.Empty(f.hub.Targets(7))
}

func TestServer_Kick(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.member(2, 42)
	srv, url := startServer(t, f, Options{})

	conn := dial(t, url)
	req.NoError(conn.WriteMessage(websocket.TextMessage, initFrame(2, 42)))
	req.Equal(wire{Type: TypeInfo, Text: textConnected}, readWire(t, conn))

	req.Equal(1, srv.Kick(42, 2))

	req.Equal(wire{Type: TypeError, Text: textRemoved}, readWire(t, conn))
	requireClosed(t, conn)
	req.Empty(f.hub.Targets(42))
	req.Zero(srv.Kick(42, 2))
}

func TestServer_CheckOrigin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	srv := NewServer(f.hub, f.validator, f.members, f.recorder, Options{AllowedOrigins: []string{"https://app.cwrk.dev"}})

	r := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	req.True(srv.checkOrigin(r))

	r.Header.Set("Origin", "https://app.cwrk.dev")
	req.True(srv.checkOrigin(r))

	r.Header.Set("Origin", "https://evil.example")
	req.False(srv.checkOrigin(r))
}
