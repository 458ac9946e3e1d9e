package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/codelesson/internal/config"
	"github.com/livetemplate/codelesson/internal/progress"
)

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, ts *httptest.Server, query string) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(msg ClientMessage) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

func (c *wsClient) read() ServerMessage {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg ServerMessage
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return msg
}

// expect reads until a message of type typ arrives.
func (c *wsClient) expect(typ string) ServerMessage {
	c.t.Helper()
	for range 20 {
		msg := c.read()
		if msg.Type == typ {
			return msg
		}
	}
	c.t.Fatalf("no %q message received", typ)
	return ServerMessage{}
}

// connect dials a session and consumes the greeting and first step.
func (c *wsClient) handshake() *StepView {
	c.t.Helper()
	hello := c.read()
	require.Equal(c.t, MessageHello, hello.Type)
	require.NotEmpty(c.t, hello.Session)
	step := c.read()
	require.Equal(c.t, MessageStep, step.Type)
	require.NotNil(c.t, step.Step)
	return step.Step
}

func startServer(t *testing.T, srv *Server) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func findOp(ops []Op, op, target, class string) bool {
	for _, o := range ops {
		if o.Op == op && o.Target == target && o.Class == class {
			return true
		}
	}
	return false
}

func TestWebSocketFirstStep(t *testing.T) {
	srv := newTestServer(t, lessonsDir, nil)
	ts := startServer(t, srv)

	c := dial(t, ts, "lesson=html-basics")
	step := c.handshake()

	assert.Equal(t, "html-basics", step.LessonID)
	assert.Equal(t, "HTML Basics", step.LessonTitle)
	assert.Equal(t, 1, step.Current)
	assert.Equal(t, 3, step.Total)
	assert.False(t, step.HasPrev)
	assert.True(t, step.HasNext)
	assert.Equal(t, "Page structure", step.BigTitle)
	assert.Contains(t, step.DisplayHTML, `id="b-title"`)
	assert.Contains(t, step.CodeHTML, `id="l-code_line_1"`)
	require.Len(t, step.Chapters, 2)
	assert.True(t, step.Chapters[0].Current)

	require.Eventually(t, func() bool { return srv.SessionCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketRejectsUnknownLesson(t *testing.T) {
	srv := newTestServer(t, lessonsDir, nil)
	ts := startServer(t, srv)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?lesson=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	srv := newTestServer(t, lessonsDir, nil)
	ts := startServer(t, srv)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?lesson=html-basics"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketLineClick(t *testing.T) {
	srv := newTestServer(t, lessonsDir, nil)
	c := dial(t, startServer(t, srv), "lesson=html-basics")
	c.handshake()

	c.send(ClientMessage{Action: ActionLineClick, ID: "code_line_1"})
	patch := c.expect(MessagePatch)

	assert.True(t, findOp(patch.Ops, OpAddClass, "l-code_line_1", "line-selected"), "%+v", patch.Ops)
	assert.True(t, findOp(patch.Ops, OpAddClass, "b-title", "highlight-permanent"), "%+v", patch.Ops)
	var desc *Op
	for i := range patch.Ops {
		if patch.Ops[i].Op == OpDescription {
			desc = &patch.Ops[i]
		}
	}
	require.NotNil(t, desc, "a selected line shows its description")
	assert.Contains(t, desc.HTML, "most important heading")

	// Clicking the selected line again clears it.
	c.send(ClientMessage{Action: ActionLineClick, ID: "code_line_1"})
	patch = c.expect(MessagePatch)
	assert.True(t, findOp(patch.Ops, OpRemoveClass, "l-code_line_1", "line-selected"), "%+v", patch.Ops)
	assert.True(t, findOp(patch.Ops, OpPlaceholder, "", ""), "%+v", patch.Ops)
}

func TestWebSocketBlockHover(t *testing.T) {
	srv := newTestServer(t, lessonsDir, nil)
	c := dial(t, startServer(t, srv), "lesson=html-basics")
	c.handshake()

	c.send(ClientMessage{Action: ActionBlockHover, ID: "title", Enter: true})
	patch := c.expect(MessagePatch)
	assert.True(t, findOp(patch.Ops, OpAddClass, "b-title", "highlight-hover"), "%+v", patch.Ops)
	assert.True(t, findOp(patch.Ops, OpAddClass, "l-code_line_1", "line-hover"), "%+v", patch.Ops)

	c.send(ClientMessage{Action: ActionBlockHover, ID: "title", Enter: false})
	patch = c.expect(MessagePatch)
	assert.True(t, findOp(patch.Ops, OpRemoveClass, "b-title", "highlight-hover"), "%+v", patch.Ops)
}

func TestWebSocketNavigation(t *testing.T) {
	store := progress.NewMemoryStore()
	srv := New(lessonsDir, config.DefaultConfig(), WithProgressStore(store))
	require.NoError(t, srv.Discover())
	t.Cleanup(func() { _ = srv.Close() })
	ts := startServer(t, srv)

	c := dial(t, ts, "lesson=html-basics&viewer=ada")
	c.handshake()

	c.send(ClientMessage{Action: ActionStepNext})
	step := c.expect(MessageStep).Step
	assert.Equal(t, "A button", step.Title)
	assert.Equal(t, 2, step.Current)

	c.send(ClientMessage{Action: ActionStepJump, Index: 1})
	step = c.expect(MessageStep).Step
	assert.Equal(t, "Media", step.BigTitle)
	assert.False(t, step.HasNext)
	assert.True(t, step.Chapters[1].Current)

	require.Eventually(t, func() bool {
		rec, ok, err := store.Load(context.Background(), "html-basics", "ada")
		return err == nil && ok && rec.BigIndex == 1 && rec.SmallIndex == 0
	}, time.Second, 10*time.Millisecond)

	// A new connection for the same viewer resumes where it left off.
	c2 := dial(t, ts, "lesson=html-basics&viewer=ada")
	step = c2.handshake()
	assert.Equal(t, 3, step.Current)
}

func TestWebSocketStepPrevAtStartIsQuiet(t *testing.T) {
	srv := newTestServer(t, lessonsDir, nil)
	c := dial(t, startServer(t, srv), "lesson=html-basics")
	c.handshake()

	c.send(ClientMessage{Action: ActionStepPrev})
	// Nothing moves, so the next message is the answer to the hover below.
	c.send(ClientMessage{Action: ActionBlockHover, ID: "title", Enter: true})
	msg := c.read()
	assert.Equal(t, MessagePatch, msg.Type)
}

func TestWebSocketErrors(t *testing.T) {
	srv := newTestServer(t, lessonsDir, nil)
	c := dial(t, startServer(t, srv), "lesson=html-basics")
	c.handshake()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"not json", `{"action":`, "invalid message"},
		{"unknown action", `{"action":"dance"}`, "unknown action"},
		{"bad drag phase", `{"action":"block.drag","id":"title","phase":"middle"}`, "unknown drag phase"},
		{"bad effect", `{"action":"block.effect","id":"title","effect":"explode"}`, "unknown effect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)))
			msg := c.expect(MessageError)
			assert.Contains(t, msg.Error, tt.want)
		})
	}
}

func TestWebSocketShake(t *testing.T) {
	srv := newTestServer(t, lessonsDir, nil)
	c := dial(t, startServer(t, srv), "lesson=html-basics")
	c.handshake()

	c.send(ClientMessage{Action: ActionBlockEffect, ID: "title", Effect: "shake"})
	patch := c.expect(MessagePatch)
	require.Len(t, patch.Ops, 1)
	require.NotNil(t, patch.Ops[0].Effect)
	assert.Equal(t, "b-title", patch.Ops[0].Target)
	assert.Equal(t, "animate", patch.Ops[0].Effect.Kind)
	assert.Equal(t, "start", patch.Ops[0].Effect.Phase)

	// The end of the animation arrives on its own.
	patch = c.expect(MessagePatch)
	require.Len(t, patch.Ops, 1)
	assert.Equal(t, "end", patch.Ops[0].Effect.Phase)
}

func TestWebSocketReload(t *testing.T) {
	dir := copyLessons(t)
	srv := newTestServer(t, dir, nil)
	c := dial(t, startServer(t, srv), "lesson=html-basics")
	c.handshake()
	require.Eventually(t, func() bool { return srv.SessionCount() == 1 }, time.Second, 10*time.Millisecond)

	path := filepath.Join(dir, "html-basics.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	edited := strings.Replace(string(data), "A heading and a paragraph", "Headings first", 1)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))
	require.NoError(t, srv.Reload("html-basics.json"))

	msg := c.expect(MessageReload)
	assert.Equal(t, "Headings first", msg.Step.Title)

	require.NoError(t, os.Remove(path))
	require.NoError(t, srv.Reload("html-basics.json"))
	msg = c.expect(MessageError)
	assert.Contains(t, msg.Error, "removed")
}

func TestWebSocketSessionEndsOnServerClose(t *testing.T) {
	srv := New(lessonsDir, config.DefaultConfig())
	require.NoError(t, srv.Discover())
	c := dial(t, startServer(t, srv), "lesson=html-basics")
	c.handshake()
	require.Eventually(t, func() bool { return srv.SessionCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Close())

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := c.conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	require.Eventually(t, func() bool { return srv.SessionCount() == 0 }, time.Second, 10*time.Millisecond)
}
