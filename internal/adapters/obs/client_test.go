package obs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

type fakeOBS struct {
	password string
	// helloGate, when set, holds the hello message until it is closed.
	helloGate chan struct{}

	mu       sync.Mutex
	requests []inputSettings
	conns    []*websocket.Conn
}

func (f *fakeOBS) server(t *testing.T) *httptest.Server {
	t.Helper()
	ws := websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   f.handle,
	}
	srv := httptest.NewServer(ws)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeOBS) handle(conn *websocket.Conn) {
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	if f.helloGate != nil {
		<-f.helloGate
	}

	h := hello{OBSWebSocketVersion: "5.4.2", RPCVersion: rpcVersion}
	if f.password != "" {
		h.Authentication = &struct {
			Challenge string `json:"challenge"`
			Salt      string `json:"salt"`
		}{Challenge: "chal", Salt: "salt"}
	}
	out, _ := encode(opHello, h)
	if err := websocket.JSON.Send(conn, out); err != nil {
		return
	}

	var msg message
	if err := websocket.JSON.Receive(conn, &msg); err != nil || msg.Op != opIdentify {
		return
	}
	var id identify
	_ = json.Unmarshal(msg.D, &id)
	if f.password != "" && id.Authentication != authResponse(f.password, "salt", "chal") {
		_ = conn.Close()
		return
	}
	out, _ = encode(opIdentified, identified{NegotiatedRPCVersion: rpcVersion})
	_ = websocket.JSON.Send(conn, out)

	for {
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			return
		}
		var req struct {
			RequestType string        `json:"requestType"`
			RequestID   string        `json:"requestId"`
			RequestData inputSettings `json:"requestData"`
		}
		_ = json.Unmarshal(msg.D, &req)
		f.mu.Lock()
		f.requests = append(f.requests, req.RequestData)
		f.mu.Unlock()

		status := requestStatus{Result: true, Code: 100}
		if strings.HasPrefix(req.RequestData.InputName, "Missing") {
			status = requestStatus{Result: false, Code: 600, Comment: "No source was found"}
		}
		out, _ = encode(opRequestResponse, requestResponse{
			RequestType:   req.RequestType,
			RequestID:     req.RequestID,
			RequestStatus: status,
		})
		_ = websocket.JSON.Send(conn, out)
	}
}

func (f *fakeOBS) received() []inputSettings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]inputSettings(nil), f.requests...)
}

func (f *fakeOBS) dropAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.Close()
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestAuthResponse(t *testing.T) {
	// Reference values from the obs-websocket protocol documentation flow.
	got := authResponse("supersecretpassword", "lM1GncleQOaCu9lT1yeUZhFYnqhsLLP1G5lAGo3ixaI=", "+IxH4CnCiqpX1rM9scsNynZzbOe4KhDeYcTNS3PDaeY=")
	assert.Equal(t, "1Ct943GAT+6YQUUX47Ia/ncufilbe6+oD6lY+5kaCu4=", got)
}

func (f *fakeOBS) accepted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func TestConnectedDoesNotWaitOnHandshake(t *testing.T) {
	fake := &fakeOBS{helloGate: make(chan struct{})}
	srv := fake.server(t)
	c := NewClient(wsURL(srv), WithTimeout(2*time.Second))
	t.Cleanup(func() { _ = c.Disconnect() })

	connectErr := make(chan error, 1)
	go func() { connectErr <- c.Connect(context.Background()) }()
	require.Eventually(t, func() bool { return fake.accepted() == 1 }, time.Second, 5*time.Millisecond)

	answered := make(chan bool, 1)
	go func() { answered <- c.Connected() }()
	select {
	case connected := <-answered:
		assert.False(t, connected)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Connected blocked behind an in-flight handshake")
	}

	close(fake.helloGate)
	require.NoError(t, <-connectErr)
	assert.True(t, c.Connected())
}

func TestConnectAndPush(t *testing.T) {
	fake := &fakeOBS{}
	srv := fake.server(t)

	connected := make(chan struct{}, 1)
	c := NewClient(wsURL(srv), WithTimeout(2*time.Second), WithOnConnect(func() { connected <- struct{}{} }))
	ctx := context.Background()

	assert.False(t, c.Connected())
	assert.ErrorIs(t, c.SetText(ctx, "Source1Count", "1"), ErrNotConnected)

	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Connect(ctx), "second connect is a no-op")
	assert.True(t, c.Connected())
	assert.Equal(t, Status{URL: wsURL(srv), Connected: true}, c.Status())

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("connect hook did not run")
	}

	require.NoError(t, c.SetText(ctx, "Source1Count", "1000"))
	require.NoError(t, c.SetImage(ctx, "Source1Image", "https://img/25.png"))

	reqs := fake.received()
	require.Len(t, reqs, 2)
	assert.Equal(t, "Source1Count", reqs[0].InputName)
	assert.Equal(t, map[string]any{"text": "1000"}, reqs[0].InputSettings)
	assert.True(t, reqs[0].Overlay)
	assert.Equal(t, map[string]any{"file": "https://img/25.png"}, reqs[1].InputSettings)

	err := c.SetText(ctx, "MissingCount", "1")
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "600")

	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Disconnect())
	assert.False(t, c.Connected())
}

func TestConnectWithPassword(t *testing.T) {
	fake := &fakeOBS{password: "hunter2"}
	srv := fake.server(t)
	ctx := context.Background()

	t.Run("missing password", func(t *testing.T) {
		c := NewClient(wsURL(srv), WithTimeout(time.Second))
		assert.ErrorIs(t, c.Connect(ctx), ErrPasswordRequired)
		assert.False(t, c.Connected())
	})

	t.Run("wrong password", func(t *testing.T) {
		c := NewClient(wsURL(srv), WithPassword("nope"), WithTimeout(time.Second))
		assert.ErrorIs(t, c.Connect(ctx), ErrHandshake)
	})

	t.Run("right password", func(t *testing.T) {
		c := NewClient(wsURL(srv), WithPassword("hunter2"), WithTimeout(time.Second))
		require.NoError(t, c.Connect(ctx))
		defer c.Disconnect()
		assert.NoError(t, c.SetText(ctx, "Source1Probability", "21.66%"))
	})
}

func TestConnectionDrop(t *testing.T) {
	fake := &fakeOBS{}
	srv := fake.server(t)
	c := NewClient(wsURL(srv), WithTimeout(time.Second))
	require.NoError(t, c.Connect(context.Background()))

	fake.dropAll()

	assert.Eventually(t, func() bool { return !c.Connected() }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, c.SetText(context.Background(), "Source1Count", "1"), ErrNotConnected)
}

func TestConnectUnreachable(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1", WithTimeout(200*time.Millisecond))
	assert.Error(t, c.Connect(context.Background()))
	assert.False(t, c.Connected())
}
