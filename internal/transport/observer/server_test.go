package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"irma.ai/internal/observerproto"
	"irma.ai/internal/sim/atom"
	"irma.ai/internal/sim/encoding"
	"irma.ai/internal/sim/runner"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(observerproto.WorldParams{Width: 4, Height: 3, TickRateHz: 5, PoolSize: 8}, nil)
	mux := http.NewServeMux()
	s.Register(mux)
	hs := httptest.NewServer(mux)
	t.Cleanup(hs.Close)
	return s, hs
}

func getBootstrap(t *testing.T, url string) observerproto.BootstrapResponse {
	t.Helper()
	resp, err := http.Get(url + "/observer/bootstrap")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bootstrap status: %d", resp.StatusCode)
	}
	var out observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode bootstrap: %v", err)
	}
	return out
}

func dial(t *testing.T, hs *httptest.Server, sub observerproto.SubscribeMsg) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return conn
}

func waitSubscribers(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers: got %d want %d", s.Subscribers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBootstrap_MirrorsTicks(t *testing.T) {
	s, hs := newTestServer(t)

	b := getBootstrap(t, hs.URL)
	if b.Tick != 0 || b.WorldParams.Width != 4 || b.CellsEncoding != observerproto.CellsEncoding {
		t.Fatalf("initial bootstrap: %+v", b)
	}

	a := atom.New(atom.TypeJob)
	s.CellWritten(5, a)
	if err := s.WriteTick(runner.TickLogEntry{Tick: 0, Digest: "abc"}); err != nil {
		t.Fatalf("write tick: %v", err)
	}

	b = getBootstrap(t, hs.URL)
	if b.Tick != 1 || b.Digest != "abc" {
		t.Fatalf("bootstrap after tick: %+v", b)
	}
	cells, err := encoding.DecodeCells(b.Cells, 12)
	if err != nil {
		t.Fatalf("decode cells: %v", err)
	}
	if cells[5] != a || cells[4] != atom.Empty {
		t.Fatalf("mirror: got %v", cells)
	}
}

func TestWS_StreamsCellsJSONAndCBOR(t *testing.T) {
	s, hs := newTestServer(t)
	jsonConn := dial(t, hs, observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version})
	cborConn := dial(t, hs, observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, Encoding: observerproto.EncodingCBOR})
	waitSubscribers(t, s, 2)

	a := atom.New(atom.TypeMov).WithDir1(atom.DirRight)
	s.CellWritten(1, atom.Empty)
	s.CellWritten(2, a)
	if err := s.WriteTick(runner.TickLogEntry{Tick: 9, VMs: 1, Energy: 99, Digest: "d"}); err != nil {
		t.Fatalf("write tick: %v", err)
	}

	for _, tc := range []struct {
		conn     *websocket.Conn
		encoding string
		msgType  int
	}{
		{jsonConn, observerproto.EncodingJSON, websocket.TextMessage},
		{cborConn, observerproto.EncodingCBOR, websocket.BinaryMessage},
	} {
		_ = tc.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		mt, raw, err := tc.conn.ReadMessage()
		if err != nil {
			t.Fatalf("%s read: %v", tc.encoding, err)
		}
		if mt != tc.msgType {
			t.Fatalf("%s message type: got %d want %d", tc.encoding, mt, tc.msgType)
		}
		var msg observerproto.CellsMsg
		if err := observerproto.Unmarshal(tc.encoding, raw, &msg); err != nil {
			t.Fatalf("%s decode: %v", tc.encoding, err)
		}
		if msg.Type != "CELLS" || msg.Tick != 9 || msg.Energy != 99 || len(msg.Cells) != 2 {
			t.Fatalf("%s frame: %+v", tc.encoding, msg)
		}
		if msg.Cells[1] != (observerproto.CellDelta{Offs: 2, Atom: uint16(a)}) {
			t.Fatalf("%s delta: %+v", tc.encoding, msg.Cells[1])
		}
	}
}

func TestWS_RejectsBadSubscribe(t *testing.T) {
	_, hs := newTestServer(t)
	for _, sub := range []observerproto.SubscribeMsg{
		{Type: "HELLO", ProtocolVersion: observerproto.Version},
		{Type: "SUBSCRIBE", ProtocolVersion: "9.9"},
		{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, Encoding: "xml"},
	} {
		conn := dial(t, hs, sub)
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err == nil {
			t.Fatalf("%+v: expected close", sub)
		}
	}
}

func TestWriteTick_DropsForSlowSubscriber(t *testing.T) {
	s := NewServer(observerproto.WorldParams{Width: 2, Height: 2}, nil)
	s.subs[1] = &subscriber{encoding: observerproto.EncodingJSON, out: make(chan []byte, 1)}
	for i := uint64(0); i < 3; i++ {
		if err := s.WriteTick(runner.TickLogEntry{Tick: i}); err != nil {
			t.Fatalf("write tick: %v", err)
		}
	}
	if s.Dropped() != 2 {
		t.Fatalf("dropped: got %d want 2", s.Dropped())
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:1234": true,
		"[::1]:80":       true,
		"10.0.0.1:80":    false,
		"garbage":        false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("%s: got %v want %v", in, got, want)
		}
	}
}
