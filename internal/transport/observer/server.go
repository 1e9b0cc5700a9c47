package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"irma.ai/internal/observerproto"
	"irma.ai/internal/sim/atom"
	"irma.ai/internal/sim/encoding"
	"irma.ai/internal/sim/runner"
)

// Server mirrors the grid for HTTP bootstrap and streams one CELLS frame per
// tick to websocket subscribers. It is fed as a world.Sink and a
// runner.TickLogger from the stepping goroutine; a subscriber that falls
// behind loses frames instead of stalling the simulation.
type Server struct {
	log    *log.Logger
	params observerproto.WorldParams

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	// Stepping goroutine only.
	pending []observerproto.CellDelta

	mu     sync.Mutex
	cells  []atom.Atom
	tick   uint64
	digest string
	subs   map[uint64]*subscriber

	dropped atomic.Uint64
}

type subscriber struct {
	encoding string
	out      chan []byte
}

func NewServer(params observerproto.WorldParams, logger *log.Logger) *Server {
	return &Server{
		log:    logger,
		params: params,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		cells: make([]atom.Atom, params.Width*params.Height),
		subs:  map[uint64]*subscriber{},
	}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/observer/ws", s.WSHandler())
}

// Dropped is the number of frames not delivered to slow subscribers.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) CellWritten(offs int, a atom.Atom) {
	s.pending = append(s.pending, observerproto.CellDelta{Offs: offs, Atom: uint16(a)})
}

// WriteTick folds the tick's writes into the mirror and fans them out.
func (s *Server) WriteTick(e runner.TickLogEntry) error {
	deltas := s.pending
	s.pending = nil
	if deltas == nil {
		deltas = []observerproto.CellDelta{}
	}
	msg := observerproto.CellsMsg{
		Type:            "CELLS",
		ProtocolVersion: observerproto.Version,
		Tick:            e.Tick,
		VMs:             e.VMs,
		Energy:          e.Energy,
		Digest:          e.Digest,
		Cells:           deltas,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range deltas {
		if d.Offs >= 0 && d.Offs < len(s.cells) {
			s.cells[d.Offs] = atom.Atom(d.Atom)
		}
	}
	s.tick = e.Tick + 1
	s.digest = e.Digest

	frames := map[string][]byte{}
	for _, sub := range s.subs {
		b, ok := frames[sub.encoding]
		if !ok {
			var err error
			b, err = observerproto.Marshal(sub.encoding, msg)
			if err != nil {
				return err
			}
			frames[sub.encoding] = b
		}
		select {
		case sub.out <- b:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

// BootstrapHandler serves the grid as of the start of the response's Tick:
// CELLS frames with tick >= Tick apply on top of it.
func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		s.mu.Lock()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Tick:            s.tick,
			WorldParams:     s.params,
			Digest:          s.digest,
			CellsEncoding:   observerproto.CellsEncoding,
			Cells:           encoding.EncodeCells(s.cells),
		}
		s.mu.Unlock()

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}
		if !observerproto.ValidEncoding(sub.Encoding) {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "unknown encoding"), time.Now().Add(time.Second))
			return
		}
		if sub.Encoding == "" {
			sub.Encoding = observerproto.EncodingJSON
		}
		msgType := websocket.TextMessage
		if sub.Encoding == observerproto.EncodingCBOR {
			msgType = websocket.BinaryMessage
		}

		id := s.nextID.Add(1)
		out := make(chan []byte, 64)
		s.mu.Lock()
		s.subs[id] = &subscriber{encoding: sub.Encoding, out: out}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		}()
		if s.log != nil {
			s.log.Printf("observer O%d subscribed encoding=%s", id, sub.Encoding)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(msgType, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: only detects the client going away.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Subscribers returns the number of connected observers.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
