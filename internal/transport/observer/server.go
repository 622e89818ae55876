// Package observer serves a read-only websocket feed of the simulation:
// one TICK_DIGEST per scheduler pass and one NOTIFICATION per raised (or
// merged) failure report. Observers never mutate the world; the server is
// fed from the simulation hooks and fans out to subscribers.
package observer

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"wildern.gg/internal/protocol"
	"wildern.gg/internal/sim/world"
)

type Server struct {
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu       sync.Mutex
	sessions map[uint64]*session
}

type session struct {
	out chan []byte
	// recipient filters the notification stream (0 = all recipients).
	recipient atomic.Int64
}

func NewServer(logger *log.Logger) *Server {
	return &Server{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: map[uint64]*session{},
	}
}

// PublishTick broadcasts a scheduler pass summary to every subscriber.
func (s *Server) PublishTick(sum world.TickSummary) {
	msg := protocol.TickDigestMsg{
		Type:            protocol.TypeTickDigest,
		ProtocolVersion: protocol.Version,
		GameDate:        sum.GameDate,
		IntentsRun:      sum.IntentsRun,
		IntentsDone:     sum.IntentsDone,
		ActivityGroups:  sum.ActivityGroups,
		Failures:        sum.Failures,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.send(b)
	}
}

// PublishNotification forwards a failure notification to subscribers whose
// recipient filter matches.
func (s *Server) PublishNotification(n world.Notification) {
	msg := protocol.NotificationMsg{
		Type:            protocol.TypeNotification,
		ProtocolVersion: protocol.Version,
		TitleTag:        n.TitleTag,
		TitleParams:     n.TitleParams,
		TextTag:         n.TextTag,
		TextParams:      n.TextParams,
		Count:           n.Count,
		Recipient:       n.Recipient,
		GameDate:        n.GameDate,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if want := sess.recipient.Load(); want != 0 && want != n.Recipient {
			continue
		}
		sess.send(b)
	}
}

// send enqueues without blocking; a slow observer loses messages rather than
// stalling the feed.
func (sess *session) send(b []byte) {
	select {
	case sess.out <- b:
	default:
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
		var sub protocol.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := s.nextID.Add(1)
		sess := &session{out: make(chan []byte, 256)}
		sess.recipient.Store(sub.Recipient)

		s.mu.Lock()
		s.sessions[sid] = sess
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sid)
			s.mu.Unlock()
		}()

		// Writer goroutine.
		stop := make(chan struct{})
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-stop:
					writeErr <- nil
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates to change the recipient filter.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var sub protocol.SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
				continue
			}
			sess.recipient.Store(sub.Recipient)
		}

		close(stop)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
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
