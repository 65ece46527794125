package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angelmondragon/dinein-backend/pkg/logger"
)

const outboxSize = 256

// ServerOptions tunes the websocket endpoint.
type ServerOptions struct {
	WriteTimeout  time.Duration
	PingInterval  time.Duration
	AllowedOrigin string
	Tables        []string
}

// Server exposes a Feed over websocket using the WireMessage protocol.
type Server struct {
	feed     Feed
	logg     *logger.Logger
	opts     ServerOptions
	upgrader websocket.Upgrader
	tables   map[string]bool
}

func NewServer(feed Feed, logg *logger.Logger, opts ServerOptions) *Server {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	tables := make(map[string]bool, len(opts.Tables))
	for _, t := range opts.Tables {
		tables[t] = true
	}
	s := &Server{feed: feed, logg: logg, opts: opts, tables: tables}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.opts.AllowedOrigin == "" || s.opts.AllowedOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == s.opts.AllowedOrigin
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logg.Error(r.Context(), "realtime upgrade failed", err)
		return
	}
	ctx := s.logg.WithField(context.WithoutCancel(r.Context()), "remote_addr", r.RemoteAddr)
	sess := &session{
		server: s,
		conn:   conn,
		ctx:    ctx,
		subs:   make(map[string]Subscription),
		outbox: make(chan WireMessage, outboxSize),
		done:   make(chan struct{}),
	}
	s.logg.Info(ctx, "realtime client connected")
	go sess.writeLoop()
	sess.readLoop()
	s.logg.Info(ctx, "realtime client disconnected")
}

type session struct {
	server *Server
	conn   *websocket.Conn
	ctx    context.Context

	mu   sync.Mutex
	subs map[string]Subscription

	outbox    chan WireMessage
	done      chan struct{}
	closeOnce sync.Once
}

func (s *session) readLoop() {
	defer s.shutdown()
	for {
		var msg WireMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Op {
		case OpSubscribe:
			s.subscribe(msg)
		case OpUnsubscribe:
			s.unsubscribe(msg.Ref)
			s.send(WireMessage{Op: OpAck, Ref: msg.Ref})
		default:
			s.send(WireMessage{Op: OpError, Ref: msg.Ref, Message: "unknown op"})
		}
	}
}

func (s *session) subscribe(msg WireMessage) {
	if msg.Ref == "" {
		s.send(WireMessage{Op: OpError, Message: "ref is required"})
		return
	}
	if len(s.server.tables) > 0 && !s.server.tables[msg.Table] {
		s.send(WireMessage{Op: OpError, Ref: msg.Ref, Message: "unknown table " + msg.Table})
		return
	}
	filter := Filter{}
	if msg.Filter != nil {
		filter = *msg.Filter
	}
	ref := msg.Ref
	sub, err := s.server.feed.Subscribe(s.ctx, msg.Table, filter, func(_ context.Context, event ChangeEvent) {
		ev := event
		s.send(WireMessage{Op: OpEvent, Ref: ref, Event: &ev})
	})
	if err != nil {
		s.server.logg.Error(s.ctx, "realtime subscribe failed", err)
		s.send(WireMessage{Op: OpError, Ref: ref, Message: err.Error()})
		return
	}

	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		_ = sub.Unsubscribe()
		return
	default:
	}
	if prev, ok := s.subs[ref]; ok {
		_ = prev.Unsubscribe()
	}
	s.subs[ref] = sub
	s.mu.Unlock()
	s.send(WireMessage{Op: OpAck, Ref: ref})
}

func (s *session) unsubscribe(ref string) {
	s.mu.Lock()
	sub, ok := s.subs[ref]
	delete(s.subs, ref)
	s.mu.Unlock()
	if ok {
		_ = sub.Unsubscribe()
	}
}

// send enqueues without blocking; a client that cannot keep up is dropped.
func (s *session) send(msg WireMessage) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.outbox <- msg:
	case <-s.done:
	default:
		s.server.logg.Warn(s.ctx, "realtime client too slow, disconnecting")
		s.shutdown()
	}
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(s.server.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.outbox:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.server.opts.WriteTimeout))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.shutdown()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(s.server.opts.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.shutdown()
				return
			}
		}
	}
}

func (s *session) shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		subs := make([]Subscription, 0, len(s.subs))
		for _, sub := range s.subs {
			subs = append(subs, sub)
		}
		s.subs = map[string]Subscription{}
		s.mu.Unlock()
		if err := UnsubscribeAll(subs); err != nil {
			s.server.logg.Error(s.ctx, "realtime unsubscribe failed", err)
		}
		_ = s.conn.Close()
	})
}
