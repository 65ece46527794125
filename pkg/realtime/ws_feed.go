package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/angelmondragon/dinein-backend/pkg/logger"
)

const defaultAckTimeout = 10 * time.Second

// WSFeed is a Feed backed by the API's realtime websocket. One connection
// multiplexes every subscription by ref. It does not reconnect.
type WSFeed struct {
	conn    *websocket.Conn
	logg    *logger.Logger
	writeMu sync.Mutex

	mu      sync.Mutex
	subs    map[string]*wsSubscription
	pending map[string]chan error
	closed  bool

	ackTimeout time.Duration
	done       chan struct{}
}

type wsSubscription struct {
	gate
	feed    *WSFeed
	ref     string
	ctx     context.Context
	handler Handler
}

// DialWSFeed connects to url (ws:// or wss://) with the given headers.
func DialWSFeed(ctx context.Context, url string, header http.Header, logg *logger.Logger) (*WSFeed, error) {
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial realtime: %w", err)
	}
	return newWSFeed(conn, logg), nil
}

func newWSFeed(conn *websocket.Conn, logg *logger.Logger) *WSFeed {
	f := &WSFeed{
		conn:       conn,
		logg:       logg,
		subs:       make(map[string]*wsSubscription),
		pending:    make(map[string]chan error),
		ackTimeout: defaultAckTimeout,
		done:       make(chan struct{}),
	}
	go f.readLoop()
	return f
}

func (f *WSFeed) Subscribe(ctx context.Context, table string, filter Filter, handler Handler) (Subscription, error) {
	if table == "" {
		return nil, errors.New("table is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	ref := uuid.NewString()
	sub := &wsSubscription{
		feed:    f,
		ref:     ref,
		ctx:     f.logg.WithField(context.WithoutCancel(ctx), "realtime_ref", ref),
		handler: handler,
	}
	ack := make(chan error, 1)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, errors.New("realtime connection closed")
	}
	f.subs[ref] = sub
	f.pending[ref] = ack
	f.mu.Unlock()

	msg := WireMessage{Op: OpSubscribe, Ref: ref, Table: table}
	if !filter.IsZero() {
		msg.Filter = &filter
	}
	if err := f.write(msg); err != nil {
		f.forget(ref)
		return nil, err
	}

	timer := time.NewTimer(f.ackTimeout)
	defer timer.Stop()
	select {
	case err := <-ack:
		if err != nil {
			f.forget(ref)
			return nil, err
		}
		return sub, nil
	case <-ctx.Done():
		f.forget(ref)
		return nil, ctx.Err()
	case <-timer.C:
		f.forget(ref)
		return nil, fmt.Errorf("subscribe %s: ack timeout", table)
	case <-f.done:
		return nil, errors.New("realtime connection closed")
	}
}

// Done is closed when the connection drops.
func (f *WSFeed) Done() <-chan struct{} {
	return f.done
}

// Close terminates the connection and every subscription on it.
func (f *WSFeed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	for _, sub := range f.subs {
		sub.shut()
	}
	f.mu.Unlock()

	f.writeMu.Lock()
	_ = f.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	f.writeMu.Unlock()
	return f.conn.Close()
}

func (f *WSFeed) readLoop() {
	defer close(f.done)
	ctx := context.Background()
	for {
		var msg WireMessage
		if err := f.conn.ReadJSON(&msg); err != nil {
			f.mu.Lock()
			wasClosed := f.closed
			f.closed = true
			for ref, ack := range f.pending {
				ack <- errors.New("realtime connection closed")
				delete(f.pending, ref)
			}
			f.mu.Unlock()
			if !wasClosed {
				f.logg.Error(ctx, "realtime connection lost", err)
			}
			return
		}

		switch msg.Op {
		case OpAck, OpError:
			f.resolve(msg)
		case OpEvent:
			f.deliver(msg)
		default:
			f.logg.Warn(f.logg.WithField(ctx, "op", msg.Op), "realtime unknown frame")
		}
	}
}

func (f *WSFeed) resolve(msg WireMessage) {
	f.mu.Lock()
	ack, ok := f.pending[msg.Ref]
	delete(f.pending, msg.Ref)
	f.mu.Unlock()
	if !ok {
		if msg.Op == OpError {
			f.logg.Warn(f.logg.WithField(context.Background(), "realtime_ref", msg.Ref), "realtime error: "+msg.Message)
		}
		return
	}
	if msg.Op == OpError {
		ack <- errors.New(msg.Message)
		return
	}
	ack <- nil
}

func (f *WSFeed) deliver(msg WireMessage) {
	if msg.Event == nil {
		return
	}
	f.mu.Lock()
	sub, ok := f.subs[msg.Ref]
	f.mu.Unlock()
	if !ok || !sub.open() {
		return
	}
	sub.handler(sub.ctx, *msg.Event)
}

func (f *WSFeed) write(msg WireMessage) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if err := f.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("realtime write: %w", err)
	}
	return nil
}

func (f *WSFeed) forget(ref string) {
	f.mu.Lock()
	delete(f.subs, ref)
	delete(f.pending, ref)
	f.mu.Unlock()
}

func (s *wsSubscription) Unsubscribe() error {
	if !s.shut() {
		return nil
	}
	s.feed.forget(s.ref)
	s.feed.mu.Lock()
	closed := s.feed.closed
	s.feed.mu.Unlock()
	if closed {
		return nil
	}
	return s.feed.write(WireMessage{Op: OpUnsubscribe, Ref: s.ref})
}
