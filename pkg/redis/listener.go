package redis

import (
	"sync"

	"github.com/redis/go-redis/v9"
)

// Listener forwards pub/sub payloads of one channel as raw bytes.
type Listener struct {
	ps        *redis.PubSub
	messages  chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newListener(ps *redis.PubSub) *Listener {
	l := &Listener{
		ps:       ps,
		messages: make(chan []byte, 64),
		done:     make(chan struct{}),
	}
	go l.pump()
	return l
}

func (l *Listener) pump() {
	defer close(l.messages)
	for {
		select {
		case <-l.done:
			return
		case msg, ok := <-l.ps.Channel():
			if !ok {
				return
			}
			select {
			case l.messages <- []byte(msg.Payload):
			case <-l.done:
				return
			}
		}
	}
}

// Messages is closed once the listener stops.
func (l *Listener) Messages() <-chan []byte {
	return l.messages
}

func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.ps.Close()
	})
	return err
}
