package blockchain

import (
	"sync"

	"github.com/minichain-lab/minichain/types"
)

const subscriptionBuffer = 16

// Subscription delivers sealed headers to one listener
type Subscription struct {
	stream *eventStream
	ch     chan *types.Header
}

// Ch returns the header delivery channel
func (s *Subscription) Ch() <-chan *types.Header {
	return s.ch
}

// Close unregisters the subscription
func (s *Subscription) Close() {
	s.stream.unsubscribe(s)
}

// eventStream fans sealed headers out to subscribers. Slow listeners drop
// headers rather than block the sealing path.
type eventStream struct {
	mux  sync.Mutex
	subs []*Subscription
}

func (e *eventStream) subscribe() *Subscription {
	e.mux.Lock()
	defer e.mux.Unlock()

	sub := &Subscription{
		stream: e,
		ch:     make(chan *types.Header, subscriptionBuffer),
	}
	e.subs = append(e.subs, sub)

	return sub
}

func (e *eventStream) unsubscribe(sub *Subscription) {
	e.mux.Lock()
	defer e.mux.Unlock()

	for indx, s := range e.subs {
		if s == sub {
			e.subs = append(e.subs[:indx], e.subs[indx+1:]...)
			close(s.ch)

			return
		}
	}
}

func (e *eventStream) push(header *types.Header) {
	e.mux.Lock()
	defer e.mux.Unlock()

	for _, sub := range e.subs {
		select {
		case sub.ch <- header:
		default:
		}
	}
}
