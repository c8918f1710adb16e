package chat

import (
	"sync"
)

const subscriberBuffer = 64

type subscriber struct {
	outgoing chan *Message
}

// Fan-out of appended messages to live subscribers, per conversation.
type broker struct {
	mtx        sync.Mutex
	bufferSize int
	subs       map[string]map[*subscriber]struct{}
}

func newBroker(bufferSize int) *broker {
	return &broker{
		bufferSize: bufferSize,
		subs:       make(map[string]map[*subscriber]struct{}),
	}
}

func (b *broker) subscribe(conversationID string) (<-chan *Message, func()) {
	sub := &subscriber{
		outgoing: make(chan *Message, b.bufferSize),
	}
	b.mtx.Lock()
	set, ok := b.subs[conversationID]
	if !ok {
		set = make(map[*subscriber]struct{})
		b.subs[conversationID] = set
	}
	set[sub] = struct{}{}
	b.mtx.Unlock()
	subscriberCount.Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.mtx.Lock()
			defer b.mtx.Unlock()
			if set, ok := b.subs[conversationID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(b.subs, conversationID)
				}
			}
			close(sub.outgoing)
			subscriberCount.Dec()
		})
	}
	return sub.outgoing, cleanup
}

func (b *broker) publish(msg *Message) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	for sub := range b.subs[msg.ConversationID] {
		select {
		case sub.outgoing <- msg:
		default:
			subscriberDropped.Inc()
		}
	}
}
