package chat

import (
	"encoding/json"
	"sync"

	"github.com/vanchat/vanchat/pkg/panel"
)

// MessageObserver receives every envelope the session processes plus every
// failure. Exactly one of the two methods fires per publication.
type MessageObserver interface {
	OnMessageReceived(msg *APIMessage)
	OnFailure(err error)
}

// ConfigObserver receives chat panel configuration updates.
type ConfigObserver interface {
	OnConfigReceived(cfg *panel.Config)
}

// EventObserver receives server-emitted inline events piggybacked on JSON
// elements.
type EventObserver interface {
	OnBackendEventReceived(eventType string, detail json.RawMessage)
}

// Subscription is the handle returned by Add*Observer. Cancel stops
// delivery; it is idempotent and safe from observer callbacks.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// notifier serializes all observer callbacks onto one dispatch goroutine
// so they never race each other or the response handling that produced
// them.
type notifier struct {
	mu       sync.Mutex
	nextID   uint64
	messages map[uint64]MessageObserver
	configs  map[uint64]ConfigObserver
	events   map[uint64]EventObserver

	queue chan func()
	stop  chan struct{}
	done  chan struct{}
}

func newNotifier() *notifier {
	n := &notifier{
		messages: make(map[uint64]MessageObserver),
		configs:  make(map[uint64]ConfigObserver),
		events:   make(map[uint64]EventObserver),
		queue:    make(chan func(), 64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		select {
		case fn := <-n.queue:
			fn()
		case <-n.stop:
			// Drain anything already queued before shutting down.
			for {
				select {
				case fn := <-n.queue:
					fn()
				default:
					return
				}
			}
		}
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	select {
	case <-n.stop:
		n.mu.Unlock()
		return
	default:
	}
	close(n.stop)
	n.mu.Unlock()
	<-n.done
}

func (n *notifier) dispatch(fn func()) {
	select {
	case <-n.stop:
	case n.queue <- fn:
	}
}

func (n *notifier) addMessageObserver(obs MessageObserver) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.messages[id] = obs
	return &Subscription{cancel: func() {
		n.mu.Lock()
		delete(n.messages, id)
		n.mu.Unlock()
	}}
}

func (n *notifier) addConfigObserver(obs ConfigObserver) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.configs[id] = obs
	return &Subscription{cancel: func() {
		n.mu.Lock()
		delete(n.configs, id)
		n.mu.Unlock()
	}}
}

func (n *notifier) addEventObserver(obs EventObserver) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.events[id] = obs
	return &Subscription{cancel: func() {
		n.mu.Lock()
		delete(n.events, id)
		n.mu.Unlock()
	}}
}

// publishResponse delivers msg or err to every message observer registered
// at publish time; exactly one of the two is non-nil.
func (n *notifier) publishResponse(msg *APIMessage, err error) {
	if msg == nil && err == nil {
		return
	}
	observers := n.snapshotMessages()
	n.dispatch(func() {
		for _, obs := range observers {
			if msg != nil {
				obs.OnMessageReceived(msg)
			} else {
				obs.OnFailure(err)
			}
		}
	})
}

func (n *notifier) publishConfigUpdate(cfg *panel.Config) {
	if cfg == nil {
		return
	}
	observers := n.snapshotConfigs()
	n.dispatch(func() {
		for _, obs := range observers {
			obs.OnConfigReceived(cfg)
		}
	})
}

func (n *notifier) publishEvent(eventType string, detail json.RawMessage) {
	observers := n.snapshotEvents()
	n.dispatch(func() {
		for _, obs := range observers {
			obs.OnBackendEventReceived(eventType, detail)
		}
	})
}

func (n *notifier) snapshotMessages() []MessageObserver {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]MessageObserver, 0, len(n.messages))
	for _, obs := range n.messages {
		out = append(out, obs)
	}
	return out
}

func (n *notifier) snapshotConfigs() []ConfigObserver {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ConfigObserver, 0, len(n.configs))
	for _, obs := range n.configs {
		out = append(out, obs)
	}
	return out
}

func (n *notifier) snapshotEvents() []EventObserver {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]EventObserver, 0, len(n.events))
	for _, obs := range n.events {
		out = append(out, obs)
	}
	return out
}
