package repository

import (
	"sync"

	"github.com/circolo-dev/fantacircolo/internal/domain/model"
)

// userNotifier fans persisted user states out to per-user subscribers. Both
// store implementations run in-process, so the subscription mechanism is
// shared. Channels are buffered with capacity one; when a subscriber lags,
// the stale state is dropped and replaced so the latest write always lands.
type userNotifier struct {
	mu   sync.Mutex
	subs map[string]map[chan model.User]struct{}
}

func newUserNotifier() *userNotifier {
	return &userNotifier{subs: make(map[string]map[chan model.User]struct{})}
}

// subscribe registers a watcher for id and returns the channel plus a cancel
// func. Cancel is idempotent.
func (n *userNotifier) subscribe(id string) (<-chan model.User, func()) {
	ch := make(chan model.User, 1)

	n.mu.Lock()
	if n.subs[id] == nil {
		n.subs[id] = make(map[chan model.User]struct{})
	}
	n.subs[id][ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs[id], ch)
			if len(n.subs[id]) == 0 {
				delete(n.subs, id)
			}
			n.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// notify delivers the latest state of u to its subscribers.
func (n *userNotifier) notify(u model.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[u.ID] {
		// Replace a pending stale state rather than block.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

// close drops every subscription. Channel closure stays with each
// subscriber's cancel func so it happens exactly once.
func (n *userNotifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id := range n.subs {
		delete(n.subs, id)
	}
}
