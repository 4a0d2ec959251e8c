package inmemory

import (
	"sync"
	"sync/atomic"

	"github.com/dvloznov/budget-tracker/internal/docstore"
)

// listener delivers snapshots to one subscriber on its own goroutine.
// Snapshots pushed while a callback runs are coalesced; only the latest one
// is delivered next.
type listener struct {
	handle uint64
	query  docstore.Query
	fn     docstore.Listener

	mu      sync.Mutex
	pending *docstore.Snapshot
	wake    chan struct{}

	done     chan struct{}
	stopped  atomic.Bool
	once     sync.Once
	stopHook func()
}

func newListener(q docstore.Query, fn docstore.Listener) *listener {
	return &listener{
		query: q,
		fn:    fn,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (l *listener) push(snap docstore.Snapshot) {
	if l.stopped.Load() {
		return
	}

	l.mu.Lock()
	l.pending = &snap
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *listener) run() {
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
			l.mu.Lock()
			snap := l.pending
			l.pending = nil
			l.mu.Unlock()

			if snap == nil || l.stopped.Load() {
				continue
			}
			l.fn(*snap)
		}
	}
}

// Stop implements docstore.Subscription.
func (l *listener) Stop() {
	l.once.Do(func() {
		l.stopped.Store(true)
		close(l.done)
		if l.stopHook != nil {
			l.stopHook()
		}
	})
}
