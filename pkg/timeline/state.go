package timeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/event"
)

// State is one of the timeline lifecycle states named in spec §4.6:
// Creating -> Loading -> Active -> Stopping, with Broken reachable from
// any of them on an invariant violation.
type State int

const (
	StateCreating State = iota
	StateLoading
	StateActive
	StateStopping
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateCreating:
		return "Creating"
	case StateLoading:
		return "Loading"
	case StateActive:
		return "Active"
	case StateStopping:
		return "Stopping"
	case StateBroken:
		return "Broken"
	default:
		return "Unknown"
	}
}

// stateWatcher is the "tagged variant behind a single-writer,
// multi-reader notification primitive" spec §9 calls for, so callers
// can wait for Active or Stopping instead of polling. It is built on
// event.Feed, the same publish/subscribe primitive the teacher uses
// for chain-head and pending-log notifications in miner/worker.go.
type stateWatcher struct {
	mu   sync.Mutex
	cur  State
	feed event.Feed
}

func newStateWatcher(initial State) *stateWatcher {
	return &stateWatcher{cur: initial}
}

func (w *stateWatcher) Get() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur
}

// Set transitions to s and broadcasts the new state to every
// subscriber. Once Broken, further Set calls are ignored: Broken is a
// terminal state for the lifetime of this struct.
func (w *stateWatcher) Set(s State) {
	w.mu.Lock()
	if w.cur == StateBroken {
		w.mu.Unlock()
		return
	}
	w.cur = s
	w.mu.Unlock()
	w.feed.Send(s)
}

// WaitFor blocks until the watched state reaches target, ctx is
// cancelled, or the state becomes Broken while waiting for anything
// other than Broken itself.
func (w *stateWatcher) WaitFor(ctx context.Context, target State) error {
	if w.Get() == target {
		return nil
	}
	ch := make(chan State, 8)
	sub := w.feed.Subscribe(ch)
	defer sub.Unsubscribe()

	// Re-check after subscribing: a transition between the initial Get
	// and Subscribe would otherwise never be observed.
	if cur := w.Get(); cur == target {
		return nil
	} else if cur == StateBroken && target != StateBroken {
		return fmt.Errorf("pageserver: timeline is broken, will never reach %s", target)
	}

	for {
		select {
		case s := <-ch:
			if s == target {
				return nil
			}
			if s == StateBroken && target != StateBroken {
				return fmt.Errorf("pageserver: timeline is broken, will never reach %s", target)
			}
		case err := <-sub.Err():
			if err != nil {
				return err
			}
			return fmt.Errorf("pageserver: state subscription closed before reaching %s", target)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
