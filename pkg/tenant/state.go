package tenant

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/event"
)

// State is one of the tenant lifecycle states named in spec §4.6:
// Loading/Attaching converge on Activating, which converges on Active;
// Stopping and Broken are reachable from any of them.
type State int

const (
	StateLoading State = iota
	StateAttaching
	StateActivating
	StateActive
	StateStopping
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "Loading"
	case StateAttaching:
		return "Attaching"
	case StateActivating:
		return "Activating"
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

// stateWatcher is the tenant-side copy of the same tagged-state /
// event.Feed notification primitive pkg/timeline uses. It is
// duplicated here rather than shared through a generic type: the two
// state sets are not interchangeable (a tenant has Attaching, a
// timeline does not), and this codebase otherwise has no use for
// generics, so two small concrete types read better than one
// parameterized one.
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

// WaitForNot blocks until the watched state is no longer cur, ctx is
// cancelled, or the state becomes Broken. SetStopping uses this to
// wait out of Activating before driving its own transition; SetBroken
// does not wait and transitions immediately, even from Activating.
func (w *stateWatcher) WaitForNot(ctx context.Context, cur State) error {
	if w.Get() != cur {
		return nil
	}
	ch := make(chan State, 8)
	sub := w.feed.Subscribe(ch)
	defer sub.Unsubscribe()

	if got := w.Get(); got != cur {
		return nil
	}
	for {
		select {
		case s := <-ch:
			if s != cur {
				return nil
			}
		case err := <-sub.Err():
			if err != nil {
				return err
			}
			return fmt.Errorf("pageserver: tenant state subscription closed while waiting out of %s", cur)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitFor blocks until the watched state reaches target, ctx is done,
// or the tenant becomes Broken while waiting for anything else.
func (w *stateWatcher) WaitFor(ctx context.Context, target State) error {
	if w.Get() == target {
		return nil
	}
	ch := make(chan State, 8)
	sub := w.feed.Subscribe(ch)
	defer sub.Unsubscribe()

	if cur := w.Get(); cur == target {
		return nil
	} else if cur == StateBroken && target != StateBroken {
		return fmt.Errorf("pageserver: tenant is broken, will never reach %s", target)
	}
	for {
		select {
		case s := <-ch:
			if s == target {
				return nil
			}
			if s == StateBroken && target != StateBroken {
				return fmt.Errorf("pageserver: tenant is broken, will never reach %s", target)
			}
		case err := <-sub.Err():
			if err != nil {
				return err
			}
			return fmt.Errorf("pageserver: tenant state subscription closed before reaching %s", target)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
