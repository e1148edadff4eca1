package tenant

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coredao-org/pageserver/pkg/ids"
	"github.com/coredao-org/pageserver/pkg/lsn"
	"github.com/coredao-org/pageserver/pkg/pageserrors"
	"github.com/coredao-org/pageserver/pkg/timeline"

	"github.com/ethereum/go-ethereum/log"
)

// GCIteration runs a GC pass: against a single timeline if target is
// set, otherwise against every timeline this tenant owns. A no-op when
// the tenant is not Active, per spec §4.6.
func (t *Tenant) GCIteration(ctx context.Context, target *ids.TimelineID, horizon uint64, pitr lsn.Lsn) (int, error) {
	if t.State() != StateActive {
		return 0, nil
	}
	var tls []*timeline.Timeline
	if target != nil {
		tl, ok := t.Timeline(*target)
		if !ok {
			return 0, pageserrors.ErrNotFound
		}
		tls = []*timeline.Timeline{tl}
	} else {
		tls = t.Timelines()
	}

	total := 0
	for _, tl := range tls {
		n, err := tl.GCIteration(ctx, horizon, pitr)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// CompactionIteration runs a compaction pass across every timeline this
// tenant owns. A no-op when the tenant is not Active.
func (t *Tenant) CompactionIteration(ctx context.Context) error {
	if t.State() != StateActive {
		return nil
	}
	for _, tl := range t.Timelines() {
		if err := tl.CompactionIteration(ctx); err != nil {
			return err
		}
	}
	return nil
}

// FreezeAndFlush flushes every timeline this tenant owns, per spec
// §4.6's "graceful flush of every timeline".
func (t *Tenant) FreezeAndFlush(ctx context.Context) error {
	for _, tl := range t.Timelines() {
		if err := tl.FreezeAndFlush(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run starts the tenant's periodic GC and compaction loops as
// supervised tasks bound to parent's lifetime (spec §9: "each periodic
// task... is a supervised task bound to the tenant's lifetime; shutdown
// is via cancellation and a join-all at teardown"). The two loops run
// under one golang.org/x/sync/errgroup.Group so SetStopping's join-all
// observes both having exited before it returns.
func (t *Tenant) Run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	t.cancelBackground = cancel

	g, gctx := errgroup.WithContext(ctx)
	t.background = g
	g.Go(func() error { return t.gcLoop(gctx) })
	g.Go(func() error { return t.compactionLoop(gctx) })
}

func (t *Tenant) gcLoop(ctx context.Context) error {
	period := t.cfg.GCPeriod
	if period <= 0 {
		period = time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := t.GCIteration(ctx, nil, t.cfg.GCHorizon, lsn.Invalid); err != nil {
				log.Error("Scheduled GC iteration failed", "tenant", t.ID, "err", err)
			}
		}
	}
}

func (t *Tenant) compactionLoop(ctx context.Context) error {
	period := t.cfg.CompactionPeriod
	if period <= 0 {
		period = 20 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := t.CompactionIteration(ctx); err != nil {
				log.Error("Scheduled compaction iteration failed", "tenant", t.ID, "err", err)
			}
		}
	}
}
