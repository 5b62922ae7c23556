package workspaces

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"missionctl/config"
	"missionctl/core/store"
	"missionctl/core/utils"
)

// Reconciler periodically sweeps rows whose workspace no longer exists.
// The cascade delete is batched and non-atomic across tables, so a crash
// mid-cascade can strand rows; the sweep removes them.
type Reconciler struct {
	cfg    config.ReconcilerConfig
	batch  int
	ws     store.WorkspacesStore
	logger *utils.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewReconciler(cfg *config.AppConfig, ws store.WorkspacesStore, logger *utils.Logger) *Reconciler {
	return &Reconciler{
		cfg:    cfg.Reconciler,
		batch:  cfg.Workspaces.CascadeBatchSize,
		ws:     ws,
		logger: logger,
	}
}

func (r *Reconciler) StartWithContext(ctx context.Context) {
	if r == nil || !r.cfg.Enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	c := cron.New()
	if _, err := c.AddFunc(r.cfg.Schedule, func() {
		if err := r.RunOnce(ctx); err != nil {
			r.logger.Errorf("reconciler: sweep: %v", err)
		}
	}); err != nil {
		r.logger.Errorf("reconciler: bad schedule %q: %v", r.cfg.Schedule, err)
		return
	}
	c.Start()
	r.cron = c
	r.running = true
}

func (r *Reconciler) StopWithContext(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.running = false
	r.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciler) RunOnce(ctx context.Context) error {
	swept, err := r.ws.SweepOrphans(ctx, r.batch)
	if err != nil {
		return err
	}
	for table, n := range swept {
		r.logger.Printf("reconciler: removed %d orphaned rows from %s", n, table)
	}
	return nil
}
